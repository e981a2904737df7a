package handlers

import (
	"net/http"
	"strconv"

	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
	"reflow_oven/internal/telemetry"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidProfileID = "invalid profile id"
	defaultRunsLimit    = 50
	maxRunsLimit        = 500
)

func profileID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 || id >= models.MaxProfiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidProfileID})
		return 0, false
	}
	return id, true
}

// @Summary      List profiles
// @Tags         profiles
// @Produce      json
// @Success      200  {array}   models.Profile
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/profiles [get]
// @Security     BearerAuth
func (h *Handler) listProfiles(c *gin.Context) {
	ps, err := h.services.Profiles.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load profiles", "profiles_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

// @Summary      Get a profile
// @Tags         profiles
// @Produce      json
// @Param        id   path      int  true  "Profile slot"
// @Success      200  {object}  models.Profile
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/profiles/{id} [get]
// @Security     BearerAuth
func (h *Handler) getProfile(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	p, err := h.services.Profiles.Get(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "failed to load profile", "profile_get_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Store a profile
// @Description  Locked slots cannot be overwritten.
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        id    path      int             true  "Profile slot"
// @Param        body  body      models.Profile  true  "Profile"
// @Success      200   {object}  models.Profile
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/profiles/{id} [put]
// @Security     BearerAuth
func (h *Handler) saveProfile(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	var p models.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	p.ID = id
	if err := h.services.Profiles.Save(c.Request.Context(), p); err != nil {
		h.serviceError(c, "failed to store profile", "profile_save_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Preview the ideal curve of a profile
// @Tags         profiles
// @Produce      json
// @Param        id   path      int  true  "Profile slot"
// @Success      200  {object}  map[string]interface{}  "count, curve"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/profiles/{id}/preview [get]
// @Security     BearerAuth
func (h *Handler) previewProfile(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	curve, err := h.services.Profiles.Preview(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "failed to preview profile", "profile_preview_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(curve), "curve": curve})
}

// @Summary      List recorded runs
// @Tags         runs
// @Produce      json
// @Param        limit  query  int  false  "Maximum number of runs (default 50)"
// @Success      200  {object}  map[string]interface{}  "count, runs"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/runs [get]
// @Security     BearerAuth
func (h *Handler) listRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= maxRunsLimit {
			limit = v
		}
	}
	runs, err := h.services.Runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load runs", "runs_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(runs), "runs": runs})
}

// @Summary      Get a recorded run
// @Tags         runs
// @Produce      json
// @Produce      text/csv
// @Param        id      path   string  true   "Run id"
// @Param        format  query  string  false  "json (default) or csv"  Enums(json,csv)
// @Success      200  {object}  map[string]interface{}  "run, points"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/runs/{id} [get]
// @Security     BearerAuth
func (h *Handler) getRun(c *gin.Context) {
	id := c.Param("id")
	rec, points, err := h.services.Runs.GetRun(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "failed to load run", "run_get_failed", err, "id", id)
		return
	}
	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", "attachment; filename=run-"+rec.ID+".csv")
		c.String(http.StatusOK, runCSV(points))
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": rec, "points": points})
}

func runCSV(points []plot.DataPoint) string {
	b := make([]byte, 0, (len(points)+1)*64)
	b = append(b, telemetry.StatusTitle...)
	b = append(b, '\n')
	for t, dp := range points {
		b = append(b, plot.CSVRow(t, dp)...)
		b = append(b, '\n')
	}
	return string(b)
}
