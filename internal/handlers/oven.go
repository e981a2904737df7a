package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"reflow_oven/internal/models"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/sensor"
	"reflow_oven/internal/service"
	"reflow_oven/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusStarted      = "started"
	statusAborted      = "aborted"
	statusAcknowledged = "acknowledged"
	statusStopped      = "stopped"
	statusApplied      = "applied"

	errStartRun        = "failed to start run"
	errGetState        = "failed to load state"
	errInvalidBodyPref = "invalid body: "
	errInvalidChannel  = "invalid channel"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// httpStatus maps service errors to response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrBusy),
		errors.Is(err, service.ErrNotRunning),
		errors.Is(err, service.ErrNoAckPending),
		errors.Is(err, service.ErrWrongSession),
		errors.Is(err, repository.ErrProfileLocked),
		errors.Is(err, repository.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrRunNotFound),
		errors.Is(err, sensor.ErrNoChannel):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidProfile),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrUnknownEventType),
		errors.Is(err, service.ErrInvalidTimeRange),
		errors.Is(err, service.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoSensors), errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// serviceError answers with the mapped code. Only unexpected failures are
// logged as errors; the message of a known condition is passed through.
func (h *Handler) serviceError(c *gin.Context, userMsg, logKey string, err error, kv ...interface{}) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		h.logAndJSONError(c, code, userMsg, logKey, err, kv...)
		return
	}
	if h.log != nil {
		h.log.Infow(logKey, append([]interface{}{"err", err}, kv...)...)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// Respond with a status and include the oven status.
func (h *Handler) respondWithStatus(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	resp["oven"] = h.services.Oven.Status()
	c.JSON(http.StatusOK, resp)
}

// RunRequest is the payload of POST /api/v1/oven/run.
type RunRequest struct {
	// Profile slot 0..9
	ProfileID *int `json:"profile_id" binding:"required" example:"0"`
}

// ManualRequest is the payload of POST /api/v1/oven/manual/command.
type ManualRequest struct {
	// One of heater, fan, up, down, exit
	Command string `json:"command" binding:"required" example:"heater"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Run a profile
// @Description  Refused with 503 when no thermocouple gives a usable reading.
// @Tags         oven
// @Accept       json
// @Produce      json
// @Param        body  body      RunRequest  true  "Profile to run"
// @Success      200   {object}  map[string]interface{}  "status, oven"
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/oven/run [post]
// @Security     BearerAuth
func (h *Handler) startRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Oven.StartRun(c.Request.Context(), *req.ProfileID); err != nil {
		h.serviceError(c, errStartRun, "oven_run_failed", err, "profile_id", *req.ProfileID)
		return
	}
	h.respondWithStatus(c, statusStarted, gin.H{"profile_id": *req.ProfileID})
}

// @Summary      Abort the running profile
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/oven/abort [post]
// @Security     BearerAuth
func (h *Handler) abortRun(c *gin.Context) {
	if err := h.services.Oven.Abort(); err != nil {
		h.serviceError(c, "failed to abort run", "oven_abort_failed", err)
		return
	}
	h.respondWithStatus(c, statusAborted, nil)
}

// @Summary      Acknowledge a finished run
// @Description  Switches the cool-down fan off and returns the oven to Off.
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/oven/ack [post]
// @Security     BearerAuth
func (h *Handler) acknowledge(c *gin.Context) {
	if err := h.services.Oven.Acknowledge(); err != nil {
		h.serviceError(c, "failed to acknowledge", "oven_ack_failed", err)
		return
	}
	h.respondWithStatus(c, statusAcknowledged, nil)
}

// @Summary      Get oven status
// @Tags         oven
// @Produce      json
// @Success      200  {object}  models.OvenStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "oven_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Get the last persisted status
// @Tags         oven
// @Produce      json
// @Success      200  {object}  models.OvenStatus
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/status/saved [get]
// @Security     BearerAuth
func (h *Handler) getSavedStatus(c *gin.Context) {
	st, err := h.services.Monitoring.LastSaved(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "oven_load_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Export the plot of the current or last run
// @Tags         oven
// @Produce      json
// @Produce      text/csv
// @Param        format  query  string  false  "json (default) or csv"  Enums(json,csv)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/oven/plot [get]
// @Security     BearerAuth
func (h *Handler) getPlot(c *gin.Context) {
	pl := h.services.Oven.Plot()
	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if _, err := c.Writer.WriteString(telemetry.StatusTitle + "\n"); err != nil {
			return
		}
		if err := pl.WriteCSV(c.Writer); err != nil && h.log != nil {
			h.log.Infow("oven_plot_write_failed", "err", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"live":       pl.IsLiveDataPresent(),
		"last_index": pl.LastValidIndex(),
		"maximum_c":  pl.Maximum(),
		"points":     pl.Points(),
		"profile":    pl.Profile(),
	})
}

// @Summary      Enter manual mode
// @Tags         manual
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/oven/manual [post]
// @Security     BearerAuth
func (h *Handler) startManual(c *gin.Context) {
	if err := h.services.Oven.StartManual(); err != nil {
		h.serviceError(c, "failed to enter manual mode", "oven_manual_failed", err)
		return
	}
	h.respondWithStatus(c, statusStarted, gin.H{"session": service.SessionManual})
}

// @Summary      Send a manual mode command
// @Tags         manual
// @Accept       json
// @Produce      json
// @Param        body  body      ManualRequest  true  "Command"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/oven/manual/command [post]
// @Security     BearerAuth
func (h *Handler) manualCommand(c *gin.Context) {
	var req ManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	cmd := service.ManualCommand(req.Command)
	if err := h.services.Oven.Manual(cmd); err != nil {
		h.serviceError(c, "manual command failed", "oven_manual_command_failed", err, "command", req.Command)
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"command": req.Command})
}

// @Summary      Enter monitor mode
// @Tags         monitor
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/oven/monitor [post]
// @Security     BearerAuth
func (h *Handler) startMonitor(c *gin.Context) {
	if err := h.services.Oven.StartMonitor(); err != nil {
		h.serviceError(c, "failed to enter monitor mode", "oven_monitor_failed", err)
		return
	}
	h.respondWithStatus(c, statusStarted, gin.H{"session": service.SessionMonitor})
}

// @Summary      Leave monitor mode
// @Tags         monitor
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/oven/monitor [delete]
// @Security     BearerAuth
func (h *Handler) stopMonitor(c *gin.Context) {
	if err := h.services.Oven.StopMonitor(); err != nil {
		h.serviceError(c, "failed to leave monitor mode", "oven_monitor_stop_failed", err)
		return
	}
	h.respondWithStatus(c, statusStopped, nil)
}

// @Summary      List thermocouple channels
// @Tags         sensors
// @Produce      json
// @Success      200  {array}  service.ChannelInfo
// @Router       /api/v1/sensors [get]
// @Security     BearerAuth
func (h *Handler) listChannels(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Channels())
}

// @Summary      Toggle a thermocouple channel
// @Description  Channels are numbered from 1. Refused while a profile runs.
// @Tags         sensors
// @Produce      json
// @Param        channel  path  int  true  "Channel 1..4"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/sensors/{channel}/toggle [post]
// @Security     BearerAuth
func (h *Handler) toggleChannel(c *gin.Context) {
	ch, err := strconv.Atoi(c.Param("channel"))
	if err != nil || ch < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidChannel})
		return
	}
	on, err := h.services.Oven.ToggleChannel(ch - 1)
	if err != nil {
		h.serviceError(c, "failed to toggle channel", "sensor_toggle_failed", err, "channel", ch)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": ch, "enabled": on})
}
