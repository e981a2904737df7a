package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

var queryTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// @Summary      List oven events
// @Description  Events in [from, to]. Times are RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD' in UTC; a date-only 'to' covers the whole day.
// @Tags         logs
// @Produce      json
// @Param        from   query   string  false  "Start of range"  example(2025-08-01)
// @Param        to     query   string  false  "End of range, inclusive"  example(2025-08-31)
// @Param        type   query   string  false  "Event type"  Enums(RUN_START,RUN_COMPLETE,RUN_FAIL,RUN_ABORT,SENSOR_FAULT,SAFETY_CUTOFF,MANUAL_START,MANUAL_EXIT,MONITOR_START,MONITOR_EXIT)
// @Param        limit  query   int     false  "Maximum number of events (default 200, max 1000)"
// @Param        order  query   string  false  "Sort order"  Enums(asc,desc)
// @Success      200    {object}  map[string]interface{}  "count, events"
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	f, err := logFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	if err != nil {
		h.serviceError(c, "failed to load logs", "logs_list_failed", err,
			"from", f.From, "to", f.To, "type", f.Type, "limit", f.Limit)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

// logFilterFromQuery reads the filter parameters. Only syntax is checked
// here; ranges and event types are validated by the service.
func logFilterFromQuery(c *gin.Context) (service.LogFilter, error) {
	f := service.LogFilter{Type: c.Query("type")}

	if s := c.Query("from"); s != "" {
		t, err := parseQueryTime(s)
		if err != nil {
			return f, fmt.Errorf("invalid 'from': %w", err)
		}
		f.From = t
	}
	if s := c.Query("to"); s != "" {
		t, err := parseQueryTime(s)
		if err != nil {
			return f, fmt.Errorf("invalid 'to': %w", err)
		}
		if !strings.ContainsAny(s, "T ") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = t
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return f, fmt.Errorf("invalid 'limit' %q", s)
		}
		f.Limit = n
	}
	switch strings.ToLower(c.Query("order")) {
	case "", "asc":
	case "desc":
		f.NewestFirst = true
	default:
		return f, fmt.Errorf("invalid 'order' %q, use asc or desc", c.Query("order"))
	}
	return f, nil
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'", s)
}
