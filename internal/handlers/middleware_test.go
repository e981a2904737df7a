package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reflow_oven/internal/metrics"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// guardedRouter mounts the token check in front of an endpoint echoing the
// operator id.
func guardedRouter(auth *mockAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{Authorization: auth}, nil)
	r := gin.New()
	r.GET("/guarded", h.userIdMiddleware, func(c *gin.Context) {
		id, _ := c.Get("userId")
		c.JSON(http.StatusOK, gin.H{"userId": id})
	})
	return r
}

func TestUserIDMiddleware(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		parseErr error
		want     int
		wantMsg  string
	}{
		{"no header", "", nil, http.StatusUnauthorized, "missing Authorization header"},
		{"basic scheme", "Basic b3A6cHc=", nil, http.StatusUnauthorized, "invalid Authorization header format"},
		{"scheme only", "Bearer", nil, http.StatusUnauthorized, "invalid Authorization header format"},
		{"rejected token", "Bearer stale", errors.New("expired"), http.StatusUnauthorized, "invalid or expired token"},
		{"accepted", "Bearer fresh", nil, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuth{parseID: 5, parseErr: tc.parseErr}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			guardedRouter(auth).ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d, body=%s", w.Code, tc.want, w.Body.String())
			}
			var out struct {
				Error  string `json:"error"`
				UserID int    `json:"userId"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Error != tc.wantMsg {
				t.Fatalf("error=%q, want %q", out.Error, tc.wantMsg)
			}
			if tc.want == http.StatusOK && (out.UserID != 5 || auth.lastParseToken != "fresh") {
				t.Fatalf("userId=%d token=%q", out.UserID, auth.lastParseToken)
			}
		})
	}
}

func TestMetricsMiddleware_LabelsByRoute(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseErr: errors.New("no")}})

	unmatched := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(unmatched)

	for _, p := range []string{"/nowhere/1", "/nowhere/2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}
	if got := testutil.ToFloat64(unmatched) - before; got != 2 {
		t.Fatalf("unmatched requests counted %v, want 2", got)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil))
	got := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/runs/:id", "401"))
	if got < 1 {
		t.Fatalf("route pattern label missing")
	}
	if strings.Contains(w.Body.String(), "abc") {
		t.Fatalf("unexpected echo of the path: %s", w.Body.String())
	}
}
