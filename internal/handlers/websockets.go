package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"reflow_oven/internal/plot"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMsgSize      = 1 << 12
	defaultInterval = time.Second
	minInterval     = 10 * time.Millisecond
	maxInterval     = 10 * time.Second
)

const (
	wsTypeState = "state"
	wsTypePoint = "point"
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsPoint is one recorded tick of the running profile.
type wsPoint struct {
	Time  int            `json:"time_s"`
	Point plot.DataPoint `json:"point"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins for production
}

// statusStream writes oven statuses, and optionally new plot points, to one
// websocket client.
type statusStream struct {
	h    *Handler
	conn *websocket.Conn

	points bool
	next   int
}

// @Summary      Stream oven status
// @Description  Sends a "state" envelope every interval. With points=1 every newly recorded data point follows as a "point" envelope.
// @Tags         oven
// @Param        interval     query  string  false  "Go duration, 10ms..10s"
// @Param        interval_ms  query  int     false  "Milliseconds, 10..10000"
// @Param        points       query  bool    false  "Also stream plot points"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)
	withPoints, _ := strconv.ParseBool(c.Query("points"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.wsLog("ws_upgrade_failed", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.drain(conn, done)

	s := &statusStream{h: h, conn: conn, points: withPoints && h.services.Oven != nil}
	s.serve(c.Request.Context(), done, interval)
}

func (s *statusStream) serve(ctx context.Context, done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer ping.Stop()

	if err := s.push(ctx); err != nil {
		s.h.wsLog("ws_write_failed_initial", err)
		return
	}
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.h.wsLog("ws_ping_failed", err)
				return
			}
		case <-ticker.C:
			if err := s.push(ctx); err != nil {
				s.h.wsLog("ws_write_failed", err)
				return
			}
		}
	}
}

// push sends the current status followed by any points recorded since the
// previous push.
func (s *statusStream) push(ctx context.Context) error {
	st, err := s.h.services.Monitoring.GetState(ctx)
	if err != nil {
		if s.h.log != nil {
			s.h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	if err := s.write(wsEnvelope{Type: wsTypeState, Data: st}); err != nil {
		return err
	}
	if !s.points {
		return nil
	}

	pl := s.h.services.Oven.Plot()
	if !pl.IsLiveDataPresent() {
		s.next = 0
		return nil
	}
	last := pl.LastValidIndex()
	if last < s.next-1 {
		// A new run reset the plot.
		s.next = 0
	}
	for ; s.next <= last; s.next++ {
		dp, ok := pl.DataPoint(s.next)
		if !ok {
			break
		}
		if err := s.write(wsEnvelope{Type: wsTypePoint, Data: wsPoint{Time: s.next, Point: dp}}); err != nil {
			return err
		}
	}
	return nil
}

func (s *statusStream) write(env wsEnvelope) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 within bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d >= minInterval && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			if d := time.Duration(v) * time.Millisecond; d >= minInterval && d <= maxInterval {
				return d
			}
		}
	}
	return defaultInterval
}

// drain reads and discards client frames so control frames are handled,
// closing done when the peer goes away.
func (h *Handler) drain(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.wsLog("ws_read_closed", err)
			return
		}
	}
}

func (h *Handler) wsLog(msg string, err error) {
	if h.log != nil {
		h.log.Infow(msg, "err", err)
	}
}
