// Package tick delivers the periodic control tick.
package tick

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrRunning = errors.New("tick: source already started")

// Func handles one tick. It runs on the source's goroutine and must return
// before the next tick is due.
type Func func(ctx context.Context, now time.Time)

// Source is a periodic callback with a start/stop lifecycle.
type Source interface {
	Start(ctx context.Context, fn Func) error
	// Stop cancels the source and waits for a tick in progress to finish.
	Stop()
}

// Ticker is a Source backed by time.Ticker.
type Ticker struct {
	period time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Source = (*Ticker)(nil)

func NewTicker(period time.Duration) *Ticker {
	if period <= 0 {
		period = time.Second
	}
	return &Ticker{period: period}
}

func (t *Ticker) Period() time.Duration { return t.period }

func (t *Ticker) Start(ctx context.Context, fn Func) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	go func() {
		defer close(done)
		tk := time.NewTicker(t.period)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tk.C:
				fn(ctx, now)
			}
		}
	}()
	return nil
}

func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Manual is a Source that only ticks when Fire is called. Tests use it to
// step a run deterministically.
type Manual struct {
	mu  sync.Mutex
	ctx context.Context
	fn  Func
	now time.Time
}

var _ Source = (*Manual)(nil)

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Start(ctx context.Context, fn Func) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fn != nil {
		return ErrRunning
	}
	m.ctx, m.fn = ctx, fn
	return nil
}

func (m *Manual) Stop() {
	m.mu.Lock()
	m.ctx, m.fn = nil, nil
	m.mu.Unlock()
}

// Running reports whether the source has been started and not stopped.
func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}

// Fire delivers one tick, one second after the previous one. It reports
// false when the source is stopped.
func (m *Manual) Fire() bool {
	m.mu.Lock()
	ctx, fn := m.ctx, m.fn
	m.now = m.now.Add(time.Second)
	now := m.now
	m.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(ctx, now)
	return true
}
