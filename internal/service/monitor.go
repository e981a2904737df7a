package service

import (
	"context"
	"time"

	"reflow_oven/internal/metrics"
	"reflow_oven/internal/models"
)

// Monitor polls the thermocouples once per tick and publishes their
// status without touching the outputs, until StopMonitor or ctx ends.
func (s *OvenService) Monitor(ctx context.Context) error {
	sess, err := s.beginMonitor(ctx)
	if err != nil {
		return err
	}
	s.awaitMonitor(sess)
	return nil
}

func (s *OvenService) StartMonitor() error {
	sess, err := s.beginMonitor(s.root)
	if err != nil {
		return err
	}
	go s.awaitMonitor(sess)
	return nil
}

func (s *OvenService) StopMonitor() error {
	s.mu.Lock()
	sess, ok := s.current(SessionMonitor)
	s.mu.Unlock()
	if !ok {
		return ErrWrongSession
	}
	sess.cancel()
	return nil
}

// ToggleChannel flips the enable flag of channel ch (0-based) and returns
// the new value. Channels cannot be changed during a profile run.
func (s *OvenService) ToggleChannel(ch int) (bool, error) {
	s.mu.Lock()
	_, running := s.current(SessionRun)
	s.mu.Unlock()
	if running {
		return false, ErrBusy
	}
	tc, err := s.sensors.Channel(ch)
	if err != nil {
		return false, err
	}
	on := tc.Toggle()
	s.log.Infow("channel_toggled", "channel", ch+1, "enabled", on)
	return on, nil
}

func (s *OvenService) beginMonitor(parent context.Context) (*session, error) {
	sess, err := s.acquire(parent, SessionMonitor)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.monitorT = 0
	s.status.Session = SessionMonitor
	s.status.State = models.StateOff
	s.status.Time = 0
	s.status.Setpoint = 0
	s.status.AwaitAck = false
	st := s.status
	s.mu.Unlock()

	if err := s.ticks.Start(sess.ctx, s.monitorTick); err != nil {
		s.release(sess)
		return nil, err
	}
	s.event(models.EventMonitorStart, "monitor mode entered", nil)
	s.publish(st)
	return sess, nil
}

func (s *OvenService) awaitMonitor(sess *session) {
	<-sess.ctx.Done()
	s.ticks.Stop()

	s.mu.Lock()
	s.status.Session = SessionIdle
	s.status.UpdatedAt = time.Now().UTC()
	st := s.status
	s.mu.Unlock()

	s.event(models.EventMonitorExit, "monitor mode left", nil)
	s.publish(st)
	s.release(sess)
}

func (s *OvenService) monitorTick(ctx context.Context, now time.Time) {
	fused := s.sensors.Update(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.monitorT++
	s.status.Time = s.monitorT
	s.observeLocked(&s.status, fused, now)
	faults := s.faultsLocked(fused.Readings)
	st := s.status
	s.mu.Unlock()

	metrics.Ticks.Inc()
	s.publish(st)
	s.reportFaults(faults, fused.Readings)
}
