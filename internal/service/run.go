package service

import (
	"context"
	"time"

	"reflow_oven/internal/actuator"
	"reflow_oven/internal/executor"
	"reflow_oven/internal/metrics"
	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"

	"github.com/google/uuid"
)

const (
	abortReason  = "aborted by operator"
	persistLimit = 5 * time.Second
)

type runState struct {
	exec    *executor.Executor
	profile models.Profile
	ambient float64
	started time.Time

	ctx      context.Context
	abort    context.CancelFunc
	finished chan struct{}
	ended    bool
}

// RunProfile executes profile id and blocks until the run is over and the
// operator has acknowledged it, or ctx ends. It refuses to start when no
// thermocouple gives a usable reading; nothing is switched on in that case.
func (s *OvenService) RunProfile(ctx context.Context, id int) (models.RunRecord, error) {
	sess, err := s.beginRun(ctx, ctx, id)
	if err != nil {
		return models.RunRecord{}, err
	}
	return s.awaitRun(sess), nil
}

// StartRun starts profile id in the background. Errors that prevent the
// start are returned; the outcome of the run is published in the status.
func (s *OvenService) StartRun(ctx context.Context, id int) error {
	sess, err := s.beginRun(ctx, s.root, id)
	if err != nil {
		return err
	}
	go s.awaitRun(sess)
	return nil
}

// Abort cancels the run in progress. The run is recorded as failed.
func (s *OvenService) Abort() error {
	s.mu.Lock()
	_, ok := s.current(SessionRun)
	run := s.run
	active := ok && run != nil && !run.ended
	s.mu.Unlock()
	if !active {
		return ErrNotRunning
	}
	s.log.Infow("run_abort_requested", "profile_id", run.profile.ID)
	run.abort()
	return nil
}

// Acknowledge releases a finished run waiting for the operator.
func (s *OvenService) Acknowledge() error {
	s.mu.Lock()
	pending := s.status.AwaitAck
	s.mu.Unlock()
	if !pending {
		return ErrNoAckPending
	}
	select {
	case s.ack <- struct{}{}:
	default:
	}
	return nil
}

func (s *OvenService) beginRun(ctx, parent context.Context, id int) (*session, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exec, err := executor.New(p)
	if err != nil {
		return nil, err
	}
	sess, err := s.acquire(parent, SessionRun)
	if err != nil {
		return nil, err
	}

	fused := s.sensors.Update(ctx)
	if !fused.Valid {
		s.release(sess)
		s.log.Warnw("run_refused", "profile_id", id, "reason", ErrNoSensors.Error())
		return nil, ErrNoSensors
	}
	ambient := fused.Temperature
	exec.Start(ambient)
	if _, err := executor.Preview(s.plot, p, ambient); err != nil {
		s.log.Warnw("run_preview_failed", "profile_id", id, "error", err)
	}

	runCtx, abort := context.WithCancel(sess.ctx)
	run := &runState{
		exec:     exec,
		profile:  p,
		ambient:  ambient,
		started:  time.Now().UTC(),
		ctx:      runCtx,
		abort:    abort,
		finished: make(chan struct{}),
	}

	s.mu.Lock()
	select {
	case <-s.ack:
	default:
	}
	s.run = run
	snap := exec.Snapshot()
	s.status = models.OvenStatus{
		Session:   SessionRun,
		State:     snap.State,
		ProfileID: p.ID,
		Setpoint:  snap.Setpoint,
		Ambient:   ambient,
	}
	s.observeLocked(&s.status, fused, time.Now())
	st := s.status
	s.mu.Unlock()

	s.pid.SetSetpoint(ambient)
	s.pid.Enable(true)

	if err := s.ticks.Start(runCtx, s.runTick); err != nil {
		s.pid.Enable(false)
		if serr := actuator.Shutdown(s.out, 0); serr != nil {
			s.log.Errorw("shutdown_failed", "error", serr)
		}
		abort()
		s.mu.Lock()
		s.run = nil
		s.status.State = models.StateOff
		s.mu.Unlock()
		s.release(sess)
		return nil, err
	}

	s.log.Infow("run_started", "profile_id", p.ID, "profile", p.Description, "ambient_c", ambient)
	s.event(models.EventRunStart, "profile run started", map[string]any{
		"profile_id": p.ID,
		"profile":    p.Description,
		"ambient_c":  ambient,
	})
	s.publish(st)
	return sess, nil
}

// runTick advances the executor by one tick and records what happened.
func (s *OvenService) runTick(ctx context.Context, now time.Time) {
	// Cancel is observed between ticks only; the bus timeout bounds the reads.
	fused := s.sensors.Update(context.WithoutCancel(ctx))

	s.mu.Lock()
	run := s.run
	if run == nil || run.ended {
		s.mu.Unlock()
		return
	}
	snap := run.exec.Step(fused.Temperature, fused.Valid)
	switch {
	case snap.State == models.StateFail:
		s.pid.Enable(false)
		if err := s.out.SetHeaterDutycycle(0); err != nil {
			s.log.Errorw("heater_off_failed", "error", err)
		}
	case snap.State.Automatic():
		s.pid.SetSetpoint(snap.Setpoint)
	}

	s.status.State = snap.State
	s.status.Time = snap.Time
	s.status.Setpoint = snap.Setpoint
	s.observeLocked(&s.status, fused, now)
	dp := plot.NewDataPoint(snap.State, s.status.Heater, s.status.Fan, snap.Setpoint, fused.Readings)
	if err := s.plot.AddPoint(snap.Time, dp); err != nil {
		s.log.Debugw("plot_point_dropped", "time_s", snap.Time, "error", err)
	}
	faults := s.faultsLocked(fused.Readings)
	if snap.State.Terminal() {
		run.ended = true
		close(run.finished)
	}
	st := s.status
	s.mu.Unlock()

	metrics.Ticks.Inc()
	s.publish(st)
	s.reportFaults(faults, fused.Readings)
	if snap.State == models.StateFail {
		s.log.Warnw("run_failed", "profile_id", run.profile.ID, "time_s", snap.Time, "reason", snap.Reason)
	}
}

// awaitRun waits for the run to end, cools the oven down and waits for the
// operator before switching everything off.
func (s *OvenService) awaitRun(sess *session) models.RunRecord {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	select {
	case <-run.finished:
	case <-run.ctx.Done():
	}
	s.ticks.Stop()

	s.mu.Lock()
	aborted := false
	if run.exec.Snapshot().State.Automatic() {
		run.exec.Abort(abortReason)
		aborted = true
	}
	if !run.ended {
		run.ended = true
		close(run.finished)
	}
	snap := run.exec.Snapshot()
	s.mu.Unlock()
	run.abort()

	s.pid.Enable(false)
	s.pid.SetSetpoint(0)
	if err := actuator.Shutdown(s.out, s.settings.CoolDownFanSpeed); err != nil {
		s.log.Errorw("shutdown_failed", "error", err)
	}

	bg := context.WithoutCancel(sess.ctx)
	fused := s.sensors.Update(bg)
	now := time.Now()

	s.mu.Lock()
	s.status.State = snap.State
	s.status.Time = snap.Time
	s.status.Setpoint = snap.Setpoint
	s.status.AwaitAck = true
	s.observeLocked(&s.status, fused, now)
	if snap.Time < plot.MaxProfileTime {
		dp := plot.NewDataPoint(snap.State, s.status.Heater, s.status.Fan, snap.Setpoint, fused.Readings)
		if err := s.plot.AddPoint(snap.Time, dp); err != nil {
			s.log.Debugw("plot_point_dropped", "time_s", snap.Time, "error", err)
		}
	}
	st := s.status
	s.mu.Unlock()
	s.publish(st)

	rec := models.RunRecord{
		ID:          uuid.NewString(),
		ProfileID:   run.profile.ID,
		ProfileName: run.profile.Description,
		Ambient:     run.ambient,
		Outcome:     snap.State,
		Reason:      snap.Reason,
		StartedAt:   run.started,
		FinishedAt:  now.UTC(),
	}
	points := s.plot.Points()
	rec.Points = len(points)
	s.finishRun(bg, rec, points, aborted)

	select {
	case <-s.ack:
		s.log.Infow("run_acknowledged", "run_id", rec.ID)
	case <-sess.ctx.Done():
	}

	if err := s.out.SetFanDutycycle(0); err != nil {
		s.log.Errorw("fan_off_failed", "error", err)
	}
	s.mu.Lock()
	s.run = nil
	s.status.State = models.StateOff
	s.status.AwaitAck = false
	s.status.Session = SessionIdle
	s.status.Heater = s.out.HeaterDutycycle()
	s.status.Fan = s.out.FanDutycycle()
	s.status.UpdatedAt = time.Now().UTC()
	st = s.status
	s.mu.Unlock()
	s.publish(st)
	s.release(sess)
	return rec
}

func (s *OvenService) finishRun(ctx context.Context, rec models.RunRecord, points []plot.DataPoint, aborted bool) {
	typ, outcome := models.EventRunComplete, "complete"
	switch {
	case aborted:
		typ, outcome = models.EventRunAbort, "abort"
	case rec.Outcome == models.StateFail:
		typ, outcome = models.EventRunFail, "fail"
	}
	metrics.Runs.WithLabelValues(outcome).Inc()
	s.log.Infow("run_finished",
		"run_id", rec.ID,
		"profile_id", rec.ProfileID,
		"outcome", outcome,
		"reason", rec.Reason,
		"points", rec.Points,
	)
	s.event(typ, "profile run finished", map[string]any{
		"run_id":     rec.ID,
		"profile_id": rec.ProfileID,
		"reason":     rec.Reason,
		"points":     rec.Points,
	})

	ctx, cancel := context.WithTimeout(ctx, persistLimit)
	defer cancel()
	if err := s.runs.Create(ctx, rec, points); err != nil {
		s.log.Errorw("run_persist_failed", "run_id", rec.ID, "error", err)
	}
}
