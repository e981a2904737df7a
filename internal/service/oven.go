package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"reflow_oven/internal/actuator"
	"reflow_oven/internal/control"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/metrics"
	"reflow_oven/internal/models"
	"reflow_oven/internal/plot"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/sensor"
	"reflow_oven/internal/telemetry"
	"reflow_oven/internal/tick"

	"github.com/google/uuid"
)

var (
	ErrBusy         = errors.New("oven is busy with another session")
	ErrNoSensors    = errors.New("no usable temperature sensor")
	ErrNotRunning   = errors.New("no profile run in progress")
	ErrNoAckPending = errors.New("nothing to acknowledge")
	ErrWrongSession = errors.New("command not valid in the current session")
	ErrClosed       = errors.New("oven service is closed")
)

// Session kinds reported in OvenStatus.Session.
const (
	SessionIdle    = "idle"
	SessionRun     = "run"
	SessionManual  = "manual"
	SessionMonitor = "monitor"
)

const (
	outboxSize     = 64
	outboxDeadline = 2 * time.Second
)

// OvenSettings are the run driver limits.
type OvenSettings struct {
	CoolDownFanSpeed int
	// MaxHeaterTime bounds continuous heater-on time in manual mode.
	MaxHeaterTime  time.Duration
	ManualSetpoint float64
	ManualFanSpeed int
}

func (o OvenSettings) withDefaults() OvenSettings {
	if o.CoolDownFanSpeed <= 0 {
		o.CoolDownFanSpeed = 100
	}
	if o.MaxHeaterTime <= 0 {
		o.MaxHeaterTime = 600 * time.Second
	}
	if o.ManualSetpoint <= 0 {
		o.ManualSetpoint = 100
	}
	if o.ManualFanSpeed <= 0 {
		o.ManualFanSpeed = 100
	}
	return o
}

// OvenDeps are the collaborators of the run driver.
type OvenDeps struct {
	Sensors  *sensor.Array
	PID      control.Controller
	Outputs  actuator.Outputs
	Ticks    tick.Source
	Profiles repository.ProfileRepo
	Runs     repository.RunRepo
	State    repository.StateRepo
	Events   repository.EventRepo
	Sink     telemetry.Sink
	Log      *logger.Logger
	Settings OvenSettings
}

type session struct {
	kind   string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type outboxItem struct {
	status *models.OvenStatus
	event  *models.OvenEvent
}

// OvenService owns the oven: at most one of a profile run, manual mode or
// monitor mode is active at a time. Everything a tick mutates is guarded
// by mu; readers get copies of the published status.
type OvenService struct {
	sensors  *sensor.Array
	pid      control.Controller
	out      actuator.Outputs
	ticks    tick.Source
	profiles repository.ProfileRepo
	runs     repository.RunRepo
	state    repository.StateRepo
	events   repository.EventRepo
	sink     telemetry.Sink
	log      *logger.Logger
	settings OvenSettings

	root       context.Context
	rootCancel context.CancelFunc
	plot       *plot.Plot
	ack        chan struct{}

	outMu      sync.RWMutex
	outClosed  bool
	outbox     chan outboxItem
	outboxDone chan struct{}

	mu         sync.Mutex
	sess       *session
	status     models.OvenStatus
	run        *runState
	manual     *manualState
	monitorT   int
	prevStatus [models.NumThermocouples]models.SensorStatus
}

func NewOvenService(d OvenDeps) *OvenService {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Sink == nil {
		d.Sink = telemetry.Multi{}
	}
	root, cancel := context.WithCancel(context.Background())
	s := &OvenService{
		sensors:    d.Sensors,
		pid:        d.PID,
		out:        d.Outputs,
		ticks:      d.Ticks,
		profiles:   d.Profiles,
		runs:       d.Runs,
		state:      d.State,
		events:     d.Events,
		sink:       d.Sink,
		log:        d.Log.Named("oven"),
		settings:   d.Settings.withDefaults(),
		root:       root,
		rootCancel: cancel,
		plot:       plot.New(),
		ack:        make(chan struct{}, 1),
		outbox:     make(chan outboxItem, outboxSize),
		outboxDone: make(chan struct{}),
	}
	for i := range s.prevStatus {
		s.prevStatus[i] = models.SensorEnabled
	}
	s.status = models.OvenStatus{
		Session:   SessionIdle,
		State:     models.StateOff,
		Channels:  d.Sensors.Last().Readings,
		UpdatedAt: time.Now().UTC(),
	}
	go s.drainOutbox()
	return s
}

// Restore reports a run that was cut short by a restart of the service.
func (s *OvenService) Restore(ctx context.Context) error {
	last, err := s.state.Load(ctx)
	if err != nil {
		return err
	}
	if last.Session == SessionRun && last.State.Automatic() {
		s.log.Warnw("previous_run_interrupted", "profile_id", last.ProfileID, "state", last.State.String(), "time_s", last.Time)
		s.event(models.EventRunAbort, "run interrupted by service restart", map[string]any{
			"profile_id": last.ProfileID,
			"state":      last.State.String(),
			"time_s":     last.Time,
		})
	}
	return nil
}

// Close ends the active session, switches the outputs off and flushes
// pending telemetry.
func (s *OvenService) Close() {
	s.rootCancel()
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess != nil {
		<-sess.done
	}

	s.outMu.Lock()
	if !s.outClosed {
		s.outClosed = true
		close(s.outbox)
	}
	s.outMu.Unlock()
	<-s.outboxDone
}

// Status returns the last published oven status.
func (s *OvenService) Status() models.OvenStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Plot is the recording of the current or most recent run.
func (s *OvenService) Plot() *plot.Plot {
	return s.plot
}

// acquire reserves the oven for a session derived from parent. The session
// also ends when the service is closed.
func (s *OvenService) acquire(parent context.Context, kind string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root.Err() != nil {
		return nil, ErrClosed
	}
	if s.sess != nil {
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.root, cancel)
	sess := &session{
		kind: kind,
		ctx:  ctx,
		cancel: func() {
			stop()
			cancel()
		},
		done: make(chan struct{}),
	}
	s.sess = sess
	return sess, nil
}

func (s *OvenService) release(sess *session) {
	s.mu.Lock()
	if s.sess == sess {
		s.sess = nil
	}
	s.status.Session = SessionIdle
	s.mu.Unlock()
	sess.cancel()
	close(sess.done)
}

func (s *OvenService) current(kind string) (*session, bool) {
	if s.sess == nil || s.sess.kind != kind {
		return nil, false
	}
	return s.sess, true
}

// observeLocked copies the sensor and output state into st.
func (s *OvenService) observeLocked(st *models.OvenStatus, fused sensor.Fused, now time.Time) {
	st.Actual, st.ActualOK = fused.Temperature, fused.Valid
	st.Channels = fused.Readings
	st.Active = fused.Active
	st.Heater = s.out.HeaterDutycycle()
	st.Fan = s.out.FanDutycycle()
	st.UpdatedAt = now.UTC()
}

// faultsLocked returns the channels that went into a fault since the
// previous tick.
func (s *OvenService) faultsLocked(readings [models.NumThermocouples]models.SensorReading) []int {
	var out []int
	for i, r := range readings {
		prev := s.prevStatus[i]
		s.prevStatus[i] = r.Status
		if isFault(r.Status) && !isFault(prev) {
			out = append(out, i)
		}
	}
	return out
}

func isFault(st models.SensorStatus) bool {
	return st != models.SensorEnabled && st != models.SensorDisabled
}

func (s *OvenService) reportFaults(channels []int, readings [models.NumThermocouples]models.SensorReading) {
	for _, ch := range channels {
		st := readings[ch].Status
		s.log.Warnw("tick_sensor_fault", "channel", ch+1, "status", st.String())
		s.event(models.EventSensorFault, "thermocouple fault", map[string]any{
			"channel": ch + 1,
			"status":  st.String(),
		})
	}
}

// publish records st in metrics and hands it to the outbox. It never blocks.
func (s *OvenService) publish(st models.OvenStatus) {
	metrics.ObserveStatus(st)
	s.enqueue(outboxItem{status: &st})
}

func (s *OvenService) event(typ, desc string, meta map[string]any) {
	ev := models.OvenEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	s.enqueue(outboxItem{event: &ev})
}

func (s *OvenService) enqueue(item outboxItem) {
	s.outMu.RLock()
	defer s.outMu.RUnlock()
	if s.outClosed {
		return
	}
	select {
	case s.outbox <- item:
	default:
		s.log.Warnw("outbox_full", "dropped_event", item.event != nil)
	}
}

func (s *OvenService) drainOutbox() {
	defer close(s.outboxDone)
	for item := range s.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), outboxDeadline)
		if item.status != nil {
			if err := s.sink.Publish(ctx, *item.status); err != nil {
				s.log.Warnw("telemetry_publish_failed", "error", err)
			}
			if err := s.state.Save(ctx, *item.status); err != nil {
				s.log.Warnw("state_save_failed", "error", err)
			}
		}
		if item.event != nil {
			if err := s.events.Append(ctx, *item.event); err != nil {
				s.log.Errorw("event_append_failed", "type", item.event.Type, "error", err)
			}
		}
		cancel()
	}
}
