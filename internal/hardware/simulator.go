package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reflow_oven/internal/actuator"
	"reflow_oven/internal/models"
	"reflow_oven/internal/sensor"
)

// Default plant parameters. They give roughly 4 °C/s at full heat from
// cold and a ceiling near 300 °C with the fan at its minimum.
const (
	AmbientC        = 25.0
	HeatRateCPerSec = 4.0   // °C/s at 100% heater, ignoring losses
	LossPerSec      = 0.005 // fraction of (T - ambient) lost per second
	FanLossPerSec   = 0.03  // extra loss per second at 100% fan
	MaxSafeC        = 350.0 // the simulated element cuts out above this
)

// SimConfig parameterises the simulated oven.
type SimConfig struct {
	AmbientC        float64   `mapstructure:"ambient_c"`
	HeatRateCPerSec float64   `mapstructure:"heat_rate_c_per_s"`
	LossPerSec      float64   `mapstructure:"loss_per_s"`
	FanLossPerSec   float64   `mapstructure:"fan_loss_per_s"`
	ChannelBiasC    []float64 `mapstructure:"channel_bias_c"`
}

func (c SimConfig) withDefaults() SimConfig {
	if c.AmbientC == 0 {
		c.AmbientC = AmbientC
	}
	if c.HeatRateCPerSec == 0 {
		c.HeatRateCPerSec = HeatRateCPerSec
	}
	if c.LossPerSec == 0 {
		c.LossPerSec = LossPerSec
	}
	if c.FanLossPerSec == 0 {
		c.FanLossPerSec = FanLossPerSec
	}
	return c
}

// Simulator is a first-order thermal model of an oven. It serves the
// thermocouple converters and accepts heater/fan duty cycles, so it can
// replace the real board.
type Simulator struct {
	cfg SimConfig

	mu     sync.RWMutex
	tempC  float64
	heater int
	fan    int
	faults [models.NumThermocouples]models.SensorStatus
	hung   [models.NumThermocouples]bool
}

var (
	_ sensor.Device    = (*Simulator)(nil)
	_ actuator.Outputs = (*Simulator)(nil)
)

func NewSimulator(cfg SimConfig) *Simulator {
	cfg = cfg.withDefaults()
	return &Simulator{cfg: cfg, tempC: cfg.AmbientC}
}

// Run advances the model every tick until ctx is canceled.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}

// Advance integrates the model over elapsed.
func (s *Simulator) Advance(elapsed time.Duration) {
	dt := elapsed.Seconds()
	if dt <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	heat := s.cfg.HeatRateCPerSec * float64(s.heater) / 100
	if s.tempC >= MaxSafeC {
		heat = 0
	}
	loss := (s.tempC - s.cfg.AmbientC) * (s.cfg.LossPerSec + s.cfg.FanLossPerSec*float64(s.fan)/100)
	s.tempC += (heat - loss) * dt
	if s.tempC < s.cfg.AmbientC && s.heater == 0 {
		s.tempC = s.cfg.AmbientC
	}
}

func (s *Simulator) Temperature() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tempC
}

// SetTemperature forces the oven temperature.
func (s *Simulator) SetTemperature(c float64) {
	s.mu.Lock()
	s.tempC = c
	s.mu.Unlock()
}

// InjectFault makes channel report status until cleared with SensorEnabled.
func (s *Simulator) InjectFault(channel int, status models.SensorStatus) error {
	if channel < 0 || channel >= models.NumThermocouples {
		return fmt.Errorf("%w: %d", sensor.ErrNoChannel, channel)
	}
	s.mu.Lock()
	s.faults[channel] = status
	s.mu.Unlock()
	return nil
}

// Hang makes transfers on channel block until their context expires.
func (s *Simulator) Hang(channel int, on bool) {
	if channel < 0 || channel >= models.NumThermocouples {
		return
	}
	s.mu.Lock()
	s.hung[channel] = on
	s.mu.Unlock()
}

func (s *Simulator) ReadFrame(ctx context.Context, channel int) (uint32, error) {
	if channel < 0 || channel >= models.NumThermocouples {
		return 0, fmt.Errorf("%w: %d", sensor.ErrNoChannel, channel)
	}
	s.mu.RLock()
	hung := s.hung[channel]
	fault := s.faults[channel]
	probe := s.tempC + s.bias(channel)
	cold := s.cfg.AmbientC
	s.mu.RUnlock()

	if hung {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return sensor.EncodeFrame(probe, cold, fault), nil
}

func (s *Simulator) bias(channel int) float64 {
	if channel < len(s.cfg.ChannelBiasC) {
		return s.cfg.ChannelBiasC[channel]
	}
	return 0
}

func (s *Simulator) SetHeaterDutycycle(pct int) error {
	s.mu.Lock()
	s.heater = actuator.Clamp(pct)
	s.mu.Unlock()
	return nil
}

func (s *Simulator) SetFanDutycycle(pct int) error {
	s.mu.Lock()
	s.fan = actuator.Clamp(pct)
	s.mu.Unlock()
	return nil
}

func (s *Simulator) HeaterDutycycle() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heater
}

func (s *Simulator) FanDutycycle() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fan
}
