package actuator

import (
	"errors"
	"testing"
)

type failingOutputs struct {
	Memory
	heaterErr error
}

func (f *failingOutputs) SetHeaterDutycycle(pct int) error {
	_ = f.Memory.SetHeaterDutycycle(pct)
	return f.heaterErr
}

func TestClamp(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 42: 42, 100: 100, 130: 100} {
		if got := Clamp(in); got != want {
			t.Fatalf("Clamp(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestShutdown_HeaterFirst(t *testing.T) {
	m := &Memory{}
	_ = m.SetHeaterDutycycle(80)
	if err := Shutdown(m, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := m.Calls()
	if calls[1] != "heater" || calls[2] != "fan" {
		t.Fatalf("unexpected order %v", calls)
	}
	if m.HeaterDutycycle() != 0 || m.FanDutycycle() != 100 {
		t.Fatalf("got heater=%d fan=%d", m.HeaterDutycycle(), m.FanDutycycle())
	}
}

func TestShutdown_FanStillSetWhenHeaterFails(t *testing.T) {
	boom := errors.New("boom")
	f := &failingOutputs{heaterErr: boom}
	err := Shutdown(f, 50)
	if !errors.Is(err, boom) {
		t.Fatalf("expected heater error, got %v", err)
	}
	if f.FanDutycycle() != 50 {
		t.Fatalf("fan not set")
	}
}
