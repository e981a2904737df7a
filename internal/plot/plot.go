package plot

import (
	"errors"
	"fmt"
	"sync"
)

// MaxProfileTime is the longest run the plot can hold, in ticks.
const MaxProfileTime = 9 * 60

var ErrOutOfRange = errors.New("plot: time index out of range")

// Plot is the recording of one run together with the ideal curve of the
// profile being run. It is safe for concurrent use.
type Plot struct {
	mu sync.RWMutex

	points    [MaxProfileTime]DataPoint
	lastValid int
	live      bool

	profile     [MaxProfileTime]Centi
	lastProfile int
}

func New() *Plot {
	p := &Plot{}
	p.Reset()
	return p
}

// Reset clears both the recording and the ideal curve.
func (p *Plot) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points = [MaxProfileTime]DataPoint{}
	p.profile = [MaxProfileTime]Centi{}
	p.lastValid = 0
	p.live = false
	p.lastProfile = -1
}

// AddPoint stores the data point recorded at tick t.
func (p *Plot) AddPoint(t int, dp DataPoint) error {
	if t < 0 || t >= MaxProfileTime {
		return fmt.Errorf("%w: %d", ErrOutOfRange, t)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points[t] = dp
	if t > p.lastValid {
		p.lastValid = t
	}
	p.live = true
	return nil
}

// LastValidIndex is the highest tick written by AddPoint, 0 when empty.
func (p *Plot) LastValidIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastValid
}

// IsLiveDataPresent reports whether any measured point has been recorded
// since the last Reset.
func (p *Plot) IsLiveDataPresent() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.live
}

// DataPoint returns the point at tick i. ok is false past the last valid
// point or when nothing has been recorded.
func (p *Plot) DataPoint(i int) (dp DataPoint, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.live || i < 0 || i > p.lastValid {
		return DataPoint{}, false
	}
	return p.points[i], true
}

// Points returns a copy of every recorded point, indexed by tick.
func (p *Plot) Points() []DataPoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.live {
		return nil
	}
	out := make([]DataPoint, p.lastValid+1)
	copy(out, p.points[:p.lastValid+1])
	return out
}

// AddProfilePoint stores the ideal target for tick t.
func (p *Plot) AddProfilePoint(t int, temp float64) error {
	if t < 0 || t >= MaxProfileTime {
		return fmt.Errorf("%w: %d", ErrOutOfRange, t)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile[t] = ToCenti(temp)
	if t > p.lastProfile {
		p.lastProfile = t
	}
	return nil
}

func (p *Plot) ProfilePoint(t int) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t < 0 || t > p.lastProfile {
		return 0, false
	}
	return p.profile[t].Celsius(), true
}

// Profile returns the ideal curve stored so far.
func (p *Plot) Profile() []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]float64, p.lastProfile+1)
	for i := range out {
		out[i] = p.profile[i].Celsius()
	}
	return out
}

// LastIndex is the last tick holding either a measured or an ideal point.
func (p *Plot) LastIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	last := p.lastProfile
	if p.live && p.lastValid > last {
		last = p.lastValid
	}
	return last
}

// Maximum is the hottest temperature anywhere in the plot.
func (p *Plot) Maximum() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var hi Centi
	for i := 0; i <= p.lastProfile; i++ {
		if p.profile[i] > hi {
			hi = p.profile[i]
		}
	}
	if p.live {
		for i := 0; i <= p.lastValid; i++ {
			if m := ToCenti(p.points[i].Maximum()); m > hi {
				hi = m
			}
		}
	}
	return hi.Celsius()
}
