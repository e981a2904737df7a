package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultBusTimeout bounds how long a channel read may wait for and use the bus.
const DefaultBusTimeout = 50 * time.Millisecond

var (
	ErrBusTimeout = errors.New("sensor: bus not available in time")
	ErrNoChannel  = errors.New("sensor: no such channel")
)

// Device performs one raw transfer with the converter at the given position.
// Implementations must honour the context deadline.
type Device interface {
	ReadFrame(ctx context.Context, channel int) (uint32, error)
}

// Bus serialises transfers of all converters sharing one physical bus.
// Waiting for the bus is bounded so a stuck transfer cannot stall the tick.
type Bus struct {
	dev     Device
	lock    chan struct{}
	timeout time.Duration
}

func NewBus(dev Device, timeout time.Duration) *Bus {
	if timeout <= 0 {
		timeout = DefaultBusTimeout
	}
	return &Bus{
		dev:     dev,
		lock:    make(chan struct{}, 1),
		timeout: timeout,
	}
}

// Transfer reads one frame from channel. It never retries.
func (b *Bus) Transfer(ctx context.Context, channel int) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case b.lock <- struct{}{}:
	case <-ctx.Done():
		return 0, ErrBusTimeout
	}
	defer func() { <-b.lock }()

	frame, err := b.dev.ReadFrame(ctx, channel)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, ErrBusTimeout
		}
		return 0, fmt.Errorf("read channel %d: %w", channel, err)
	}
	return frame, nil
}
