package hardware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"reflow_oven/internal/actuator"
	"reflow_oven/internal/sensor"

	"go.bug.st/serial"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 40 * time.Millisecond
	maxLine            = 64
)

var (
	ErrTimeout    = errors.New("serial: no reply in time")
	ErrBoardReply = errors.New("serial: board rejected command")
)

// Port is the part of a serial port the board needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// SerialConfig selects the port of the oven I/O board.
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"timeout"`
}

// SerialBoard talks to the oven I/O board over a line protocol:
//
//	READ <ch>   -> 8 hex digits, the raw MAX31855 frame
//	HEAT <pct>  -> OK
//	FAN <pct>   -> OK
//
// Any other reply starting with ERR is a rejection.
type SerialBoard struct {
	timeout time.Duration

	mu     sync.Mutex
	port   Port
	pend   []byte
	heater int
	fan    int
}

var (
	_ sensor.Device    = (*SerialBoard)(nil)
	_ actuator.Outputs = (*SerialBoard)(nil)
)

// OpenSerial opens the configured port.
func OpenSerial(cfg SerialConfig) (*SerialBoard, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	p, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	b, err := NewSerialBoard(p, cfg.ReadTimeout)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return b, nil
}

// SerialPorts lists the serial ports present on the host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

func NewSerialBoard(p Port, timeout time.Duration) (*SerialBoard, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	// Short reads let the reply loop notice deadlines.
	if err := p.SetReadTimeout(5 * time.Millisecond); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &SerialBoard{port: p, timeout: timeout}, nil
}

func (b *SerialBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port.Close()
}

func (b *SerialBoard) ReadFrame(ctx context.Context, channel int) (uint32, error) {
	reply, err := b.command(ctx, fmt.Sprintf("READ %d", channel))
	if err != nil {
		return 0, err
	}
	frame, err := strconv.ParseUint(reply, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad frame %q: %w", reply, err)
	}
	return uint32(frame), nil
}

func (b *SerialBoard) SetHeaterDutycycle(pct int) error {
	pct = actuator.Clamp(pct)
	if err := b.set("HEAT", pct); err != nil {
		return err
	}
	b.mu.Lock()
	b.heater = pct
	b.mu.Unlock()
	return nil
}

func (b *SerialBoard) SetFanDutycycle(pct int) error {
	pct = actuator.Clamp(pct)
	if err := b.set("FAN", pct); err != nil {
		return err
	}
	b.mu.Lock()
	b.fan = pct
	b.mu.Unlock()
	return nil
}

func (b *SerialBoard) HeaterDutycycle() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heater
}

func (b *SerialBoard) FanDutycycle() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fan
}

func (b *SerialBoard) set(cmd string, pct int) error {
	reply, err := b.command(context.Background(), fmt.Sprintf("%s %d", cmd, pct))
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%w: %s %d: %s", ErrBoardReply, cmd, pct, reply)
	}
	return nil
}

// command sends one line and waits for one reply line.
func (b *SerialBoard) command(ctx context.Context, line string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	deadline := time.Now().Add(b.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if _, err := b.port.Write([]byte(line + "\n")); err != nil {
		return "", fmt.Errorf("write %q: %w", line, err)
	}
	reply, err := b.readLine(ctx, deadline)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(reply, "ERR") {
		return "", fmt.Errorf("%w: %s: %s", ErrBoardReply, line, reply)
	}
	return reply, nil
}

func (b *SerialBoard) readLine(ctx context.Context, deadline time.Time) (string, error) {
	buf := make([]byte, maxLine)
	for {
		if i := bytes.IndexByte(b.pend, '\n'); i >= 0 {
			line := strings.TrimSpace(string(b.pend[:i]))
			b.pend = b.pend[i+1:]
			return line, nil
		}
		if len(b.pend) > maxLine {
			b.pend = nil
			return "", fmt.Errorf("serial: reply longer than %d bytes", maxLine)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			b.pend = nil
			return "", ErrTimeout
		}
		n, err := b.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		b.pend = append(b.pend, buf[:n]...)
	}
}
