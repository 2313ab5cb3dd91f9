// Package cat implements the framed request/response exchange with the
// transceiver over its serial CAT port, plus the RTS push-to-talk line on
// the secondary port.
package cat

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	// Terminator ends every CAT command and response
	Terminator = ';'

	DefaultTimeout    = time.Second
	DefaultTurnaround = 2 * time.Millisecond
)

var (
	// ErrClosed is returned once the channel has been closed
	ErrClosed = errors.New("cat channel closed")
	// ErrNoLine is returned when no PTT port was supplied
	ErrNoLine = errors.New("no ptt line configured")
)

// Port is the CAT serial connection
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// LinePort is the secondary connection whose RTS line keys the transmitter
type LinePort interface {
	SetRTS(on bool) error
	Close() error
}

// Exchanger sends commands while the caller holds the channel's exclusion.
// Do runs fn as one atomic unit; calling Do again from inside fn does not
// deadlock.
type Exchanger interface {
	Send(command string) (string, error)
	Do(fn func(Exchanger) error) error
}

// Exchange describes one completed command/response round trip
type Exchange struct {
	Command  string
	Response string
	Duration time.Duration
	TimedOut bool
	Err      error
}

// Option configures a Channel
type Option func(*Channel)

// WithTimeout sets how long Send waits for the terminator
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) { c.timeout = d }
}

// WithTurnaround sets the pause between writing a command and reading
func WithTurnaround(d time.Duration) Option {
	return func(c *Channel) { c.turnaround = d }
}

// WithObserver registers a callback invoked after every exchange
func WithObserver(fn func(Exchange)) Option {
	return func(c *Channel) { c.observer = fn }
}

// WithTrace registers a printf-style sink for raw wire traffic
func WithTrace(fn func(format string, args ...interface{})) Option {
	return func(c *Channel) { c.trace = fn }
}

// Channel serializes all CAT traffic over one serial port
type Channel struct {
	mu     sync.Mutex
	port   Port
	closed bool

	lineMu     sync.Mutex
	line       LinePort
	lineOn     bool
	lineClosed bool

	timeout    time.Duration
	turnaround time.Duration
	observer   func(Exchange)
	trace      func(format string, args ...interface{})
}

// New creates a channel over port. line may be nil when no PTT port is used.
func New(port Port, line LinePort, opts ...Option) *Channel {
	c := &Channel{
		port:       port,
		line:       line,
		timeout:    DefaultTimeout,
		turnaround: DefaultTurnaround,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs one exchange. A timeout is not an error: whatever arrived
// before the deadline, possibly nothing, is returned.
func (c *Channel) Send(command string) (string, error) {
	var resp string
	err := c.Do(func(x Exchanger) error {
		var err error
		resp, err = x.Send(command)
		return err
	})
	return resp, err
}

// Do runs fn while holding the channel exclusion
func (c *Channel) Do(fn func(Exchanger) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return fn(locked{c})
}

// locked is the Exchanger handed to Do callbacks; the mutex is already held.
type locked struct{ c *Channel }

func (l locked) Send(command string) (string, error) {
	return l.c.exchange(command)
}

func (l locked) Do(fn func(Exchanger) error) error {
	return fn(l)
}

func (c *Channel) exchange(command string) (string, error) {
	if !strings.HasSuffix(command, string(Terminator)) {
		command += string(Terminator)
	}

	start := time.Now()
	resp, timedOut, err := c.roundTrip(command)

	if c.trace != nil {
		c.trace("TX %s RX %q", command, resp)
	}
	if c.observer != nil {
		c.observer(Exchange{
			Command:  command,
			Response: resp,
			Duration: time.Since(start),
			TimedOut: timedOut,
			Err:      err,
		})
	}
	return resp, err
}

func (c *Channel) roundTrip(command string) (string, bool, error) {
	if err := c.port.ResetInputBuffer(); err != nil {
		return "", false, fmt.Errorf("failed to reset input buffer: %w", err)
	}
	if _, err := c.port.Write([]byte(command)); err != nil {
		return "", false, fmt.Errorf("failed to write %q: %w", command, err)
	}
	if c.turnaround > 0 {
		time.Sleep(c.turnaround)
	}

	var resp []byte
	buf := make([]byte, 64)
	deadline := time.Now().Add(c.timeout)
	for time.Now().Before(deadline) {
		n, err := c.port.Read(buf)
		for i := 0; i < n; i++ {
			resp = append(resp, buf[i])
			if buf[i] == Terminator {
				return string(resp), false, nil
			}
		}
		if err != nil {
			return string(resp), false, fmt.Errorf("failed to read response to %q: %w", command, err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	return string(resp), true, nil
}

// SetLineState drives the RTS line of the PTT port
func (c *Channel) SetLineState(on bool) error {
	c.lineMu.Lock()
	defer c.lineMu.Unlock()
	if c.line == nil {
		return ErrNoLine
	}
	if c.lineClosed {
		return ErrClosed
	}
	if err := c.line.SetRTS(on); err != nil {
		return fmt.Errorf("failed to set RTS: %w", err)
	}
	c.lineOn = on
	return nil
}

// LineState returns the last RTS state written
func (c *Channel) LineState() (bool, error) {
	c.lineMu.Lock()
	defer c.lineMu.Unlock()
	if c.line == nil {
		return false, ErrNoLine
	}
	if c.lineClosed {
		return false, ErrClosed
	}
	return c.lineOn, nil
}

// Close releases both ports. Calling Close more than once is harmless.
func (c *Channel) Close() error {
	var errs []error

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		if err := c.port.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cat port: %w", err))
		}
	}
	c.mu.Unlock()

	c.lineMu.Lock()
	if c.line != nil && !c.lineClosed {
		c.lineClosed = true
		c.lineOn = false
		if err := c.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close ptt port: %w", err))
		}
	}
	c.lineMu.Unlock()

	return errors.Join(errs...)
}
