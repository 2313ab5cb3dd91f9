// Package telemetry polls the radio's meters in the background and
// publishes the newest reading through a single-slot mailbox.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/dougsko/ftx1d/pkg/logging"
	"github.com/dougsko/ftx1d/pkg/radio"
)

const (
	MinRate     = 0.1
	MaxRate     = 5.0
	DefaultRate = 1.0

	idleWait = 200 * time.Millisecond
)

// Snapshot is one pass over the meter channels. Meters may be partial
// when Error is set.
type Snapshot struct {
	Meters  map[string]radio.MeterReading `json:"meters"`
	Error   string                        `json:"error,omitempty"`
	TakenAt time.Time                     `json:"taken_at"`
}

// Mailbox holds at most one Snapshot. Put replaces an unconsumed value.
type Mailbox struct {
	mu sync.Mutex
	ch chan Snapshot
}

func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan Snapshot, 1)}
}

// Put stores s, discarding any value nobody has taken yet
func (m *Mailbox) Put(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.ch:
	default:
	}
	m.ch <- s
}

// C returns the receive side for use in select loops
func (m *Mailbox) C() <-chan Snapshot {
	return m.ch
}

// TryTake returns the pending value without blocking
func (m *Mailbox) TryTake() (Snapshot, bool) {
	select {
	case s := <-m.ch:
		return s, true
	default:
		return Snapshot{}, false
	}
}

// MeterSource reads every meter channel
type MeterSource interface {
	Meters() (map[string]radio.MeterReading, error)
}

// SourceFunc returns the current source, or nil while disconnected
type SourceFunc func() MeterSource

// Poller reads a MeterSource at a fixed rate
type Poller struct {
	source SourceFunc
	out    *Mailbox

	mu     sync.RWMutex
	rate   float64
	wake   chan struct{}
	onPoll func(Snapshot, time.Duration)
}

// NewPoller creates a poller publishing into out
func NewPoller(source SourceFunc, rateHz float64, out *Mailbox) *Poller {
	return &Poller{
		source: source,
		out:    out,
		rate:   clampRate(rateHz),
		wake:   make(chan struct{}, 1),
	}
}

func clampRate(hz float64) float64 {
	if hz < MinRate {
		return MinRate
	}
	if hz > MaxRate {
		return MaxRate
	}
	return hz
}

// SetRate changes the poll rate, clamped to [MinRate, MaxRate], and
// returns the value actually applied
func (p *Poller) SetRate(hz float64) float64 {
	hz = clampRate(hz)
	p.mu.Lock()
	p.rate = hz
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	logging.Infof("telemetry", "poll rate set to %.2f Hz", hz)
	return hz
}

// Rate returns the current poll rate in Hz
func (p *Poller) Rate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rate
}

// OnPoll registers fn to run after each completed read
func (p *Poller) OnPoll(fn func(Snapshot, time.Duration)) {
	p.mu.Lock()
	p.onPoll = fn
	p.mu.Unlock()
}

func (p *Poller) interval() time.Duration {
	return time.Duration(float64(time.Second) / p.Rate())
}

// Run polls until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	logging.Debug("telemetry", "poller started")
	defer logging.Debug("telemetry", "poller stopped")

	for {
		wait := idleWait
		if src := p.source(); src != nil {
			p.poll(src)
			wait = p.interval()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (p *Poller) poll(src MeterSource) {
	start := time.Now()
	meters, err := src.Meters()
	snap := Snapshot{Meters: meters, TakenAt: time.Now()}
	if err != nil {
		snap.Error = err.Error()
		logging.Debugf("telemetry", "meter read failed: %v", err)
	}
	if snap.Meters == nil {
		snap.Meters = map[string]radio.MeterReading{}
	}
	p.out.Put(snap)

	p.mu.RLock()
	fn := p.onPoll
	p.mu.RUnlock()
	if fn != nil {
		fn(snap, time.Since(start))
	}
}
