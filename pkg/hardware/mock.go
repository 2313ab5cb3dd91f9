package hardware

import (
	"log"
	"sync"
)

// MockLine implements cat.LinePort for testing
type MockLine struct {
	mu      sync.RWMutex
	rts     bool
	closed  bool
	toggles int
}

// NewMockLine creates a new mock PTT line
func NewMockLine() *MockLine {
	return &MockLine{}
}

// SetRTS sets the RTS state
func (l *MockLine) SetRTS(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errPortClosed
	}
	if on != l.rts {
		l.toggles++
	}
	l.rts = on
	return nil
}

// RTS returns the current RTS state
func (l *MockLine) RTS() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rts
}

// Toggles returns how many times RTS changed state
func (l *MockLine) Toggles() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.toggles
}

// Closed reports whether Close was called
func (l *MockLine) Closed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Close closes the mock line and drops RTS
func (l *MockLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.rts = false
	return nil
}

// MockOpener hands out a shared MockTransceiver so simulated state
// survives disconnect and reconnect
type MockOpener struct {
	Radio *MockTransceiver

	mu   sync.Mutex
	line *MockLine
}

// NewMockOpener creates an opener around a fresh simulated radio
func NewMockOpener() *MockOpener {
	return &MockOpener{Radio: NewMockTransceiver()}
}

// Describe returns a short human description of the link
func (o *MockOpener) Describe() string {
	return "mock FTX-1"
}

// Open reopens the simulated radio and a new PTT line
func (o *MockOpener) Open() (*Ports, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Radio.Reopen()
	o.line = NewMockLine()
	log.Printf("MockTransceiver: simulated link opened")
	return &Ports{CAT: o.Radio, PTT: o.line}, nil
}

// Line returns the PTT line from the most recent Open
func (o *MockOpener) Line() *MockLine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.line
}
