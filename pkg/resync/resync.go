// Package resync coalesces write notifications into a single delayed
// full-state read of the radio.
package resync

import (
	"sync"
	"time"

	"github.com/dougsko/ftx1d/pkg/logging"
	"github.com/dougsko/ftx1d/pkg/radio"
)

const DefaultDelay = time.Second

// ReadFunc performs the full-state read
type ReadFunc func() (radio.State, error)

// Scheduler debounces Notify calls. At most one read runs at a time; a
// timer that fires during a read re-arms with the default delay once the
// read completes.
type Scheduler struct {
	read    ReadFunc
	deliver func(radio.State)
	delay   time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	inFlight bool
	pending  bool
	stopped  bool
	wg       sync.WaitGroup
}

// New creates a scheduler. deliver receives every successful read.
func New(read ReadFunc, deliver func(radio.State), delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{read: read, deliver: deliver, delay: delay}
}

// Delay returns the default debounce delay
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Notify schedules a read after the default delay
func (s *Scheduler) Notify() {
	s.NotifyAfter(s.delay)
}

// NotifyAfter schedules a read after d, replacing any pending timer.
// A zero d reads as soon as possible.
func (s *Scheduler) NotifyAfter(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.armLocked(d)
}

func (s *Scheduler) armLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.run()

	s.mu.Lock()
	s.inFlight = false
	if s.pending && !s.stopped {
		s.pending = false
		s.armLocked(s.delay)
	}
	s.mu.Unlock()
}

func (s *Scheduler) run() {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("resync", "state read panicked: %v", r)
		}
	}()

	start := time.Now()
	st, err := s.read()
	if err != nil {
		logging.Warnf("resync", "state read failed: %v", err)
		return
	}
	logging.Debugf("resync", "state read in %v", time.Since(start))
	if s.deliver != nil {
		s.deliver(st)
	}
}

// Stop cancels any pending timer and waits for an in-flight read.
// Notifications after Stop are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.pending = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
