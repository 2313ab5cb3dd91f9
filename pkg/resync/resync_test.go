package resync

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dougsko/ftx1d/pkg/radio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	reads  int
	states []radio.State
}

func (r *recorder) read() (radio.State, error) {
	r.mu.Lock()
	r.reads++
	r.mu.Unlock()
	hz := 14074000
	return radio.State{Frequency: &hz}, nil
}

func (r *recorder) deliver(st radio.State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads, len(r.states)
}

func TestNotifyCoalesces(t *testing.T) {
	rec := &recorder{}
	s := New(rec.read, rec.deliver, 50*time.Millisecond)
	defer s.Stop()

	for i := 0; i < 10; i++ {
		s.Notify()
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		_, delivered := rec.counts()
		return delivered == 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	reads, delivered := rec.counts()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, delivered)
	require.NotNil(t, rec.states[0].Frequency)
	assert.Equal(t, 14074000, *rec.states[0].Frequency)
}

func TestNotifyAfterZeroIsImmediate(t *testing.T) {
	rec := &recorder{}
	s := New(rec.read, rec.deliver, time.Hour)
	defer s.Stop()

	s.NotifyAfter(0)
	assert.Eventually(t, func() bool {
		_, delivered := rec.counts()
		return delivered == 1
	}, time.Second, 5*time.Millisecond)
}

func TestFireDuringReadIsRearmed(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var reads int32

	read := func() (radio.State, error) {
		n := atomic.AddInt32(&reads, 1)
		started <- struct{}{}
		if n == 1 {
			<-release
		}
		return radio.State{}, nil
	}
	s := New(read, nil, 20*time.Millisecond)
	defer s.Stop()

	s.NotifyAfter(0)
	<-started

	// fires while the first read is blocked
	s.NotifyAfter(0)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reads))

	close(release)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("pending read was not re-armed")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&reads))
}

func TestFailedReadIsNotDelivered(t *testing.T) {
	var delivered int32
	var reads int32
	s := New(func() (radio.State, error) {
		atomic.AddInt32(&reads, 1)
		return radio.State{}, errors.New("not connected")
	}, func(radio.State) { atomic.AddInt32(&delivered, 1) }, time.Millisecond)
	defer s.Stop()

	s.NotifyAfter(0)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&reads) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&delivered))
}

func TestStop(t *testing.T) {
	t.Run("Cancels Pending Timer", func(t *testing.T) {
		rec := &recorder{}
		s := New(rec.read, rec.deliver, 50*time.Millisecond)
		s.Notify()
		s.Stop()

		time.Sleep(100 * time.Millisecond)
		reads, _ := rec.counts()
		assert.Equal(t, 0, reads)

		s.NotifyAfter(0)
		time.Sleep(50 * time.Millisecond)
		reads, _ = rec.counts()
		assert.Equal(t, 0, reads)
	})

	t.Run("Waits For In-Flight Read", func(t *testing.T) {
		var finished atomic.Bool
		started := make(chan struct{})
		s := New(func() (radio.State, error) {
			close(started)
			time.Sleep(100 * time.Millisecond)
			finished.Store(true)
			return radio.State{}, nil
		}, nil, time.Millisecond)

		s.NotifyAfter(0)
		<-started
		s.Stop()
		assert.True(t, finished.Load())
	})
}

func TestDefaultDelay(t *testing.T) {
	s := New(func() (radio.State, error) { return radio.State{}, nil }, nil, 0)
	assert.Equal(t, DefaultDelay, s.Delay())
	s.Stop()
}
