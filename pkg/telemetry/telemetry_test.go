package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dougsko/ftx1d/pkg/radio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls int32
	err   error
}

func (f *fakeSource) Meters() (map[string]radio.MeterReading, error) {
	atomic.AddInt32(&f.calls, 1)
	m := map[string]radio.MeterReading{
		"S_MAIN": {Name: "S_MAIN", Raw: 128, Value: 9, Text: "S9"},
	}
	return m, f.err
}

func (f *fakeSource) count() int {
	return int(atomic.LoadInt32(&f.calls))
}

func TestMailbox(t *testing.T) {
	t.Run("Keeps Latest", func(t *testing.T) {
		m := NewMailbox()
		for i := 0; i < 3; i++ {
			m.Put(Snapshot{Error: string(rune('a' + i))})
		}
		s, ok := m.TryTake()
		require.True(t, ok)
		assert.Equal(t, "c", s.Error)

		_, ok = m.TryTake()
		assert.False(t, ok)
	})

	t.Run("Channel Receive", func(t *testing.T) {
		m := NewMailbox()
		m.Put(Snapshot{Error: "x"})
		select {
		case s := <-m.C():
			assert.Equal(t, "x", s.Error)
		case <-time.After(time.Second):
			t.Fatal("no value")
		}
	})

	t.Run("Concurrent Puts Never Block", func(t *testing.T) {
		m := NewMailbox()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					m.Put(Snapshot{})
				}
			}()
		}
		wg.Wait()
		_, ok := m.TryTake()
		assert.True(t, ok)
	})
}

func TestSetRateClamps(t *testing.T) {
	p := NewPoller(func() MeterSource { return nil }, 100, NewMailbox())
	assert.Equal(t, MaxRate, p.Rate())

	assert.Equal(t, MinRate, p.SetRate(0.001))
	assert.Equal(t, MinRate, p.Rate())
	assert.Equal(t, 2.0, p.SetRate(2))
	assert.Equal(t, 500*time.Millisecond, p.interval())
}

func TestPollerPublishes(t *testing.T) {
	src := &fakeSource{}
	box := NewMailbox()
	p := NewPoller(func() MeterSource { return src }, MaxRate, box)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case s := <-box.C():
		assert.Empty(t, s.Error)
		assert.Equal(t, 128, s.Meters["S_MAIN"].Raw)
		assert.False(t, s.TakenAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published")
	}
}

func TestPollerReportsErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("port gone")}
	box := NewMailbox()
	p := NewPoller(func() MeterSource { return src }, MaxRate, box)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case s := <-box.C():
			assert.Equal(t, "port gone", s.Error)
			assert.Contains(t, s.Meters, "S_MAIN")
		case <-time.After(2 * time.Second):
			t.Fatal("poller stopped after an error")
		}
	}
}

func TestPollerIdlesWhileDisconnected(t *testing.T) {
	var connected atomic.Bool
	src := &fakeSource{}
	box := NewMailbox()
	p := NewPoller(func() MeterSource {
		if !connected.Load() {
			return nil
		}
		return src
	}, MaxRate, box)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, src.count())
	_, ok := box.TryTake()
	assert.False(t, ok)

	connected.Store(true)
	select {
	case <-box.C():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not resume")
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(func() MeterSource { return src }, MaxRate, NewMailbox())

	var polled int32
	p.OnPoll(func(Snapshot, time.Duration) { atomic.AddInt32(&polled, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(250 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Greater(t, atomic.LoadInt32(&polled), int32(0))

	n := src.count()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, n, src.count())
}
