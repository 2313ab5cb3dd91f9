package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dougsko/ftx1d/pkg/bridge"
	"github.com/dougsko/ftx1d/pkg/cat"
	"github.com/dougsko/ftx1d/pkg/config"
	"github.com/dougsko/ftx1d/pkg/hardware"
	"github.com/dougsko/ftx1d/pkg/logging"
	"github.com/dougsko/ftx1d/pkg/metrics"
	"github.com/dougsko/ftx1d/pkg/radio"
	"github.com/dougsko/ftx1d/pkg/resync"
	"github.com/dougsko/ftx1d/pkg/telemetry"
)

const Version = "0.3.0"

var (
	// ErrNotConnected is returned by radio operations while no CAT link is open
	ErrNotConnected = errors.New("radio not connected")
	// ErrNotRunning is returned when the engine has not been started
	ErrNotRunning = errors.New("engine not running")
)

// Option configures a CoreEngine
type Option func(*CoreEngine)

// WithMetrics records engine activity into m
func WithMetrics(m *metrics.AppMetrics) Option {
	return func(e *CoreEngine) { e.metrics = m }
}

// CoreEngine owns the CAT link and the background workers around it:
// the telemetry poller, the resync scheduler and the rigctl bridge.
type CoreEngine struct {
	config    *config.Config
	opener    hardware.Opener
	metrics   *metrics.AppMetrics
	startTime time.Time

	mutex       sync.RWMutex
	running     bool
	channel     *cat.Channel
	radio       *radio.Radio
	connectedAt time.Time
	identity    string
	lastError   string

	meters    *telemetry.Mailbox
	poller    *telemetry.Poller
	scheduler *resync.Scheduler
	bridge    *bridge.Server

	latestMutex  sync.RWMutex
	latestState  *radio.State
	latestMeters *telemetry.Snapshot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoreEngine creates an engine. Nothing is opened until Start.
func NewCoreEngine(cfg *config.Config, opener hardware.Opener, opts ...Option) *CoreEngine {
	e := &CoreEngine{
		config:    cfg,
		opener:    opener,
		startTime: time.Now(),
		meters:    telemetry.NewMailbox(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.poller = telemetry.NewPoller(e.meterSource, cfg.Telemetry.RateHz, e.meters)
	e.poller.OnPoll(e.observePoll)
	e.scheduler = resync.New(e.readState, e.storeState, cfg.ResyncDelay())
	return e
}

// Start launches the workers, opens the rigctl port when enabled and
// connects to the radio when configured to
func (e *CoreEngine) Start() error {
	e.mutex.Lock()
	if e.running {
		e.mutex.Unlock()
		return nil
	}
	e.running = true
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mutex.Unlock()

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.poller.Run(ctx)
	}()
	go e.meterProcessor(ctx)

	if e.config.Rigctl.Enabled {
		addr := net.JoinHostPort(e.config.Rigctl.BindAddress, strconv.Itoa(e.config.Rigctl.Port))
		opts := []bridge.Option{
			bridge.WithClientTimeout(e.config.RigctlClientTimeout()),
			bridge.WithWriteNotifier(e.NotifyWrite),
		}
		if e.metrics != nil {
			opts = append(opts,
				bridge.WithCommandObserver(e.metrics.ObserveCommand),
				bridge.WithConnectionObserver(e.metrics.SetClients))
		}
		srv, err := bridge.Listen(addr, e, opts...)
		if err != nil {
			e.Stop()
			return fmt.Errorf("failed to start rigctl bridge: %w", err)
		}
		e.mutex.Lock()
		e.bridge = srv
		e.mutex.Unlock()
	}

	if e.config.Radio.AutoConnect || e.config.Radio.Mock {
		if err := e.Connect(); err != nil {
			logging.Warnf("engine", "initial connect failed: %v", err)
		}
	}

	logging.Info("engine", "core engine started", logging.Fields{
		"link":   e.opener.Describe(),
		"rate":   e.poller.Rate(),
		"rigctl": e.config.Rigctl.Enabled,
	})
	return nil
}

// Stop shuts the workers down and closes the CAT link
func (e *CoreEngine) Stop() error {
	e.mutex.Lock()
	if !e.running {
		e.mutex.Unlock()
		return nil
	}
	e.running = false
	cancel := e.cancel
	srv := e.bridge
	e.bridge = nil
	e.mutex.Unlock()

	if srv != nil {
		srv.Close()
	}
	e.scheduler.Stop()
	cancel()
	e.wg.Wait()

	err := e.Disconnect()
	logging.Info("engine", "core engine stopped")
	return err
}

func (e *CoreEngine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

// Connect opens the CAT link. Connecting while connected is a no-op.
func (e *CoreEngine) Connect() error {
	if !e.isRunning() {
		return ErrNotRunning
	}

	e.mutex.Lock()
	if e.channel != nil {
		e.mutex.Unlock()
		return nil
	}

	ports, err := e.opener.Open()
	if err != nil {
		e.lastError = err.Error()
		e.mutex.Unlock()
		return fmt.Errorf("failed to connect to %s: %w", e.opener.Describe(), err)
	}

	opts := []cat.Option{
		cat.WithTimeout(e.config.CATTimeout()),
		cat.WithTurnaround(e.config.Turnaround()),
		cat.WithTrace(func(format string, args ...interface{}) {
			logging.Tracef("cat", format, args...)
		}),
	}
	if e.metrics != nil {
		opts = append(opts, cat.WithObserver(e.metrics.ObserveExchange))
	}

	e.channel = cat.New(ports.CAT, ports.PTT, opts...)
	e.radio = radio.New(e.channel)
	e.connectedAt = time.Now()
	e.lastError = ""
	r := e.radio
	e.mutex.Unlock()

	if e.metrics != nil {
		e.metrics.SetConnected(true)
	}

	if id, ok, err := r.Identify(); err == nil && ok {
		e.mutex.Lock()
		e.identity = id
		e.mutex.Unlock()
		logging.Infof("engine", "connected to %s (%s)", e.opener.Describe(), id)
	} else {
		logging.Warnf("engine", "connected to %s but the radio did not identify", e.opener.Describe())
	}

	e.RequestResync()
	return nil
}

// Disconnect closes the CAT link. The last state and meters are kept.
func (e *CoreEngine) Disconnect() error {
	e.mutex.Lock()
	ch := e.channel
	e.channel = nil
	e.radio = nil
	e.identity = ""
	e.mutex.Unlock()

	if ch == nil {
		return nil
	}
	if e.metrics != nil {
		e.metrics.SetConnected(false)
	}
	logging.Infof("engine", "disconnected from %s", e.opener.Describe())
	return ch.Close()
}

// IsConnected reports whether a CAT link is open
func (e *CoreEngine) IsConnected() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.radio != nil
}

// Radio returns the control facade for the open link
func (e *CoreEngine) Radio() (*radio.Radio, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if e.radio == nil {
		return nil, ErrNotConnected
	}
	return e.radio, nil
}

// meterSource must return an untyped nil while disconnected
func (e *CoreEngine) meterSource() telemetry.MeterSource {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if e.radio == nil {
		return nil
	}
	return e.radio
}

func (e *CoreEngine) readState() (radio.State, error) {
	r, err := e.Radio()
	if err != nil {
		return radio.State{}, err
	}
	return r.ReadState(), nil
}

func (e *CoreEngine) storeState(st radio.State) {
	e.latestMutex.Lock()
	e.latestState = &st
	e.latestMutex.Unlock()

	if len(st.Errors) > 0 {
		logging.Warnf("engine", "state read incomplete: %v", st.Errors)
	}
	if e.metrics != nil {
		e.metrics.ObserveResync(st)
	}
}

func (e *CoreEngine) observePoll(snap telemetry.Snapshot, d time.Duration) {
	if e.metrics != nil {
		e.metrics.ObservePoll(snap.Meters, snap.Error != "", d)
	}
}

// meterProcessor drains the telemetry mailbox into the latest snapshot
func (e *CoreEngine) meterProcessor(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-e.meters.C():
			e.latestMutex.Lock()
			e.latestMeters = &snap
			e.latestMutex.Unlock()
		}
	}
}

// LatestState returns the most recent full-state read
func (e *CoreEngine) LatestState() (radio.State, bool) {
	e.latestMutex.RLock()
	defer e.latestMutex.RUnlock()
	if e.latestState == nil {
		return radio.State{}, false
	}
	return *e.latestState, true
}

// LatestMeters returns the most recent telemetry snapshot
func (e *CoreEngine) LatestMeters() (telemetry.Snapshot, bool) {
	e.latestMutex.RLock()
	defer e.latestMutex.RUnlock()
	if e.latestMeters == nil {
		return telemetry.Snapshot{}, false
	}
	return *e.latestMeters, true
}

// NotifyWrite schedules a debounced state read after a write
func (e *CoreEngine) NotifyWrite() {
	e.scheduler.Notify()
}

// RequestResync schedules an immediate state read
func (e *CoreEngine) RequestResync() {
	e.scheduler.NotifyAfter(0)
}

// SetPollRate changes the telemetry rate and returns the applied value
func (e *CoreEngine) SetPollRate(hz float64) float64 {
	return e.poller.SetRate(hz)
}

// PollRate returns the telemetry rate in Hz
func (e *CoreEngine) PollRate() float64 {
	return e.poller.Rate()
}

// Status summarizes the engine for the HTTP API
type Status struct {
	Running     bool       `json:"running"`
	Connected   bool       `json:"connected"`
	Link        string     `json:"link"`
	Identity    string     `json:"identity,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	PollRateHz  float64    `json:"poll_rate_hz"`
	RigctlAddr  string     `json:"rigctl_addr,omitempty"`
	Uptime      string     `json:"uptime"`
	StartTime   time.Time  `json:"start_time"`
	Version     string     `json:"version"`
}

// Status returns a snapshot of the engine's state
func (e *CoreEngine) Status() Status {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	s := Status{
		Running:    e.running,
		Connected:  e.radio != nil,
		Link:       e.opener.Describe(),
		Identity:   e.identity,
		LastError:  e.lastError,
		PollRateHz: e.poller.Rate(),
		Uptime:     time.Since(e.startTime).Round(time.Second).String(),
		StartTime:  e.startTime,
		Version:    Version,
	}
	if e.radio != nil {
		at := e.connectedAt
		s.ConnectedAt = &at
	}
	if e.bridge != nil {
		s.RigctlAddr = e.bridge.Addr().String()
	}
	return s
}

// The methods below let the engine stand in for the radio behind the
// rigctl bridge, so clients survive a disconnect and reconnect.

func (e *CoreEngine) Frequency() (int, bool, error) {
	r, err := e.Radio()
	if err != nil {
		return 0, false, err
	}
	return r.Frequency()
}

func (e *CoreEngine) SetFrequency(hz int) (int, error) {
	r, err := e.Radio()
	if err != nil {
		return 0, err
	}
	return r.SetFrequency(hz)
}

func (e *CoreEngine) Mode(side radio.Side) (radio.Mode, bool, error) {
	r, err := e.Radio()
	if err != nil {
		return "", false, err
	}
	return r.Mode(side)
}

func (e *CoreEngine) SetMode(side radio.Side, name string) error {
	r, err := e.Radio()
	if err != nil {
		return err
	}
	return r.SetMode(side, name)
}

func (e *CoreEngine) PTT() (bool, error) {
	r, err := e.Radio()
	if err != nil {
		return false, err
	}
	return r.PTT()
}

func (e *CoreEngine) SetPTT(on bool) error {
	r, err := e.Radio()
	if err != nil {
		return err
	}
	return r.SetPTT(on)
}
