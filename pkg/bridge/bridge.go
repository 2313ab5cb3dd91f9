// Package bridge serves the rigctl text protocol over TCP so that
// third-party software can tune the radio, change its mode and key it.
package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/ftx1d/pkg/logging"
	"github.com/dougsko/ftx1d/pkg/protocol"
	"github.com/dougsko/ftx1d/pkg/radio"
)

const (
	DefaultClientTimeout = 20 * time.Second
	acceptPoll           = time.Second
)

var (
	errUnknownCommand = errors.New("unknown command")
	errNoReading      = errors.New("radio returned no usable reading")
)

// Rig is the part of the radio facade the bridge drives
type Rig interface {
	Frequency() (int, bool, error)
	SetFrequency(hz int) (int, error)
	Mode(side radio.Side) (radio.Mode, bool, error)
	SetMode(side radio.Side, name string) error
	PTT() (bool, error)
	SetPTT(on bool) error
}

// Option configures a Server
type Option func(*Server)

// WithClientTimeout sets how long a client may stay idle before it is dropped
func WithClientTimeout(d time.Duration) Option {
	return func(s *Server) { s.clientTimeout = d }
}

// WithWriteNotifier registers fn to run after every successful write command
func WithWriteNotifier(fn func()) Option {
	return func(s *Server) { s.onWrite = fn }
}

// WithCommandObserver registers fn to run after every dispatched command
func WithCommandObserver(fn func(name string, ok bool)) Option {
	return func(s *Server) { s.onCommand = fn }
}

// WithConnectionObserver registers fn to run whenever the client count changes
func WithConnectionObserver(fn func(open int)) Option {
	return func(s *Server) { s.onConnections = fn }
}

// Server is a rigctl-compatible TCP server
type Server struct {
	listener      net.Listener
	rig           Rig
	clientTimeout time.Duration
	onWrite       func()
	onCommand     func(name string, ok bool)
	onConnections func(open int)

	closed    chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
}

// Listen opens addr and starts accepting clients
func Listen(addr string, rig Rig, opts ...Option) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cannot open rigctl port %s: %w", addr, err)
	}

	s := &Server{
		listener:      listener,
		rig:           rig,
		clientTimeout: DefaultClientTimeout,
		closed:        make(chan struct{}),
		conns:         make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	logging.Infof("rigctl", "listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptConnections()
	return s, nil
}

// Addr returns the bound listen address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting, drops every client and waits for their handlers
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.listener.Close()

		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
		logging.Info("rigctl", "server stopped")
	})
	return err
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// acceptConnections polls Accept with a deadline so a Close is noticed
// even when no client ever connects
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	type deadliner interface{ SetDeadline(time.Time) error }

	for !s.isClosed() {
		if d, ok := s.listener.(deadliner); ok {
			d.SetDeadline(time.Now().Add(acceptPoll))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if !s.isClosed() {
				logging.Errorf("rigctl", "accept failed: %v", err)
			}
			return
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		logging.Infof("rigctl", "client connected from %s", conn.RemoteAddr())

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return false
	}
	s.conns[conn] = struct{}{}
	if s.onConnections != nil {
		s.onConnections(len(s.conns))
	}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	if s.onConnections != nil {
		s.onConnections(len(s.conns))
	}
}

// handleConnection serves one client until it quits, goes idle or the
// server closes
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for !s.isClosed() {
		conn.SetReadDeadline(time.Now().Add(s.clientTimeout))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if !s.isClosed() {
				logging.Debugf("rigctl", "client %s gone: %v", conn.RemoteAddr(), err)
			}
			return
		}

		cmd, perr := protocol.ParseCommand(line)
		if perr != nil {
			if err != nil {
				return
			}
			continue
		}
		if cmd.IsQuit() {
			logging.Debugf("rigctl", "client %s quit", conn.RemoteAddr())
			return
		}

		resp := s.dispatch(cmd)
		conn.SetWriteDeadline(time.Now().Add(s.clientTimeout))
		if _, werr := conn.Write([]byte(resp)); werr != nil {
			return
		}
		if err != nil {
			return
		}
	}
}

// dispatch runs one command. Any failure, including a panic below it,
// becomes a generic failure report.
func (s *Server) dispatch(cmd *protocol.Command) (resp string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("rigctl", "command %s panicked: %v", cmd.Name, r)
			resp = protocol.FailResponse
			s.observe(cmd.Name, false)
		}
	}()

	out, err := s.execute(cmd)
	if err != nil {
		logging.Debugf("rigctl", "%s %s failed: %v", cmd.Name, strings.Join(cmd.Args, " "), err)
		s.observe(cmd.Name, false)
		return protocol.FailResponse
	}

	if cmd.IsWrite() && s.onWrite != nil {
		s.onWrite()
	}
	s.observe(cmd.Name, true)
	return out
}

func (s *Server) observe(name string, ok bool) {
	if s.onCommand != nil {
		s.onCommand(name, ok)
	}
}

func (s *Server) execute(cmd *protocol.Command) (string, error) {
	switch cmd.Name {
	case protocol.CmdGetFreq:
		hz, ok, err := s.rig.Frequency()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errNoReading
		}
		return protocol.FrequencyResponse(hz), nil

	case protocol.CmdSetFreq:
		arg, err := cmd.Arg(0)
		if err != nil {
			return "", err
		}
		hz, err := protocol.ParseFrequency(arg)
		if err != nil {
			return "", err
		}
		if _, err := s.rig.SetFrequency(hz); err != nil {
			return "", err
		}
		return protocol.OKResponse, nil

	case protocol.CmdGetMode:
		mode, ok, err := s.rig.Mode(radio.SideMain)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errNoReading
		}
		return protocol.ModeResponse(string(mode)), nil

	case protocol.CmdSetMode:
		arg, err := cmd.Arg(0)
		if err != nil {
			return "", err
		}
		if err := s.rig.SetMode(radio.SideMain, protocol.ResolveMode(arg)); err != nil {
			return "", err
		}
		return protocol.OKResponse, nil

	case protocol.CmdGetPTT:
		on, err := s.rig.PTT()
		if err != nil {
			return "", err
		}
		return protocol.PTTResponse(on), nil

	case protocol.CmdSetPTT:
		arg, err := cmd.Arg(0)
		if err != nil {
			return "", err
		}
		on, err := protocol.ParsePTT(arg)
		if err != nil {
			return "", err
		}
		if err := s.rig.SetPTT(on); err != nil {
			return "", err
		}
		return protocol.OKResponse, nil

	case protocol.CmdPowerStat:
		return protocol.PowerStatResponse, nil
	case protocol.CmdChkVFO:
		return protocol.ChkVFOResponse, nil
	case protocol.CmdDumpState:
		return protocol.DumpStateResponse, nil
	}

	return "", fmt.Errorf("%w: %s", errUnknownCommand, cmd.Name)
}
