package hardware

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
)

var errPortClosed = errors.New("port closed")

const (
	mockModeCodes = "123456789ABCDEFHI"
	mockReadWait  = 5 * time.Millisecond
)

// MockTransceiver simulates the FTX-1 CAT responder on a serial port.
// Read commands are answered with the simulated state; set commands
// update it and, like the real radio, produce no answer. Unknown or
// out-of-range commands are answered with "?;".
type MockTransceiver struct {
	mutex sync.Mutex

	open    bool
	inbound strings.Builder
	pending []byte
	log     []string
	verbose bool

	// Fault injection
	silent  bool
	garble  bool
	failErr error

	// Simulated state
	frequency   int
	modes       [2]byte
	agc         [2]byte
	powerDevice byte
	watts       int
	preamp      [3]byte
	notchOn     [2]bool
	notchSteps  [2]int
	meters      [9]int
	mox         bool
}

// NewMockTransceiver creates a simulated radio on 20m USB
func NewMockTransceiver() *MockTransceiver {
	m := &MockTransceiver{
		open:        true,
		frequency:   14074000,
		modes:       [2]byte{'2', '2'},
		agc:         [2]byte{'1', '3'},
		powerDevice: '1',
		watts:       10,
		preamp:      [3]byte{'1', '0', '0'},
		notchSteps:  [2]int{100, 100},
	}
	m.meters = [9]int{0, 128, 40, 0, 0, 0, 0, 30, 190}
	return m
}

// SetVerbose logs every command the mock receives
func (m *MockTransceiver) SetVerbose(on bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.verbose = on
}

// Reopen marks the port open again after Close
func (m *MockTransceiver) Reopen() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.open = true
	m.pending = nil
	m.inbound.Reset()
}

// SetSilent makes the mock swallow commands without answering
func (m *MockTransceiver) SetSilent(on bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.silent = on
}

// SetGarble makes every answer arrive corrupted
func (m *MockTransceiver) SetGarble(on bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.garble = on
}

// SetFailure makes Read and Write fail with err; nil clears it
func (m *MockTransceiver) SetFailure(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failErr = err
}

// SetMeter sets the raw value reported for a meter channel (1-8)
func (m *MockTransceiver) SetMeter(channel, raw int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if channel >= 1 && channel <= 8 {
		m.meters[channel] = raw
	}
}

// SetPowerDevice selects the attached output stage ('1' FIELD, '2' SPA1)
func (m *MockTransceiver) SetPowerDevice(device byte, watts int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.powerDevice = device
	m.watts = watts
}

// Frequency returns the simulated VFO-A frequency
func (m *MockTransceiver) Frequency() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.frequency
}

// Commands returns every command received so far, terminators included
func (m *MockTransceiver) Commands() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]string, len(m.log))
	copy(out, m.log)
	return out
}

// ResetCommands clears the command log
func (m *MockTransceiver) ResetCommands() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.log = nil
}

// Write accepts CAT bytes and queues any answers
func (m *MockTransceiver) Write(p []byte) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.open {
		return 0, errPortClosed
	}
	if m.failErr != nil {
		return 0, m.failErr
	}

	for _, b := range p {
		if b != ';' {
			m.inbound.WriteByte(b)
			continue
		}
		cmd := m.inbound.String()
		m.inbound.Reset()
		m.log = append(m.log, cmd+";")
		if m.verbose {
			log.Printf("MockTransceiver: RX %s;", cmd)
		}

		resp := m.handle(cmd)
		if resp == "" || m.silent {
			continue
		}
		if m.garble {
			resp = "#" + resp[1:len(resp)-1] + "#;"
		}
		m.pending = append(m.pending, resp...)
	}
	return len(p), nil
}

// Read returns queued answer bytes. With nothing queued it waits briefly
// and returns no data, like a serial port read timeout.
func (m *MockTransceiver) Read(p []byte) (int, error) {
	m.mutex.Lock()
	if !m.open {
		m.mutex.Unlock()
		return 0, errPortClosed
	}
	if m.failErr != nil {
		err := m.failErr
		m.mutex.Unlock()
		return 0, err
	}
	if len(m.pending) > 0 {
		n := copy(p, m.pending)
		m.pending = m.pending[n:]
		m.mutex.Unlock()
		return n, nil
	}
	m.mutex.Unlock()

	time.Sleep(mockReadWait)
	return 0, nil
}

// ResetInputBuffer discards unread answers
func (m *MockTransceiver) ResetInputBuffer() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.open {
		return errPortClosed
	}
	m.pending = nil
	return nil
}

// Close closes the simulated port
func (m *MockTransceiver) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.open = false
	return nil
}

func digitIndex(s string, maxVal int) (int, bool) {
	if len(s) != 1 || s[0] < '0' || int(s[0]-'0') > maxVal {
		return 0, false
	}
	return int(s[0] - '0'), true
}

// handle applies one command (without terminator) and returns the answer
func (m *MockTransceiver) handle(cmd string) string {
	if len(cmd) < 2 {
		return "?;"
	}
	op, args := cmd[:2], cmd[2:]

	switch op {
	case "FA":
		if args == "" {
			return fmt.Sprintf("FA%09d;", m.frequency)
		}
		hz, err := strconv.Atoi(args)
		if len(args) != 9 || err != nil || hz < 30000 || hz > 470000000 {
			return "?;"
		}
		m.frequency = hz
		return ""

	case "MD":
		side, ok := digitIndex(args[:min(1, len(args))], 1)
		if !ok {
			return "?;"
		}
		switch len(args) {
		case 1:
			return fmt.Sprintf("MD%d%c;", side, m.modes[side])
		case 2:
			if !strings.ContainsRune(mockModeCodes, rune(args[1])) {
				return "?;"
			}
			m.modes[side] = args[1]
			return ""
		}

	case "GT":
		side, ok := digitIndex(args[:min(1, len(args))], 1)
		if !ok {
			return "?;"
		}
		switch len(args) {
		case 1:
			return fmt.Sprintf("GT%d%c;", side, m.agc[side])
		case 2:
			if args[1] < '0' || args[1] > '4' {
				return "?;"
			}
			m.agc[side] = args[1]
			if args[1] == '4' {
				m.agc[side] = '5' // AUTO answers as AUTO-MID
			}
			return ""
		}

	case "PC":
		switch len(args) {
		case 0:
			return fmt.Sprintf("PC%c%03d;", m.powerDevice, m.watts)
		case 4:
			w, err := strconv.Atoi(args[1:])
			if err != nil || args[0] != m.powerDevice {
				return "?;"
			}
			lo, hi := 1, 10
			if m.powerDevice == '2' {
				lo, hi = 5, 100
			}
			if w < lo || w > hi {
				return "?;"
			}
			m.watts = w
			return ""
		}

	case "RM":
		ch, ok := digitIndex(args, 8)
		if !ok || ch == 0 {
			return "?;"
		}
		return fmt.Sprintf("RM%d%03d000;", ch, m.meters[ch])

	case "BP":
		if len(args) < 2 {
			return "?;"
		}
		side, ok := digitIndex(args[:1], 1)
		if !ok || (args[1] != '0' && args[1] != '1') {
			return "?;"
		}
		if len(args) == 2 {
			if args[1] == '0' {
				on := 0
				if m.notchOn[side] {
					on = 1
				}
				return fmt.Sprintf("BP%d0%03d;", side, on)
			}
			return fmt.Sprintf("BP%d1%03d;", side, m.notchSteps[side])
		}
		v, err := strconv.Atoi(args[2:])
		if len(args) != 5 || err != nil {
			return "?;"
		}
		if args[1] == '0' {
			if v > 1 {
				return "?;"
			}
			m.notchOn[side] = v == 1
			return ""
		}
		if v < 1 || v > 320 {
			return "?;"
		}
		m.notchSteps[side] = v
		return ""

	case "PA":
		band, ok := digitIndex(args[:min(1, len(args))], 2)
		if !ok {
			return "?;"
		}
		switch len(args) {
		case 1:
			return fmt.Sprintf("PA%d%c;", band, m.preamp[band])
		case 2:
			maxLevel := byte('1')
			if band == 0 {
				maxLevel = '2'
			}
			if args[1] < '0' || args[1] > maxLevel {
				return "?;"
			}
			m.preamp[band] = args[1]
			return ""
		}

	case "MX":
		switch args {
		case "":
			if m.mox {
				return "MX1;"
			}
			return "MX0;"
		case "0", "1":
			m.mox = args == "1"
			return ""
		}

	case "ID":
		if args == "" {
			return "ID0840;"
		}
	}

	return "?;"
}
