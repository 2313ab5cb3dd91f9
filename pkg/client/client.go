package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dougsko/ftx1d/pkg/protocol"
)

// RigError is a non-zero RPRT status from the server
type RigError struct {
	Code int
}

func (e *RigError) Error() string {
	return fmt.Sprintf("rig error: RPRT %d", e.Code)
}

// RigctlClient talks to a rigctl-compatible server, one connection per command
type RigctlClient struct {
	address string
	timeout time.Duration
}

// NewRigctlClient creates a client for host:port
func NewRigctlClient(address string) *RigctlClient {
	return &RigctlClient{
		address: address,
		timeout: 5 * time.Second,
	}
}

// SetTimeout changes the dial and read timeout
func (c *RigctlClient) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SendCommand sends one command line and reads the answer. lines is the
// number of lines expected for a successful answer; a negative value reads
// up to and including the line after "done". A leading RPRT line is
// returned as the only line.
func (c *RigctlClient) SendCommand(cmd string, lines int) ([]string, error) {
	conn, err := net.DialTimeout("tcp", c.address, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.address, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	reader := bufio.NewReader(conn)
	var out []string
	sawDone := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return out, fmt.Errorf("read error: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		out = append(out, line)

		if len(out) == 1 && strings.HasPrefix(line, "RPRT ") {
			return out, nil
		}
		if lines >= 0 && len(out) == lines {
			return out, nil
		}
		if lines < 0 {
			if sawDone {
				return out, nil
			}
			sawDone = line == "done"
		}
	}
}

// report turns an RPRT line into an error
func report(lines []string) error {
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "RPRT ") {
		return nil
	}
	code, err := strconv.Atoi(strings.TrimPrefix(lines[0], "RPRT "))
	if err != nil {
		return fmt.Errorf("malformed report %q", lines[0])
	}
	if code != 0 {
		return &RigError{Code: code}
	}
	return nil
}

// set runs a write command that answers with a single RPRT line
func (c *RigctlClient) set(cmd string) error {
	lines, err := c.SendCommand(cmd, 1)
	if err != nil {
		return err
	}
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "RPRT ") {
		return fmt.Errorf("unexpected answer %q", lines)
	}
	return report(lines)
}

// query runs a read command expecting n lines
func (c *RigctlClient) query(cmd string, n int) ([]string, error) {
	lines, err := c.SendCommand(cmd, n)
	if err != nil {
		return nil, err
	}
	if err := report(lines); err != nil {
		return nil, err
	}
	if len(lines) != n {
		return nil, fmt.Errorf("unexpected answer %q", lines)
	}
	return lines, nil
}

// GetFrequency reads the VFO-A frequency in Hz
func (c *RigctlClient) GetFrequency() (int, error) {
	lines, err := c.query(protocol.CmdGetFreq, 1)
	if err != nil {
		return 0, err
	}
	hz, err := strconv.Atoi(lines[0])
	if err != nil {
		return 0, fmt.Errorf("failed to parse frequency %q: %w", lines[0], err)
	}
	return hz, nil
}

// SetFrequency tunes VFO-A
func (c *RigctlClient) SetFrequency(hz int) error {
	return c.set(fmt.Sprintf("%s %d", protocol.CmdSetFreq, hz))
}

// GetMode reads the main receiver's mode and reported passband
func (c *RigctlClient) GetMode() (string, int, error) {
	lines, err := c.query(protocol.CmdGetMode, 2)
	if err != nil {
		return "", 0, err
	}
	passband, err := strconv.Atoi(lines[1])
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse passband %q: %w", lines[1], err)
	}
	return lines[0], passband, nil
}

// SetMode sets the main receiver's mode; hamlib names are accepted
func (c *RigctlClient) SetMode(mode string, passband int) error {
	cmd := fmt.Sprintf("%s %s", protocol.CmdSetMode, mode)
	if passband > 0 {
		cmd = fmt.Sprintf("%s %d", cmd, passband)
	}
	return c.set(cmd)
}

// GetPTT reads the push-to-talk state
func (c *RigctlClient) GetPTT() (bool, error) {
	lines, err := c.query(protocol.CmdGetPTT, 1)
	if err != nil {
		return false, err
	}
	return protocol.ParsePTT(lines[0])
}

// SetPTT keys or unkeys the transmitter
func (c *RigctlClient) SetPTT(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return c.set(fmt.Sprintf("%s %d", protocol.CmdSetPTT, v))
}

// DumpState returns the server's capability block
func (c *RigctlClient) DumpState() ([]string, error) {
	lines, err := c.SendCommand(protocol.CmdDumpState, -1)
	if err != nil {
		return nil, err
	}
	if err := report(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Ping checks that the server answers
func (c *RigctlClient) Ping() error {
	lines, err := c.query(protocol.CmdPowerStat, 1)
	if err != nil {
		return err
	}
	if lines[0] != strings.TrimSpace(protocol.PowerStatResponse) {
		return errors.New("radio reports power off")
	}
	return nil
}

// IsConnected tests if the server is reachable
func (c *RigctlClient) IsConnected() bool {
	return c.Ping() == nil
}
