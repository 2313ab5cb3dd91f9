// Package protocol implements the subset of the rigctl text protocol the
// bridge speaks: one command per line, one framed response per command.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Protocol commands
const (
	CmdGetFreq   = "f"
	CmdSetFreq   = "F"
	CmdGetMode   = "m"
	CmdSetMode   = "M"
	CmdGetPTT    = "t"
	CmdSetPTT    = "T"
	CmdQuit      = "q"
	CmdQuitUpper = "Q"
	CmdPowerStat = `\get_powerstat`
	CmdChkVFO    = `\chk_vfo`
	CmdDumpState = `\dump_state`
)

// DefaultPort is the conventional rigctld TCP port
const DefaultPort = 4532

// Passband is reported after the mode name on every m query
const Passband = 2400

// ErrEmpty is returned for blank lines, which callers skip
var ErrEmpty = errors.New("empty command line")

// Command is one parsed request line
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a request line into its command word and arguments.
// Single-letter commands are case sensitive; backslash commands are not.
func ParseCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmpty
	}
	name := fields[0]
	if strings.HasPrefix(name, `\`) {
		name = strings.ToLower(name)
	}
	return &Command{Name: name, Args: fields[1:]}, nil
}

// IsQuit reports whether the command closes the connection
func (c *Command) IsQuit() bool {
	return c.Name == CmdQuit || c.Name == CmdQuitUpper
}

// IsWrite reports whether the command changes radio state
func (c *Command) IsWrite() bool {
	switch c.Name {
	case CmdSetFreq, CmdSetMode, CmdSetPTT:
		return true
	}
	return false
}

// Arg returns argument i or an error naming the command
func (c *Command) Arg(i int) (string, error) {
	if i >= len(c.Args) {
		return "", fmt.Errorf("%s: missing argument %d", c.Name, i+1)
	}
	return c.Args[i], nil
}

// ParseFrequency accepts integer or decimal Hz; fractions are dropped
func ParseFrequency(arg string) (int, error) {
	hz, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", arg, err)
	}
	if hz < 0 {
		return 0, fmt.Errorf("invalid frequency %q: negative", arg)
	}
	return int(hz), nil
}

// ParsePTT accepts 0 for receive and 1 for transmit
func ParsePTT(arg string) (bool, error) {
	switch arg {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("invalid ptt value %q", arg)
}

// hamlibModes maps hamlib mode names onto the radio's own names
var hamlibModes = map[string]string{
	"CW":     "CW-U",
	"CWR":    "CW-L",
	"RTTY":   "RTTY-L",
	"RTTYR":  "RTTY-U",
	"AMN":    "AM-N",
	"FMN":    "FM-N",
	"PKTUSB": "DATA-U",
	"PKTLSB": "DATA-L",
	"PKTFM":  "DATA-FM",
	"PKTFMN": "DATA-FM-N",
}

// ResolveMode translates a hamlib mode name; native names pass through upper-cased
func ResolveMode(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if native, ok := hamlibModes[name]; ok {
		return native
	}
	return name
}

// Response framing
const (
	OKResponse        = "RPRT 0\n"
	FailResponse      = "RPRT -1\n"
	PowerStatResponse = "1\n"
	ChkVFOResponse    = "0\n"
)

// FrequencyResponse frames an f answer
func FrequencyResponse(hz int) string {
	return fmt.Sprintf("%d\n", hz)
}

// ModeResponse frames an m answer
func ModeResponse(mode string) string {
	return fmt.Sprintf("%s\n%d\n", mode, Passband)
}

// PTTResponse frames a t answer
func PTTResponse(on bool) string {
	if on {
		return "1\n"
	}
	return "0\n"
}

var dumpStateLines = []string{
	"1",
	"6",
	"0",
	"0 0 0 0 0 0 0",
	"0 0 0 0 0 0 0",
	"0 0",
	"0 0",
	"0",
	"0",
	"0",
	"0",
	"0 0 0 0 0 0 0 0",
	"0 0 0 0 0 0 0 0",
	"0x00000000",
	"0x00000000",
	"0x00000000",
	"0x00000000",
	"0x00000000",
	"0x00000000",
	"vfo_opts=0x00000000",
	"ptt_type=0x00000001",
	"targetable_vfo=0x00000000",
	"has_set_vfo=0",
	"has_get_vfo=0",
	"has_set_freq=1",
	"has_get_freq=1",
	"has_set_conf=0",
	"has_get_conf=0",
	"has_power2mW=0",
	"has_mw2power=0",
	"timeout=0",
	"rig_model=6",
	"rigctl_version=4.5.5",
	"agc_levels=",
	"done",
	"0",
}

// DumpStateResponse is the canned capability block clients request on connect
var DumpStateResponse = strings.Join(dumpStateLines, "\n") + "\n"
