// Package radio is the FTX-1 control facade. Each operation encodes one
// CAT command family, runs it over the shared channel and decodes the
// answer against its fixed-width shape.
//
// Getters return (value, ok, err). ok is false when the radio's answer
// was missing or malformed; err is reserved for transport failures.
// Caller input is validated before anything is written, and validation
// failures are returned as *ValidationError.
package radio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dougsko/ftx1d/pkg/cat"
)

var (
	ErrUnsupportedMode    = errors.New("unsupported mode")
	ErrUnsupportedAGC     = errors.New("unsupported agc setting")
	ErrPowerOutOfRange    = errors.New("power out of range for device")
	ErrNotchOutOfRange    = errors.New("notch frequency out of range")
	ErrUnknownBand        = errors.New("unknown band")
	ErrUnknownPreampLevel = errors.New("unknown preamp level")
	ErrUnknownMeter       = errors.New("unknown meter channel")
	ErrNothingToDo        = errors.New("nothing to do")

	// ErrDeviceClassUnknown means the PC read-back could not classify the
	// attached output stage, so a wattage cannot be validated.
	ErrDeviceClassUnknown = errors.New("power device class undeterminable")
	// ErrNoReading means a compound operation's preliminary read failed
	ErrNoReading = errors.New("radio did not return a usable reading")
	// ErrRejected means the radio answered a set command with "?;"
	ErrRejected = errors.New("command rejected by radio")
)

// ValidationError reports caller input that was refused before any wire traffic
type ValidationError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a caller input error
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Side selects the MAIN or SUB receiver
type Side int

const (
	SideMain Side = 0
	SideSub  Side = 1
)

func (s Side) String() string {
	if s == SideSub {
		return "SUB"
	}
	return "MAIN"
}

func (s Side) digit() byte {
	if s == SideSub {
		return '1'
	}
	return '0'
}

// ParseSide accepts "main"/"sub" (any case) and "0"/"1"; empty means main
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MAIN", "0":
		return SideMain, nil
	case "SUB", "1":
		return SideSub, nil
	}
	return SideMain, &ValidationError{Field: "side", Value: s, Err: errors.New("expected main or sub")}
}

// Link is the command channel plus the PTT line
type Link interface {
	cat.Exchanger
	SetLineState(on bool) error
	LineState() (bool, error)
}

// Radio is the control facade over a Link
type Radio struct {
	link Link
}

// New creates a facade over link
func New(link Link) *Radio {
	return &Radio{link: link}
}

// framed strips whitespace and reports whether resp looks like an
// answer to the op command family.
func framed(resp, op string) (string, bool) {
	r := strings.TrimSpace(resp)
	return r, strings.HasPrefix(r, op) && strings.HasSuffix(r, ";")
}

// digitsOf returns the decimal digits of an answer body
func digitsOf(r string) string {
	var b strings.Builder
	for i := 2; i < len(r)-1; i++ {
		if r[i] >= '0' && r[i] <= '9' {
			b.WriteByte(r[i])
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// set sends a set command; the radio stays silent on success and answers
// "?;" when it refuses.
func set(x cat.Exchanger, cmd string) error {
	resp, err := x.Send(cmd)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp) == "?;" {
		return fmt.Errorf("%s: %w", cmd, ErrRejected)
	}
	return nil
}

// Identify reads the radio's model id (ID command)
func (r *Radio) Identify() (string, bool, error) {
	resp, err := r.link.Send("ID")
	if err != nil {
		return "", false, err
	}
	s, ok := framed(resp, "ID")
	if !ok || len(s) < 4 || !allDigits(s[2:len(s)-1]) {
		return "", false, nil
	}
	return s[2 : len(s)-1], true, nil
}
