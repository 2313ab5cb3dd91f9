package radio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dougsko/ftx1d/pkg/cat"
)

// Tunable frequency limits in Hz. The (GapLow, GapHigh) range is never settable.
const (
	MinFrequency = 30000
	MaxFrequency = 470000000
	GapLow       = 174000000
	GapHigh      = 400000000
)

// NormalizeFrequency clamps hz into the tunable range and moves it out of
// the gap. A positive direction snaps up to GapHigh, a negative one down
// to GapLow, and zero picks the nearer edge.
func NormalizeFrequency(hz, direction int) int {
	if hz < MinFrequency {
		hz = MinFrequency
	}
	if hz > MaxFrequency {
		hz = MaxFrequency
	}
	if hz <= GapLow || hz >= GapHigh {
		return hz
	}

	switch {
	case direction > 0:
		return GapHigh
	case direction < 0:
		return GapLow
	case hz-GapLow < GapHigh-hz:
		return GapLow
	default:
		return GapHigh
	}
}

func readFrequency(x cat.Exchanger) (int, bool, error) {
	resp, err := x.Send("FA")
	if err != nil {
		return 0, false, err
	}
	r, ok := framed(resp, "FA")
	if !ok || len(r) != 12 || !allDigits(r[2:11]) {
		return 0, false, nil
	}
	hz, err := strconv.Atoi(r[2:11])
	if err != nil {
		return 0, false, nil
	}
	return hz, true, nil
}

// Frequency reads the VFO-A frequency in Hz
func (r *Radio) Frequency() (int, bool, error) {
	var (
		hz int
		ok bool
	)
	err := r.link.Do(func(x cat.Exchanger) error {
		var err error
		hz, ok, err = readFrequency(x)
		return err
	})
	return hz, ok, err
}

// SetFrequency writes the VFO-A frequency after normalization and returns
// the value actually sent. It does not read back.
func (r *Radio) SetFrequency(hz int) (int, error) {
	hz = NormalizeFrequency(hz, 0)
	err := r.link.Do(func(x cat.Exchanger) error {
		return set(x, fmt.Sprintf("FA%09d", hz))
	})
	return hz, err
}

// StepFrequency moves the VFO by step Hz, snapping across the gap in the
// direction of travel. The read and the write happen as one exchange.
func (r *Radio) StepFrequency(step int) (int, error) {
	var target int
	err := r.link.Do(func(x cat.Exchanger) error {
		cur, ok, err := readFrequency(x)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("frequency step: %w", ErrNoReading)
		}
		target = NormalizeFrequency(cur+step, step)
		return set(x, fmt.Sprintf("FA%09d", target))
	})
	return target, err
}

// Mode reads the operating mode of one receiver
func (r *Radio) Mode(side Side) (Mode, bool, error) {
	resp, err := r.link.Send(fmt.Sprintf("MD%c", side.digit()))
	if err != nil {
		return "", false, err
	}
	s, ok := framed(resp, "MD")
	if !ok || len(s) != 5 {
		return "", false, nil
	}
	code := strings.ToUpper(s[3:4])[0]
	mode, ok := codeToMode[code]
	return mode, ok, nil
}

// SetMode sets the operating mode of one receiver
func (r *Radio) SetMode(side Side, name string) error {
	mode := Mode(strings.ToUpper(strings.TrimSpace(name)))
	code, ok := modeToCode[mode]
	if !ok {
		return &ValidationError{Field: "mode", Value: name, Err: ErrUnsupportedMode}
	}
	return r.link.Do(func(x cat.Exchanger) error {
		return set(x, fmt.Sprintf("MD%c%c", side.digit(), code))
	})
}

// AGCReading is a decoded GT answer. AUTO variants split into Base "AUTO"
// and Variant "FAST", "MID" or "SLOW"; other settings have no Variant.
type AGCReading struct {
	Name    string `json:"name"`
	Base    string `json:"base"`
	Variant string `json:"variant,omitempty"`
}

// AGC reads the AGC setting of one receiver
func (r *Radio) AGC(side Side) (AGCReading, bool, error) {
	resp, err := r.link.Send(fmt.Sprintf("GT%c", side.digit()))
	if err != nil {
		return AGCReading{}, false, err
	}
	s, ok := framed(resp, "GT")
	if !ok {
		return AGCReading{}, false, nil
	}
	d := digitsOf(s)
	if len(d) < 2 || d[0] != side.digit() {
		return AGCReading{}, false, nil
	}
	name, ok := agcReadNames[d[1]]
	if !ok {
		return AGCReading{}, false, nil
	}

	reading := AGCReading{Name: name, Base: name}
	if base, variant, found := strings.Cut(name, "-"); found {
		reading.Base, reading.Variant = base, variant
	}
	return reading, true, nil
}

// SetAGC sets the AGC of one receiver to OFF, FAST, MID, SLOW or AUTO
func (r *Radio) SetAGC(side Side, name string) error {
	code, ok := agcSetCodes[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return &ValidationError{Field: "agc", Value: name, Err: ErrUnsupportedAGC}
	}
	return r.link.Do(func(x cat.Exchanger) error {
		return set(x, fmt.Sprintf("GT%c%c", side.digit(), code))
	})
}

// MOX reads the CAT transmit flag
func (r *Radio) MOX() (bool, bool, error) {
	resp, err := r.link.Send("MX")
	if err != nil {
		return false, false, err
	}
	s, ok := framed(resp, "MX")
	if !ok || len(s) < 4 || (s[2] != '0' && s[2] != '1') {
		return false, false, nil
	}
	return s[2] == '1', true, nil
}

// SetMOX keys or unkeys the transmitter through CAT
func (r *Radio) SetMOX(on bool) error {
	flag := '0'
	if on {
		flag = '1'
	}
	return r.link.Do(func(x cat.Exchanger) error {
		return set(x, fmt.Sprintf("MX%c", flag))
	})
}

// PTT reads the RTS push-to-talk line
func (r *Radio) PTT() (bool, error) {
	return r.link.LineState()
}

// SetPTT drives the RTS push-to-talk line
func (r *Radio) SetPTT(on bool) error {
	return r.link.SetLineState(on)
}
