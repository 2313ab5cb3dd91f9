package radio

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dougsko/ftx1d/pkg/cat"
)

// Manual notch frequency is set in 10 Hz steps
const (
	NotchStepHz   = 10
	NotchMinSteps = 1
	NotchMaxSteps = 320
)

// NotchReading is the manual notch state with the raw answers kept for
// diagnostics. Nil fields were absent or malformed.
type NotchReading struct {
	Enabled      *bool  `json:"enabled"`
	FrequencyHz  *int   `json:"frequency_hz"`
	RawEnabled   string `json:"raw_enabled"`
	RawFrequency string `json:"raw_frequency"`
}

// NotchSettings selects which notch fields to write; nil leaves a field alone
type NotchSettings struct {
	Enabled     *bool `json:"enabled"`
	FrequencyHz *int  `json:"frequency_hz"`
}

// notchSteps rounds hz to the nearest step, ties to even
func notchSteps(hz float64) int {
	return int(math.RoundToEven(hz / NotchStepHz))
}

// parseNotch decodes "BP" side sub value ";" (always 8 characters)
func parseNotch(resp string, sub byte) (int, bool) {
	s, ok := framed(resp, "BP")
	if !ok || len(s) != 8 || s[3] != sub || !allDigits(s[4:7]) {
		return 0, false
	}
	v, err := strconv.Atoi(s[4:7])
	if err != nil {
		return 0, false
	}
	return v, true
}

// Notch reads the enable flag and frequency of one receiver's manual notch
func (r *Radio) Notch(side Side) (NotchReading, error) {
	var reading NotchReading
	err := r.link.Do(func(x cat.Exchanger) error {
		respOn, err := x.Send(fmt.Sprintf("BP%c0", side.digit()))
		if err != nil {
			return err
		}
		reading.RawEnabled = respOn
		if v, ok := parseNotch(respOn, '0'); ok && v <= 1 {
			on := v == 1
			reading.Enabled = &on
		}

		respFreq, err := x.Send(fmt.Sprintf("BP%c1", side.digit()))
		if err != nil {
			return err
		}
		reading.RawFrequency = respFreq
		if v, ok := parseNotch(respFreq, '1'); ok && v >= NotchMinSteps && v <= NotchMaxSteps {
			hz := v * NotchStepHz
			reading.FrequencyHz = &hz
		}
		return nil
	})
	return reading, err
}

// SetNotch writes the enable flag, then the frequency, as one exchange.
// The frequency is rounded to the nearest 10 Hz step and must land in
// 10-3200 Hz.
func (r *Radio) SetNotch(side Side, settings NotchSettings) error {
	if settings.Enabled == nil && settings.FrequencyHz == nil {
		return &ValidationError{Field: "notch", Value: "{}", Err: ErrNothingToDo}
	}

	steps := 0
	if settings.FrequencyHz != nil {
		steps = notchSteps(float64(*settings.FrequencyHz))
		if steps < NotchMinSteps || steps > NotchMaxSteps {
			return &ValidationError{Field: "notch frequency", Value: *settings.FrequencyHz, Err: ErrNotchOutOfRange}
		}
	}

	return r.link.Do(func(x cat.Exchanger) error {
		if settings.Enabled != nil {
			flag := 0
			if *settings.Enabled {
				flag = 1
			}
			if err := set(x, fmt.Sprintf("BP%c0%03d", side.digit(), flag)); err != nil {
				return err
			}
		}
		if settings.FrequencyHz != nil {
			if err := set(x, fmt.Sprintf("BP%c1%03d", side.digit(), steps)); err != nil {
				return err
			}
		}
		return nil
	})
}

// TuneNotch points the notch at hz, as picked from an audio spectrum.
// A frequency outside the notch's range switches the notch off instead
// of failing. It returns the settings that were written.
func (r *Radio) TuneNotch(side Side, hz float64) (NotchSettings, error) {
	steps := notchSteps(hz)
	var settings NotchSettings
	if steps < NotchMinSteps || steps > NotchMaxSteps {
		off := false
		settings.Enabled = &off
	} else {
		on := true
		freq := steps * NotchStepHz
		settings.Enabled = &on
		settings.FrequencyHz = &freq
	}
	return settings, r.SetNotch(side, settings)
}
