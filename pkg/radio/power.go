package radio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dougsko/ftx1d/pkg/cat"
)

// PowerControl is the attached output stage and its power setting
type PowerControl struct {
	Device string `json:"device"`
	Watts  int    `json:"watts"`
}

func readPower(x cat.Exchanger) (PowerControl, bool, error) {
	resp, err := x.Send("PC")
	if err != nil {
		return PowerControl{}, false, err
	}
	s, ok := framed(resp, "PC")
	if !ok {
		return PowerControl{}, false, nil
	}
	d := digitsOf(s)
	if len(d) < 4 {
		return PowerControl{}, false, nil
	}
	watts, _ := strconv.Atoi(d[1:4])

	switch d[0] {
	case '1':
		return PowerControl{Device: DeviceField, Watts: watts}, true, nil
	case '2':
		return PowerControl{Device: DeviceSPA1, Watts: watts}, true, nil
	}
	return PowerControl{}, false, nil
}

// Power reads the device class and power setting
func (r *Radio) Power() (PowerControl, bool, error) {
	var (
		pc PowerControl
		ok bool
	)
	err := r.link.Do(func(x cat.Exchanger) error {
		var err error
		pc, ok, err = readPower(x)
		return err
	})
	return pc, ok, err
}

// SetPower sets the output power. The device class is read first, inside
// the same exchange, because the allowed range depends on it.
func (r *Radio) SetPower(watts int) error {
	return r.link.Do(func(x cat.Exchanger) error {
		pc, ok, err := readPower(x)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDeviceClassUnknown
		}

		class := deviceClasses[pc.Device]
		if watts < class.min || watts > class.max {
			return &ValidationError{
				Field: "power",
				Value: watts,
				Err:   fmt.Errorf("%w: %s accepts %d-%d W", ErrPowerOutOfRange, pc.Device, class.min, class.max),
			}
		}
		return set(x, fmt.Sprintf("PC%c%03d", class.code, watts))
	})
}

// PreampReading is the pre-amp level of one band group
type PreampReading struct {
	Band  Band   `json:"band"`
	Level string `json:"level"`
}

// Preamp reads the pre-amp level of a band group
func (r *Radio) Preamp(band string) (PreampReading, bool, error) {
	b, err := NormalizeBand(band)
	if err != nil {
		return PreampReading{}, false, err
	}
	code := bandCodes[b]

	resp, err := r.link.Send(fmt.Sprintf("PA%c", code))
	if err != nil {
		return PreampReading{}, false, err
	}
	s, ok := framed(resp, "PA")
	if !ok {
		return PreampReading{}, false, nil
	}
	d := digitsOf(s)
	if len(d) < 2 || d[0] != code {
		return PreampReading{}, false, nil
	}
	level, ok := levelName(b, d[1])
	if !ok {
		return PreampReading{}, false, nil
	}
	return PreampReading{Band: b, Level: level}, true, nil
}

// SetPreamp sets the pre-amp level of a band group. HF50 accepts IPO,
// AMP1 and AMP2; VHF and UHF accept OFF and ON.
func (r *Radio) SetPreamp(band, level string) error {
	b, err := NormalizeBand(band)
	if err != nil {
		return err
	}
	code, ok := levelTable(b)[strings.ToUpper(strings.TrimSpace(level))]
	if !ok {
		return &ValidationError{
			Field: "preamp level",
			Value: level,
			Err:   fmt.Errorf("%w: %s accepts %s", ErrUnknownPreampLevel, b, strings.Join(PreampLevels(b), ", ")),
		}
	}
	return r.link.Do(func(x cat.Exchanger) error {
		return set(x, fmt.Sprintf("PA%c%c", bandCodes[b], code))
	})
}
