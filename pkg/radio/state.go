package radio

import (
	"errors"
	"fmt"
	"time"

	"github.com/dougsko/ftx1d/pkg/cat"
)

// State is a full re-read of the radio. Nil fields and missing map keys
// mean the field could not be read; transport failures are listed in
// Errors and do not abort the rest of the read.
type State struct {
	Frequency *int            `json:"frequency"`
	Mode      *Mode           `json:"mode"`
	PTT       *bool           `json:"ptt"`
	Preamp    map[Band]string `json:"preamp"`
	AGC       *AGCReading     `json:"agc"`
	Power     *PowerControl   `json:"power"`
	Notch     NotchReading    `json:"notch"`
	Errors    []string        `json:"errors,omitempty"`
	ReadAt    time.Time       `json:"read_at"`
}

func (s *State) fail(field string, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", field, err))
}

// ReadState reads frequency, main mode, PTT, every pre-amp band, main
// AGC, power and main notch. Each field is an independent exchange.
func (r *Radio) ReadState() State {
	st := State{Preamp: make(map[Band]string, 3)}

	if hz, ok, err := r.Frequency(); err != nil {
		st.fail("frequency", err)
	} else if ok {
		st.Frequency = &hz
	}

	if mode, ok, err := r.Mode(SideMain); err != nil {
		st.fail("mode", err)
	} else if ok {
		st.Mode = &mode
	}

	if on, err := r.PTT(); errors.Is(err, cat.ErrNoLine) {
		// no PTT port configured
	} else if err != nil {
		st.fail("ptt", err)
	} else {
		st.PTT = &on
	}

	for _, band := range PreampBands() {
		if p, ok, err := r.Preamp(string(band)); err != nil {
			st.fail("preamp "+string(band), err)
		} else if ok {
			st.Preamp[band] = p.Level
		}
	}

	if agc, ok, err := r.AGC(SideMain); err != nil {
		st.fail("agc", err)
	} else if ok {
		st.AGC = &agc
	}

	if pc, ok, err := r.Power(); err != nil {
		st.fail("power", err)
	} else if ok {
		st.Power = &pc
	}

	if notch, err := r.Notch(SideMain); err != nil {
		st.fail("notch", err)
	} else {
		st.Notch = notch
	}

	st.ReadAt = time.Now()
	return st
}
