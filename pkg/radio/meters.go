package radio

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/dougsko/ftx1d/pkg/meter"
)

// MeterReading is one decoded RM answer
type MeterReading struct {
	Channel meter.Channel `json:"channel"`
	Name    string        `json:"name"`
	Raw     int           `json:"raw"`
	Value   float64       `json:"value"`
	Text    string        `json:"text"`
}

// MarshalJSON writes an infinite value (open SWR) as null
func (m MeterReading) MarshalJSON() ([]byte, error) {
	type plain MeterReading
	out := struct {
		plain
		Value *float64 `json:"value"`
	}{plain: plain(m)}
	if !math.IsInf(m.Value, 0) && !math.IsNaN(m.Value) {
		v := m.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// Meter reads one telemetry channel. The answer must echo the channel id
// and carry the fixed "000" tag after the raw value.
func (r *Radio) Meter(ch meter.Channel) (MeterReading, bool, error) {
	if !ch.Valid() {
		return MeterReading{}, false, &ValidationError{Field: "meter channel", Value: int(ch), Err: ErrUnknownMeter}
	}

	resp, err := r.link.Send(fmt.Sprintf("RM%d", int(ch)))
	if err != nil {
		return MeterReading{}, false, err
	}
	s, ok := framed(resp, "RM")
	if !ok || len(s) < 10 {
		return MeterReading{}, false, nil
	}
	if s[2] != byte('0'+int(ch)) || s[6:9] != "000" || !allDigits(s[3:6]) {
		return MeterReading{}, false, nil
	}
	raw, err := strconv.Atoi(s[3:6])
	if err != nil {
		return MeterReading{}, false, nil
	}

	return MeterReading{
		Channel: ch,
		Name:    ch.Name(),
		Raw:     raw,
		Value:   meter.Convert(ch, raw),
		Text:    meter.FormatValue(ch, raw),
	}, true, nil
}

// Meters reads all eight channels one exchange at a time and keeps only
// those that answered validly, keyed by channel name. On a transport
// error the channels read so far are returned with the error.
func (r *Radio) Meters() (map[string]MeterReading, error) {
	out := make(map[string]MeterReading, len(meter.Channels))
	for _, ch := range meter.Channels {
		reading, ok, err := r.Meter(ch)
		if err != nil {
			return out, err
		}
		if ok {
			out[reading.Name] = reading
		}
	}
	return out, nil
}
