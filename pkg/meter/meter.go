// Package meter converts raw 0-255 telemetry codes reported by the
// transceiver's RM command into physical units. Every function is total
// over its input; out-of-range raw values are clamped, and an open
// antenna shows up as an infinite SWR rather than an error.
package meter

import (
	"fmt"
	"math"
)

// Channel identifies one of the eight RM meter channels
type Channel int

const (
	SMain Channel = iota + 1
	SSub
	Comp
	ALCMeter
	PowerOutMeter
	SWRMeter
	IDD
	VDD
)

// Channels lists every meter channel in wire order
var Channels = []Channel{SMain, SSub, Comp, ALCMeter, PowerOutMeter, SWRMeter, IDD, VDD}

var channelNames = map[Channel]string{
	SMain:         "S_MAIN",
	SSub:          "S_SUB",
	Comp:          "COMP",
	ALCMeter:      "ALC",
	PowerOutMeter: "PO",
	SWRMeter:      "SWR",
	IDD:           "IDD",
	VDD:           "VDD",
}

// Name returns the channel's display key
func (c Channel) Name() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("METER_%d", int(c))
}

// Valid reports whether c is one of the eight known channels
func (c Channel) Valid() bool {
	_, ok := channelNames[c]
	return ok
}

// Unit returns the physical unit of the converted value
func (c Channel) Unit() string {
	switch c {
	case SMain, SSub:
		return "S"
	case Comp:
		return "dB"
	case ALCMeter:
		return "%"
	case PowerOutMeter:
		return "W"
	case SWRMeter:
		return ""
	case IDD:
		return "A"
	case VDD:
		return "V"
	}
	return ""
}

type point struct{ x, y float64 }

// S-meter calibration against the dial markings. raw 128 is S9 and raw
// 255 is S9+60dB.
const (
	sRawS1  = 14
	sRawS3  = 42
	sRawS5  = 81
	sRawS7  = 103
	sRawS9  = 128
	sRawP20 = 202
	sRawP40 = 233
	sRawP60 = 255
)

// sRawP10 is the +10dB mark, halfway between S9 and +20dB.
var sRawP10 = int(math.Round(sRawS9 + (sRawP20-sRawS9)*0.5))

var sMeterCurve = []point{
	{sRawS9, 0},
	{sRawP20, 20},
	{sRawP40, 40},
	{sRawP60, 60},
}

var powerCurve = []point{
	{55, 0.5},
	{73, 1.0},
	{113, 3.0},
	{139, 5.0},
	{164, 7.5},
	{189, 10.0},
	{255, 15.0},
}

func clampRaw(raw int) int {
	if raw < 0 {
		return 0
	}
	if raw > 255 {
		return 255
	}
	return raw
}

// lerp interpolates through pts, which must be sorted by x. Inputs left
// of the first point interpolate from the origin; inputs right of the
// last point take the last point's value.
func lerp(x float64, pts []point) float64 {
	if len(pts) == 0 {
		return 0
	}
	prev := point{0, 0}
	for _, p := range pts {
		if x <= p.x {
			if p.x == prev.x {
				return p.y
			}
			return prev.y + (p.y-prev.y)*(x-prev.x)/(p.x-prev.x)
		}
		prev = p
	}
	return pts[len(pts)-1].y
}

// SMeter converts an S-meter reading. Results below 10 are S-units and
// only ever take the values 0, 1, 3, 5, 7 or 9. Results of 10 and above
// are dB over S9. Anything at or below +10dB reads as S9.
func SMeter(raw int) float64 {
	r := clampRaw(raw)
	switch {
	case r < sRawS1:
		return 0
	case r < sRawS3:
		return 1
	case r < sRawS5:
		return 3
	case r < sRawS7:
		return 5
	case r < sRawS9:
		return 7
	case r < sRawP10:
		return 9
	}

	db := lerp(float64(r), sMeterCurve)
	if db <= 10 {
		return 9
	}
	return db
}

// SMeterText renders an S-meter reading as "S7" or "+20.0dB"
func SMeterText(raw int) string {
	v := SMeter(raw)
	if v < 10 {
		return fmt.Sprintf("S%d", int(v))
	}
	return fmt.Sprintf("+%.1fdB", v)
}

// Compression converts the speech compressor meter to dB (0-30)
func Compression(raw int) float64 {
	return float64(clampRaw(raw)) * 30.0 / 255.0
}

// ALC converts the ALC meter to percent (0-200)
func ALC(raw int) float64 {
	v := float64(clampRaw(raw)) * 200.0 / 252.0
	return math.Min(v, 200)
}

// PowerOut converts the PO meter to watts (0-15)
func PowerOut(raw int) float64 {
	x := float64(clampRaw(raw))
	if x <= 0 {
		return 0
	}
	return lerp(x, powerCurve)
}

// SWR converts the SWR meter. Full scale is reported as +Inf.
func SWR(raw int) float64 {
	r := clampRaw(raw)
	if r >= 255 {
		return math.Inf(1)
	}
	if r <= 0 {
		return 1.0
	}
	return 1.0 + 0.333*(math.Exp(0.0151*float64(r))-1.0)
}

// Current converts the IDD meter to amperes (0-3)
func Current(raw int) float64 {
	return float64(clampRaw(raw)) * 3.0 / 255.0
}

// Voltage converts the VDD meter to volts
func Voltage(raw int) float64 {
	return float64(clampRaw(raw)) * 13.8 / 203.0
}

// Convert applies the conversion for channel c. Unknown channels return
// the raw value unchanged.
func Convert(c Channel, raw int) float64 {
	switch c {
	case SMain, SSub:
		return SMeter(raw)
	case Comp:
		return Compression(raw)
	case ALCMeter:
		return ALC(raw)
	case PowerOutMeter:
		return PowerOut(raw)
	case SWRMeter:
		return SWR(raw)
	case IDD:
		return Current(raw)
	case VDD:
		return Voltage(raw)
	}
	return float64(raw)
}

// FormatValue renders a converted reading for display
func FormatValue(c Channel, raw int) string {
	switch c {
	case SMain, SSub:
		return SMeterText(raw)
	case SWRMeter:
		v := SWR(raw)
		if math.IsInf(v, 1) {
			return "∞"
		}
		return fmt.Sprintf("%.2f", v)
	case Comp:
		return fmt.Sprintf("%.1f dB", Compression(raw))
	case ALCMeter:
		return fmt.Sprintf("%.0f%%", ALC(raw))
	case PowerOutMeter:
		return fmt.Sprintf("%.1f W", PowerOut(raw))
	case IDD:
		return fmt.Sprintf("%.2f A", Current(raw))
	case VDD:
		return fmt.Sprintf("%.1f V", Voltage(raw))
	}
	return fmt.Sprintf("%d", raw)
}
