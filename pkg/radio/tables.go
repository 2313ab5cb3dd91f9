package radio

import "strings"

// Mode is a native operating mode name such as "USB" or "DATA-FM-N"
type Mode string

type modeEntry struct {
	code byte
	name Mode
}

// modeTable is the MD P2 code table, in wire order
var modeTable = []modeEntry{
	{'1', "LSB"},
	{'2', "USB"},
	{'3', "CW-U"},
	{'4', "FM"},
	{'5', "AM"},
	{'6', "RTTY-L"},
	{'7', "CW-L"},
	{'8', "DATA-L"},
	{'9', "RTTY-U"},
	{'A', "DATA-FM"},
	{'B', "FM-N"},
	{'C', "DATA-U"},
	{'D', "AM-N"},
	{'E', "PSK"},
	{'F', "DATA-FM-N"},
	{'H', "C4FM-DN"},
	{'I', "C4FM-VW"},
}

var (
	codeToMode = map[byte]Mode{}
	modeToCode = map[Mode]byte{}
)

func init() {
	for _, e := range modeTable {
		codeToMode[e.code] = e.name
		modeToCode[e.name] = e.code
	}
}

// Modes lists every supported mode in wire order
func Modes() []Mode {
	out := make([]Mode, len(modeTable))
	for i, e := range modeTable {
		out[i] = e.name
	}
	return out
}

// AGC set codes (GT P2)
var agcSetCodes = map[string]byte{
	"OFF":  '0',
	"FAST": '1',
	"MID":  '2',
	"SLOW": '3',
	"AUTO": '4',
}

// AGC answer codes (GT P3); AUTO splits into three variants on read
var agcReadNames = map[byte]string{
	'0': "OFF",
	'1': "FAST",
	'2': "MID",
	'3': "SLOW",
	'4': "AUTO-FAST",
	'5': "AUTO-MID",
	'6': "AUTO-SLOW",
}

// AGCSettings lists the names SetAGC accepts
func AGCSettings() []string {
	return []string{"OFF", "FAST", "MID", "SLOW", "AUTO"}
}

// Band is a pre-amp band group
type Band string

const (
	BandHF50 Band = "HF50"
	BandVHF  Band = "VHF"
	BandUHF  Band = "UHF"
)

var bandAliases = map[string]Band{
	"HF50":  BandHF50,
	"HF/50": BandHF50,
	"HF":    BandHF50,
	"VHF":   BandVHF,
	"UHF":   BandUHF,
}

var bandCodes = map[Band]byte{
	BandHF50: '0',
	BandVHF:  '1',
	BandUHF:  '2',
}

var (
	hf50Levels = map[string]byte{"IPO": '0', "AMP1": '1', "AMP2": '2'}
	vuLevels   = map[string]byte{"OFF": '0', "ON": '1'}
)

// PreampBands lists the canonical band groups in wire order
func PreampBands() []Band {
	return []Band{BandHF50, BandVHF, BandUHF}
}

// PreampLevels returns the level vocabulary for a band group
func PreampLevels(b Band) []string {
	if b == BandHF50 {
		return []string{"IPO", "AMP1", "AMP2"}
	}
	return []string{"OFF", "ON"}
}

func levelTable(b Band) map[string]byte {
	if b == BandHF50 {
		return hf50Levels
	}
	return vuLevels
}

func levelName(b Band, code byte) (string, bool) {
	for name, c := range levelTable(b) {
		if c == code {
			return name, true
		}
	}
	return "", false
}

// NormalizeBand maps a band name or alias to its canonical group
func NormalizeBand(name string) (Band, error) {
	b, ok := bandAliases[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", &ValidationError{Field: "band", Value: name, Err: ErrUnknownBand}
	}
	return b, nil
}

// Power device classes (PC P1)
const (
	DeviceField = "FIELD"
	DeviceSPA1  = "SPA1"
)

type deviceClass struct {
	code     byte
	min, max int
}

var deviceClasses = map[string]deviceClass{
	DeviceField: {'1', 1, 10},
	DeviceSPA1:  {'2', 5, 100},
}

// PowerRange returns the allowed wattage for a device class
func PowerRange(device string) (lo, hi int, ok bool) {
	c, ok := deviceClasses[device]
	return c.min, c.max, ok
}
