package hardware

import (
	"time"

	"github.com/dougsko/ftx1d/pkg/cat"
)

// LinkConfig describes the two serial ports the transceiver exposes
type LinkConfig struct {
	CATDevice   string        // CAT serial device (e.g., /dev/ttyUSB0)
	CATBaudRate int           // CAT baud rate
	PTTDevice   string        // Secondary port whose RTS keys the transmitter
	PTTBaudRate int           // Secondary port baud rate
	PTTGPIOPin  int           // sysfs GPIO pin keying PTT when PTTDevice is empty
	GPIOBase    string        // sysfs GPIO root, DefaultGPIOBase when empty
	ReadTimeout time.Duration // Per-read timeout on the CAT port
}

// Ports is an opened pair of transceiver connections
type Ports struct {
	CAT cat.Port
	PTT cat.LinePort // nil when no PTT device is configured
}

// Opener produces the transceiver connections at connect time
type Opener interface {
	Open() (*Ports, error)
	Describe() string
}

// Default serial parameters for the FTX-1
const (
	DefaultBaudRate    = 38400
	DefaultReadTimeout = 50 * time.Millisecond
)
