package hardware

import (
	"fmt"
	"sort"

	"go.bug.st/serial"

	"github.com/dougsko/ftx1d/pkg/logging"
)

// SerialOpener opens real serial ports with go.bug.st/serial
type SerialOpener struct {
	config LinkConfig
}

// NewSerialOpener creates an opener for the given ports
func NewSerialOpener(config LinkConfig) *SerialOpener {
	if config.CATBaudRate == 0 {
		config.CATBaudRate = DefaultBaudRate
	}
	if config.PTTBaudRate == 0 {
		config.PTTBaudRate = DefaultBaudRate
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.GPIOBase == "" {
		config.GPIOBase = DefaultGPIOBase
	}
	return &SerialOpener{config: config}
}

// Describe returns a short human description of the link
func (o *SerialOpener) Describe() string {
	if o.config.PTTDevice == "" {
		if o.config.PTTGPIOPin > 0 {
			return fmt.Sprintf("%s@%d ptt=gpio%d", o.config.CATDevice, o.config.CATBaudRate, o.config.PTTGPIOPin)
		}
		return fmt.Sprintf("%s@%d", o.config.CATDevice, o.config.CATBaudRate)
	}
	return fmt.Sprintf("%s@%d ptt=%s@%d", o.config.CATDevice, o.config.CATBaudRate,
		o.config.PTTDevice, o.config.PTTBaudRate)
}

// Open opens the CAT port 8N1 and, when configured, the PTT port with RTS low.
// A GPIO pin is used for PTT only when no PTT device is set.
func (o *SerialOpener) Open() (*Ports, error) {
	if o.config.CATDevice == "" {
		return nil, fmt.Errorf("no CAT device configured")
	}

	catPort, err := serial.Open(o.config.CATDevice, &serial.Mode{
		BaudRate: o.config.CATBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open CAT port %s: %w", o.config.CATDevice, err)
	}
	if err := catPort.SetReadTimeout(o.config.ReadTimeout); err != nil {
		catPort.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", o.config.CATDevice, err)
	}
	if err := catPort.ResetInputBuffer(); err != nil {
		logging.Warnf("serial", "failed to flush input on %s: %v", o.config.CATDevice, err)
	}
	if err := catPort.ResetOutputBuffer(); err != nil {
		logging.Warnf("serial", "failed to flush output on %s: %v", o.config.CATDevice, err)
	}

	ports := &Ports{CAT: catPort}
	if o.config.PTTDevice == "" {
		if o.config.PTTGPIOPin > 0 {
			line, err := OpenGPIOLine(o.config.GPIOBase, o.config.PTTGPIOPin)
			if err != nil {
				catPort.Close()
				return nil, err
			}
			ports.PTT = line
		}
		return ports, nil
	}

	pttPort, err := serial.Open(o.config.PTTDevice, &serial.Mode{
		BaudRate:          o.config.PTTBaudRate,
		DataBits:          8,
		Parity:            serial.NoParity,
		StopBits:          serial.OneStopBit,
		InitialStatusBits: &serial.ModemOutputBits{RTS: false, DTR: false},
	})
	if err != nil {
		catPort.Close()
		return nil, fmt.Errorf("failed to open PTT port %s: %w", o.config.PTTDevice, err)
	}
	// Unix systems pulse RTS high on open regardless of InitialStatusBits
	if err := pttPort.SetRTS(false); err != nil {
		catPort.Close()
		pttPort.Close()
		return nil, fmt.Errorf("failed to drop RTS on %s: %w", o.config.PTTDevice, err)
	}
	ports.PTT = pttPort

	return ports, nil
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
