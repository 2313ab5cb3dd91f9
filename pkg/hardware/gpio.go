package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dougsko/ftx1d/pkg/logging"
)

// DefaultGPIOBase is the Linux sysfs GPIO tree
const DefaultGPIOBase = "/sys/class/gpio"

// GPIOLine keys the transmitter through a sysfs GPIO output instead of the
// RTS line of a second serial port. It satisfies cat.LinePort.
type GPIOLine struct {
	base   string
	pin    int
	mutex  sync.Mutex
	closed bool
}

// OpenGPIOLine exports pin under base, makes it an output and drives it low
func OpenGPIOLine(base string, pin int) (*GPIOLine, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("invalid GPIO pin %d", pin)
	}
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, fmt.Errorf("GPIO not available at %s", base)
	}

	g := &GPIOLine{base: base, pin: pin}
	if err := g.export(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(g.path("direction"), []byte("out"), 0644); err != nil {
		return nil, fmt.Errorf("failed to set pin %d direction: %w", pin, err)
	}
	if err := g.write(false); err != nil {
		return nil, err
	}

	logging.Infof("gpio", "PTT on pin %d", pin)
	return g, nil
}

// SetRTS drives the pin high to key and low to unkey
func (g *GPIOLine) SetRTS(on bool) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.closed {
		return errPortClosed
	}
	return g.write(on)
}

// Close drops the pin and unexports it
func (g *GPIOLine) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	g.write(false)
	if err := os.WriteFile(filepath.Join(g.base, "unexport"), []byte(strconv.Itoa(g.pin)), 0644); err != nil {
		return fmt.Errorf("failed to unexport GPIO pin %d: %w", g.pin, err)
	}
	return nil
}

func (g *GPIOLine) path(name string) string {
	return filepath.Join(g.base, fmt.Sprintf("gpio%d", g.pin), name)
}

func (g *GPIOLine) write(on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	if err := os.WriteFile(g.path("value"), []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to set pin %d value: %w", g.pin, err)
	}
	return nil
}

// export is a no-op when the pin directory already exists
func (g *GPIOLine) export() error {
	pinDir := filepath.Dir(g.path("value"))
	if _, err := os.Stat(pinDir); err == nil {
		return nil
	}

	if err := os.WriteFile(filepath.Join(g.base, "export"), []byte(strconv.Itoa(g.pin)), 0644); err != nil {
		return fmt.Errorf("failed to export GPIO pin %d: %w", g.pin, err)
	}

	// The kernel creates the directory asynchronously
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(pinDir); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("pin %d directory did not appear after export", g.pin)
}
