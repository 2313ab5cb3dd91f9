package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the ftx1d configuration
type Config struct {
	Radio struct {
		// Mock replaces the serial ports with a simulated transceiver
		Mock bool `yaml:"mock"`

		// CAT Control Parameters
		CATDevice    string `yaml:"cat_device"`
		CATBaudRate  int    `yaml:"cat_baud_rate"`
		TimeoutMS    int    `yaml:"timeout_ms"`
		TurnaroundMS int    `yaml:"turnaround_ms"`

		// PTT Configuration (RTS line of the secondary port)
		PTTDevice   string `yaml:"ptt_device"`
		PTTBaudRate int    `yaml:"ptt_baud_rate"`
		PTTGPIOPin  int    `yaml:"ptt_gpio_pin"`

		// AutoConnect opens the ports at startup
		AutoConnect bool `yaml:"auto_connect"`
	} `yaml:"radio"`

	Telemetry struct {
		RateHz float64 `yaml:"rate_hz"`
	} `yaml:"telemetry"`

	Resync struct {
		DelayMS int `yaml:"delay_ms"`
	} `yaml:"resync"`

	Rigctl struct {
		Enabled        bool   `yaml:"enabled"`
		BindAddress    string `yaml:"bind_address"`
		Port           int    `yaml:"port"`
		ClientTimeoutS int    `yaml:"client_timeout_s"`
	} `yaml:"rigctl"`

	Web struct {
		Enabled     bool   `yaml:"enabled"`
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
		TraceCAT   bool   `yaml:"trace_cat"`
	} `yaml:"logging"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	var config Config
	config.Rigctl.Enabled = true
	config.Web.Enabled = true
	config.Metrics.Enabled = true
	config.Logging.Console = true
	config.applyDefaults()
	return &config
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Radio.CATBaudRate == 0 {
		c.Radio.CATBaudRate = 38400
	}
	if c.Radio.PTTBaudRate == 0 {
		c.Radio.PTTBaudRate = 38400
	}
	if c.Radio.TimeoutMS == 0 {
		c.Radio.TimeoutMS = 1000
	}
	if c.Radio.TurnaroundMS == 0 {
		c.Radio.TurnaroundMS = 2
	}
	if c.Telemetry.RateHz == 0 {
		c.Telemetry.RateHz = 1.0
	}
	if c.Resync.DelayMS == 0 {
		c.Resync.DelayMS = 1000
	}
	if c.Rigctl.Port == 0 {
		c.Rigctl.Port = 4532
	}
	if c.Rigctl.BindAddress == "" {
		c.Rigctl.BindAddress = "127.0.0.1"
	}
	if c.Rigctl.ClientTimeoutS == 0 {
		c.Rigctl.ClientTimeoutS = 20
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Radio.Mock && c.Radio.AutoConnect && c.Radio.CATDevice == "" {
		return fmt.Errorf("radio cat_device is required unless mock is enabled")
	}
	if c.Radio.PTTGPIOPin < 0 {
		return fmt.Errorf("radio ptt_gpio_pin must not be negative")
	}
	if c.Radio.TimeoutMS < 0 {
		return fmt.Errorf("radio timeout_ms must not be negative")
	}
	if c.Telemetry.RateHz < 0.1 || c.Telemetry.RateHz > 5 {
		return fmt.Errorf("telemetry rate_hz must be between 0.1 and 5, got %g", c.Telemetry.RateHz)
	}
	if c.Resync.DelayMS < 0 {
		return fmt.Errorf("resync delay_ms must not be negative")
	}
	if c.Rigctl.Port < 1 || c.Rigctl.Port > 65535 {
		return fmt.Errorf("rigctl port %d out of range", c.Rigctl.Port)
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port %d out of range", c.Web.Port)
	}
	return nil
}

// CATTimeout returns the CAT response timeout
func (c *Config) CATTimeout() time.Duration {
	return time.Duration(c.Radio.TimeoutMS) * time.Millisecond
}

// Turnaround returns the pause between a CAT write and the first read
func (c *Config) Turnaround() time.Duration {
	return time.Duration(c.Radio.TurnaroundMS) * time.Millisecond
}

// ResyncDelay returns the debounce delay for full-state reads
func (c *Config) ResyncDelay() time.Duration {
	return time.Duration(c.Resync.DelayMS) * time.Millisecond
}

// RigctlClientTimeout returns the idle timeout for rigctl clients
func (c *Config) RigctlClientTimeout() time.Duration {
	return time.Duration(c.Rigctl.ClientTimeoutS) * time.Second
}
