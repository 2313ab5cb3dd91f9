package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ftx1d.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Valid Config", func(t *testing.T) {
		path := writeConfig(t, `
radio:
  cat_device: "/dev/ttyUSB0"
  cat_baud_rate: 9600
  ptt_device: "/dev/ttyUSB1"
  timeout_ms: 500

telemetry:
  rate_hz: 2.5

resync:
  delay_ms: 250

rigctl:
  enabled: true
  bind_address: "0.0.0.0"
  port: 4575

web:
  port: 9090

logging:
  level: "debug"
  trace_cat: true
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "/dev/ttyUSB0", cfg.Radio.CATDevice)
		assert.Equal(t, 9600, cfg.Radio.CATBaudRate)
		assert.Equal(t, "/dev/ttyUSB1", cfg.Radio.PTTDevice)
		assert.Equal(t, 500*time.Millisecond, cfg.CATTimeout())
		assert.Equal(t, 2.5, cfg.Telemetry.RateHz)
		assert.Equal(t, 250*time.Millisecond, cfg.ResyncDelay())
		assert.Equal(t, "0.0.0.0", cfg.Rigctl.BindAddress)
		assert.Equal(t, 4575, cfg.Rigctl.Port)
		assert.Equal(t, 9090, cfg.Web.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.True(t, cfg.Logging.TraceCAT)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Defaults Applied", func(t *testing.T) {
		path := writeConfig(t, "radio:\n  mock: true\n")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.True(t, cfg.Radio.Mock)
		assert.Equal(t, 38400, cfg.Radio.CATBaudRate)
		assert.Equal(t, time.Second, cfg.CATTimeout())
		assert.Equal(t, 2*time.Millisecond, cfg.Turnaround())
		assert.Equal(t, 1.0, cfg.Telemetry.RateHz)
		assert.Equal(t, time.Second, cfg.ResyncDelay())
		assert.True(t, cfg.Rigctl.Enabled)
		assert.Equal(t, "127.0.0.1", cfg.Rigctl.BindAddress)
		assert.Equal(t, 4532, cfg.Rigctl.Port)
		assert.Equal(t, 20*time.Second, cfg.RigctlClientTimeout())
		assert.Equal(t, 8080, cfg.Web.Port)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("Explicit Disable Survives Defaults", func(t *testing.T) {
		path := writeConfig(t, "rigctl:\n  enabled: false\nweb:\n  enabled: false\n")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.False(t, cfg.Rigctl.Enabled)
		assert.False(t, cfg.Web.Enabled)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		path := writeConfig(t, "radio: [unclosed\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Defaults Are Valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("Auto Connect Needs Device", func(t *testing.T) {
		cfg := Default()
		cfg.Radio.AutoConnect = true
		assert.Error(t, cfg.Validate())

		cfg.Radio.Mock = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("GPIO Pin", func(t *testing.T) {
		cfg := Default()
		cfg.Radio.PTTGPIOPin = -4
		assert.Error(t, cfg.Validate())
	})

	t.Run("Telemetry Rate Bounds", func(t *testing.T) {
		cfg := Default()
		cfg.Telemetry.RateHz = 10
		assert.Error(t, cfg.Validate())

		cfg.Telemetry.RateHz = 0.05
		assert.Error(t, cfg.Validate())
	})

	t.Run("Port Bounds", func(t *testing.T) {
		cfg := Default()
		cfg.Rigctl.Port = 70000
		assert.Error(t, cfg.Validate())
	})
}
