package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dougsko/ftx1d/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelTrace, ParseLogLevel("trace"))
	assert.Equal(t, LevelInfo, ParseLogLevel("bogus"))
	assert.Equal(t, "ERROR", LevelError.String())
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn, false)

	logger.Info("cat", "hidden")
	logger.Warn("cat", "shown", Fields{"port": "/dev/ttyUSB0"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] cat: shown [port=/dev/ttyUSB0]")
}

func TestLoggerStructured(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug, true)

	logger.Errorf("bridge", "client %s dropped", "127.0.0.1")

	out := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"component":"bridge"`)
	assert.Contains(t, out, `"message":"client 127.0.0.1 dropped"`)
}

func TestLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelError, false)

	logger.Tracef("cat", "TX %s", "FA;")
	assert.Empty(t, buf.String())

	logger.SetTraceCAT(true)
	logger.Tracef("cat", "TX %s", "FA;")
	assert.Contains(t, buf.String(), "[TRACE] cat: TX FA;")
}

func TestNewLoggerWithFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "ftx1d.log")
	cfg.Logging.Console = false

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("main", "started")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "main: started")
}
