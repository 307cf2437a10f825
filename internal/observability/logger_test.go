package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/stain/internal/config"
)

// initTestLogger initializes the global logger against an in-memory buffer
// and restores the pristine state when the test ends.
func initTestLogger(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := new(bytes.Buffer)
	Initialize(cfg, zapcore.AddSync(buf))
	return buf
}

func TestInitialize_ConsoleFormat(t *testing.T) {
	buf := initTestLogger(t, config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "TestService",
		Colors:      config.ColorConfig{Info: "green"},
	})

	GetLogger().Info("This is a test message.")

	output := buf.String()
	assert.Contains(t, output, "INFO", "output should contain the log level")
	assert.Contains(t, output, "This is a test message.")
	assert.Contains(t, output, colorGreen, "info level should be colorized green")
	assert.Contains(t, output, colorReset)
	assert.Contains(t, output, "TestService.", "logger name is appended with a trailing dot")
}

func TestInitialize_JSONFormat(t *testing.T) {
	buf := initTestLogger(t, config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "JSONTest",
	})

	GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "log output should be valid JSON")
	assert.Equal(t, "WARN", logEntry["level"])
	assert.Equal(t, "JSONTest", logEntry["logger"])
	assert.Equal(t, "This is a JSON message.", logEntry["msg"])
	assert.Equal(t, "value", logEntry["key"])
}

func TestInitialize_LevelFiltering(t *testing.T) {
	buf := initTestLogger(t, config.LoggerConfig{
		Level: "error", Format: "json", ServiceName: "lvl",
	})

	GetLogger().Info("quiet")
	GetLogger().Error("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestInitialize_InvalidLevelFallsBackToInfo(t *testing.T) {
	buf := initTestLogger(t, config.LoggerConfig{
		Level: "chatty", Format: "json", ServiceName: "lvl",
	})

	GetLogger().Debug("below default")
	GetLogger().Info("at default")

	assert.NotContains(t, buf.String(), "below default")
	assert.Contains(t, buf.String(), "at default")
}

func TestInitialize_FileLogging(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "stain.log")
	buf := initTestLogger(t, config.LoggerConfig{
		Level:   "debug",
		Format:  "console",
		LogFile: logPath,
		MaxSize: 1, // MB
	})

	GetLogger().Error("This should go to the file.")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "This should go to the file.")

	// The file core encodes JSON regardless of the console format.
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &entry))
	assert.Equal(t, "ERROR", entry["level"])

	assert.Contains(t, buf.String(), "This should go to the file.",
		"console core still receives the entry")
}

func TestInitialize_OnlyOnce(t *testing.T) {
	buf := initTestLogger(t, config.LoggerConfig{
		Level: "info", Format: "json", ServiceName: "First",
	})

	// A second initialization must not replace the live logger.
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"},
		zapcore.AddSync(new(bytes.Buffer)))

	GetLogger().Info("test")

	assert.Contains(t, buf.String(), "First")
	assert.NotContains(t, buf.String(), "Second")
}

func TestGetLogger(t *testing.T) {
	t.Run("falls back before initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		require.NotNil(t, GetLogger())
	})

	t.Run("returns the stored logger after initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "json", ServiceName: "GlobalTest"})
		assert.Equal(t, globalLogger.Load(), GetLogger())
	})
}

func TestSync(t *testing.T) {
	// Sync without an initialized logger is a no-op.
	ResetForTest()
	t.Cleanup(ResetForTest)
	Sync()

	// Sync after logging against a buffer must not error out loud.
	buf := initTestLogger(t, config.LoggerConfig{
		Level: "info", Format: "json", ServiceName: "sync",
	})
	GetLogger().Info("flushed")
	Sync()
	assert.Contains(t, buf.String(), "flushed")
}
