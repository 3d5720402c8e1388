package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "ESP_BLE", cfg.DeviceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendSim, cfg.Backend)
	assert.True(t, cfg.Readvertise)
	assert.Equal(t, 5*time.Second, cfg.ReportInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 32, cfg.EventQueueSize)
	assert.Equal(t, 4, cfg.NotifyQueueSize)
	assert.Equal(t, Pins{OutputA: 25, OutputB: 26, Servo: 27}, cfg.Pins)
	assert.Equal(t, 500*time.Microsecond, cfg.Servo.MinPulse)
	assert.Equal(t, 2400*time.Microsecond, cfg.Servo.MaxPulse)
	assert.Equal(t, 50, cfg.Servo.FrequencyHz)
	assert.Equal(t, "6f59f19e-2f39-49de-8525-5d2045f4d999", cfg.UUIDs.ControlService)
	assert.Equal(t, "5e9f22d4-a305-4113-8fa2-55c5d497c3f2", cfg.UUIDs.WorkTime)

	require.NoError(t, cfg.Validate())
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		expected logrus.Level
	}{
		{name: "creates logger with debug level", logLevel: "debug", expected: logrus.DebugLevel},
		{name: "creates logger with info level", logLevel: "info", expected: logrus.InfoLevel},
		{name: "creates logger with warn level", logLevel: "warn", expected: logrus.WarnLevel},
		{name: "creates logger with error level", logLevel: "error", expected: logrus.ErrorLevel},
		{name: "falls back to info on garbage", logLevel: "loud", expected: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.expected, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "empty device name", mutate: func(c *Config) { c.DeviceName = "  " }, field: "device_name"},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "chatty" }, field: "log_level"},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "arduino" }, field: "backend"},
		{name: "zero report interval", mutate: func(c *Config) { c.ReportInterval = 0 }, field: "report_interval"},
		{name: "negative poll interval", mutate: func(c *Config) { c.PollInterval = -time.Second }, field: "poll_interval"},
		{name: "zero event queue", mutate: func(c *Config) { c.EventQueueSize = 0 }, field: "event_queue_size"},
		{name: "zero notify queue", mutate: func(c *Config) { c.NotifyQueueSize = 0 }, field: "notify_queue_size"},
		{name: "pin above byte range", mutate: func(c *Config) { c.Pins.OutputB = 300 }, field: "pins.output_b"},
		{name: "negative servo pin", mutate: func(c *Config) { c.Pins.Servo = -1 }, field: "pins.servo"},
		{name: "several bad pins report the first", mutate: func(c *Config) { c.Pins.OutputA, c.Pins.OutputB, c.Pins.Servo = 256, -3, 999 }, field: "pins.output_a"},
		{name: "inverted pulse range", mutate: func(c *Config) { c.Servo.MinPulse = 3 * time.Millisecond }, field: "servo.min_pulse"},
		{name: "zero frequency", mutate: func(c *Config) { c.Servo.FrequencyHz = 0 }, field: "servo.frequency_hz"},
		{name: "pulse longer than period", mutate: func(c *Config) { c.Servo.FrequencyHz = 500 }, field: "servo.max_pulse"},
		{name: "malformed uuid", mutate: func(c *Config) { c.UUIDs.ControlRequest = "not-a-uuid" }, field: "uuids.control_request"},
		{name: "duplicate uuid", mutate: func(c *Config) { c.UUIDs.WorkTime = c.UUIDs.WorkTimeService }, field: "uuids.work_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_StableFieldOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pins = Pins{OutputA: 25, OutputB: 1000, Servo: -1}

	for i := 0; i < 50; i++ {
		var verr *ValidationError
		require.ErrorAs(t, cfg.Validate(), &verr)
		require.Equal(t, "pins.output_b", verr.Field, "run %d", i)
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "servoble.yaml")
		content := `
device_name: Workbench
backend: periph
readvertise: false
report_interval: 2s
pins:
  output_a: 17
servo:
  max_pulse: 2500us
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "Workbench", cfg.DeviceName)
		assert.Equal(t, BackendPeriph, cfg.Backend)
		assert.False(t, cfg.Readvertise)
		assert.Equal(t, 2*time.Second, cfg.ReportInterval)
		assert.Equal(t, 17, cfg.Pins.OutputA)
		assert.Equal(t, 26, cfg.Pins.OutputB, "untouched fields MUST keep defaults")
		assert.Equal(t, 2500*time.Microsecond, cfg.Servo.MaxPulse)
		assert.Equal(t, 500*time.Microsecond, cfg.Servo.MinPulse)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pins: [1, 2"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config")
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backend: gpio\n"), 0o600))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}
