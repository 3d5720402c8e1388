package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Supported actuator backends
const (
	BackendSim    = "sim"
	BackendPeriph = "periph"
)

// Pins holds the platform pin numbers of the actuators
type Pins struct {
	OutputA int `yaml:"output_a" json:"output_a" default:"25"`
	OutputB int `yaml:"output_b" json:"output_b" default:"26"`
	Servo   int `yaml:"servo" json:"servo" default:"27"`
}

// Servo describes the pulse train of the angular actuator
type Servo struct {
	MinPulse    time.Duration `yaml:"min_pulse" json:"min_pulse" default:"500us"`
	MaxPulse    time.Duration `yaml:"max_pulse" json:"max_pulse" default:"2400us"`
	FrequencyHz int           `yaml:"frequency_hz" json:"frequency_hz" default:"50"`
}

// UUIDs holds the GATT service and characteristic identifiers
type UUIDs struct {
	ControlService  string `yaml:"control_service" json:"control_service" default:"6f59f19e-2f39-49de-8525-5d2045f4d999"`
	ControlRequest  string `yaml:"control_request" json:"control_request" default:"420ece2e-c66c-4059-9ceb-5fc19251e453"`
	ControlResponse string `yaml:"control_response" json:"control_response" default:"a9bf2905-ee69-4baa-8960-4358a9e3a558"`
	WorkTimeService string `yaml:"work_time_service" json:"work_time_service" default:"f790145d-61dd-4464-9414-c058448ee9f2"`
	WorkTime        string `yaml:"work_time" json:"work_time" default:"5e9f22d4-a305-4113-8fa2-55c5d497c3f2"`
}

// Config holds application configuration
type Config struct {
	DeviceName      string        `yaml:"device_name" json:"device_name" default:"ESP_BLE"`
	LogLevel        string        `yaml:"log_level" json:"log_level" default:"info"`
	Backend         string        `yaml:"backend" json:"backend" default:"sim"`
	Readvertise     bool          `yaml:"readvertise" json:"readvertise" default:"true"`
	ReportInterval  time.Duration `yaml:"report_interval" json:"report_interval" default:"5s"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval" default:"100ms"`
	EventQueueSize  int           `yaml:"event_queue_size" json:"event_queue_size" default:"32"`
	NotifyQueueSize int           `yaml:"notify_queue_size" json:"notify_queue_size" default:"4"`

	Pins  Pins  `yaml:"pins" json:"pins"`
	Servo Servo `yaml:"servo" json:"servo"`
	UUIDs UUIDs `yaml:"uuids" json:"uuids"`
}

// ValidationError reports a configuration field holding an unusable value
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ErrInvalidConfig matches any *ValidationError via errors.Is
var ErrInvalidConfig = errors.New("invalid configuration")

// Is allows errors.Is(err, ErrInvalidConfig)
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and returns the first problem found
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DeviceName) == "" {
		return &ValidationError{Field: "device_name", Msg: "must not be empty"}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &ValidationError{Field: "log_level", Msg: err.Error()}
	}
	if c.Backend != BackendSim && c.Backend != BackendPeriph {
		return &ValidationError{Field: "backend", Msg: fmt.Sprintf("%q is not one of %s, %s", c.Backend, BackendSim, BackendPeriph)}
	}
	if c.ReportInterval <= 0 {
		return &ValidationError{Field: "report_interval", Msg: "must be positive"}
	}
	if c.PollInterval <= 0 {
		return &ValidationError{Field: "poll_interval", Msg: "must be positive"}
	}
	if c.EventQueueSize <= 0 {
		return &ValidationError{Field: "event_queue_size", Msg: "must be positive"}
	}
	if c.NotifyQueueSize <= 0 {
		return &ValidationError{Field: "notify_queue_size", Msg: "must be positive"}
	}

	pins := []struct {
		field string
		value int
	}{
		{"pins.output_a", c.Pins.OutputA},
		{"pins.output_b", c.Pins.OutputB},
		{"pins.servo", c.Pins.Servo},
	}
	for _, pin := range pins {
		// Snapshots carry the pin number in a single byte
		if pin.value < 0 || pin.value > 255 {
			return &ValidationError{Field: pin.field, Msg: fmt.Sprintf("%d is outside 0-255", pin.value)}
		}
	}

	if c.Servo.MinPulse <= 0 || c.Servo.MinPulse >= c.Servo.MaxPulse {
		return &ValidationError{Field: "servo.min_pulse", Msg: "must be positive and below servo.max_pulse"}
	}
	if c.Servo.FrequencyHz <= 0 {
		return &ValidationError{Field: "servo.frequency_hz", Msg: "must be positive"}
	}
	if period := time.Second / time.Duration(c.Servo.FrequencyHz); c.Servo.MaxPulse >= period {
		return &ValidationError{Field: "servo.max_pulse", Msg: fmt.Sprintf("must be shorter than the %s period", period)}
	}

	ids := []struct {
		field string
		value string
	}{
		{"uuids.control_service", c.UUIDs.ControlService},
		{"uuids.control_request", c.UUIDs.ControlRequest},
		{"uuids.control_response", c.UUIDs.ControlResponse},
		{"uuids.work_time_service", c.UUIDs.WorkTimeService},
		{"uuids.work_time", c.UUIDs.WorkTime},
	}
	seen := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id.value)
		if err != nil {
			return &ValidationError{Field: id.field, Msg: err.Error()}
		}
		if other, dup := seen[parsed]; dup {
			return &ValidationError{Field: id.field, Msg: "duplicates " + other}
		}
		seen[parsed] = id.field
	}

	return nil
}

// Level returns the parsed log level, InfoLevel if unparsable
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
