package actuator

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/servoble/pkg/config"
)

// Open builds the actuator layer for the configured backend
func Open(cfg *config.Config, logger *logrus.Logger) (*Layer, error) {
	if logger == nil {
		logger = logrus.New()
	}
	timing := ServoTiming{
		MinPulse:  cfg.Servo.MinPulse,
		MaxPulse:  cfg.Servo.MaxPulse,
		Frequency: cfg.Servo.FrequencyHz,
	}

	switch cfg.Backend {
	case config.BackendSim:
		logger.Info("Using simulated actuators")
		return NewLayer(NewSimOutputs(), NewSimServo(timing), logger), nil

	case config.BackendPeriph:
		return openPeriph(cfg, timing, nil, logger)

	default:
		return nil, fmt.Errorf("unsupported actuator backend %q", cfg.Backend)
	}
}

func openPeriph(cfg *config.Config, timing ServoTiming, lookup PinLookup, logger *logrus.Logger) (*Layer, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("failed to initialize GPIO host: %w", err)
	}

	outputs := NewPeriphOutputs(lookup)
	for _, pin := range []int{cfg.Pins.OutputA, cfg.Pins.OutputB} {
		if err := outputs.SetLevel(pin, false); err != nil {
			return nil, fmt.Errorf("failed to configure output: %w", err)
		}
	}

	servo, err := NewPeriphServo(cfg.Pins.Servo, timing, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to configure servo: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"output_a": PinName(cfg.Pins.OutputA),
		"output_b": PinName(cfg.Pins.OutputB),
		"servo":    PinName(cfg.Pins.Servo),
	}).Info("Using periph.io actuators")

	layer := NewLayer(outputs, servo, logger)
	layer.closer = func() error {
		return errors.Join(outputs.Halt(), servo.Halt())
	}
	return layer, nil
}
