package command

import (
	"github.com/sirupsen/logrus"
)

// Actuator is the part of the actuator layer commands drive
type Actuator interface {
	SetOutput(line int, on bool) error
	SetAngle(angle int) error
}

// Result tells how a dispatched command was handled
type Result int

const (
	Applied Result = iota
	Ignored        // unknown opcode, no actuator effect
	Failed         // actuator driver returned an error
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case Ignored:
		return "ignored"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// Dispatcher applies decoded commands to an Actuator
type Dispatcher struct {
	actuator Actuator
	logger   *logrus.Logger
}

// NewDispatcher creates a dispatcher driving actuator
func NewDispatcher(actuator Actuator, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{actuator: actuator, logger: logger}
}

// Dispatch performs the actuator effect of cmd. The error is non-nil only for Failed.
func (d *Dispatcher) Dispatch(cmd Command) (Result, error) {
	log := d.logger.WithFields(logrus.Fields{
		"opcode":   cmd.Opcode.String(),
		"operand0": cmd.Operand0,
		"operand1": cmd.Operand1,
	})

	var err error
	switch cmd.Opcode {
	case OpEnableOutput:
		err = d.actuator.SetOutput(int(cmd.Operand0), cmd.Operand1 != 0)
	case OpSetAngle:
		err = d.actuator.SetAngle(int(cmd.Operand0))
	default:
		log.Debug("Ignoring unknown opcode")
		return Ignored, nil
	}

	if err != nil {
		return Failed, err
	}
	log.Debug("Command applied")
	return Applied, nil
}
