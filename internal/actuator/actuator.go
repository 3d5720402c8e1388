// Package actuator drives the binary outputs and the angular actuator of the
// peripheral. Drivers are pass-through: pin numbers are raw platform pin
// identifiers and are not range-checked here.
package actuator

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Servo angle limits in degrees
const (
	MinAngle = 0
	MaxAngle = 180
)

var (
	ErrUnknownPin = errors.New("unknown pin")
	ErrClosed     = errors.New("actuator closed")
)

// PinError reports a driver failure on a specific pin
type PinError struct {
	Pin int
	Op  string
	Err error
}

func (e *PinError) Error() string {
	return fmt.Sprintf("%s pin %d: %v", e.Op, e.Pin, e.Err)
}

func (e *PinError) Unwrap() error {
	return e.Err
}

// OutputDriver drives binary GPIO lines
type OutputDriver interface {
	SetLevel(pin int, high bool) error
	Level(pin int) (bool, error)
}

// ServoDriver drives the angular actuator
type ServoDriver interface {
	Write(angle int) error
	Read() int
}

// ServoTiming describes the pulse train for a hobby servo
type ServoTiming struct {
	MinPulse  time.Duration
	MaxPulse  time.Duration
	Frequency int // Hz
}

// Period returns the PWM period
func (t ServoTiming) Period() time.Duration {
	if t.Frequency <= 0 {
		return 0
	}
	return time.Second / time.Duration(t.Frequency)
}

// PulseWidth maps an angle onto [MinPulse, MaxPulse], clamping it to [MinAngle, MaxAngle]
func (t ServoTiming) PulseWidth(angle int) time.Duration {
	angle = ClampAngle(angle)
	span := t.MaxPulse - t.MinPulse
	return t.MinPulse + span*time.Duration(angle)/MaxAngle
}

// ClampAngle limits an angle to the servo travel
func ClampAngle(angle int) int {
	if angle < MinAngle {
		return MinAngle
	}
	if angle > MaxAngle {
		return MaxAngle
	}
	return angle
}

// Layer combines the output lines and the servo behind the operations the
// command dispatcher and the state encoder need.
type Layer struct {
	outputs OutputDriver
	servo   ServoDriver
	closer  func() error
	closed  atomic.Bool
	logger  *logrus.Logger
}

// NewLayer builds a Layer over the given drivers
func NewLayer(outputs OutputDriver, servo ServoDriver, logger *logrus.Logger) *Layer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Layer{outputs: outputs, servo: servo, logger: logger}
}

// SetOutput drives the line high (on) or low
func (l *Layer) SetOutput(line int, on bool) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if err := l.outputs.SetLevel(line, on); err != nil {
		return err
	}
	l.logger.WithFields(logrus.Fields{"line": line, "on": on}).Debug("Output set")
	return nil
}

// Output reports the current level of the line. Lines that cannot be read report low.
func (l *Layer) Output(line int) bool {
	high, err := l.outputs.Level(line)
	if err != nil {
		l.logger.WithFields(logrus.Fields{"line": line, "error": err}).Debug("Output read failed")
		return false
	}
	return high
}

// SetAngle commands the servo to the given angle in degrees
func (l *Layer) SetAngle(angle int) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if err := l.servo.Write(angle); err != nil {
		return err
	}
	l.logger.WithField("angle", l.servo.Read()).Debug("Servo moved")
	return nil
}

// Angle returns the last commanded servo angle
func (l *Layer) Angle() int {
	return l.servo.Read()
}

// Close releases backend resources. Later writes fail with ErrClosed.
func (l *Layer) Close() error {
	if !l.closed.CompareAndSwap(false, true) || l.closer == nil {
		return nil
	}
	return l.closer()
}
