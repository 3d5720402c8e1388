package actuator

import (
	"fmt"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PinLookup resolves a pin by its registry name (e.g. "GPIO25")
type PinLookup func(name string) gpio.PinIO

// PinName returns the periph registry name of a platform pin number
func PinName(pin int) string {
	return fmt.Sprintf("GPIO%d", pin)
}

// PeriphOutputs drives GPIO lines through periph.io
type PeriphOutputs struct {
	lookup PinLookup
	pins   *hashmap.Map[int, gpio.PinIO]
}

// NewPeriphOutputs creates an output driver resolving pins with lookup (gpioreg.ByName when nil)
func NewPeriphOutputs(lookup PinLookup) *PeriphOutputs {
	if lookup == nil {
		lookup = gpioreg.ByName
	}
	return &PeriphOutputs{lookup: lookup, pins: hashmap.New[int, gpio.PinIO]()}
}

func (p *PeriphOutputs) pin(n int) (gpio.PinIO, error) {
	if pin, ok := p.pins.Get(n); ok {
		return pin, nil
	}
	pin := p.lookup(PinName(n))
	if pin == nil {
		return nil, &PinError{Pin: n, Op: "lookup", Err: ErrUnknownPin}
	}
	p.pins.Set(n, pin)
	return pin, nil
}

func (p *PeriphOutputs) SetLevel(n int, high bool) error {
	pin, err := p.pin(n)
	if err != nil {
		return err
	}
	if err := pin.Out(gpio.Level(high)); err != nil {
		return &PinError{Pin: n, Op: "write", Err: err}
	}
	return nil
}

func (p *PeriphOutputs) Level(n int) (bool, error) {
	pin, err := p.pin(n)
	if err != nil {
		return false, err
	}
	return pin.Read() == gpio.High, nil
}

// Halt stops every pin touched so far
func (p *PeriphOutputs) Halt() error {
	var firstErr error
	p.pins.Range(func(n int, pin gpio.PinIO) bool {
		if err := pin.Halt(); err != nil && firstErr == nil {
			firstErr = &PinError{Pin: n, Op: "halt", Err: err}
		}
		return true
	})
	return firstErr
}

// PeriphServo drives a hobby servo with hardware PWM through periph.io
type PeriphServo struct {
	pinNum int
	pin    gpio.PinIO
	timing ServoTiming
	angle  atomic.Int32
}

// NewPeriphServo resolves the servo pin; lookup defaults to gpioreg.ByName
func NewPeriphServo(pinNum int, timing ServoTiming, lookup PinLookup) (*PeriphServo, error) {
	if lookup == nil {
		lookup = gpioreg.ByName
	}
	pin := lookup(PinName(pinNum))
	if pin == nil {
		return nil, &PinError{Pin: pinNum, Op: "lookup", Err: ErrUnknownPin}
	}
	return &PeriphServo{pinNum: pinNum, pin: pin, timing: timing}, nil
}

// Duty returns the PWM duty cycle producing the pulse for angle
func (s *PeriphServo) Duty(angle int) gpio.Duty {
	period := s.timing.Period()
	if period <= 0 {
		return 0
	}
	pulse := s.timing.PulseWidth(angle)
	return gpio.Duty(int64(gpio.DutyMax) * int64(pulse) / int64(period))
}

func (s *PeriphServo) Write(angle int) error {
	angle = ClampAngle(angle)
	freq := physic.Frequency(s.timing.Frequency) * physic.Hertz
	if err := s.pin.PWM(s.Duty(angle), freq); err != nil {
		return &PinError{Pin: s.pinNum, Op: "pwm", Err: err}
	}
	s.angle.Store(int32(angle))
	return nil
}

func (s *PeriphServo) Read() int {
	return int(s.angle.Load())
}

// Halt stops the PWM output
func (s *PeriphServo) Halt() error {
	return s.pin.Halt()
}

// hostInit is replaced in tests
var hostInit = func() error {
	_, err := host.Init()
	return err
}
