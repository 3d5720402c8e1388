package actuator

import (
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
)

// SimOutputs keeps pin levels in memory. Every pin exists and starts low,
// the way an unconfigured GPIO reads back on the board.
type SimOutputs struct {
	levels *hashmap.Map[int, bool]
}

// NewSimOutputs creates an in-memory output driver
func NewSimOutputs() *SimOutputs {
	return &SimOutputs{levels: hashmap.New[int, bool]()}
}

func (s *SimOutputs) SetLevel(pin int, high bool) error {
	s.levels.Set(pin, high)
	return nil
}

func (s *SimOutputs) Level(pin int) (bool, error) {
	high, _ := s.levels.Get(pin)
	return high, nil
}

// Pins returns the pins written so far with their levels
func (s *SimOutputs) Pins() map[int]bool {
	out := make(map[int]bool, s.levels.Len())
	s.levels.Range(func(pin int, high bool) bool {
		out[pin] = high
		return true
	})
	return out
}

// SimServo records the clamped angle and the pulse width it would emit
type SimServo struct {
	timing ServoTiming
	angle  atomic.Int32
	pulse  atomic.Int64
}

// NewSimServo creates an in-memory servo at 0 degrees
func NewSimServo(timing ServoTiming) *SimServo {
	s := &SimServo{timing: timing}
	s.pulse.Store(int64(timing.PulseWidth(0)))
	return s
}

func (s *SimServo) Write(angle int) error {
	angle = ClampAngle(angle)
	s.angle.Store(int32(angle))
	s.pulse.Store(int64(s.timing.PulseWidth(angle)))
	return nil
}

func (s *SimServo) Read() int {
	return int(s.angle.Load())
}

// Pulse returns the pulse width matching the current angle
func (s *SimServo) Pulse() time.Duration {
	return time.Duration(s.pulse.Load())
}
