// Package telemetry decides when the elapsed-time report is due and encodes it.
package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the reporting period of the WorkTime attribute
const DefaultInterval = 5 * time.Second

// PayloadSize is the length of an encoded WorkTime value
const PayloadSize = 4

var ErrInvalidPayload = errors.New("invalid work time payload")

// Clock reports the time elapsed since boot
type Clock interface {
	Uptime() time.Duration
}

// SystemClock measures uptime on the monotonic clock from its creation
type SystemClock struct {
	boot time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{boot: time.Now()}
}

func (c *SystemClock) Uptime() time.Duration {
	return time.Since(c.boot)
}

// Reporter fires once every time strictly more than Interval has elapsed
// since the previous tick. The first tick is measured from boot.
type Reporter struct {
	Interval time.Duration
	last     time.Duration
}

func NewReporter(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{Interval: interval}
}

// Poll advances the reporter to now and returns the elapsed seconds when a tick is due
func (r *Reporter) Poll(now time.Duration) (seconds uint32, due bool) {
	if now-r.last <= r.Interval {
		return 0, false
	}
	r.last = now
	return uint32(now / time.Second), true
}

// LastTick returns the uptime of the previous tick
func (r *Reporter) LastTick() time.Duration {
	return r.last
}

// EncodeSeconds packs the value as a little-endian uint32
func EncodeSeconds(seconds uint32) []byte {
	b := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint32(b, seconds)
	return b
}

// DecodeSeconds unpacks a WorkTime payload
func DecodeSeconds(b []byte) (uint32, error) {
	if len(b) != PayloadSize {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPayload, len(b), PayloadSize)
	}
	return binary.LittleEndian.Uint32(b), nil
}
