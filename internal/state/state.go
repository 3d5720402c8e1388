// Package state encodes the device state snapshot pushed on the Control
// Response attribute and decodes it on the client side.
package state

import (
	"errors"
	"fmt"
)

// SnapshotSize is the exact length of an encoded snapshot
const SnapshotSize = 5

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Reader exposes the actuator readings a snapshot is built from
type Reader interface {
	Output(line int) bool
	Angle() int
}

// Snapshot is the device state at a single instant
type Snapshot struct {
	LineA  uint8
	ValueA bool
	LineB  uint8
	ValueB bool
	Angle  uint8
}

// Encode reads both output lines and the servo angle
func Encode(r Reader, lineA, lineB int) Snapshot {
	return Snapshot{
		LineA:  uint8(lineA),
		ValueA: r.Output(lineA),
		LineB:  uint8(lineB),
		ValueB: r.Output(lineB),
		Angle:  uint8(r.Angle()),
	}
}

// Bytes packs the snapshot as [lineA, valueA, lineB, valueB, angle]
func (s Snapshot) Bytes() []byte {
	return []byte{s.LineA, boolByte(s.ValueA), s.LineB, boolByte(s.ValueB), s.Angle}
}

// Decode unpacks a Response payload. Any nonzero value byte reads as on.
func Decode(b []byte) (Snapshot, error) {
	if len(b) != SnapshotSize {
		return Snapshot{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSnapshot, len(b), SnapshotSize)
	}
	return Snapshot{
		LineA:  b[0],
		ValueA: b[1] != 0,
		LineB:  b[2],
		ValueB: b[3] != 0,
		Angle:  b[4],
	}, nil
}

func (s Snapshot) String() string {
	return fmt.Sprintf("LED %d: %d, LED %d: %d, Servo: %d",
		s.LineA, boolByte(s.ValueA), s.LineB, boolByte(s.ValueB), s.Angle)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
