// Package command decodes Control Request payloads and applies them to the
// actuator layer.
package command

import (
	"errors"
	"fmt"
)

// Opcode selects the actuator operation of a request
type Opcode uint8

const (
	// OpEnableOutput drives a raw pin: operand0 is the pin, operand1 nonzero means on
	OpEnableOutput Opcode = 0x1
	// OpSetAngle moves the servo: operand0 is the angle in degrees
	OpSetAngle Opcode = 0x2
)

// MinPayloadSize is the shortest request that decodes
const MinPayloadSize = 3

func (o Opcode) String() string {
	switch o {
	case OpEnableOutput:
		return "enable-output"
	case OpSetAngle:
		return "set-angle"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(o))
	}
}

// Known reports whether the opcode has an actuator effect
func (o Opcode) Known() bool {
	return o == OpEnableOutput || o == OpSetAngle
}

// Command is a decoded request. It lives for a single dispatch.
type Command struct {
	Opcode   Opcode
	Operand0 uint8
	Operand1 uint8
}

var ErrMalformedCommand = errors.New("malformed command")

// MalformedError reports a request too short to decode
type MalformedError struct {
	Len int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %d bytes, need at least %d", ErrMalformedCommand, e.Len, MinPayloadSize)
}

// Is allows errors.Is(err, ErrMalformedCommand)
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedCommand
}

// Decode reads [opcode, operand0, operand1]. Trailing bytes are ignored.
func Decode(b []byte) (Command, error) {
	if len(b) < MinPayloadSize {
		return Command{}, &MalformedError{Len: len(b)}
	}
	return Command{
		Opcode:   Opcode(b[0]),
		Operand0: b[1],
		Operand1: b[2],
	}, nil
}

// Bytes encodes the command the way a client writes it
func (c Command) Bytes() []byte {
	return []byte{byte(c.Opcode), c.Operand0, c.Operand1}
}
