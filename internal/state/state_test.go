package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	lines map[int]bool
	angle int
}

func (f fakeReader) Output(line int) bool { return f.lines[line] }
func (f fakeReader) Angle() int           { return f.angle }

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		reader   fakeReader
		expected []byte
	}{
		{
			name:     "all idle",
			reader:   fakeReader{},
			expected: []byte{25, 0, 26, 0, 0},
		},
		{
			name:     "first led on",
			reader:   fakeReader{lines: map[int]bool{25: true}},
			expected: []byte{25, 1, 26, 0, 0},
		},
		{
			name:     "both leds on, servo centered",
			reader:   fakeReader{lines: map[int]bool{25: true, 26: true}, angle: 90},
			expected: []byte{25, 1, 26, 1, 90},
		},
		{
			name:     "servo at full travel",
			reader:   fakeReader{lines: map[int]bool{26: true}, angle: 180},
			expected: []byte{25, 0, 26, 1, 180},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.reader, 25, 26).Bytes()
			assert.Len(t, got, SnapshotSize)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecode_ReproducesEncodedState(t *testing.T) {
	for _, a := range []bool{false, true} {
		for _, b := range []bool{false, true} {
			for angle := 0; angle <= 180; angle += 30 {
				r := fakeReader{lines: map[int]bool{25: a, 26: b}, angle: angle}
				encoded := Encode(r, 25, 26)

				decoded, err := Decode(encoded.Bytes())
				require.NoError(t, err)
				assert.Equal(t, encoded, decoded)
				assert.Equal(t, a, decoded.ValueA)
				assert.Equal(t, b, decoded.ValueB)
				assert.Equal(t, uint8(angle), decoded.Angle)
			}
		}
	}
}

func TestDecode_InvalidLength(t *testing.T) {
	for _, payload := range [][]byte{nil, {25, 1, 26, 0}, {25, 1, 26, 0, 0, 0}} {
		_, err := Decode(payload)
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	}
}

func TestSnapshot_String(t *testing.T) {
	s := Snapshot{LineA: 25, ValueA: true, LineB: 26, Angle: 90}
	assert.Equal(t, "LED 25: 1, LED 26: 0, Servo: 90", s.String())
}
