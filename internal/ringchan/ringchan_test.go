package ringchan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_OverwritesOldest(t *testing.T) {
	r := New[int](3)

	for i := 0; i < 3; i++ {
		assert.False(t, r.Send(i))
	}
	assert.True(t, r.Send(3))
	assert.True(t, r.Send(4))

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())

	r.Close()
	var got []int
	for v := range r.C() {
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)
	assert.Equal(t, Stats{Written: 5, Overwritten: 2}, r.Stats())
}

func TestRing_ConcurrentReader(t *testing.T) {
	r := New[int](2)

	var wg sync.WaitGroup
	var received []int
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := range r.C() {
			received = append(received, v)
		}
	}()

	for i := 0; i < 1000; i++ {
		r.Send(i)
	}
	r.Close()
	wg.Wait()

	require.NotEmpty(t, received)
	assert.Equal(t, 999, received[len(received)-1], "the newest value MUST always survive")
	for i := 1; i < len(received); i++ {
		assert.Less(t, received[i-1], received[i], "order MUST be preserved")
	}

	stats := r.Stats()
	assert.Equal(t, int64(1000), stats.Written)
	assert.Equal(t, int64(1000), int64(len(received))+stats.Overwritten)
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
