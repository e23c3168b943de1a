package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJitter_Bounds(t *testing.T) {
	src := NewSource(42)
	for i := 0; i < 10000; i++ {
		v := Jitter(src, 200, 5)
		assert.GreaterOrEqual(t, v, 190.0)
		assert.LessOrEqual(t, v, 210.0)
	}
}

func TestJitter_Fixed(t *testing.T) {
	assert.InDelta(t, 100, Jitter(Fixed(0.5), 100, 12), 1e-9)
	assert.InDelta(t, 88, Jitter(Fixed(0), 100, 12), 1e-9)
	assert.InDelta(t, 0, Jitter(Fixed(0.9), 0, 12), 1e-9)
}

func TestCloud(t *testing.T) {
	// No event when the first draw is above the probability.
	assert.Equal(t, 0.8, Cloud(Fixed(0.5), 0.8))

	// Event fires, then the second draw picks the drop: 0 -> 40%, 1 -> 80%.
	s := &Sequence{Values: []float64{0.05, 0}}
	assert.InDelta(t, 0.6, Cloud(s, 1), 1e-9)

	s = &Sequence{Values: []float64{0.0, 0.999999}}
	assert.InDelta(t, 0.2, Cloud(s, 1), 1e-5)
}

func TestCloud_Frequency(t *testing.T) {
	src := NewSource(7)
	events := 0
	const n = 20000
	for i := 0; i < n; i++ {
		if Cloud(src, 1) < 1 {
			events++
		}
	}
	assert.InDelta(t, 0.10, float64(events)/n, 0.02)
}

func TestNewSource_Deterministic(t *testing.T) {
	a, b := NewSource(1), NewSource(1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}
