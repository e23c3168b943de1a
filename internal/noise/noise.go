// Package noise holds the random perturbations applied to simulated readings.
package noise

import "math/rand/v2"

// Source yields uniform values in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded PCG-backed source.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

const (
	cloudProbability = 0.10
	cloudMinDrop     = 0.40
	cloudMaxDrop     = 0.80
)

// Jitter scales value by a factor drawn uniformly from [1-pct/100, 1+pct/100).
func Jitter(src Source, value, pct float64) float64 {
	u := (2*src.Float64() - 1) * pct
	return value * (1 + u/100)
}

// Cloud applies a passing-cloud event with 10% probability, dropping
// irradiance by 40-80%. It always consumes one draw, and a second one when
// the event fires.
func Cloud(src Source, irradiance float64) float64 {
	if src.Float64() >= cloudProbability {
		return irradiance
	}
	drop := cloudMinDrop + (cloudMaxDrop-cloudMinDrop)*src.Float64()
	return irradiance * (1 - drop)
}

// Fixed is a Source that always returns the same value. 0.5 makes Jitter an
// identity and suppresses clouds.
type Fixed float64

func (f Fixed) Float64() float64 { return float64(f) }

// Sequence replays values in order, wrapping around.
type Sequence struct {
	Values []float64
	i      int
}

func (s *Sequence) Float64() float64 {
	if len(s.Values) == 0 {
		return 0.5
	}
	v := s.Values[s.i%len(s.Values)]
	s.i++
	return v
}
