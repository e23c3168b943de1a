// Package sensor provides panel-bus current sources for calibrated runs.
package sensor

import (
	"math"
	"sync"

	"microgrid_twin/internal/model"
)

// CurrentSensor measures the shared panel bus. Implementations must return 0,
// never an error, when no measurement is available.
type CurrentSensor interface {
	ReadCurrentMilliamps() float64
}

// None is the sensor used when no hardware is attached.
type None struct{}

func (None) ReadCurrentMilliamps() float64 { return 0 }

// Fixed always reports the same current.
type Fixed float64

func (f Fixed) ReadCurrentMilliamps() float64 { return float64(f) }

// Sanitize applies the fail-soft policy to a raw reading: negative and
// non-finite values read as 0 mA.
func Sanitize(mA float64) float64 {
	if math.IsNaN(mA) || math.IsInf(mA, 0) || mA < 0 {
		return 0
	}
	return mA
}

// Replay cycles through a recorded current series, one reading per call.
type Replay struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewReplay builds a replay sensor from ingested readings. Readings of other
// sensor types are ignored.
func NewReplay(readings []model.Reading) *Replay {
	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.Type != "" && r.Type != model.SensorPanelCurrent {
			continue
		}
		values = append(values, r.Value)
	}
	return &Replay{values: values}
}

// Len returns the number of recorded values.
func (r *Replay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

func (r *Replay) ReadCurrentMilliamps() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.next]
	r.next = (r.next + 1) % len(r.values)
	return Sanitize(v)
}
