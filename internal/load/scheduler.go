// Package load resolves which household loads are on and what they draw.
package load

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/noise"
	"microgrid_twin/internal/solar"
)

const demandJitter = 3.0

// Scheduler tracks manual toggles and the automatic time-of-day schedule.
// It is not safe for concurrent use; the engine serializes access.
type Scheduler struct {
	specs []model.LoadSpec
	index map[model.LoadClass]int
	watts []float64
	// on holds 1 for an active load and 0 otherwise, aligned with watts.
	on   []float64
	auto bool
}

// NewScheduler creates a scheduler with every load off and auto disabled.
func NewScheduler(specs []model.LoadSpec) *Scheduler {
	s := &Scheduler{
		specs: append([]model.LoadSpec(nil), specs...),
		index: make(map[model.LoadClass]int, len(specs)),
		watts: make([]float64, len(specs)),
		on:    make([]float64, len(specs)),
	}
	for i, spec := range s.specs {
		s.index[spec.Class] = i
		s.watts[i] = spec.Watts
	}
	return s
}

// Set switches a load manually. It returns false, changing nothing, for an
// unknown class or while the automatic schedule is in control.
func (s *Scheduler) Set(class model.LoadClass, on bool) bool {
	i, ok := s.index[class]
	if !ok || s.auto {
		return false
	}
	s.set(i, on)
	return true
}

// SetAuto enables or disables the automatic schedule.
func (s *Scheduler) SetAuto(enabled bool) {
	s.auto = enabled
}

// Auto reports whether the automatic schedule is in control.
func (s *Scheduler) Auto() bool {
	return s.auto
}

// Known reports whether class is part of the catalog.
func (s *Scheduler) Known(class model.LoadClass) bool {
	_, ok := s.index[class]
	return ok
}

// Resolve applies the automatic schedule for the simulated hour. The derived
// states replace the manual ones so they stay visible after auto is turned off.
func (s *Scheduler) Resolve(simHour float64) {
	if !s.auto {
		return
	}
	hour := int(math.Floor(solar.NormalizeHour(simHour)))
	for i, spec := range s.specs {
		s.set(i, spec.ActiveAt(hour))
	}
}

func (s *Scheduler) set(i int, on bool) {
	s.on[i] = 0
	if on {
		s.on[i] = 1
	}
}

// NominalWatts is the un-jittered sum of active loads.
func (s *Scheduler) NominalWatts() float64 {
	return floats.Dot(s.watts, s.on)
}

// Demand returns the total draw with ±3% fluctuation, never negative.
func (s *Scheduler) Demand(src noise.Source) float64 {
	w := noise.Jitter(src, s.NominalWatts(), demandJitter)
	if w < 0 {
		return 0
	}
	return w
}

// States returns a copy of the current on/off state per class.
func (s *Scheduler) States() map[model.LoadClass]bool {
	out := make(map[model.LoadClass]bool, len(s.specs))
	for i, spec := range s.specs {
		out[spec.Class] = s.on[i] == 1
	}
	return out
}

// Specs returns the load catalog in display order.
func (s *Scheduler) Specs() []model.LoadSpec {
	return append([]model.LoadSpec(nil), s.specs...)
}
