// Package store keeps the telemetry history of recent runs in memory.
package store

import (
	"sort"
	"sync"
	"time"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/simulator"
)

// DefaultMaxRuns bounds how many runs are retained.
const DefaultMaxRuns = 16

// Run describes one simulation run.
type Run struct {
	ID              string     `json:"runId"`
	Mode            model.Mode `json:"mode"`
	DurationSeconds int        `json:"durationSeconds"`
	ActivePanels    int        `json:"activePanels"`
	ActiveCells     int        `json:"activeCells"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         time.Time  `json:"endedAt,omitzero"`
	Completed       bool       `json:"completed"`
	Samples         int        `json:"samples"`
}

// TimeRange is the wall-clock span covered by a run's samples.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type history struct {
	run     Run
	samples []model.Sample // sorted by timestamp
}

// Store holds samples in memory, indexed by run ID. Once more than maxRuns
// runs are held the oldest is evicted.
type Store struct {
	mu      sync.RWMutex
	maxRuns int
	now     func() time.Time
	runs    map[string]*history
	order   []string // oldest first
}

func New(maxRuns int) *Store {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	return &Store{
		maxRuns: maxRuns,
		now:     time.Now,
		runs:    make(map[string]*history),
	}
}

// OnState records run start and end.
func (s *Store) OnState(state simulator.State) {
	if state.RunID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.runLocked(state.RunID)
	if state.Running {
		h.run.Mode = state.Mode
		h.run.DurationSeconds = state.DurationSeconds
		h.run.ActivePanels = state.ActivePanels
		h.run.ActiveCells = state.ActiveCells
		return
	}
	h.run.EndedAt = s.now()
	h.run.Completed = state.Completed
}

// OnSample appends a sample to its run.
func (s *Store) OnSample(sample model.Sample) {
	s.AddSamples([]model.Sample{sample})
}

// AddSamples adds samples, then sorts each affected run by timestamp.
func (s *Store) AddSamples(samples []model.Sample) {
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, smp := range samples {
		h := s.runLocked(smp.RunID)
		h.samples = append(h.samples, smp)
		h.run.Samples = len(h.samples)
		seen[smp.RunID] = true
	}

	for id := range seen {
		h, ok := s.runs[id]
		if !ok {
			continue
		}
		all := h.samples
		if sort.SliceIsSorted(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) }) {
			continue
		}
		sort.SliceStable(all, func(i, j int) bool {
			return all[i].Timestamp.Before(all[j].Timestamp)
		})
	}
}

func (s *Store) runLocked(id string) *history {
	if h, ok := s.runs[id]; ok {
		return h
	}
	h := &history{run: Run{ID: id, StartedAt: s.now()}}
	s.runs[id] = h
	s.order = append(s.order, id)
	for len(s.order) > s.maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return h
}

// Runs returns all retained runs, oldest first.
func (s *Store) Runs() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.order))
	for _, id := range s.order {
		runs = append(runs, s.runs[id].run)
	}
	return runs
}

// Run returns the description of one run.
func (s *Store) Run(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return h.run, true
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun() (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return Run{}, false
	}
	return s.runs[s.order[len(s.order)-1]].run, true
}

// Samples returns a copy of all samples of a run.
func (s *Store) Samples(runID string) []model.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.runs[runID]
	if !ok || len(h.samples) == 0 {
		return nil
	}
	out := make([]model.Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// TimeRange returns the time range covered by a run's samples.
func (s *Store) TimeRange(runID string) (TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.runs[runID]
	if !ok || len(h.samples) == 0 {
		return TimeRange{}, false
	}
	return TimeRange{
		Start: h.samples[0].Timestamp,
		End:   h.samples[len(h.samples)-1].Timestamp,
	}, true
}

// SamplesInRange returns samples of a run between start (inclusive) and end
// (exclusive).
func (s *Store) SamplesInRange(runID string, start, end time.Time) []model.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.runs[runID]
	if !ok {
		return nil
	}
	all := h.samples

	startIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(start)
	})
	endIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(end)
	})
	if startIdx >= endIdx {
		return nil
	}

	result := make([]model.Sample, endIdx-startIdx)
	copy(result, all[startIdx:endIdx])
	return result
}

// SampleAt returns the most recent sample at or before t.
func (s *Store) SampleAt(runID string, t time.Time) (model.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.runs[runID]
	if !ok || len(h.samples) == 0 {
		return model.Sample{}, false
	}
	all := h.samples

	idx := sort.Search(len(all), func(i int) bool {
		return all[i].Timestamp.After(t)
	})
	if idx == 0 {
		return model.Sample{}, false
	}
	return all[idx-1], true
}
