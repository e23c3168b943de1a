package simulator

import (
	"time"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/solar"
)

// Settings is the persistent configuration as seen by control surfaces.
type Settings struct {
	Panels                []bool                   `json:"panels"`
	Cells                 []bool                   `json:"cells"`
	AutoToggleLoads       bool                     `json:"autoToggleLoads"`
	Loads                 map[model.LoadClass]bool `json:"loads"`
	LoadSpecs             []model.LoadSpec         `json:"loadSpecs"`
	CalibrationMultiplier float64                  `json:"calibrationMultiplier"`
}

// IsRunning reports whether a run is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Progress returns the fraction of the current run elapsed, 0 when idle.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}

func (e *Engine) progressLocked() float64 {
	if !e.running {
		return 0
	}
	return e.clock.progress(e.now())
}

// State returns the lifecycle status.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked(e.now())
}

func (e *Engine) stateLocked(now time.Time) State {
	s := State{
		RunID:           e.runID,
		Running:         e.running,
		Mode:            e.mode,
		DurationSeconds: e.duration,
		ActivePanels:    e.activePanels,
		ActiveCells:     e.activeCells,
	}
	if e.running {
		s.Progress = e.clock.progress(now)
	}
	return s
}

// Snapshot returns the latest telemetry with run status.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.Snapshot{
		Telemetry:       e.telemetry,
		Running:         e.running,
		Progress:        e.progressLocked(),
		Mode:            e.mode,
		RunID:           e.runID,
		AutoToggleLoads: e.scheduler.Auto(),
		Loads:           e.scheduler.States(),
		ActivePanels:    e.activePanels,
		ActiveCells:     e.activeCells,
	}
}

// Overview returns the cumulative figures of the current or last run.
func (e *Engine) Overview() model.Overview {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overviewLocked()
}

func (e *Engine) overviewLocked() model.Overview {
	l := e.ledger
	o := model.Overview{
		Autarky:           Autarky(l.ConsumedKWh, l.FromGridKWh),
		EnergyFromGridKWh: l.FromGridKWh,
		EnergyToGridKWh:   l.ToGridKWh,
		EnergyConsumedKWh: l.ConsumedKWh,
		Cost:              make(map[string]float64, len(e.cfg.Tariffs)),
		Revenue:           make(map[string]float64, len(e.cfg.Tariffs)),
	}
	for _, t := range e.cfg.Tariffs {
		o.Cost[t.Currency] = l.FromGridKWh * t.ImportPerKWh
		o.Revenue[t.Currency] = l.ToGridKWh * t.ExportPerKWh
	}
	return o
}

// Autarky is the percentage of consumption not drawn from the grid.
func Autarky(consumedKWh, fromGridKWh float64) float64 {
	if consumedKWh <= 0 {
		return 0
	}
	return solar.Clamp((consumedKWh-fromGridKWh)/consumedKWh*100, 0, 100)
}

// Settings returns the persistent configuration.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Settings{
		Panels:                append([]bool(nil), e.panels[:]...),
		Cells:                 append([]bool(nil), e.cells[:]...),
		AutoToggleLoads:       e.scheduler.Auto(),
		Loads:                 e.scheduler.States(),
		LoadSpecs:             e.scheduler.Specs(),
		CalibrationMultiplier: e.calibration,
	}
}
