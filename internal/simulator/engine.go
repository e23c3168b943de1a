package simulator

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"microgrid_twin/internal/load"
	"microgrid_twin/internal/model"
	"microgrid_twin/internal/noise"
	"microgrid_twin/internal/sensor"
	"microgrid_twin/internal/solar"
)

// UnitCount is the number of panel and cell slots on the rig.
const UnitCount = 4

// MaxDurationSeconds is the longest run a time.Duration can represent.
const MaxDurationSeconds = math.MaxInt64 / int64(time.Second)

var (
	ErrInvalidDuration   = errors.New("duration must be a positive number of seconds within range")
	ErrInvalidMode       = errors.New("unknown generation mode")
	ErrInvalidMultiplier = errors.New("calibration multiplier must be positive")
)

// Config holds the simulation profile.
type Config struct {
	// EpochHour is the simulated hour of day a run starts at.
	EpochHour             float64
	Battery               BatteryConfig
	CalibrationMultiplier float64
	Loads                 []model.LoadSpec
	Tariffs               []model.Tariff
}

// DefaultConfig returns the reference rig profile: runs start at 06:00 with an
// empty bank.
func DefaultConfig() Config {
	return Config{
		EpochHour:             6,
		Battery:               DefaultBatteryConfig,
		CalibrationMultiplier: 600,
		Loads:                 model.DefaultLoads(),
		Tariffs:               model.DefaultTariffs(),
	}
}

// State is the lifecycle status emitted on start and stop.
type State struct {
	RunID           string     `json:"run_id"`
	Running         bool       `json:"running"`
	Mode            model.Mode `json:"mode"`
	DurationSeconds int        `json:"duration_seconds"`
	Progress        float64    `json:"progress"`
	ActivePanels    int        `json:"active_panels"`
	ActiveCells     int        `json:"active_cells"`
	Completed       bool       `json:"completed"`
}

// Callback receives simulation events. It is invoked outside the engine lock.
type Callback interface {
	OnState(state State)
	OnSample(sample model.Sample)
}

// Engine is the digital twin of the solar/battery/load rig. It owns the
// configuration, the current run and its ledger. It never blocks and starts
// no goroutines: a caller drives it by calling Advance periodically.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	callback Callback
	logger   *slog.Logger
	now      func() time.Time

	rand      noise.Source
	generator *solar.Generator
	scheduler *load.Scheduler

	// Configuration, persists across runs
	panels      [UnitCount]bool
	cells       [UnitCount]bool
	calibration float64

	// Run state, replaced by Start
	runID        string
	running      bool
	mode         model.Mode
	duration     int
	clock        simClock
	lastUpdate   time.Time
	activePanels int
	activeCells  int
	seq          int

	battery   *Battery
	ledger    Ledger
	telemetry model.Telemetry
}

// New creates an idle engine with panel 1 and cell 1 enabled.
func New(cfg Config, s sensor.CurrentSensor, src noise.Source, cb Callback) *Engine {
	if src == nil {
		src = noise.NewSource(uint64(time.Now().UnixNano()))
	}
	if cb == nil {
		cb = Callbacks(nil)
	}
	if len(cfg.Loads) == 0 {
		cfg.Loads = model.DefaultLoads()
	}
	e := &Engine{
		cfg:         cfg,
		callback:    cb,
		logger:      slog.Default(),
		now:         time.Now,
		rand:        src,
		generator:   solar.NewGenerator(s, src),
		scheduler:   load.NewScheduler(cfg.Loads),
		calibration: cfg.CalibrationMultiplier,
		mode:        model.ModeSimulatedSun,
		clock:       simClock{hour: solar.NormalizeHour(cfg.EpochHour), lastStep: noStep},
	}
	e.panels[0] = true
	e.cells[0] = true
	e.battery = NewBattery(cfg.Battery, 0)
	e.telemetry.Hour, e.telemetry.Minute = e.clock.hourMinute()
	return e
}

// SetClock replaces the wall clock used by Start and Progress.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// SetLogger replaces the lifecycle logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = l
}

// Start begins a new run, replacing any run in flight. The enabled panel and
// cell counts are frozen here; later toggles apply to the next run.
func (e *Engine) Start(durationSeconds int, mode model.Mode) error {
	if durationSeconds <= 0 || int64(durationSeconds) > MaxDurationSeconds {
		return ErrInvalidDuration
	}
	if mode != model.ModeSimulatedSun && mode != model.ModeCalibratedSensor {
		return ErrInvalidMode
	}

	e.mu.Lock()
	now := e.now()
	e.runID = uuid.NewString()
	e.running = true
	e.mode = mode
	e.duration = durationSeconds
	e.clock = newSimClock(now, durationSeconds, e.cfg.EpochHour)
	e.lastUpdate = now
	e.seq = 0
	e.activePanels = countEnabled(e.panels)
	e.activeCells = countEnabled(e.cells)
	e.battery = NewBattery(e.cfg.Battery, e.activeCells)
	e.ledger = Ledger{}
	e.telemetry = model.Telemetry{BatteryLevel: e.battery.SoCPercent}
	e.telemetry.Hour, e.telemetry.Minute = e.clock.hourMinute()
	state := e.stateLocked(now)
	logger := e.logger
	e.mu.Unlock()

	logger.Info("simulation started",
		"run_id", state.RunID,
		"duration_s", durationSeconds,
		"mode", mode,
		"panels", state.ActivePanels,
		"cells", state.ActiveCells,
		"hour_s", float64(durationSeconds)/24,
	)
	e.callback.OnState(state)
	return nil
}

// Stop ends the current run. Telemetry and ledger stay readable.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.stopLocked()
	state := e.stateLocked(e.now())
	logger := e.logger
	e.mu.Unlock()

	logger.Info("simulation stopped", "run_id", state.RunID)
	e.callback.OnState(state)
}

func (e *Engine) stopLocked() {
	e.running = false
	e.clock.hour = 0
}

// Advance moves the run to wall time now. Generation, load and battery are
// recomputed only when now falls into a new half-hour step, so repeated polls
// within one step return the same reading. A now earlier than the last
// recomputation, e.g. read before a concurrent Start, is ignored.
func (e *Engine) Advance(now time.Time) {
	e.mu.Lock()
	ev := e.advanceLocked(now)
	e.mu.Unlock()
	e.dispatch(ev)
}

// Tick advances the run to the engine clock, read under the lock.
func (e *Engine) Tick() {
	e.mu.Lock()
	ev := e.advanceLocked(e.now())
	e.mu.Unlock()
	e.dispatch(ev)
}

// advanceResult carries what Advance reports once the lock is released.
type advanceResult struct {
	completed *State
	sample    *model.Sample
	logger    *slog.Logger
}

func (e *Engine) advanceLocked(now time.Time) advanceResult {
	if !e.running || now.Before(e.lastUpdate) {
		return advanceResult{}
	}

	if e.clock.expired(now) {
		e.stopLocked()
		state := e.stateLocked(now)
		state.Completed = true
		return advanceResult{completed: &state, logger: e.logger}
	}

	stepped := e.clock.tick(now)
	e.telemetry.Hour, e.telemetry.Minute = e.clock.hourMinute()
	if !stepped {
		return advanceResult{}
	}

	sample := e.recomputeLocked(now)
	return advanceResult{sample: &sample}
}

func (e *Engine) dispatch(r advanceResult) {
	if r.completed != nil {
		r.logger.Info("simulation completed", "run_id", r.completed.RunID)
		e.callback.OnState(*r.completed)
	}
	if r.sample != nil {
		e.callback.OnSample(*r.sample)
	}
}

func (e *Engine) recomputeLocked(now time.Time) model.Sample {
	deltaSeconds := now.Sub(e.lastUpdate).Seconds()
	simHours := deltaSeconds * e.clock.hoursPerSecond()

	gen := e.generator.Generate(solar.Input{
		Hour:                  e.clock.hour,
		Panels:                e.activePanels,
		Mode:                  e.mode,
		CalibrationMultiplier: e.calibration,
	})

	e.scheduler.Resolve(e.clock.hour)
	loadW := e.scheduler.Demand(e.rand)

	netW := gen.Power - loadW
	flow := e.battery.Process(netW, simHours)
	e.ledger.Record(loadW, simHours, flow)

	e.telemetry.Voltage = gen.Voltage
	e.telemetry.Current = gen.Current
	e.telemetry.PowerGenerated = gen.Power
	e.telemetry.Irradiance = gen.Irradiance
	e.telemetry.PowerLoad = loadW
	e.telemetry.PowerNet = netW
	e.telemetry.BatteryLevel = e.battery.SoCPercent

	e.lastUpdate = now
	e.seq++

	return model.Sample{
		RunID:     e.runID,
		Step:      e.clock.lastStep,
		Seq:       e.seq,
		Timestamp: now,
		Telemetry: e.telemetry,
		Overview:  e.overviewLocked(),
	}
}

// SetPanel enables or disables panel id (1-4). Out-of-range ids are ignored.
// A change during a run takes effect at the next Start.
func (e *Engine) SetPanel(id int, enabled bool) bool {
	if id < 1 || id > UnitCount {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panels[id-1] = enabled
	e.logger.Debug("panel toggled", "panel", id, "enabled", enabled, "deferred", e.running)
	return true
}

// SetCell enables or disables battery cell id (1-4). Out-of-range ids are
// ignored. A change during a run takes effect at the next Start.
func (e *Engine) SetCell(id int, enabled bool) bool {
	if id < 1 || id > UnitCount {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cells[id-1] = enabled
	e.logger.Debug("cell toggled", "cell", id, "enabled", enabled, "deferred", e.running)
	return true
}

// SetLoad switches a load by hand. It is a no-op for unknown classes and
// while the automatic schedule is enabled.
func (e *Engine) SetLoad(class model.LoadClass, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.scheduler.Set(class, enabled)
	if !ok && e.scheduler.Auto() && e.scheduler.Known(class) {
		e.logger.Debug("auto schedule enabled, ignoring manual load change", "load", class)
	}
	return ok
}

// SetAutoSchedule hands load control to the time-of-day schedule.
func (e *Engine) SetAutoSchedule(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler.SetAuto(enabled)
}

// SetCalibrationMultiplier sets the sensor current scale for calibrated runs.
func (e *Engine) SetCalibrationMultiplier(v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidMultiplier
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calibration = v
	return nil
}

func countEnabled(units [UnitCount]bool) int {
	n := 0
	for _, on := range units {
		if on {
			n++
		}
	}
	return n
}
