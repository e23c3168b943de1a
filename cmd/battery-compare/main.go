// Command battery-compare runs the rig headlessly over one simulated day
// per battery cell count and prints grid exchange, autarky and cost
// side by side.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"microgrid_twin/internal/config"
	"microgrid_twin/internal/log"
	"microgrid_twin/internal/model"
	"microgrid_twin/internal/noise"
	"microgrid_twin/internal/sensor"
	"microgrid_twin/internal/simulator"
)

// stepSeconds is the synthetic wall time per half-hour step.
const stepSeconds = 1

// collector implements simulator.Callback, keeping only the latest sample.
type collector struct {
	last    model.Sample
	samples int
}

func (c *collector) OnState(simulator.State) {}
func (c *collector) OnSample(s model.Sample) { c.last = s; c.samples++ }

type result struct {
	cells    int
	overview model.Overview
	soc      float64
}

func main() {
	profilePath := lflag.String("profile", "", "Path to a rig profile; empty uses the defaults")
	cellsFlag := lflag.String("cells", "0,1,2,3,4", "comma-separated battery cell counts to compare")
	seed := lflag.Int("seed", 1, "noise seed shared by every run")
	lflag.Configure()

	level, err := log.FromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)
	ctx := context.Background()

	profile, err := config.LoadProfile(*profilePath)
	if err != nil {
		log.Ctx(ctx).Error("failed to load profile", "path", *profilePath, "error", err)
		os.Exit(1)
	}
	counts, err := parseCells(*cellsFlag)
	if err != nil {
		log.Ctx(ctx).Error("invalid cell counts", "cells", *cellsFlag, "error", err)
		os.Exit(1)
	}

	results := make([]result, 0, len(counts))
	for _, n := range counts {
		r, err := simulate(profile, n, uint64(*seed))
		if err != nil {
			log.Ctx(ctx).Error("simulation failed", "cells", n, "error", err)
			os.Exit(1)
		}
		results = append(results, r)
		log.Ctx(ctx).Info("run done", "cells", n, "autarky", r.overview.Autarky)
	}

	printTable(os.Stdout, profile, results)
}

// simulate runs one headless simulated-sun run with the first cells cells
// enabled, driving the engine with a synthetic clock.
func simulate(profile config.Profile, cells int, seed uint64) (result, error) {
	c := &collector{}
	e := simulator.New(profile.Simulator(), sensor.None{}, noise.NewSource(seed), c)
	profile.Apply(e)
	for id := 1; id <= simulator.UnitCount; id++ {
		e.SetCell(id, id <= cells)
	}

	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return start })

	steps := 24 * 2
	if err := e.Start(steps*stepSeconds, model.ModeSimulatedSun); err != nil {
		return result{}, err
	}
	for i := 1; i < steps; i++ {
		e.Advance(start.Add(time.Duration(i*stepSeconds) * time.Second))
	}
	e.Advance(start.Add(time.Duration(steps*stepSeconds) * time.Second))

	return result{
		cells:    cells,
		overview: c.last.Overview,
		soc:      c.last.Telemetry.BatteryLevel,
	}, nil
}

func printTable(w io.Writer, profile config.Profile, results []result) {
	if len(results) == 0 {
		return
	}

	currencies := make([]string, 0, len(profile.Tariffs))
	for _, t := range profile.Tariffs {
		currencies = append(currencies, t.Currency)
	}
	sort.Strings(currencies)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Battery Cell Comparison")
	fmt.Fprintf(w, "  Panels: %v, cell capacity: %.0f Wh, epoch hour: %.1f\n", profile.Panels, profile.Battery.CellCapacityWh, profile.EpochHour)
	fmt.Fprintln(w)

	fmt.Fprintf(w, " %5s │ %11s │ %11s │ %8s │ %7s", "Cells", "Grid Import", "Grid Export", "Autarky", "End SoC")
	for _, c := range currencies {
		fmt.Fprintf(w, " │ %10s", c+" net")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "───────┼─────────────┼─────────────┼──────────┼─────────"+strings.Repeat("┼────────────", len(currencies)))

	for _, r := range results {
		fmt.Fprintf(w, " %5d │ %7.2f kWh │ %7.2f kWh │ %7.1f%% │ %6.1f%%",
			r.cells,
			r.overview.EnergyFromGridKWh,
			r.overview.EnergyToGridKWh,
			r.overview.Autarky,
			r.soc,
		)
		for _, c := range currencies {
			fmt.Fprintf(w, " │ %10.2f", r.overview.Cost[c]-r.overview.Revenue[c])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func parseCells(s string) ([]int, error) {
	var counts []int
	for _, p := range config.SplitList(s) {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", p, err)
		}
		if v < 0 || v > simulator.UnitCount {
			return nil, fmt.Errorf("cell count must be within 0..%d, got %d", simulator.UnitCount, v)
		}
		if !slices.Contains(counts, v) {
			counts = append(counts, v)
		}
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("no cell counts specified")
	}
	slices.Sort(counts)
	return counts, nil
}
