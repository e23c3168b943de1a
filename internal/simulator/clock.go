package simulator

import (
	"math"
	"time"

	"microgrid_twin/internal/solar"
)

// noStep forces the first Advance of a run to recompute.
const noStep = -1

// stepsPerHour sets the recomputation granularity to half an hour of
// simulated time.
const stepsPerHour = 2

// simClock maps wall-clock time elapsed since run start to the simulated
// hour of day.
type simClock struct {
	start     time.Time
	duration  time.Duration
	epochHour float64

	hour     float64
	lastStep int
}

func newSimClock(start time.Time, durationSeconds int, epochHour float64) simClock {
	return simClock{
		start:     start,
		duration:  time.Duration(durationSeconds) * time.Second,
		epochHour: solar.NormalizeHour(epochHour),
		hour:      solar.NormalizeHour(epochHour),
		lastStep:  noStep,
	}
}

// elapsed returns wall seconds since start.
func (c *simClock) elapsed(now time.Time) float64 {
	return now.Sub(c.start).Seconds()
}

// expired reports whether the simulated day is over at now.
func (c *simClock) expired(now time.Time) bool {
	return c.elapsed(now) >= c.duration.Seconds()
}

// hoursPerSecond is the compression factor: 24 simulated hours per duration.
func (c *simClock) hoursPerSecond() float64 {
	return 24 / c.duration.Seconds()
}

// tick moves the clock to now and reports whether a new step was entered.
func (c *simClock) tick(now time.Time) bool {
	c.hour = solar.NormalizeHour(c.epochHour + c.elapsed(now)*c.hoursPerSecond())
	step := int(math.Floor(c.hour * stepsPerHour))
	if step == c.lastStep {
		return false
	}
	c.lastStep = step
	return true
}

// hourMinute splits the simulated hour for display.
func (c *simClock) hourMinute() (int, int) {
	h := math.Floor(c.hour)
	return int(h), int(math.Floor((c.hour - h) * 60))
}

// progress returns elapsed/duration clamped to [0,1].
func (c *simClock) progress(now time.Time) float64 {
	return solar.Clamp(c.elapsed(now)/c.duration.Seconds(), 0, 1)
}
