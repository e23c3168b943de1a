package simulator

import (
	"context"
	"time"
)

// Poll ticks e every interval until ctx is done. The engine only moves when
// polled, so interval bounds how late a half-hour step is observed.
func Poll(ctx context.Context, e *Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}
