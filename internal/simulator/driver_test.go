package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/noise"
)

func TestPoll_RunsToCompletion(t *testing.T) {
	cb := &mockCallback{}
	e := New(DefaultConfig(), nil, noise.Fixed(0.5), cb)
	require.NoError(t, e.Start(1, model.ModeSimulatedSun))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Poll(ctx, e, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return !e.IsRunning() }, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.True(t, cb.lastState().Completed)
	assert.Greater(t, cb.sampleCount(), 1)
}

func TestPoll_StopsOnCancel(t *testing.T) {
	e := New(DefaultConfig(), nil, noise.Fixed(0.5), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		Poll(ctx, e, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancel")
	}
}
