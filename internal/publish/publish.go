// Package publish forwards telemetry samples to external message buses.
package publish

import (
	"context"
	"encoding/json"
	"log/slog"

	"microgrid_twin/internal/log"
	"microgrid_twin/internal/metrics"
	"microgrid_twin/internal/model"
	"microgrid_twin/internal/simulator"
)

// DefaultQueueSize bounds samples buffered per sink.
const DefaultQueueSize = 256

// Publisher delivers one encoded message.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Sink is a simulator.Callback that hands samples to a Publisher from its
// own goroutine. When the queue is full new samples are dropped so the
// engine never blocks on a slow broker.
type Sink struct {
	pub     Publisher
	metrics *metrics.Metrics
	queue   chan model.Sample
}

func NewSink(pub Publisher, m *metrics.Metrics, queueSize int) *Sink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Sink{
		pub:     pub,
		metrics: m,
		queue:   make(chan model.Sample, queueSize),
	}
}

func (s *Sink) OnState(simulator.State) {}

func (s *Sink) OnSample(sample model.Sample) {
	select {
	case s.queue <- sample:
	default:
		s.metrics.Dropped(s.pub.Name())
	}
}

// Run publishes queued samples until ctx is done, then closes the publisher.
func (s *Sink) Run(ctx context.Context) {
	l := log.Ctx(ctx).With(slog.String("sink", s.pub.Name()))
	defer func() {
		if err := s.pub.Close(); err != nil {
			l.Error("failed to close publisher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sample := <-s.queue:
			payload, err := json.Marshal(sample)
			if err != nil {
				l.Error("failed to encode sample", "error", err)
				continue
			}
			err = s.pub.Publish(ctx, sample.RunID, payload)
			s.metrics.Published(s.pub.Name(), err)
			if err != nil {
				l.Warn("failed to publish sample", "run_id", sample.RunID, "seq", sample.Seq, "error", err)
			}
		}
	}
}
