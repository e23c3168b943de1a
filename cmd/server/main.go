package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"microgrid_twin/internal/api"
	"microgrid_twin/internal/config"
	"microgrid_twin/internal/ingest"
	"microgrid_twin/internal/log"
	"microgrid_twin/internal/metrics"
	"microgrid_twin/internal/model"
	"microgrid_twin/internal/noise"
	"microgrid_twin/internal/publish"
	"microgrid_twin/internal/sensor"
	"microgrid_twin/internal/simulator"
	"microgrid_twin/internal/store"
	"microgrid_twin/internal/ws"
)

func main() {
	cfg := config.Configured()

	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.FromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)
	slog.SetDefault(log.Ctx(context.Background()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	currentSensor, err := newSensor(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	history := store.New(cfg.MaxRuns)
	hub := ws.NewHub()
	bridge := ws.NewBridge(hub, nil)

	sinks, err := newSinks(cfg, m)
	if err != nil {
		return err
	}

	callbacks := simulator.Callbacks{history, m, bridge}
	for _, s := range sinks {
		callbacks = append(callbacks, s)
	}

	engine := simulator.New(cfg.Profile.Simulator(), currentSensor, noise.NewSource(seedFor(cfg)), callbacks)
	engine.SetLogger(log.Ctx(ctx))
	cfg.Profile.Apply(engine)
	bridge.SetEngine(engine)

	var wg sync.WaitGroup
	for _, s := range sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		simulator.Poll(ctx, engine, cfg.TickInterval)
	}()

	srv := api.New(engine, history, m, ws.NewHandler(hub, engine))
	err = srv.Run(ctx, cfg.ListenAddr)
	hub.Close()
	cancel()
	wg.Wait()
	return err
}

// newSensor replays a recorded Home Assistant export when one is configured.
func newSensor(cfg *config.Config) (sensor.CurrentSensor, error) {
	if cfg.SensorCSV == "" {
		return sensor.None{}, nil
	}
	parser := ingest.NewHomeAssistantParser(model.SensorPanelCurrent, "")
	parser.Entity = cfg.SensorEntity
	readings, err := ingest.ParseFile(parser, cfg.SensorCSV)
	if err != nil {
		return nil, err
	}
	replay := sensor.NewReplay(readings)
	if replay.Len() == 0 {
		return nil, fmt.Errorf("no current readings in %s", cfg.SensorCSV)
	}
	log.Ctx(context.Background()).Info("replaying current sensor", "path", cfg.SensorCSV, "readings", replay.Len())
	return replay, nil
}

// newSinks connects the configured message buses.
func newSinks(cfg *config.Config, m *metrics.Metrics) ([]*publish.Sink, error) {
	pubs, err := newPublishers(cfg)
	if err != nil {
		return nil, err
	}
	sinks := make([]*publish.Sink, 0, len(pubs))
	for _, pub := range pubs {
		sinks = append(sinks, publish.NewSink(pub, m, publish.DefaultQueueSize))
	}
	return sinks, nil
}

func newPublishers(cfg *config.Config) ([]publish.Publisher, error) {
	var pubs []publish.Publisher
	if cfg.MQTTBroker != "" {
		pub, err := publish.NewMQTT(publish.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
		})
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := publish.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			for _, p := range pubs {
				_ = p.Close()
			}
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

func seedFor(cfg *config.Config) uint64 {
	if cfg.Seed != 0 {
		return cfg.Seed
	}
	return uint64(time.Now().UnixNano())
}
