// Command ha-fetch-history downloads a panel current sensor's history from
// Home Assistant into the CSV layout the server replays with --sensor-csv.
// Re-running it appends only what is newer than the existing file.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"microgrid_twin/internal/ingest"
	"microgrid_twin/internal/log"
	"microgrid_twin/internal/model"
)

type options struct {
	URL    string
	Token  string
	Entity string
	Days   int
	Output string
	Now    time.Time
}

func main() {
	urlFlag := lflag.String("url", "", "Home Assistant base URL (overrides HA_URL)")
	tokenFlag := lflag.String("token", "", "Long-lived access token (overrides HA_TOKEN)")
	entity := lflag.String("entity", "sensor.panel_bus_current", "entity_id of the panel current sensor")
	days := lflag.Int("days", 7, "Days to fetch when the output file is empty")
	output := lflag.String("output", "input/panel_current.csv", "Output CSV path")
	lflag.Configure()

	level, err := log.FromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	loadDotEnv(".env")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = fetch(ctx, options{
		URL:    resolveFlag(*urlFlag, "HA_URL"),
		Token:  resolveFlag(*tokenFlag, "HA_TOKEN"),
		Entity: *entity,
		Days:   *days,
		Output: *output,
		Now:    time.Now(),
	})
	if err != nil {
		log.Ctx(ctx).Error("fetch failed", "error", err)
		os.Exit(1)
	}
}

func fetch(ctx context.Context, opts options) error {
	if opts.URL == "" {
		return errors.New("HA_URL not set, use --url or set HA_URL in .env")
	}
	if opts.Token == "" {
		return errors.New("HA_TOKEN not set, use --token or set HA_TOKEN in .env")
	}

	existing, err := loadExisting(opts.Output, opts.Entity)
	if err != nil {
		return err
	}

	l := log.Ctx(ctx).With(slog.String("entity", opts.Entity))
	start := opts.Now.AddDate(0, 0, -opts.Days)
	if n := len(existing); n > 0 {
		// one minute of overlap; MergeReadings drops the duplicates
		start = existing[n-1].Timestamp.Add(-time.Minute)
		l.Info("resuming", slog.Time("from", start))
	} else {
		l.Info("first run", slog.Int("days", opts.Days), slog.Time("from", start))
	}

	client := ingest.NewHistoryClient(opts.URL, opts.Token)
	fresh, err := client.Fetch(ctx, opts.Entity, model.SensorPanelCurrent, start, opts.Now)
	if err != nil {
		return err
	}
	merged := ingest.MergeReadings(existing, fresh)

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	if err := ingest.WriteCSV(f, merged); err != nil {
		f.Close()
		return fmt.Errorf("writing CSV: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	l.Info("wrote history",
		slog.String("path", opts.Output),
		slog.Int("total", len(merged)),
		slog.Int("existing", len(existing)),
		slog.Int("fetched", len(fresh)))
	return nil
}

func loadExisting(path, entity string) ([]model.Reading, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	p := ingest.NewHomeAssistantParser(model.SensorPanelCurrent, "")
	p.Entity = entity
	return ingest.ParseFile(p, path)
}

// loadDotEnv reads a .env file and sets variables not already in the environment.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, strings.TrimSpace(val))
		}
	}
}

func resolveFlag(flagVal, envKey string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envKey)
}
