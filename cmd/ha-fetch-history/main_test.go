package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microgrid_twin/internal/ingest"
	"microgrid_twin/internal/model"
)

type entry = map[string]string

func historyServer(t *testing.T, payload *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([][]entry{payload.Load().([]entry)})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readOutput(t *testing.T, path string) []model.Reading {
	t.Helper()
	readings, err := ingest.ParseFile(ingest.NewHomeAssistantParser(model.SensorPanelCurrent, ""), path)
	require.NoError(t, err)
	return readings
}

func TestFetch_FirstRunThenResume(t *testing.T) {
	var payload atomic.Value
	payload.Store([]entry{
		{"entity_id": "sensor.panel_bus_current", "state": "12.5", "last_changed": "2025-06-21T12:00:00+00:00"},
		{"state": "14", "last_changed": "2025-06-21T13:00:00+00:00"},
	})
	srv := historyServer(t, &payload)

	out := filepath.Join(t.TempDir(), "nested", "current.csv")
	opts := options{
		URL:    srv.URL,
		Token:  "token",
		Entity: "sensor.panel_bus_current",
		Days:   1,
		Output: out,
		Now:    time.Date(2025, 6, 21, 18, 0, 0, 0, time.UTC),
	}
	require.NoError(t, fetch(context.Background(), opts))
	assert.Len(t, readOutput(t, out), 2)

	payload.Store([]entry{
		{"entity_id": "sensor.panel_bus_current", "state": "14", "last_changed": "2025-06-21T13:00:00+00:00"},
		{"state": "3.2", "last_changed": "2025-06-22T09:00:00+00:00"},
	})
	opts.Now = opts.Now.Add(24 * time.Hour)
	require.NoError(t, fetch(context.Background(), opts))

	readings := readOutput(t, out)
	require.Len(t, readings, 3)
	assert.InDelta(t, 3.2, readings[2].Value, 1e-9)
}

func TestFetch_MissingCredentials(t *testing.T) {
	err := fetch(context.Background(), options{Token: "token"})
	assert.ErrorContains(t, err, "HA_URL")

	err = fetch(context.Background(), options{URL: "http://localhost"})
	assert.ErrorContains(t, err, "HA_TOKEN")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")

	content := "# comment\nTEST_HA_FOO=bar\nTEST_HA_BAZ=qux\n\n# another comment\nTEST_HA_EMPTY=\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o644))

	os.Unsetenv("TEST_HA_FOO")
	os.Unsetenv("TEST_HA_BAZ")
	os.Unsetenv("TEST_HA_EMPTY")
	t.Cleanup(func() {
		os.Unsetenv("TEST_HA_FOO")
		os.Unsetenv("TEST_HA_BAZ")
		os.Unsetenv("TEST_HA_EMPTY")
	})

	loadDotEnv(envPath)

	assert.Equal(t, "bar", os.Getenv("TEST_HA_FOO"))
	assert.Equal(t, "qux", os.Getenv("TEST_HA_BAZ"))
	assert.Equal(t, "", os.Getenv("TEST_HA_EMPTY"))

	// existing variables win
	os.Setenv("TEST_HA_FOO", "original")
	loadDotEnv(envPath)
	assert.Equal(t, "original", os.Getenv("TEST_HA_FOO"))
}

func TestResolveFlag(t *testing.T) {
	t.Setenv("TEST_HA_URL", "http://env")
	assert.Equal(t, "http://flag", resolveFlag("http://flag", "TEST_HA_URL"))
	assert.Equal(t, "http://env", resolveFlag("", "TEST_HA_URL"))
}
