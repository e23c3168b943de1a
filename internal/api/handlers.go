package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"microgrid_twin/internal/log"
	"microgrid_twin/internal/model"
)

type startRequest struct {
	DurationSeconds int    `json:"duration_seconds"`
	Mode            string `json:"mode"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type calibrationRequest struct {
	Multiplier float64 `json:"multiplier"`
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Status  string `json:"status"`
		Running bool   `json:"running"`
	}{Status: "ok", Running: s.engine.IsRunning()})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Snapshot())
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Overview())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Settings())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}

	mode := model.ModeSimulatedSun
	if req.Mode != "" {
		var err error
		if mode, err = model.ParseMode(req.Mode); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := s.engine.Start(req.DurationSeconds, mode); err != nil {
		log.Ctx(ctx).DebugContext(ctx, "start rejected", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.engine.State())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, s.engine.State())
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	s.handleUnit(w, r, s.engine.SetPanel)
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	s.handleUnit(w, r, s.engine.SetCell)
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request, set func(int, bool) bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req toggleRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if !set(id, req.Enabled) {
		writeJSONError(w, "unknown id", http.StatusNotFound)
		return
	}
	writeJSON(w, s.engine.Settings())
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	class := model.ParseLoadClass(mux.Vars(r)["load"])
	var req toggleRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}

	settings := s.engine.Settings()
	if _, ok := settings.Loads[class]; !ok {
		writeJSONError(w, "unknown load", http.StatusNotFound)
		return
	}
	// Under the automatic schedule the request is accepted but has no effect.
	s.engine.SetLoad(class, req.Enabled)
	writeJSON(w, s.engine.Settings())
}

func (s *Server) handleAuto(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	s.engine.SetAutoSchedule(req.Enabled)
	writeJSON(w, s.engine.Settings())
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	var req calibrationRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := s.engine.SetCalibrationMultiplier(req.Multiplier); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.engine.Settings())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Runs())
}

func (s *Server) handleRunSamples(w http.ResponseWriter, r *http.Request) {
	s.writeSamples(w, r, mux.Vars(r)["id"])
}

// handleHistory returns the samples of the most recent run.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	run, ok := s.store.LatestRun()
	if !ok {
		writeJSON(w, []model.Sample{})
		return
	}
	s.writeSamples(w, r, run.ID)
}

// writeSamples answers with all samples of runID, or those within the
// optional from/to RFC 3339 bounds. With at, it answers with the single
// sample in effect at that instant.
func (s *Server) writeSamples(w http.ResponseWriter, r *http.Request, runID string) {
	if _, ok := s.store.Run(runID); !ok {
		writeJSONError(w, "unknown run", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	if v := q.Get("at"); v != "" {
		at, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeJSONError(w, "invalid at", http.StatusBadRequest)
			return
		}
		smp, ok := s.store.SampleAt(runID, at)
		if !ok {
			writeJSONError(w, "no sample at or before at", http.StatusNotFound)
			return
		}
		writeJSON(w, smp)
		return
	}
	if q.Get("from") == "" && q.Get("to") == "" {
		writeJSON(w, nonNil(s.store.Samples(runID)))
		return
	}

	tr, _ := s.store.TimeRange(runID)
	from, err := parseBound(q.Get("from"), tr.Start)
	if err != nil {
		writeJSONError(w, "invalid from", http.StatusBadRequest)
		return
	}
	// samples exactly at the end of the range are included
	to, err := parseBound(q.Get("to"), tr.End.Add(time.Nanosecond))
	if err != nil {
		writeJSONError(w, "invalid to", http.StatusBadRequest)
		return
	}
	writeJSON(w, nonNil(s.store.SamplesInRange(runID, from, to)))
}

func parseBound(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

func nonNil(samples []model.Sample) []model.Sample {
	if samples == nil {
		return []model.Sample{}
	}
	return samples
}
