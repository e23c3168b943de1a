package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"microgrid_twin/internal/log"
	"microgrid_twin/internal/model"
)

const historyAttempts = 5

// HistoryClient pulls entity history from the Home Assistant REST API.
type HistoryClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	// sleep waits between retries and is replaced in tests.
	sleep func(context.Context, time.Duration) error
}

func NewHistoryClient(baseURL, token string) *HistoryClient {
	return &HistoryClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		sleep:   sleepCtx,
	}
}

type apiError struct {
	statusCode int
	message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.statusCode, e.message)
}

func isRetryable(err error) bool {
	var ae *apiError
	if !errors.As(err, &ae) {
		return true
	}
	return ae.statusCode == http.StatusTooManyRequests || ae.statusCode >= 500
}

// Fetch returns readings for entityID between start and end, one request per
// day, in timestamp order.
func (c *HistoryClient) Fetch(ctx context.Context, entityID string, sensorType model.SensorType, start, end time.Time) ([]model.Reading, error) {
	unit := model.SensorCatalog[sensorType].Unit
	var out []model.Reading
	for from := start; from.Before(end); from = from.Add(24 * time.Hour) {
		to := from.Add(24 * time.Hour)
		if to.After(end) {
			to = end
		}
		day, err := c.fetchPeriod(ctx, entityID, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", from.Format(time.DateOnly), err)
		}
		for i := range day {
			day[i].Type = sensorType
			day[i].Unit = unit
		}
		log.Ctx(ctx).Info("fetched history", slog.String("day", from.Format(time.DateOnly)), slog.Int("readings", len(day)))
		out = append(out, day...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (c *HistoryClient) fetchPeriod(ctx context.Context, entityID string, from, to time.Time) ([]model.Reading, error) {
	q := url.Values{}
	q.Set("end_time", to.UTC().Format(time.RFC3339))
	q.Set("filter_entity_id", entityID)
	u := fmt.Sprintf("%s/api/history/period/%s?%s&minimal_response&no_attributes",
		c.BaseURL, url.PathEscape(from.UTC().Format(time.RFC3339)), q.Encode())

	var body []byte
	var err error
	for attempt := range historyAttempts {
		body, err = c.get(ctx, u)
		if err == nil {
			break
		}
		if !isRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		log.Ctx(ctx).Warn("retrying history request", slog.Duration("wait", wait), "error", err)
		if serr := c.sleep(ctx, wait); serr != nil {
			return nil, serr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("after %d attempts: %w", historyAttempts, err)
	}
	return parseHistoryResponse(body)
}

func (c *HistoryClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &apiError{statusCode: resp.StatusCode, message: "authentication failed, check the access token"}
	case resp.StatusCode != http.StatusOK:
		return nil, &apiError{statusCode: resp.StatusCode, message: string(body)}
	}
	return body, nil
}

// parseHistoryResponse reads the history API payload: an array per entity.
// With minimal_response only the first entry carries entity_id.
func parseHistoryResponse(data []byte) ([]model.Reading, error) {
	var outer [][]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	var readings []model.Reading
	for _, history := range outer {
		var entityID string
		for _, raw := range history {
			var entry struct {
				EntityID    string `json:"entity_id"`
				State       string `json:"state"`
				LastChanged string `json:"last_changed"`
			}
			if err := json.Unmarshal(raw, &entry); err != nil {
				continue
			}
			if entry.EntityID != "" {
				entityID = entry.EntityID
			}
			value, err := strconv.ParseFloat(entry.State, 64)
			if err != nil {
				continue
			}
			ts, err := parseTimestamp(entry.LastChanged)
			if err != nil {
				continue
			}
			readings = append(readings, model.Reading{
				Timestamp: ts,
				SensorID:  entityID,
				Value:     value,
			})
		}
	}
	return readings, nil
}

// MergeReadings unions two series keyed by sensor and timestamp. Entries in
// fresh replace those in existing.
func MergeReadings(existing, fresh []model.Reading) []model.Reading {
	type key struct {
		sensorID string
		ts       int64
	}
	seen := make(map[key]model.Reading, len(existing)+len(fresh))
	for _, r := range existing {
		seen[key{r.SensorID, r.Timestamp.UnixNano()}] = r
	}
	for _, r := range fresh {
		seen[key{r.SensorID, r.Timestamp.UnixNano()}] = r
	}

	merged := make([]model.Reading, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		}
		return merged[i].SensorID < merged[j].SensorID
	})
	return merged
}

// WriteCSV writes readings in the Home Assistant export layout understood by
// HomeAssistantParser.
func WriteCSV(w io.Writer, readings []model.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"entity_id", "state", "last_changed"}); err != nil {
		return err
	}
	for _, r := range readings {
		if err := cw.Write([]string{
			r.SensorID,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			r.Timestamp.UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
