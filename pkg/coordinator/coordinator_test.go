package coordinator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fleetops/tracker/pkg/fetch"
	"github.com/fleetops/tracker/pkg/models"
	"github.com/fleetops/tracker/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher returns a fixed Result regardless of input, modeling the
// Micodus happy-path scenario S1.
type stubFetcher struct {
	result *fetch.Result
	err    error
}

func (s *stubFetcher) Fetch(ctx context.Context, shareURL string) (*fetch.Result, error) {
	return s.result, s.err
}

// fakeStoreServer is a minimal in-memory storage bridge sufficient to
// exercise one Coordinator cycle end-to-end.
type fakeStoreServer struct {
	insertedCoords  atomic.Int32
	lastTripUpdate  map[string]any
	lastCoordFields map[string]any
	events          []map[string]any
}

func newFakeStoreServer(t *testing.T) (*httptest.Server, *fakeStoreServer) {
	t.Helper()
	fs := &fakeStoreServer{lastTripUpdate: map[string]any{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"fake-token"}`))
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		sql, _ := req["sql"].(string)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(sql, "FROM providers"):
			_, _ = w.Write([]byte(`[{"id":"p1","name":"demo","base_url":"https://track.micodus.net/share?access_token=ABCD1234","scrape_interval_minutes":5,"active":true}]`))
		case strings.Contains(sql, "FROM trips"):
			_, _ = w.Write([]byte(`[{"id":"42","unit_id":"U42","state":"en_ruta","ai_calls_enabled":true,"stop_threshold_minutes":30}]`))
		case strings.Contains(sql, "FROM coordinates"):
			_, _ = w.Write([]byte(`[]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("/insert", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		table, _ := req["table"].(string)
		if table == "coordinates" {
			fs.insertedCoords.Add(1)
			if outer, ok := req["fields"].(map[string]any); ok {
				if inner, ok := outer["fields"].(map[string]any); ok {
					fs.lastCoordFields = inner
				}
			}
		}
		if table == "unit_events" {
			fs.events = append(fs.events, req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"id":"new-1"}`))
	})
	mux.HandleFunc("/update", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		if table, _ := req["table"].(string); table == "trips" {
			fs.lastTripUpdate = req
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	return httptest.NewServer(mux), fs
}

func TestCoordinator_MicodusHappyPath(t *testing.T) {
	srv, fs := newFakeStoreServer(t)
	defer srv.Close()

	store := storage.NewStore(storage.New(srv.URL, "user", "pass"))
	speed := 0.0
	heading := 90.0
	stub := &stubFetcher{result: &fetch.Result{
		Coords: []models.Point{
			{Lat: 20.60814, Lng: -103.49088, Speed: &speed, Heading: &heading, Timestamp: "2025-01-01 10:00:00"},
		},
		Platform: fetch.PlatformMicodus,
		Source:   models.SourceHTTPMicodus,
	}}

	coord := New(store, stub, true)
	result := coord.Run(context.Background(), ModeAll)

	require.False(t, result.Skipped)
	assert.Equal(t, 1, result.ProvidersRun)
	assert.Equal(t, 1, result.CoordsInserted)
	assert.Equal(t, int32(1), fs.insertedCoords.Load())
	assert.Equal(t, "trips", fs.lastTripUpdate["table"])

	require.NotNil(t, fs.lastCoordFields)
	wrapped, ok := fs.lastCoordFields["gps_timestamp"].(map[string]any)
	require.True(t, ok, "gps_timestamp must be set on the inserted coordinate")
	assert.Equal(t, "2025-01-01T10:00:00Z", wrapped["value"])
}

func TestCoordinator_RunProviderScopesToOneProvider(t *testing.T) {
	srv, fs := newFakeStoreServer(t)
	defer srv.Close()

	store := storage.NewStore(storage.New(srv.URL, "user", "pass"))
	stub := &stubFetcher{result: &fetch.Result{
		Coords:   []models.Point{{Lat: 20.60814, Lng: -103.49088}},
		Platform: fetch.PlatformMicodus,
		Source:   models.SourceHTTPMicodus,
	}}
	coord := New(store, stub, true)

	result := coord.RunProvider(context.Background(), "p1")

	require.False(t, result.Skipped)
	assert.Equal(t, 1, result.ProvidersRun)
	assert.Equal(t, int32(1), fs.insertedCoords.Load())

	result = coord.RunProvider(context.Background(), "unknown-provider")
	require.False(t, result.Skipped)
	assert.Equal(t, 0, result.ProvidersRun)
}

func TestCoordinator_ReentrancyGuard(t *testing.T) {
	srv, _ := newFakeStoreServer(t)
	defer srv.Close()

	store := storage.NewStore(storage.New(srv.URL, "user", "pass"))
	stub := &stubFetcher{result: &fetch.Result{}}
	coord := New(store, stub, true)

	coord.mu.Lock()
	coord.running = true
	coord.mu.Unlock()

	result := coord.Run(context.Background(), ModeAll)
	assert.True(t, result.Skipped)
	assert.Equal(t, "already_running", result.SkipReason)
}
