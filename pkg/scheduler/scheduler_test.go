package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/tracker/pkg/config"
	"github.com/fleetops/tracker/pkg/coordinator"
	"github.com/fleetops/tracker/pkg/escalation"
	"github.com/fleetops/tracker/pkg/fetch"
	"github.com/fleetops/tracker/pkg/stopdetect"
	"github.com/fleetops/tracker/pkg/storage"
)

type noopFetcher struct{}

func (noopFetcher) Fetch(ctx context.Context, shareURL string) (*fetch.Result, error) {
	return &fetch.Result{}, nil
}

func newFakeSchedulerBridge(t *testing.T, queryCount *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"fake-token"}`))
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		queryCount.Add(1)
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		sql, _ := req["sql"].(string)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(sql, "FROM providers"):
			_, _ = w.Write([]byte(`[]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("/insert", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"id":"row1"}`))
	})
	return httptest.NewServer(mux)
}

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig) (*Scheduler, *atomic.Int32) {
	t.Helper()
	var queries atomic.Int32
	bridge := newFakeSchedulerBridge(t, &queries)
	t.Cleanup(bridge.Close)

	store := storage.NewStore(storage.New(bridge.URL, "user", "pass"))
	coord := coordinator.New(store, noopFetcher{}, false)
	stopDet := stopdetect.New(store)
	voice := escalation.NewVoiceClient(config.VapiConfig{}, store)
	engCfg := &config.Config{Escalation: config.DefaultEscalationConfig()}
	engine := escalation.New(store, voice, engCfg)

	return New(cfg, coord, stopDet, engine, store), &queries
}

func TestScheduler_TickRunsCoordinatorCycle(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	cfg.AIDetectionEnabled = false
	sched, queries := newTestScheduler(t, cfg)

	sched.tick(context.Background())

	assert.Greater(t, queries.Load(), int32(0))
	assert.False(t, sched.coordinator.IsRunning())
}

func TestScheduler_SkipsDetectionBeforeInterval(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	cfg.AIDetectionEnabled = true
	cfg.AIDetectionInterval = time.Hour
	sched, _ := newTestScheduler(t, cfg)
	sched.lastDetection = time.Now()

	before := sched.lastDetection
	sched.tick(context.Background())

	assert.Equal(t, before, sched.lastDetection)
}

func TestScheduler_RunsDetectionWhenIntervalElapsed(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	cfg.AIDetectionEnabled = true
	cfg.AIDetectionInterval = time.Millisecond
	sched, _ := newTestScheduler(t, cfg)
	sched.lastDetection = time.Now().Add(-time.Hour)

	sched.tick(context.Background())

	assert.WithinDuration(t, time.Now(), sched.lastDetection, time.Second)
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	cfg.AIDetectionEnabled = false
	sched, _ := newTestScheduler(t, cfg)

	sched.Start(context.Background())
	sched.Start(context.Background()) // no-op, already started
	require.NotNil(t, sched.cancel)

	sched.Stop()
	sched.Stop() // no-op, already stopped
}
