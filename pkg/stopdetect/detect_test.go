package stopdetect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fleetops/tracker/pkg/models"
	"github.com/fleetops/tracker/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeStopBridge serves coordinate history for trip "42": 10 coords
// spanning 45 minutes, all within a tight radius, all speed 0 (S2/S3).
// hasRecentCall toggles whether an ai_call_logs row is returned for the
// debounce check, modeling S3.
func newFakeStopBridge(t *testing.T, hasRecentCall bool) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	events := &[]map[string]any{}

	base := time.Now().Add(-45 * time.Minute)
	var coords []string
	for i := 0; i < 10; i++ {
		ts := base.Add(time.Duration(i*5) * time.Minute)
		lat := 20.60814 + float64(i)*0.00001
		coords = append(coords, fmt.Sprintf(`{"id":"c%d","trip_id":"42","lat":%f,"lng":-103.49088,"speed":0,"ingestion_timestamp":%q}`, i, lat, ts.Format(time.RFC3339)))
	}
	coordsJSON := "[" + strings.Join(coords, ",") + "]"

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
		case strings.Contains(sql, "FROM coordinates"):
			_, _ = w.Write([]byte(coordsJSON))
		case strings.Contains(sql, "FROM ai_call_logs"):
			if hasRecentCall {
				_, _ = w.Write([]byte(`[{"id":"call1"}]`))
			} else {
				_, _ = w.Write([]byte(`[]`))
			}
		case strings.Contains(sql, "FROM unit_events"):
			_, _ = w.Write([]byte(`[]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("/insert", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		if table, _ := req["table"].(string); table == "unit_events" {
			*events = append(*events, req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"id":"ev1"}`))
	})
	return httptest.NewServer(mux), events
}

func TestStopDetector_StopConfirmed(t *testing.T) {
	srv, events := newFakeStopBridge(t, false)
	defer srv.Close()

	store := storage.NewStore(storage.New(srv.URL, "user", "pass"))
	det := New(store)

	trip := &models.Trip{ID: "42", State: models.TripStateEnRuta, AICallsEnabled: true, StopThresholdMinutes: 30}
	stops, err := det.Run(context.Background(), []*models.Trip{trip})
	require.NoError(t, err)
	require.Len(t, stops, 1)

	ev := stops[0]
	assert.Equal(t, "42", ev.TripID)
	assert.Equal(t, 30, ev.Threshold)
	assert.InDelta(t, 45, ev.StoppedMinutes, 1)
	assert.Len(t, *events, 1)
}

func TestStopDetector_StopDebounced(t *testing.T) {
	srv, events := newFakeStopBridge(t, true)
	defer srv.Close()

	store := storage.NewStore(storage.New(srv.URL, "user", "pass"))
	det := New(store)

	trip := &models.Trip{ID: "42", State: models.TripStateEnRuta, AICallsEnabled: true, StopThresholdMinutes: 30}
	stops, err := det.Run(context.Background(), []*models.Trip{trip})
	require.NoError(t, err)
	assert.Empty(t, stops)
	assert.Empty(t, *events)
}
