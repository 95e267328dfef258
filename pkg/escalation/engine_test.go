package escalation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fleetops/tracker/pkg/config"
	"github.com/fleetops/tracker/pkg/models"
	"github.com/fleetops/tracker/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedVoiceClient returns a canned outcome per contact role and
// records every request it receives, in call order.
type scriptedVoiceClient struct {
	outcomes map[string]*CallOutcome
	calls    []CallRequest
}

func (c *scriptedVoiceClient) PlaceCall(ctx context.Context, req CallRequest) (*CallOutcome, error) {
	c.calls = append(c.calls, req)
	if o, ok := c.outcomes[req.ContactRole]; ok {
		return o, nil
	}
	return &CallOutcome{Answered: false, Outcome: "no_atendida"}, nil
}

func newFakeEscalationBridge(t *testing.T) *httptest.Server {
	t.Helper()
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
		case strings.Contains(sql, "FROM contacts"):
			_, _ = w.Write([]byte(`[
				{"id":"c1","trip_id":"42","role":"operador","display_name":"Op","phone":"5500000001"},
				{"id":"c2","trip_id":"42","role":"coordinador1","display_name":"Coord","phone":"5500000002"}
			]`))
		case strings.Contains(sql, "FROM ai_protocols"):
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

func testEngine(t *testing.T, voice VoiceClient) (*Engine, *storage.Store) {
	t.Helper()
	srv := newFakeEscalationBridge(t)
	t.Cleanup(srv.Close)

	store := storage.NewStore(storage.New(srv.URL, "user", "pass"))
	cfg := &config.Config{Escalation: config.DefaultEscalationConfig()}
	return New(store, voice, cfg), store
}

func stopEventFixture() *models.StopEvent {
	return &models.StopEvent{
		TripID:         "42",
		Trip:           &models.Trip{ID: "42", UnitID: "U42", Placas: "ABC-123"},
		StoppedMinutes: 45,
		Threshold:      30,
		LastLat:        20.60814,
		LastLng:        -103.49088,
	}
}

func TestEscalation_OperatorAnswered(t *testing.T) {
	voice := &scriptedVoiceClient{outcomes: map[string]*CallOutcome{
		"operador":     {Answered: true, Outcome: "atendida", Summary: "Ponchadura de llanta, 40 min"},
		"coordinador1": {Answered: true, Outcome: "atendida", Summary: "ok"},
	}}
	eng, _ := testEngine(t, voice)

	results, err := eng.Process(context.Background(), []*models.StopEvent{stopEventFixture()})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, voice.calls, 2)
	assert.Equal(t, "operador", voice.calls[0].ContactRole)
	assert.Equal(t, "coordinador1", voice.calls[1].ContactRole)
	assert.Contains(t, voice.calls[1].SystemPrompt, "Ponchadura de llanta, 40 min")

	assert.Equal(t, models.RoleCoordinador1, results[0].StoppedAtRole)
	assert.True(t, results[0].Answered)
}

func TestEscalation_OperatorDidNotAnswer(t *testing.T) {
	voice := &scriptedVoiceClient{outcomes: map[string]*CallOutcome{
		"operador":     {Answered: false, Outcome: "no_atendida"},
		"coordinador1": {Answered: true, Outcome: "atendida", Summary: "ok"},
	}}
	eng, _ := testEngine(t, voice)

	results, err := eng.Process(context.Background(), []*models.StopEvent{stopEventFixture()})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, voice.calls, 2)
	assert.Contains(t, voice.calls[1].SystemPrompt, "no contestó")
	assert.Equal(t, 2, results[0].CallsPlaced)
}

func TestEscalation_Order(t *testing.T) {
	voice := &scriptedVoiceClient{outcomes: map[string]*CallOutcome{}}
	eng, _ := testEngine(t, voice)

	_, err := eng.Process(context.Background(), []*models.StopEvent{stopEventFixture()})
	require.NoError(t, err)

	var roles []string
	for _, c := range voice.calls {
		roles = append(roles, c.ContactRole)
	}
	assert.Equal(t, []string{"operador", "coordinador1"}, roles)
}
