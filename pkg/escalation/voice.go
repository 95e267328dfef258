package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fleetops/tracker/pkg/config"
	"github.com/fleetops/tracker/pkg/storage"
)

// callTimeout bounds voice-call creation requests (§5).
const callTimeout = 30 * time.Second

// CallRequest is the call-placement input shared by both modes.
type CallRequest struct {
	TripID           string
	ContactRole      string
	DestinationPhone string
	StoppedMinutes   int
	Origin           string
	Destination      string
	Greeting         string
	SystemPrompt     string
	EndCallMessage   string
	LanguageCode     string
}

// CallOutcome is what placing a call returns, regardless of mode
// (§4.6.1: "{answered, outcome, durationSeconds, summary, optional
// externalCallId}").
type CallOutcome struct {
	Answered        bool
	Outcome         string
	DurationSeconds int
	Summary         string
	ExternalCallID  string
}

// VoiceClient places a single outbound AI voice call.
type VoiceClient interface {
	PlaceCall(ctx context.Context, req CallRequest) (*CallOutcome, error)
}

// NewVoiceClient selects direct mode when both a private key and a
// phone-number-id are configured, else webhook-fallback mode (§4.6.1).
func NewVoiceClient(cfg config.VapiConfig, store *storage.Store) VoiceClient {
	if cfg.PrivateKey != "" && cfg.PhoneNumberID != "" {
		return &directVoiceClient{cfg: cfg, httpClient: &http.Client{Timeout: callTimeout}}
	}
	return &webhookVoiceClient{store: store}
}

// directVoiceClient places calls straight against the voice-agent API
// (§4.6.1 direct mode).
type directVoiceClient struct {
	cfg        config.VapiConfig
	httpClient *http.Client
}

func (c *directVoiceClient) PlaceCall(ctx context.Context, req CallRequest) (*CallOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	payload := c.buildPayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal call payload: %w", err)
	}

	baseURL := c.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.vapi.ai"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	correlationID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.PrivateKey)
	httpReq.Header.Set("Idempotency-Key", correlationID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &CallOutcome{Answered: false, Outcome: "error", Summary: err.Error()}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return &CallOutcome{Answered: false, Outcome: "error", Summary: fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody))}, nil
	}

	var decoded struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(respBody, &decoded)

	externalID := decoded.ID
	if externalID == "" {
		externalID = correlationID
	}

	// Success of the creation request is treated optimistically as
	// answered=true/atendida; the true outcome arrives later via the
	// end-of-call-report webhook and reconciles this record (§4.6.1,
	// spec.md §9 Open Question).
	return &CallOutcome{Answered: true, Outcome: "atendida", ExternalCallID: externalID}, nil
}

func (c *directVoiceClient) buildPayload(req CallRequest) map[string]any {
	assistantBody := map[string]any{
		"firstMessage": req.Greeting,
		"model": map[string]any{
			"provider":    "openai",
			"temperature": 0.5,
			"maxTokens":   250,
			"messages": []map[string]any{
				{"role": "system", "content": req.SystemPrompt},
			},
		},
		"voice": map[string]any{
			"provider":        "11labs",
			"voiceId":         "rachel",
			"voiceModel":      "eleven_turbo_v2",
			"stability":       0.5,
			"similarityBoost": 0.75,
		},
		"transcriber": map[string]any{
			"provider":    "deepgram",
			"model":       "nova-3",
			"language":    req.LanguageCode,
			"endpointing": 150,
		},
		"maxDurationSeconds":    120,
		"silenceTimeoutSeconds": 30,
		"endCallMessage":        req.EndCallMessage,
	}

	payload := map[string]any{
		"phoneNumberId": c.cfg.PhoneNumberID,
		"customer": map[string]any{
			"number": req.DestinationPhone,
		},
		"metadata": map[string]any{
			"tripId":         req.TripID,
			"contactRole":    req.ContactRole,
			"reason":         "stop_alert",
			"stoppedMinutes": req.StoppedMinutes,
			"origin":         req.Origin,
			"destination":    req.Destination,
		},
	}

	if c.cfg.AssistantID != "" {
		payload["assistantId"] = c.cfg.AssistantID
		payload["assistantOverrides"] = assistantBody
	} else {
		payload["assistant"] = assistantBody
	}

	return payload
}

// webhookVoiceClient places calls through the legacy storage bridge's
// side-channel endpoint (§4.6.1 webhook-fallback mode).
type webhookVoiceClient struct {
	store *storage.Store
}

func (c *webhookVoiceClient) PlaceCall(ctx context.Context, req CallRequest) (*CallOutcome, error) {
	correlationID := uuid.NewString()
	payload := map[string]any{
		"correlationId":    correlationID,
		"tripId":           req.TripID,
		"contactRole":      req.ContactRole,
		"destinationPhone": req.DestinationPhone,
		"greeting":         req.Greeting,
		"systemPrompt":     req.SystemPrompt,
		"endCallMessage":   req.EndCallMessage,
	}

	resp, err := c.store.VapiWebhook(ctx, payload)
	if err != nil {
		return &CallOutcome{Answered: false, Outcome: "error", Summary: err.Error()}, nil
	}

	externalID, _ := resp["id"].(string)
	if externalID == "" {
		externalID = correlationID
	}
	return &CallOutcome{Answered: true, Outcome: "atendida", ExternalCallID: externalID}, nil
}
