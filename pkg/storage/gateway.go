package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Timeouts per §5: queries 30s, mutations 15s, openai 60s, vapi webhook 30s.
const (
	queryTimeout    = 30 * time.Second
	mutationTimeout = 15 * time.Second
	openaiTimeout   = 60 * time.Second
	vapiTimeout     = 30 * time.Second
)

// Gateway is the Storage Gateway client described in §4.3: a typed
// query/insert/update/delete interface over a bearer-authenticated JSON
// bridge, with auto-refresh and 401-retry-once.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	auth       *authState
}

// New constructs a Gateway. baseURL is the storage bridge's root URL.
func New(baseURL, username, password string) *Gateway {
	g := &Gateway{
		baseURL:  baseURL,
		username: username,
		password: password,
		auth:     &authState{},
	}
	g.httpClient = &http.Client{
		Transport: &bearerTokenTransport{gateway: g},
	}
	return g
}

// Envelope is the server's generic response wrapper for insert/update/remove.
type Envelope struct {
	Success bool           `json:"success"`
	ID      string         `json:"id,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Query executes a parameter-bound SQL SELECT and returns flat records.
// args are sent alongside sql as positional placeholders — callers must
// never interpolate values into sql directly (spec Design Note §9's
// hardening requirement). Auth failures trigger a single silent refresh
// and retry before surfacing (§4.3).
func (g *Gateway) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := g.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	body, status, err := g.doWithRetry(ctx, http.MethodPost, "/query", map[string]any{"sql": sql, "params": args})
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, newError(Transport, fmt.Errorf("query failed: status %d", status))
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, newError(Transport, fmt.Errorf("decode query response: %w", err))
	}
	return translateRowsIn(rows), nil
}

// Insert writes a single record and surfaces duplicate-key errors verbatim.
func (g *Gateway) Insert(ctx context.Context, table string, fields map[string]any) (*Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	if err := g.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{"table": table, "fields": wrapFields(fields)}
	body, status, err := g.doWithRetry(ctx, http.MethodPost, "/insert", payload)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(body, status)
}

// InsertResult is one outcome from an InsertMany call. The batch as a whole
// never fails; each record's outcome is reported independently (§4.3).
type InsertResult struct {
	Success bool   `json:"success"`
	Data    *Envelope `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// InsertMany writes a batch of records, preserving input order. It never
// fails as a whole — a per-record failure is reported in that record's
// result, not returned as an error; a failure of the request itself is
// reported as a failed result for every record.
func (g *Gateway) InsertMany(ctx context.Context, table string, records []map[string]any) ([]InsertResult, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	failAll := func(err error) ([]InsertResult, error) {
		results := make([]InsertResult, len(records))
		for i := range results {
			results[i] = InsertResult{Success: false, Error: err.Error()}
		}
		return results, nil
	}

	if err := g.ensureAuthenticated(ctx); err != nil {
		return failAll(err)
	}

	wrapped := make([]map[string]any, len(records))
	for i, r := range records {
		wrapped[i] = wrapFields(r)
	}

	payload := map[string]any{"table": table, "records": wrapped}
	body, status, err := g.doWithRetry(ctx, http.MethodPost, "/insertMany", payload)
	if err != nil {
		return failAll(err)
	}
	if status >= 400 {
		return failAll(newError(Transport, fmt.Errorf("insertMany failed: status %d", status)))
	}
	var results []InsertResult
	if err := json.Unmarshal(body, &results); err != nil {
		return failAll(newError(Transport, fmt.Errorf("decode insertMany response: %w", err)))
	}
	return results, nil
}

// Update writes fields onto an existing record. A 404 is surfaced.
func (g *Gateway) Update(ctx context.Context, table, id string, fields map[string]any) (*Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	if err := g.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{"table": table, "id": id, "fields": wrapFields(fields)}
	body, status, err := g.doWithRetry(ctx, http.MethodPost, "/update", payload)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(body, status)
}

// Remove deletes a record by id. A 404 is surfaced.
func (g *Gateway) Remove(ctx context.Context, table, id string) (*Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	if err := g.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{"table": table, "id": id}
	body, status, err := g.doWithRetry(ctx, http.MethodPost, "/remove", payload)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(body, status)
}

// OpenAI proxies a chat-completion payload through the storage bridge's
// /openai endpoint (§4.3, §6), 60s timeout.
func (g *Gateway) OpenAI(ctx context.Context, payload map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, openaiTimeout)
	defer cancel()

	if err := g.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	body, status, err := g.doWithRetry(ctx, http.MethodPost, "/openai", payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, newError(Transport, fmt.Errorf("openai call failed: status %d", status))
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, newError(Transport, fmt.Errorf("decode openai response: %w", err))
	}
	return out, nil
}

// VapiWebhook proxies a call-request payload to the legacy bridge's
// webhook-fallback endpoint (§4.6.1), 30s timeout.
func (g *Gateway) VapiWebhook(ctx context.Context, payload map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, vapiTimeout)
	defer cancel()

	if err := g.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	body, status, err := g.doWithRetry(ctx, http.MethodPost, "/vapiWebhook", payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, newError(Transport, fmt.Errorf("vapi webhook call failed: status %d", status))
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, newError(Transport, fmt.Errorf("decode vapi webhook response: %w", err))
	}
	return out, nil
}

// doWithRetry performs a single request, and on a 401 clears the token,
// refreshes once, and retries once before surfacing (§4.3, §7).
func (g *Gateway) doWithRetry(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	body, status, err := g.do(ctx, method, path, payload)
	if err != nil {
		return nil, 0, err
	}
	if status != http.StatusUnauthorized {
		return body, status, nil
	}

	g.clearToken()
	if err := g.refresh(ctx); err != nil {
		return nil, 0, newError(Unauthorized, err)
	}
	body, status, err = g.do(ctx, method, path, payload)
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusUnauthorized {
		return nil, 0, newError(Unauthorized, fmt.Errorf("%s still unauthorized after refresh", path))
	}
	return body, status, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, newError(Transport, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, 0, newError(Transport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, newError(Timeout, err)
		}
		return nil, 0, newError(Transport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, newError(Transport, err)
	}
	return body, resp.StatusCode, nil
}

func decodeEnvelope(body []byte, status int) (*Envelope, error) {
	var env Envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, newError(Transport, fmt.Errorf("decode envelope: %w", err))
		}
	}
	switch {
	case status == http.StatusNotFound:
		return nil, newError(Transport, fmt.Errorf("not found"))
	case status == http.StatusConflict || (status >= 400 && env.Error != "" && isDuplicateKey(env.Error)):
		return nil, newConflict("", fmt.Errorf("%s", env.Error))
	case status >= 400:
		return nil, newError(Transport, fmt.Errorf("status %d: %s", status, env.Error))
	}
	return &env, nil
}

func isDuplicateKey(msg string) bool {
	return bytes.Contains([]byte(msg), []byte("duplicate")) || bytes.Contains([]byte(msg), []byte("unique"))
}
