package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// defaultTokenTTL is assumed when a bearer token's expiry cannot be decoded
// from the token itself (§4.3).
const defaultTokenTTL = 8 * time.Hour

// refreshSkew triggers a login when the token is missing or within this
// window of expiry.
const refreshSkew = 5 * time.Minute

// loginResponse models the storage bridge's dynamic login shape: a bare
// string, {"token": "..."}, or {"Token": "..."}. Spec Design Note §9:
// "model as a tagged variant and decode once at the boundary."
type loginResponse struct {
	Token string `json:"token"`
	Token2 string `json:"Token"`
}

func decodeLoginResponse(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var bare string
		if err := json.Unmarshal(trimmed, &bare); err == nil && bare != "" {
			return bare, nil
		}
	}
	var resp loginResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return "", fmt.Errorf("unrecognized login response shape: %w", err)
	}
	if resp.Token != "" {
		return resp.Token, nil
	}
	if resp.Token2 != "" {
		return resp.Token2, nil
	}
	return "", fmt.Errorf("login response contained no token field")
}

// tokenExpiry decodes the unverified `exp` claim from a bearer token. The
// gateway never validates the signature here — it only trusts the bridge
// that issued the token and uses `exp` to schedule its own refresh.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	expRaw, ok := claims["exp"]
	if !ok {
		return time.Time{}, false
	}
	expFloat, ok := expRaw.(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(expFloat), 0), true
}

// authState is the Gateway's single piece of shared mutable state: the
// bearer token and its expiry, refreshed under a single-flight group so N
// concurrent callers that observe an expired token trigger exactly one
// login (invariant 9).
type authState struct {
	mu      sync.Mutex
	token   string
	expiry  time.Time
	sf      singleflight.Group
}

func (g *Gateway) ensureAuthenticated(ctx context.Context) error {
	if !g.needsLogin() {
		return nil
	}
	_, err, _ := g.auth.sf.Do("login", func() (any, error) {
		// Re-checked inside the group: a caller that saw the stale token
		// just as another caller's login finished does not log in again.
		if !g.needsLogin() {
			return nil, nil
		}
		return nil, g.login(ctx)
	})
	return err
}

func (g *Gateway) needsLogin() bool {
	g.auth.mu.Lock()
	defer g.auth.mu.Unlock()
	return g.auth.token == "" || time.Until(g.auth.expiry) < refreshSkew
}

// refresh performs a login, coalescing concurrent callers onto a single
// in-flight request via singleflight.
func (g *Gateway) refresh(ctx context.Context) error {
	_, err, _ := g.auth.sf.Do("login", func() (any, error) {
		return nil, g.login(ctx)
	})
	return err
}

func (g *Gateway) login(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]string{
		"username": g.username,
		"password": g.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return newError(Transport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return newError(Transport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(Transport, err)
	}
	if resp.StatusCode >= 400 {
		return newError(Transport, fmt.Errorf("login failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	token, err := decodeLoginResponse(body)
	if err != nil {
		return newError(Transport, err)
	}

	expiry, ok := tokenExpiry(token)
	if !ok {
		expiry = time.Now().Add(defaultTokenTTL)
	}

	g.auth.mu.Lock()
	g.auth.token = token
	g.auth.expiry = expiry
	g.auth.mu.Unlock()
	return nil
}

func (g *Gateway) clearToken() {
	g.auth.mu.Lock()
	g.auth.token = ""
	g.auth.mu.Unlock()
}

func (g *Gateway) currentToken() string {
	g.auth.mu.Lock()
	defer g.auth.mu.Unlock()
	return g.auth.token
}

// bearerTokenTransport injects the gateway's current bearer token into
// every outbound request. Grounded on the teacher's
// pkg/mcp/transport.go bearerTokenTransport.RoundTrip.
type bearerTokenTransport struct {
	gateway *Gateway
	base    http.RoundTripper
}

func (t *bearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if token := t.gateway.currentToken(); token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
