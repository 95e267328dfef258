package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fleetops/tracker/pkg/coorddetect"
	"github.com/fleetops/tracker/pkg/models"
)

// micodusBodyVariants are the three POST body shapes tried in order
// against DevicesAjax.asmx. The first 2xx response with a non-empty body
// wins (§4.2 step 3).
func micodusBodyVariants(accessToken string) []map[string]any {
	return []map[string]any{
		{"access_token": accessToken, "s": "1"},
		{"access_token": accessToken},
		{},
	}
}

// asmxEnvelope is the ASP.NET AJAX wrapper shape: {"d": ...}, where d may
// itself be a JSON-encoded string (§4.2 step 4).
type asmxEnvelope struct {
	D json.RawMessage `json:"d"`
}

func (f *Fetcher) fetchMicodus(ctx context.Context, shareURL string) (*Result, error) {
	parsed, err := url.Parse(shareURL)
	if err != nil {
		return nil, fmt.Errorf("parse share url: %w", err)
	}
	accessToken := parsed.Query().Get("access_token")
	if accessToken == "" {
		return nil, errors.New("micodus: access_token query parameter missing")
	}

	cookies, err := f.micodusCollectCookies(ctx, shareURL)
	if err != nil {
		return nil, fmt.Errorf("micodus: initial GET: %w", err)
	}

	ajaxURL := micodusAjaxURL(parsed)
	body, err := f.micodusPostTracking(ctx, ajaxURL, accessToken, cookies)
	if err != nil {
		return nil, fmt.Errorf("micodus: tracking POST: %w", err)
	}

	devices, err := unwrapASMX(body)
	if err != nil {
		return nil, fmt.Errorf("micodus: unwrap response: %w", err)
	}

	var points []models.Point
	for _, device := range devices {
		points = append(points, micodusDeviceToPoints(device)...)
	}

	return &Result{
		Coords:   points,
		Platform: PlatformMicodus,
		Source:   models.SourceHTTPMicodus,
		Raw:      string(body),
	}, nil
}

func micodusAjaxURL(shareURL *url.URL) string {
	base := *shareURL
	base.Path = "/ajax/DevicesAjax.asmx/GetTrackingForShareStatic"
	base.RawQuery = ""
	return base.String()
}

func (f *Fetcher) micodusCollectCookies(ctx context.Context, shareURL string) ([]*http.Cookie, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
	if err != nil {
		return nil, err
	}
	browserHeaders(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.Cookies(), nil
}

func (f *Fetcher) micodusPostTracking(ctx context.Context, ajaxURL, accessToken string, cookies []*http.Cookie) ([]byte, error) {
	var lastErr error
	for _, variant := range micodusBodyVariants(accessToken) {
		payload, err := json.Marshal(variant)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ajaxURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		browserHeaders(req)
		for _, c := range cookies {
			req.AddCookie(c)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 && len(bytes.TrimSpace(body)) > 0 {
			return body, nil
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}
	if lastErr == nil {
		lastErr = errors.New("all body variants returned empty responses")
	}
	return nil, lastErr
}

// unwrapASMX unwraps the {"d": ...} envelope when present and normalizes
// the result to a slice of devices, accepting either a single object or an
// array.
func unwrapASMX(body []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(body)

	var env asmxEnvelope
	payload := trimmed
	if err := json.Unmarshal(trimmed, &env); err == nil && len(env.D) > 0 {
		inner := bytes.TrimSpace(env.D)
		// d may be a JSON-encoded string containing the real payload.
		var asString string
		if err := json.Unmarshal(inner, &asString); err == nil {
			payload = []byte(asString)
		} else {
			payload = inner
		}
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, nil
	}

	if payload[0] == '[' {
		var arr []map[string]any
		if err := json.Unmarshal(payload, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, err
	}
	return []map[string]any{obj}, nil
}

// micodusDeviceToPoints maps a single device object to points via the
// Coord Detector's object walker. Speed, course (as heading) and
// positionTime (as the timestamp) reach the Point through the detector's
// own enrichment lookups; isStop, battery, signal and satellites are not
// carried, since Point has no fields for them.
func micodusDeviceToPoints(device map[string]any) []models.Point {
	points := coorddetect.DetectObject(device)
	for i := range points {
		points[i].Source = models.SourceHTTPMicodus
	}
	return points
}
