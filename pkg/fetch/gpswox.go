package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/fleetops/tracker/pkg/coorddetect"
	"github.com/fleetops/tracker/pkg/models"
)

func (f *Fetcher) fetchGPSWox(ctx context.Context, shareURL string) (*Result, error) {
	pageHTML, err := f.getPage(ctx, shareURL)
	if err != nil {
		return nil, fmt.Errorf("gpswox: fetch page: %w", err)
	}

	if points := extractMapQueryLinks(pageHTML); len(points) > 0 {
		tagSource(points, models.SourceHTTPGPSWox)
		return &Result{Coords: points, Platform: PlatformGPSWox, Source: models.SourceHTTPGPSWox, Raw: pageHTML}, nil
	}

	points := coorddetect.Detect(pageHTML)
	tagSource(points, models.SourceHTTPGPSWox)
	return &Result{Coords: points, Platform: PlatformGPSWox, Source: models.SourceHTTPGPSWox, Raw: pageHTML}, nil
}

func (f *Fetcher) getPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	browserHeaders(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
