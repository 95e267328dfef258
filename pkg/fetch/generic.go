package fetch

import (
	"context"
	"fmt"

	"github.com/fleetops/tracker/pkg/coorddetect"
	"github.com/fleetops/tracker/pkg/models"
)

const (
	minScriptBody  = 20
	maxScriptBody  = 100_000
	maxGenericScan = 200_000
)

// fetchGeneric tries, in order: map-query links, inline <script> bodies
// within bounds, then the full HTML truncated to 200k chars. All results
// are tagged http_generic (§4.2).
func (f *Fetcher) fetchGeneric(ctx context.Context, shareURL string) (*Result, error) {
	pageHTML, err := f.getPage(ctx, shareURL)
	if err != nil {
		return nil, fmt.Errorf("generic: fetch page: %w", err)
	}

	if points := extractMapQueryLinks(pageHTML); len(points) > 0 {
		tagSource(points, models.SourceHTTPGeneric)
		return &Result{Coords: points, Platform: PlatformGeneric, Source: models.SourceHTTPGeneric, Raw: pageHTML}, nil
	}

	if points := scanScriptBodies(pageHTML); len(points) > 0 {
		tagSource(points, models.SourceHTTPGeneric)
		return &Result{Coords: points, Platform: PlatformGeneric, Source: models.SourceHTTPGeneric, Raw: pageHTML}, nil
	}

	truncated := pageHTML
	if len(truncated) > maxGenericScan {
		truncated = truncated[:maxGenericScan]
	}
	points := coorddetect.Detect(truncated)
	tagSource(points, models.SourceHTTPGeneric)
	return &Result{Coords: points, Platform: PlatformGeneric, Source: models.SourceHTTPGeneric, Raw: pageHTML}, nil
}

func scanScriptBodies(pageHTML string) []models.Point {
	var out []models.Point
	for _, body := range scriptBodies(pageHTML) {
		if len(body) < minScriptBody || len(body) > maxScriptBody {
			continue
		}
		out = append(out, coorddetect.Detect(body)...)
	}
	return out
}
