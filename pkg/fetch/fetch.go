// Package fetch implements the per-platform HTTP adapters that turn a
// provider share-link into a set of decoded GPS fixes.
package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fleetops/tracker/pkg/models"
)

// Platform identifies the share-link host family a URL was dispatched to.
type Platform string

const (
	PlatformMicodus Platform = "micodus"
	PlatformGPSWox  Platform = "gpswox"
	PlatformTraccar Platform = "traccar"
	PlatformGeneric Platform = "generic"
)

// platformTable is the ordered case-insensitive host substring match used
// by detectPlatform (§4.2). Traccar is reserved: recognized but routed to
// the Generic adapter until a dedicated one is written.
var platformTable = []struct {
	substr   string
	platform Platform
}{
	{"micodus", PlatformMicodus},
	{"gpswox", PlatformGPSWox},
	{"traccar", PlatformTraccar},
}

// detectPlatform is total over strings: it always returns one of the four
// known platform tags, defaulting to Generic (invariant 10). A string with
// no parseable host is matched as a whole.
func detectPlatform(shareURL string) Platform {
	lower := strings.ToLower(shareURL)
	if u, err := url.Parse(shareURL); err == nil && u.Host != "" {
		lower = strings.ToLower(u.Host)
	}
	for _, entry := range platformTable {
		if strings.Contains(lower, entry.substr) {
			return entry.platform
		}
	}
	return PlatformGeneric
}

// Result is the fetcher's output: the decoded coords plus provenance.
type Result struct {
	Coords   []models.Point
	Platform Platform
	Source   models.SourceTag
	Raw      string
}

// Fetcher dispatches a share URL to the adapter matching its platform.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Fetcher with the given per-call timeout (§5: fetchers 15s
// default, configurable).
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "fetch"),
	}
}

// Fetch dispatches shareURL to the platform-appropriate adapter. A fetcher
// error is the coordinator's signal to mark the provider cycle as failed
// and move on (§4.2 failure semantics) — Fetch never panics.
func (f *Fetcher) Fetch(ctx context.Context, shareURL string) (*Result, error) {
	platform := detectPlatform(shareURL)
	f.logger.Debug("dispatching fetch", "platform", platform, "url", shareURL)

	switch platform {
	case PlatformMicodus:
		return f.fetchMicodus(ctx, shareURL)
	case PlatformGPSWox:
		return f.fetchGPSWox(ctx, shareURL)
	default:
		return f.fetchGeneric(ctx, shareURL)
	}
}

// browserHeaders mirrors a desktop Chrome 120 session (§6 outbound
// protocols): provider portals behind bot-detection expect these.
func browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,es;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
}
