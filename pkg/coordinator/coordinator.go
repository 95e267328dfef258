// Package coordinator runs scrape cycles over active providers: fetch,
// dedup, persist, and scrape-log bookkeeping (§4.4).
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetops/tracker/pkg/fetch"
	"github.com/fleetops/tracker/pkg/metrics"
	"github.com/fleetops/tracker/pkg/models"
	"github.com/fleetops/tracker/pkg/storage"
)

// Fetcher fetches coordinates from a provider share URL. Satisfied by
// *fetch.Fetcher; tests substitute a stub, mirroring the teacher's
// SessionExecutor injection pattern (pkg/queue/pool.go).
type Fetcher interface {
	Fetch(ctx context.Context, shareURL string) (*fetch.Result, error)
}

// maxCoordsPerTripPerCycle bounds how many coords from a single provider
// cycle are attributed to any one trip (§4.4 step 5).
const maxCoordsPerTripPerCycle = 50

// dedupWindow is the lookback window for the Δlat/Δlng duplicate check
// (§4.4 step 5, invariant 4).
const dedupWindow = 5 * time.Minute

// Mode selects which providers a cycle considers.
type Mode string

const (
	// ModeAll runs every active provider (manual invocation).
	ModeAll Mode = "all"
	// ModeDue runs only providers whose scrape interval has elapsed
	// (scheduler-driven).
	ModeDue Mode = "due"
)

// CycleResult summarizes one Coordinator run.
type CycleResult struct {
	Skipped        bool
	SkipReason     string
	ProvidersRun   int
	CoordsInserted int
	Errors         []string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Coordinator owns the per-cycle scrape orchestration. Its re-entrancy
// guard is a single boolean flag flipped only inside Run — grounded on
// the teacher's WorkerPool.started guard.
type Coordinator struct {
	store          *storage.Store
	fetcher        Fetcher
	logger         *slog.Logger
	orphanFallback bool

	mu      sync.Mutex
	running bool

	lastResult *CycleResult
}

// New builds a Coordinator. orphanFallback controls whether coords with no
// matching trip are attributed to the first active trip (spec.md §9 Open
// Question, gated behind COORDINATOR_ORPHAN_FALLBACK_ENABLED).
func New(store *storage.Store, fetcher Fetcher, orphanFallback bool) *Coordinator {
	return &Coordinator{
		store:          store,
		fetcher:        fetcher,
		orphanFallback: orphanFallback,
		logger:         slog.Default().With("component", "coordinator"),
	}
}

// LastResult returns the most recently completed cycle's summary, or nil
// if no cycle has run yet.
func (c *Coordinator) LastResult() *CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// IsRunning reports whether a cycle is currently in flight.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Run executes one cycle in the given mode. A concurrent call returns
// immediately with Skipped=true (invariant 8) and no side effects.
func (c *Coordinator) Run(ctx context.Context, mode Mode) *CycleResult {
	return c.run(ctx, mode, "")
}

// RunProvider executes one cycle scoped to a single provider, regardless
// of mode (§6 POST /api/scraper/run with a providerId). Subject to the
// same re-entrancy guard as Run.
func (c *Coordinator) RunProvider(ctx context.Context, providerID string) *CycleResult {
	return c.run(ctx, ModeAll, providerID)
}

func (c *Coordinator) run(ctx context.Context, mode Mode, onlyProviderID string) *CycleResult {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Info("cycle skipped: already running")
		metrics.Get().RecordCycle("skipped", 0, 0, 0)
		return &CycleResult{Skipped: true, SkipReason: "already_running"}
	}
	c.running = true
	c.mu.Unlock()
	metrics.Get().SchedulerInFlight.Set(1)

	defer func() {
		metrics.Get().SchedulerInFlight.Set(0)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	result := c.runCycle(ctx, mode, onlyProviderID)

	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "partial_error"
	}
	metrics.Get().RecordCycle(outcome, result.FinishedAt.Sub(result.StartedAt), result.ProvidersRun, result.CoordsInserted)

	c.mu.Lock()
	c.lastResult = result
	c.mu.Unlock()
	return result
}

func (c *Coordinator) runCycle(ctx context.Context, mode Mode, onlyProviderID string) *CycleResult {
	result := &CycleResult{StartedAt: time.Now()}
	defer func() { result.FinishedAt = time.Now() }()

	providers, err := c.store.ActiveProviders(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("load providers: %v", err))
		return result
	}

	if mode == ModeDue {
		providers = dueProviders(providers, time.Now())
		metrics.Get().ProvidersDue.Set(float64(len(providers)))
	}
	if onlyProviderID != "" {
		providers = filterProvider(providers, onlyProviderID)
	}

	trips, err := c.store.ActiveTrips(ctx, models.TripStateEnRuta)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("load trips: %v", err))
		return result
	}

	for _, provider := range providers {
		if err := c.runProvider(ctx, provider, trips, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("provider %s: %v", provider.ID, err))
		}
		result.ProvidersRun++
	}

	return result
}

func dueProviders(providers []*models.Provider, now time.Time) []*models.Provider {
	out := make([]*models.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Due(now) {
			out = append(out, p)
		}
	}
	return out
}

func filterProvider(providers []*models.Provider, providerID string) []*models.Provider {
	for _, p := range providers {
		if p.ID == providerID {
			return []*models.Provider{p}
		}
	}
	return nil
}

func (c *Coordinator) runProvider(ctx context.Context, provider *models.Provider, allTrips []*models.Trip, result *CycleResult) error {
	correlationID := uuid.NewString()
	logger := c.logger.With("correlation_id", correlationID, "provider_id", provider.ID)

	logID, err := c.store.CreateScrapeLog(ctx, &models.ScrapeLog{
		ProviderID:    provider.ID,
		CorrelationID: correlationID,
		Status:        models.ScrapeRunning,
		StartedAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("create scrape log: %w", err)
	}

	fetchResult, fetchErr := c.fetcher.Fetch(ctx, provider.BaseURL)
	now := time.Now()

	if fetchErr != nil {
		logger.Warn("provider fetch failed", "error", fetchErr)
		_ = c.store.FinalizeScrapeLog(ctx, logID, &models.ScrapeLog{
			Status:    models.ScrapeError,
			ErrorText: fetchErr.Error(),
		})
		_ = c.store.UpdateProviderScrapeResult(ctx, provider.ID, now, fetchErr.Error())
		return fetchErr
	}

	matched := tripsForProvider(allTrips, provider.ID)
	if len(matched) == 0 && c.orphanFallback && len(allTrips) > 0 {
		matched = allTrips[:1]
	}

	inserted := 0
	for _, trip := range matched {
		n, err := c.persistForTrip(ctx, provider, trip, fetchResult.Coords, fetchResult.Source)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("trip %s: %v", trip.ID, err))
			continue
		}
		inserted += n
	}
	result.CoordsInserted += inserted

	_ = c.store.FinalizeScrapeLog(ctx, logID, &models.ScrapeLog{
		Status:  models.ScrapeSuccess,
		Found:   len(fetchResult.Coords),
		New:     inserted,
		Sources: []string{string(fetchResult.Source)},
	})
	_ = c.store.UpdateProviderScrapeResult(ctx, provider.ID, now, "")
	return nil
}

func tripsForProvider(trips []*models.Trip, providerID string) []*models.Trip {
	out := make([]*models.Trip, 0, len(trips))
	for _, t := range trips {
		if t.BelongsToProvider(providerID) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Coordinator) persistForTrip(ctx context.Context, provider *models.Provider, trip *models.Trip, points []models.Point, source models.SourceTag) (int, error) {
	since := time.Now().Add(-dedupWindow)
	existing, err := c.store.RecentCoordinatesForDedup(ctx, trip.ID, since)
	if err != nil {
		existing = nil
	}

	inserted := 0
	var lastLat, lastLng float64
	var lastAt time.Time
	for i, p := range points {
		if i >= maxCoordsPerTripPerCycle {
			break
		}
		if isDuplicate(existing, p.Lat, p.Lng) {
			continue
		}

		coord := &models.Coordinate{
			TripID:        &trip.ID,
			ProviderID:    provider.ID,
			Lat:           p.Lat,
			Lng:           p.Lng,
			Speed:         p.Speed,
			Heading:       p.Heading,
			GPSTimestamp:  parseGPSTimestamp(p.Timestamp),
			IngestionTime: time.Now(),
			Source:        source,
		}
		if err := c.store.InsertCoordinate(ctx, coord); err != nil {
			continue
		}
		existing = append(existing, coord)
		inserted++
		lastLat, lastLng = p.Lat, p.Lng
		lastAt = coord.IngestionTime
	}

	if inserted > 0 {
		if err := c.store.UpdateTripPosition(ctx, trip.ID, lastLat, lastLng, lastAt); err != nil {
			return inserted, err
		}
		if err := c.store.AppendEvent(ctx, &models.UnitEvent{
			TripID:      trip.ID,
			Type:        models.EventScrapeExitoso,
			Description: fmt.Sprintf("%d new position(s) recorded", inserted),
			OccurredAt:  time.Now(),
		}); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// isDuplicate implements the dedup rule: same trip, Δlat<1e-5 AND
// Δlng<1e-5, within the last 5 minutes (§4.4 step 5, invariant 4).
func isDuplicate(existing []*models.Coordinate, lat, lng float64) bool {
	candidate := &models.Coordinate{Lat: lat, Lng: lng}
	for _, e := range existing {
		if candidate.NearDuplicate(e) {
			return true
		}
	}
	return false
}

// gpsTimestampLayouts are the raw formats the Coord Detector's object
// walker has been observed to carry through Point.Timestamp: a plain
// SQL-style datetime (Micodus positionTime, scenario S1) and RFC3339
// (GPSWox and other generic feeds).
var gpsTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseGPSTimestamp converts the raw Timestamp string attached by the
// Coord Detector into a *time.Time, trying each known device-reported
// layout before falling back to epoch seconds/milliseconds. Returns nil
// if raw is empty or matches none of them, leaving Coordinate.GPSTimestamp
// unset rather than persisting a fabricated time.
func parseGPSTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range gpsTimestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		switch {
		case epoch > 1e15: // microseconds
			t := time.UnixMicro(epoch)
			return &t
		case epoch > 1e12: // milliseconds
			t := time.UnixMilli(epoch)
			return &t
		default: // seconds
			t := time.Unix(epoch, 0)
			return &t
		}
	}
	return nil
}
