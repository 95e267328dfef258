// Package stopdetect classifies trips as stopped or moving from their
// recent coordinate history (§4.5).
package stopdetect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetops/tracker/pkg/metrics"
	"github.com/fleetops/tracker/pkg/models"
	"github.com/fleetops/tracker/pkg/storage"
)

// spreadThresholdMeters: above this, the vehicle is moving (§4.5 step 3).
const spreadThresholdMeters = 100.0

// speedThresholdKMH: any coord above this disqualifies a cluster as
// motion, even if geographically tight (§4.5 step 4).
const speedThresholdKMH = 5.0

// debounceWindow suppresses re-alerting on the same stop (§4.5 step 6,
// invariant 5).
const debounceWindow = 60 * time.Minute

// minCoordsRequired is the minimum sample size for a conclusive
// classification (§4.5 step 2).
const minCoordsRequired = 2

// lookbackFloorMinutes is the minimum lookback window regardless of
// threshold (§4.5 step 1: max(threshold*3, 1440)).
const lookbackFloorMinutes = 1440

// maxCoordsFetched bounds the per-trip coordinate read (§4.5 step 1).
const maxCoordsFetched = 50

type point struct {
	lat   float64
	lng   float64
	speed *float64
	at    time.Time
}

// Detector runs the classification described in §4.5 over a set of
// AI-enabled, en-route trips.
type Detector struct {
	store  *storage.Store
	logger *slog.Logger
}

func New(store *storage.Store) *Detector {
	return &Detector{store: store, logger: slog.Default().With("component", "stopdetect")}
}

// Run evaluates every trip in trips and returns a StopEvent for each one
// confirmed stopped and not currently debounced. On emission it also
// appends the alerta_paro_ia event that doubles as the next cycle's
// debounce token.
func (d *Detector) Run(ctx context.Context, trips []*models.Trip) ([]*models.StopEvent, error) {
	var out []*models.StopEvent
	for _, trip := range trips {
		ev, err := d.classify(ctx, trip)
		if err != nil {
			d.logger.Warn("trip classification failed", "trip_id", trip.ID, "error", err)
			continue
		}
		if ev == nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (d *Detector) classify(ctx context.Context, trip *models.Trip) (*models.StopEvent, error) {
	threshold := trip.Threshold()
	lookbackMin := threshold * 3
	if lookbackMin < lookbackFloorMinutes {
		lookbackMin = lookbackFloorMinutes
	}
	since := time.Now().Add(-time.Duration(lookbackMin) * time.Minute)

	coords, err := d.store.RecentCoordinates(ctx, trip.ID, since, maxCoordsFetched)
	if err != nil {
		return nil, fmt.Errorf("load coordinates: %w", err)
	}
	if len(coords) < minCoordsRequired {
		return nil, nil
	}

	pts := toPoints(coords)

	if maxPairwiseSpread(pts) > spreadThresholdMeters {
		return nil, nil
	}

	for _, p := range pts {
		if p.speed != nil && *p.speed > speedThresholdKMH {
			return nil, nil
		}
	}

	dwellMinutes := dwellMinutes(pts)
	if dwellMinutes < threshold {
		return nil, nil
	}

	since60 := time.Now().Add(-debounceWindow)
	if d.store.RecentCallExists(ctx, trip.ID, models.CallKindParo, since60) ||
		d.store.RecentEventExists(ctx, trip.ID, models.EventAlertaParoIA, since60) {
		metrics.Get().RecordStopDetection("debounced")
		return nil, nil
	}

	newest := pts[0]
	ev := &models.StopEvent{
		TripID:         trip.ID,
		Trip:           trip,
		StoppedMinutes: dwellMinutes,
		Threshold:      threshold,
		LastLat:        newest.lat,
		LastLng:        newest.lng,
		LastCoordTime:  newest.at,
		CoordCount:     len(pts),
	}

	if err := d.store.AppendEvent(ctx, &models.UnitEvent{
		TripID:      trip.ID,
		Type:        models.EventAlertaParoIA,
		Description: fmt.Sprintf("stop detected: stationary for %d minutes (threshold %d)", dwellMinutes, threshold),
		OccurredAt:  time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("append debounce event: %w", err)
	}

	metrics.Get().RecordStopDetection("confirmed")
	return ev, nil
}

func toPoints(coords []*models.Coordinate) []point {
	out := make([]point, 0, len(coords))
	for _, c := range coords {
		out = append(out, point{lat: c.Lat, lng: c.Lng, speed: c.Speed, at: c.IngestionTime})
	}
	return out
}

// dwellMinutes is the span between the newest and oldest fetched coords.
// coords are ordered newest-first per RecentCoordinates' query.
func dwellMinutes(pts []point) int {
	if len(pts) == 0 {
		return 0
	}
	newest := pts[0].at
	oldest := pts[0].at
	for _, p := range pts {
		if p.at.After(newest) {
			newest = p.at
		}
		if p.at.Before(oldest) {
			oldest = p.at
		}
	}
	return int(newest.Sub(oldest).Minutes())
}
