package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetops/tracker/pkg/models"
)

// Store layers typed, parameter-bound domain operations over the raw
// Gateway, the way the teacher's service layer (e.g.
// pkg/services/event_service.go) layers typed create/query/cleanup methods
// over a raw ent client. Every query here is parameter-bound through
// Gateway.Query — no caller is allowed to build SQL by string
// interpolation (spec Design Note §9 hardening requirement).
type Store struct {
	gw *Gateway
}

// NewStore wraps a Gateway with typed domain operations.
func NewStore(gw *Gateway) *Store {
	return &Store{gw: gw}
}

func (s *Store) ActiveProviders(ctx context.Context) ([]*models.Provider, error) {
	rows, err := s.gw.Query(ctx, "SELECT * FROM providers WHERE active = ? ORDER BY scrape_interval_minutes ASC", true)
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Provider](rows)
}

func (s *Store) ActiveTrips(ctx context.Context, state models.TripState) ([]*models.Trip, error) {
	rows, err := s.gw.Query(ctx, "SELECT * FROM trips WHERE state = ?", string(state))
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Trip](rows)
}

func (s *Store) AIEnabledTrips(ctx context.Context, state models.TripState) ([]*models.Trip, error) {
	rows, err := s.gw.Query(ctx, "SELECT * FROM trips WHERE state = ? AND ai_calls_enabled = ?", string(state), true)
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Trip](rows)
}

// RecentCoordinates fetches the last limit coordinates for a trip within
// the lookback window, newest-first (§4.5 step 1).
func (s *Store) RecentCoordinates(ctx context.Context, tripID string, since time.Time, limit int) ([]*models.Coordinate, error) {
	rows, err := s.gw.Query(ctx,
		"SELECT * FROM coordinates WHERE trip_id = ? AND ingestion_timestamp >= ? ORDER BY ingestion_timestamp DESC LIMIT ?",
		tripID, since, limit)
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Coordinate](rows)
}

// RecentCoordinatesForDedup loads the trip's coordinates ingested since
// since; the Coordinator checks new points against them for near-duplicates
// (§4.4 dedup rule).
func (s *Store) RecentCoordinatesForDedup(ctx context.Context, tripID string, since time.Time) ([]*models.Coordinate, error) {
	rows, err := s.gw.Query(ctx,
		"SELECT * FROM coordinates WHERE trip_id = ? AND ingestion_timestamp >= ?",
		tripID, since)
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Coordinate](rows)
}

func (s *Store) InsertCoordinate(ctx context.Context, c *models.Coordinate) error {
	fields := map[string]any{
		"provider_id":          c.ProviderID,
		"lat":                  c.Lat,
		"lng":                  c.Lng,
		"ingestion_timestamp":  c.IngestionTime,
		"source_tag":           string(c.Source),
	}
	if c.TripID != nil {
		fields["trip_id"] = *c.TripID
	}
	if c.Speed != nil {
		fields["speed"] = *c.Speed
	}
	if c.Heading != nil {
		fields["heading"] = *c.Heading
	}
	if c.GPSTimestamp != nil {
		fields["gps_timestamp"] = *c.GPSTimestamp
	}
	_, err := s.gw.Insert(ctx, "coordinates", fields)
	return err
}

func (s *Store) UpdateTripPosition(ctx context.Context, tripID string, lat, lng float64, at time.Time) error {
	_, err := s.gw.Update(ctx, "trips", tripID, map[string]any{
		"last_lat":             lat,
		"last_lng":             lng,
		"last_gps_update_at":   at,
	})
	return err
}

func (s *Store) UpdateProviderScrapeResult(ctx context.Context, providerID string, at time.Time, errText string) error {
	_, err := s.gw.Update(ctx, "providers", providerID, map[string]any{
		"last_scrape_at": at,
		"last_error_text": errText,
	})
	return err
}

func (s *Store) CreateScrapeLog(ctx context.Context, log *models.ScrapeLog) (string, error) {
	fields := map[string]any{
		"provider_id": log.ProviderID,
		"status":      string(log.Status),
		"started_at":  log.StartedAt,
	}
	if log.CorrelationID != "" {
		fields["correlation_id"] = log.CorrelationID
	}
	env, err := s.gw.Insert(ctx, "scrape_logs", fields)
	if err != nil {
		return "", err
	}
	return env.ID, nil
}

func (s *Store) FinalizeScrapeLog(ctx context.Context, id string, log *models.ScrapeLog) error {
	_, err := s.gw.Update(ctx, "scrape_logs", id, map[string]any{
		"status":      string(log.Status),
		"finished_at": time.Now(),
		"found":       log.Found,
		"new_count":   log.New,
		"sources":     log.Sources,
		"error_text":  log.ErrorText,
	})
	return err
}

func (s *Store) AppendEvent(ctx context.Context, e *models.UnitEvent) error {
	_, err := s.gw.Insert(ctx, "unit_events", map[string]any{
		"trip_id":     e.TripID,
		"event_type":  string(e.Type),
		"description": e.Description,
		"occurred_at": e.OccurredAt,
	})
	return err
}

// RecentEventExists reports whether an event of the given type exists for
// the trip within the window — used for the stop-detector debounce (§4.5
// step 6) and treated as "no recent alert" on read failure (§7).
func (s *Store) RecentEventExists(ctx context.Context, tripID string, eventType models.EventType, since time.Time) bool {
	rows, err := s.gw.Query(ctx,
		"SELECT id FROM unit_events WHERE trip_id = ? AND event_type = ? AND occurred_at >= ? LIMIT 1",
		tripID, string(eventType), since)
	if err != nil {
		return false
	}
	return len(rows) > 0
}

// RecentCallExists reports whether an AI call of the given kind exists for
// the trip within the window (debounce condition (a), §4.5 step 6).
func (s *Store) RecentCallExists(ctx context.Context, tripID string, kind models.CallKind, since time.Time) bool {
	rows, err := s.gw.Query(ctx,
		"SELECT id FROM ai_call_logs WHERE trip_id = ? AND kind = ? AND started_at >= ? LIMIT 1",
		tripID, string(kind), since)
	if err != nil {
		return false
	}
	return len(rows) > 0
}

func (s *Store) ContactsForTrip(ctx context.Context, tripID string) ([]*models.Contact, error) {
	rows, err := s.gw.Query(ctx, "SELECT * FROM contacts WHERE trip_id = ?", tripID)
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Contact](rows)
}

// ResolveAIProtocol loads the trip-specific protocol, falling back to the
// default (trip_id IS NULL) row.
func (s *Store) ResolveAIProtocol(ctx context.Context, tripID string) (*models.AIProtocol, error) {
	rows, err := s.gw.Query(ctx, "SELECT * FROM ai_protocols WHERE trip_id = ? LIMIT 1", tripID)
	if err != nil {
		return nil, err
	}
	protocols, err := decodeRows[models.AIProtocol](rows)
	if err != nil {
		return nil, err
	}
	if len(protocols) > 0 {
		return protocols[0], nil
	}

	rows, err = s.gw.Query(ctx, "SELECT * FROM ai_protocols WHERE trip_id IS NULL LIMIT 1")
	if err != nil {
		return nil, err
	}
	protocols, err = decodeRows[models.AIProtocol](rows)
	if err != nil {
		return nil, err
	}
	if len(protocols) > 0 {
		return protocols[0], nil
	}
	return &models.AIProtocol{CallsEnabled: true, StopThresholdMinutes: 30, LanguageCode: "es"}, nil
}

func (s *Store) InsertCallLog(ctx context.Context, l *models.AICallLog) (string, error) {
	fields := map[string]any{
		"trip_id":              l.TripID,
		"kind":                 string(l.Kind),
		"called_phone":         l.CalledPhone,
		"recipient_role":       string(l.RecipientRole),
		"started_at":           l.StartedAt,
		"duration_seconds":     l.DurationSeconds,
		"outcome":              string(l.Outcome),
		"conversation_summary": l.ConversationSummary,
		"motive_text":          l.MotiveText,
		"call_lat":             l.CallLat,
		"call_lng":             l.CallLng,
	}
	if l.ExternalCallID != "" {
		fields["external_call_id"] = l.ExternalCallID
	}
	env, err := s.gw.Insert(ctx, "ai_call_logs", fields)
	if err != nil {
		return "", err
	}
	return env.ID, nil
}

// ReconcileCallLog updates a call log's outcome/duration when the
// asynchronous end-of-call-report webhook arrives (spec.md §9 Open
// Question 2).
func (s *Store) ReconcileCallLog(ctx context.Context, externalCallID string, outcome models.CallOutcome, durationSeconds int, summary string) error {
	rows, err := s.gw.Query(ctx, "SELECT id FROM ai_call_logs WHERE external_call_id = ? LIMIT 1", externalCallID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no call log found for external call id %q", externalCallID)
	}
	id, _ := rows[0]["id"].(string)
	_, err = s.gw.Update(ctx, "ai_call_logs", id, map[string]any{
		"outcome":              string(outcome),
		"duration_seconds":     durationSeconds,
		"conversation_summary": summary,
	})
	return err
}

// VapiWebhook proxies a call-request payload through the storage bridge's
// webhook-fallback endpoint, for deployments with no direct voice-agent
// credentials configured (§4.6.1).
func (s *Store) VapiWebhook(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return s.gw.VapiWebhook(ctx, payload)
}

func decodeRows[T any](rows []map[string]any) ([]*T, error) {
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("re-marshal row: %w", err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode row into %T: %w", v, err)
		}
		out = append(out, &v)
	}
	return out, nil
}
