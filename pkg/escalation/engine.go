// Package escalation owns the outbound-call chain triggered by a
// confirmed stop: fixed contact order, contextual hand-off, and call
// placement (§4.6).
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetops/tracker/pkg/config"
	"github.com/fleetops/tracker/pkg/metrics"
	"github.com/fleetops/tracker/pkg/models"
	"github.com/fleetops/tracker/pkg/storage"
)

// Engine processes confirmed StopEvents into outbound AI voice calls.
type Engine struct {
	store  *storage.Store
	voice  VoiceClient
	config *config.Config
	logger *slog.Logger
}

func New(store *storage.Store, voice VoiceClient, cfg *config.Config) *Engine {
	return &Engine{
		store:  store,
		voice:  voice,
		config: cfg,
		logger: slog.Default().With("component", "escalation"),
	}
}

// ProcessResult summarizes one StopEvent's escalation outcome.
type ProcessResult struct {
	TripID       string
	CallsPlaced  int
	StoppedAtRole models.ContactRole
	Answered     bool
}

// Process handles each event in events sequentially. Different events MAY
// safely be processed concurrently by the caller — the per-trip debounce
// already prevents duplication — but a single event's role calls are
// always strictly sequential within Process, since hand-off context is
// not associative (§5, §9).
func (e *Engine) Process(ctx context.Context, events []*models.StopEvent) ([]*ProcessResult, error) {
	results := make([]*ProcessResult, 0, len(events))
	for _, ev := range events {
		r, err := e.processOne(ctx, ev)
		if err != nil {
			e.logger.Warn("escalation failed for trip", "trip_id", ev.TripID, "error", err)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func (e *Engine) processOne(ctx context.Context, ev *models.StopEvent) (*ProcessResult, error) {
	if err := e.store.AppendEvent(ctx, &models.UnitEvent{
		TripID:      ev.TripID,
		Type:        models.EventAlertaParoIA,
		Description: "paro detectado: iniciando cadena de escalamiento",
		OccurredAt:  time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("append paro-detectado event: %w", err)
	}

	contacts, err := e.store.ContactsForTrip(ctx, ev.TripID)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	byRole := make(map[models.ContactRole]*models.Contact, len(contacts))
	for _, c := range contacts {
		byRole[c.Role] = c
	}

	protocol, err := e.store.ResolveAIProtocol(ctx, ev.TripID)
	if err != nil {
		return nil, fmt.Errorf("resolve ai protocol: %w", err)
	}

	base := baseMotive(ev)
	result := &ProcessResult{TripID: ev.TripID}

	var operatorAnswered bool
	var operatorSummary string

	for _, role := range models.EscalationOrder {
		contact, ok := byRole[role]
		if !ok || contact.Phone == "" {
			continue
		}

		motive := base
		switch role {
		case models.RoleOperador:
			motive = base
		case models.RoleCliente:
			motive = base
		default:
			motive = operatorHandoffMotive(base, operatorAnswered, operatorSummary)
		}

		outcome, err := e.placeCall(ctx, ev, contact, protocol, motive)
		if err != nil {
			e.logger.Warn("call placement failed", "trip_id", ev.TripID, "role", role, "error", err)
			continue
		}

		if err := e.logCall(ctx, ev, contact, motive, outcome); err != nil {
			e.logger.Warn("failed to persist call log", "trip_id", ev.TripID, "role", role, "error", err)
		}
		metrics.Get().RecordCall(string(role), outcome.Outcome, time.Duration(outcome.DurationSeconds)*time.Second)

		eventType := models.EventLlamadaIACoordinador
		if role == models.RoleOperador {
			eventType = models.EventLlamadaIAOperador
		}
		_ = e.store.AppendEvent(ctx, &models.UnitEvent{
			TripID:      ev.TripID,
			Type:        eventType,
			Description: fmt.Sprintf("llamada IA a %s: %s", role, outcome.Outcome),
			OccurredAt:  time.Now(),
		})

		result.CallsPlaced++
		result.StoppedAtRole = role
		result.Answered = outcome.Answered

		if role == models.RoleOperador {
			operatorAnswered = outcome.Answered
			operatorSummary = outcome.Summary
			// The policy always informs the next coordinator regardless of
			// whether the operator answered (§4.6 step "do not stop").
			continue
		}

		if outcome.Answered {
			break
		}
	}

	return result, nil
}

func (e *Engine) placeCall(ctx context.Context, ev *models.StopEvent, contact *models.Contact, protocol *models.AIProtocol, motive string) (*CallOutcome, error) {
	locale := e.config.Locale(protocol.Language())
	unitLabel := ev.Trip.Placas
	if unitLabel == "" && ev.Trip.UnitID != "" {
		unitLabel = ev.Trip.UnitID
	}

	prompt := buildSystemPrompt(systemPromptParams{
		locale:             locale,
		languageCode:       protocol.Language(),
		tripID:             ev.TripID,
		unitLabel:          unitLabel,
		stoppedMinutes:     ev.StoppedMinutes,
		lat:                ev.LastLat,
		lng:                ev.LastLng,
		thresholdMinutes:   ev.Threshold,
		contextMotive:      motive,
		customInstructions: protocol.ProtocolText,
	})

	req := CallRequest{
		TripID:           ev.TripID,
		ContactRole:      string(contact.Role),
		DestinationPhone: NormalizePhone(contact.Phone),
		StoppedMinutes:   ev.StoppedMinutes,
		Greeting:         buildGreeting(locale, unitLabel),
		SystemPrompt:      prompt,
		EndCallMessage:   locale.EndCallMessage,
		LanguageCode:     protocol.Language(),
	}

	return e.voice.PlaceCall(ctx, req)
}

// ManualCall places a single call outside the escalation chain and
// persists it with kind=verificacion (§6 POST /api/ai/api/manual-call).
func (e *Engine) ManualCall(ctx context.Context, tripID string, role models.ContactRole, message string) (*CallOutcome, error) {
	contacts, err := e.store.ContactsForTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	var contact *models.Contact
	for _, c := range contacts {
		if c.Role == role {
			contact = c
			break
		}
	}
	if contact == nil || contact.Phone == "" {
		return nil, fmt.Errorf("no contact with phone for role %q on trip %q", role, tripID)
	}

	protocol, err := e.store.ResolveAIProtocol(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("resolve ai protocol: %w", err)
	}

	motive := message
	if motive == "" {
		motive = "Llamada de verificación manual."
	}

	ev := &models.StopEvent{TripID: tripID, Trip: &models.Trip{ID: tripID}}
	outcome, err := e.placeCall(ctx, ev, contact, protocol, motive)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.InsertCallLog(ctx, &models.AICallLog{
		TripID:              tripID,
		Kind:                models.CallKindVerificacion,
		CalledPhone:         NormalizePhone(contact.Phone),
		RecipientRole:       role,
		StartedAt:           time.Now(),
		DurationSeconds:     outcome.DurationSeconds,
		Outcome:             models.CallOutcome(outcome.Outcome),
		ConversationSummary: outcome.Summary,
		MotiveText:          motive,
		ExternalCallID:      outcome.ExternalCallID,
	}); err != nil {
		return nil, fmt.Errorf("persist call log: %w", err)
	}

	return outcome, nil
}

func (e *Engine) logCall(ctx context.Context, ev *models.StopEvent, contact *models.Contact, motive string, outcome *CallOutcome) error {
	_, err := e.store.InsertCallLog(ctx, &models.AICallLog{
		TripID:              ev.TripID,
		Kind:                models.CallKindParo,
		CalledPhone:         NormalizePhone(contact.Phone),
		RecipientRole:       contact.Role,
		StartedAt:           time.Now(),
		DurationSeconds:     outcome.DurationSeconds,
		Outcome:             models.CallOutcome(outcome.Outcome),
		ConversationSummary: outcome.Summary,
		MotiveText:          motive,
		CallLat:             ev.LastLat,
		CallLng:             ev.LastLng,
		ExternalCallID:      outcome.ExternalCallID,
	})
	return err
}
