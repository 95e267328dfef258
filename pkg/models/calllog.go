package models

import "time"

// CallKind distinguishes why an outbound AI call was placed.
type CallKind string

const (
	CallKindParo         CallKind = "paro"
	CallKindAccidente    CallKind = "accidente"
	CallKindVerificacion CallKind = "verificacion"
)

// CallOutcome is the terminal status of an outbound AI call.
type CallOutcome string

const (
	OutcomeAtendida   CallOutcome = "atendida"
	OutcomeNoAtendida CallOutcome = "no_atendida"
	OutcomeBuzon      CallOutcome = "buzon"
	OutcomeError      CallOutcome = "error"
)

// AICallLog is a record of a single outbound voice-agent call.
type AICallLog struct {
	ID                  string      `json:"id,omitempty"`
	TripID              string      `json:"trip_id"`
	Kind                CallKind    `json:"kind"`
	CalledPhone         string      `json:"called_phone"`
	RecipientRole       ContactRole `json:"recipient_role"`
	StartedAt           time.Time   `json:"started_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	DurationSeconds     int         `json:"duration_seconds"`
	Outcome             CallOutcome `json:"outcome"`
	ConversationSummary string      `json:"conversation_summary,omitempty"`
	MotiveText          string      `json:"motive_text"`
	CallLat             float64     `json:"call_lat"`
	CallLng             float64     `json:"call_lng"`
	ExternalCallID       string     `json:"external_call_id,omitempty"`
}

// Answered reports whether the call was answered by a human.
func (l *AICallLog) Answered() bool {
	return l.Outcome == OutcomeAtendida
}
