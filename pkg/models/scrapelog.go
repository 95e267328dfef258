package models

import "time"

// ScrapeLogStatus is the lifecycle state of a single provider-cycle attempt.
type ScrapeLogStatus string

const (
	ScrapeRunning ScrapeLogStatus = "running"
	ScrapeSuccess ScrapeLogStatus = "success"
	ScrapeError   ScrapeLogStatus = "error"
)

// ScrapeLog is one record per provider-cycle attempt.
type ScrapeLog struct {
	ID            string          `json:"id,omitempty"`
	ProviderID    string          `json:"provider_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Status        ScrapeLogStatus `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Found         int             `json:"found"`
	New           int             `json:"new_count"`
	Sources       []string        `json:"sources,omitempty"`
	ErrorText     string          `json:"error_text,omitempty"`
}
