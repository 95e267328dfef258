package models

// AIProtocol is tunable call-behavior configuration, scoped per-trip or
// default. Resolution is "trip-specific if present, else default".
type AIProtocol struct {
	ID                   string  `json:"id"`
	TripID               *string `json:"trip_id,omitempty"`
	StopThresholdMinutes int     `json:"stop_threshold_minutes"`
	CallsEnabled         bool    `json:"calls_enabled"`
	ProtocolText         string  `json:"protocol_text,omitempty"`
	LanguageCode         string  `json:"language_code"`
}

// Language returns the protocol's language code, defaulting to Mexican
// Spanish when unset.
func (p *AIProtocol) Language() string {
	if p.LanguageCode == "" {
		return "es"
	}
	return p.LanguageCode
}
