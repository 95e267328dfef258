package config

import "time"

// SchedulerConfig controls the main-loop cadence and feature toggles (§6, §4.7).
type SchedulerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	CronSchedule        string        `yaml:"cron_schedule"`
	AIDetectionEnabled  bool          `yaml:"ai_detection_enabled"`
	AIDetectionInterval time.Duration `yaml:"ai_detection_interval"`
	IdleLogInterval     time.Duration `yaml:"idle_log_interval"`
}

// DefaultSchedulerConfig returns the built-in scheduler defaults (§6).
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Enabled:             true,
		CronSchedule:        "*/1 * * * *",
		AIDetectionEnabled:  true,
		AIDetectionInterval: 5 * time.Minute,
		IdleLogInterval:     10 * time.Minute,
	}
}

// StorageConfig holds the Storage Gateway's bearer-token bridge credentials.
type StorageConfig struct {
	BaseURL  string `yaml:"-"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// VapiConfig holds the voice-agent provider's direct-mode credentials.
// When PrivateKey and PhoneNumberID are both set, calls are placed in
// direct mode; otherwise the webhook-fallback mode is used (§4.6.1).
type VapiConfig struct {
	PrivateKey    string `yaml:"-"`
	PhoneNumberID string `yaml:"-"`
	AssistantID   string `yaml:"-"`
	BaseURL       string `yaml:"-"`
}

// EscalationConfig is the declarative defaults layer for the Escalation
// Engine: per-locale prompt templates and the default AI protocol text,
// merged (YAML overrides built-in) the way the teacher merges QueueConfig.
type EscalationConfig struct {
	DefaultProtocolText  string                   `yaml:"default_protocol_text"`
	DefaultStopThreshold int                      `yaml:"default_stop_threshold_minutes"`
	Locales              map[string]LocaleConfig  `yaml:"locales"`
	OrphanFallback       *bool                    `yaml:"orphan_fallback_enabled,omitempty"`
}

// LocaleConfig is a locale-specific voice-prompt template bundle (§4.6.2).
type LocaleConfig struct {
	CompanyName        string `yaml:"company_name"`
	GreetingTemplate   string `yaml:"greeting_template"`
	EndCallMessage     string `yaml:"end_call_message"`
	SystemPromptIntro  string `yaml:"system_prompt_intro"`
}

// DefaultEscalationConfig returns the built-in escalation defaults.
func DefaultEscalationConfig() *EscalationConfig {
	enabled := true
	return &EscalationConfig{
		DefaultProtocolText:  "",
		DefaultStopThreshold: 30,
		OrphanFallback:       &enabled,
		Locales: map[string]LocaleConfig{
			"es": {
				CompanyName:       "la central de monitoreo",
				GreetingTemplate:  "Hola, le habla un asistente virtual de %s. Necesito hablar sobre la unidad %s.",
				EndCallMessage:    "Gracias por su tiempo, que tenga buen día.",
				SystemPromptIntro: "Eres un asistente de voz de %s que verifica detenciones de vehículos.",
			},
			"en": {
				CompanyName:       "the monitoring center",
				GreetingTemplate:  "Hello, this is a virtual assistant from %s. I need to talk about unit %s.",
				EndCallMessage:    "Thank you for your time, have a good day.",
				SystemPromptIntro: "You are a voice assistant from %s verifying vehicle stops.",
			},
		},
	}
}
