package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// escalationYAML mirrors the on-disk shape of tracker.yaml.
type escalationYAML struct {
	Escalation *EscalationConfig `yaml:"escalation"`
}

// Initialize loads environment-supplied operational settings and the
// declarative escalation defaults file, merges the latter over built-ins,
// and returns a ready-to-use Config. Mirrors the teacher's
// config.Initialize staging: load → merge → return.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("component", "config", "config_dir", configDir)
	log.Info("loading configuration")

	scheduler := loadSchedulerFromEnv()
	storage := loadStorageFromEnv()
	vapi := loadVapiFromEnv()

	escalation, err := loadEscalationYAML(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load escalation defaults: %w", err)
	}
	if os.Getenv("COORDINATOR_ORPHAN_FALLBACK_ENABLED") != "" {
		current := escalation.OrphanFallback == nil || *escalation.OrphanFallback
		fallback := getEnvBool("COORDINATOR_ORPHAN_FALLBACK_ENABLED", current)
		escalation.OrphanFallback = &fallback
	}

	log.Info("configuration loaded",
		"scheduler_enabled", scheduler.Enabled,
		"ai_detection_enabled", scheduler.AIDetectionEnabled,
		"locales", len(escalation.Locales))

	return &Config{
		configDir:  configDir,
		Scheduler:  scheduler,
		Storage:    storage,
		Vapi:       vapi,
		Escalation: escalation,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvMinutes(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Minute
}

func loadSchedulerFromEnv() *SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	cfg.Enabled = getEnvBool("SCHEDULER_ENABLED", cfg.Enabled)
	cfg.CronSchedule = getEnv("CRON_SCHEDULE", cfg.CronSchedule)
	cfg.AIDetectionEnabled = getEnvBool("AI_DETECTION_ENABLED", cfg.AIDetectionEnabled)
	cfg.AIDetectionInterval = getEnvMinutes("AI_DETECTION_INTERVAL_MIN", cfg.AIDetectionInterval)
	return cfg
}

func loadStorageFromEnv() *StorageConfig {
	return &StorageConfig{
		BaseURL:  getEnv("API_BASE_URL", ""),
		Username: getEnv("API_USERNAME", ""),
		Password: getEnv("API_PASSWORD", ""),
	}
}

func loadVapiFromEnv() *VapiConfig {
	return &VapiConfig{
		PrivateKey:    os.Getenv("VAPI_PRIVATE_KEY"),
		PhoneNumberID: os.Getenv("VAPI_PHONE_NUMBER_ID"),
		AssistantID:   os.Getenv("VAPI_ASSISTANT_ID"),
		BaseURL:       getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
	}
}

// loadEscalationYAML reads tracker.yaml from configDir (if present),
// expands environment variables, and merges it over the built-in
// escalation defaults with dario.cat/mergo, the way the teacher merges
// QueueConfig in pkg/config/loader.go.
func loadEscalationYAML(configDir string) (*EscalationConfig, error) {
	merged := DefaultEscalationConfig()

	path := filepath.Join(configDir, "tracker.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return merged, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var doc escalationYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if doc.Escalation == nil {
		return merged, nil
	}
	if err := mergo.Merge(merged, doc.Escalation, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge escalation config: %w", err)
	}
	// mergo never overrides with a zero value, so an explicit
	// orphan_fallback_enabled: false is applied here.
	if doc.Escalation.OrphanFallback != nil {
		merged.OrphanFallback = doc.Escalation.OrphanFallback
	}
	return merged, nil
}
