package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// RiskThresholds partitions the 0-100 risk index into four ordered bands.
// Boundary values belong to the higher band (closed-open intervals).
type RiskThresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// Validate ensures the thresholds form a strictly increasing partition of (0,100).
func (t RiskThresholds) Validate() error {
	if t.Medium <= 0 || t.Critical >= 100 {
		return fmt.Errorf("risk thresholds must lie strictly inside (0,100)")
	}
	if !(t.Medium < t.High && t.High < t.Critical) {
		return fmt.Errorf("risk thresholds must be strictly increasing: medium=%.2f high=%.2f critical=%.2f", t.Medium, t.High, t.Critical)
	}
	return nil
}

// Config holds runtime configuration values for the early-warning service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	NotifyChannel    string
	NotifyRecipients []string
	FollowupCacheTTL time.Duration
	BatchWorkers     int
	ScoringAPIURL    string
	ScoringAPIKey    string
	ModelName        string
	ModelVersion     string
	AttachmentFolder string
	CloudinaryCloud  string
	CloudinaryKey    string
	CloudinarySecret string
	Thresholds       RiskThresholds
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load reads configuration values from environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EWS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Early Warning API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("followup.cache_ttl", "5m")
	v.SetDefault("batch.workers", 4)
	v.SetDefault("notify.channel", "ews:alerts")
	v.SetDefault("model.name", "XGBoost")
	v.SetDefault("model.version", "1.0")
	v.SetDefault("attachments.folder", "ews/interventions")
	v.SetDefault("risk.threshold_medium", 75.0)
	v.SetDefault("risk.threshold_high", 95.0)
	v.SetDefault("risk.threshold_critical", 97.0)

	ttlString := v.GetString("followup.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid followup cache ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		NotifyChannel:    v.GetString("notify.channel"),
		NotifyRecipients: splitList(v.GetString("notify.recipients")),
		FollowupCacheTTL: ttl,
		BatchWorkers:     v.GetInt("batch.workers"),
		ScoringAPIURL:    v.GetString("scoring.api_url"),
		ScoringAPIKey:    v.GetString("scoring.api_key"),
		ModelName:        v.GetString("model.name"),
		ModelVersion:     v.GetString("model.version"),
		AttachmentFolder: v.GetString("attachments.folder"),
		CloudinaryCloud:  v.GetString("cloudinary.cloud_name"),
		CloudinaryKey:    v.GetString("cloudinary.api_key"),
		CloudinarySecret: v.GetString("cloudinary.api_secret"),
		Thresholds: RiskThresholds{
			Medium:   v.GetFloat64("risk.threshold_medium"),
			High:     v.GetFloat64("risk.threshold_high"),
			Critical: v.GetFloat64("risk.threshold_critical"),
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if err := cfg.Thresholds.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid risk threshold configuration: %w", err)
	}

	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 4
	}

	return cfg, nil
}
