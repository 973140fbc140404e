package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}
	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds a Config from lookup, which has the signature of
// os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	var missing []string
	// A helper function to get a required env var.
	getEnv := func(key string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		missing = append(missing, key)
		return ""
	}
	getOptional := func(key, fallback string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return fallback
	}
	var badValues []error
	getDuration := func(key string, fallback time.Duration) time.Duration {
		raw, ok := lookup(key)
		if !ok || raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			badValues = append(badValues, fmt.Errorf("%s: invalid duration %q", key, raw))
			return fallback
		}
		return d
	}

	cfg := Config{
		DBName:         getOptional("DB_NAME", "scoreline.db"),
		Port:           getOptional("PORT", "8080"),
		LockTimezone:   getOptional("LOCK_TIMEZONE", "Europe/London"),
		TriggerBackend: TriggerBackend(getOptional("TRIGGER_BACKEND", string(TriggerLocal))),
		Auth: AuthConfig{
			Secret:       getEnv("AUTH_SECRET"),
			PrincipalTTL: getDuration("PRINCIPAL_TTL", 30*24*time.Hour),
			AdminTTL:     getDuration("ADMIN_CLAIM_TTL", 12*time.Hour),
		},
		Slack: SlackConfig{
			Token:         getOptional("SLACK_BOT_TOKEN", ""),
			ChannelID:     getOptional("SLACK_CHANNEL_ID", ""),
			SigningSecret: getOptional("SLACK_SIGNING_SECRET", ""),
		},
		Turso: TursoConfig{
			PrimaryURL: getOptional("TURSO_PRIMARY_URL", ""),
			AuthToken:  getOptional("TURSO_AUTH_TOKEN", ""),
		},
	}

	switch cfg.TriggerBackend {
	case TriggerLocal:
	case TriggerPubSub:
		cfg.ProjectID = getEnv("GCP_PROJECT")
	case TriggerInngest:
		cfg.Inngest = InngestConfig{
			AppID:      getOptional("INNGEST_APP_ID", "scoreline"),
			SigningKey: getOptional("INNGEST_SIGNING_KEY", ""),
			EventKey:   getOptional("INNGEST_EVENT_KEY", ""),
		}
		dev, err := strconv.ParseBool(getOptional("INNGEST_DEV", "false"))
		if err != nil {
			badValues = append(badValues, fmt.Errorf("INNGEST_DEV: %w", err))
		}
		cfg.Inngest.Dev = dev
		if !dev {
			cfg.Inngest.SigningKey = getEnv("INNGEST_SIGNING_KEY")
			cfg.Inngest.EventKey = getEnv("INNGEST_EVENT_KEY")
		}
	default:
		badValues = append(badValues, fmt.Errorf("TRIGGER_BACKEND: unknown backend %q", cfg.TriggerBackend))
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %v", missing)
	}
	if len(badValues) > 0 {
		return Config{}, badValues[0]
	}
	return cfg, nil
}
