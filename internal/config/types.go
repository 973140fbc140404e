package config

import "time"

// Config holds all configuration for the application.
type Config struct {
	DBName         string
	Port           string
	LockTimezone   string
	TriggerBackend TriggerBackend
	ProjectID      string
	Auth           AuthConfig
	Slack          SlackConfig
	Turso          TursoConfig
	Inngest        InngestConfig
}

// TriggerBackend selects how match-created events reach the lock scheduler.
type TriggerBackend string

const (
	TriggerLocal   TriggerBackend = "local"
	TriggerPubSub  TriggerBackend = "pubsub"
	TriggerInngest TriggerBackend = "inngest"
)

type AuthConfig struct {
	Secret       string
	PrincipalTTL time.Duration
	AdminTTL     time.Duration
}

type SlackConfig struct {
	Token         string
	ChannelID     string
	SigningSecret string
}

// Enabled reports whether result notifications can be posted.
func (s SlackConfig) Enabled() bool {
	return s.Token != "" && s.ChannelID != ""
}

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

type InngestConfig struct {
	AppID      string
	SigningKey string
	EventKey   string
	Dev        bool
}
