package http

import (
	"net/http"

	"github.com/mauv0809/scoreline/internal/admin"
	"github.com/mauv0809/scoreline/internal/auth"
	"github.com/mauv0809/scoreline/internal/config"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/notifier"
	"github.com/mauv0809/scoreline/internal/processor"
	"github.com/mauv0809/scoreline/internal/pubsub"
	"github.com/mauv0809/scoreline/internal/score"
)

type Server struct {
	Ledger         ledger.Ledger
	Admin          admin.Service
	Signer         *auth.Signer
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Notifier       notifier.Notifier
	Processor      *processor.Processor
	Inngest        http.Handler
	Router         *http.ServeMux
	pubsub         pubsub.PubSubClient
}

// errorResponse is the body of every failed API call.
type errorResponse struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// adminRequest is the body of the admin credential operations.
type adminRequest struct {
	LeagueID string `json:"leagueId"`
	Pin      string `json:"pin"`
	NewPin   string `json:"newPin"`
}

type adminResponse struct {
	OK              bool   `json:"ok"`
	AdminPinVersion int    `json:"adminPinVersion,omitempty"`
	Claim           string `json:"claim,omitempty"`
	ExpiresAt       string `json:"expiresAt,omitempty"`
}

type principalResponse struct {
	Token       string `json:"token"`
	PrincipalID string `json:"principalId"`
	ExpiresAt   string `json:"expiresAt"`
}

// matchRequest is a match as submitted by a client.
type matchRequest struct {
	Season    int      `json:"season"`
	Team1     []string `json:"team1"`
	Team2     []string `json:"team2"`
	Timestamp string   `json:"timestamp"`
	score.Raw
	ledger.Details
}

type playerRequest struct {
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}
