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
)

// NewServer wires the API. inngestHandler is nil unless Inngest delivers
// match-created events.
func NewServer(ledger ledger.Ledger, adminSvc admin.Service, signer *auth.Signer, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config, notifier notifier.Notifier, processor *processor.Processor, pubsub pubsub.PubSubClient, inngestHandler http.Handler) *Server {
	server := &Server{
		Ledger:         ledger,
		Admin:          adminSvc,
		Signer:         signer,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Notifier:       notifier,
		Processor:      processor,
		Inngest:        inngestHandler,
		Router:         http.NewServeMux(),
		pubsub:         pubsub,
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// API routes additionally need a principal token.
	api := func(h http.Handler) http.Handler {
		return Chain(h, paramsMiddleware, s.principalMiddleware)
	}

	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("POST /process", Chain(s.ReconcileLocksHandler(), paramsMiddleware))
	s.Router.Handle("POST /pubsub/match-created", Chain(s.MatchCreatedPushHandler(), paramsMiddleware))
	s.Router.Handle("POST /slack/command/standings", Chain(s.StandingsCommandHandler(), paramsMiddleware, s.slackVerificationMiddleware))
	s.Router.Handle("POST /slack/command/player-stats", Chain(s.PlayerStatsCommandHandler(), paramsMiddleware, s.slackVerificationMiddleware))
	s.Router.Handle("POST /auth/anonymous", Chain(s.AnonymousSignInHandler(), paramsMiddleware))

	s.Router.Handle("POST /admin/set-pin", api(s.SetPinHandler()))
	s.Router.Handle("POST /admin/verify-pin", api(s.VerifyPinHandler()))
	s.Router.Handle("POST /admin/reset-pin", api(s.ResetPinHandler()))
	s.Router.Handle("POST /admin/clear", api(s.ClearAdminHandler()))

	s.Router.Handle("GET /leagues/{league}", api(s.LeagueHandler()))
	s.Router.Handle("GET /leagues/{league}/seasons", api(s.SeasonsHandler()))
	s.Router.Handle("GET /leagues/{league}/matches", api(s.ListMatchesHandler()))
	s.Router.Handle("POST /leagues/{league}/matches", api(s.AppendMatchHandler()))
	s.Router.Handle("GET /leagues/{league}/matches/by-timestamp", api(s.FindMatchHandler()))
	s.Router.Handle("PUT /leagues/{league}/matches/by-timestamp", api(s.UpdateMatchHandler()))
	s.Router.Handle("DELETE /leagues/{league}/matches/by-timestamp", api(s.DeleteMatchHandler()))
	s.Router.Handle("DELETE /leagues/{league}/matches/last", api(s.DeleteLastMatchHandler()))
	s.Router.Handle("GET /leagues/{league}/players", api(s.ListPlayersHandler()))
	s.Router.Handle("POST /leagues/{league}/players", api(s.AddPlayerHandler()))
	s.Router.Handle("PUT /leagues/{league}/players/{name}/active", api(s.SetPlayerActiveHandler()))
	s.Router.Handle("GET /leagues/{league}/players/stats", api(s.PlayerStatsHandler()))
	s.Router.Handle("POST /leagues/{league}/players/stats/recompute", api(s.RecomputeStatsHandler()))
	s.Router.Handle("GET /leagues/{league}/standings", api(s.StandingsHandler()))

	if s.Inngest != nil {
		s.Router.Handle("/api/inngest", s.Inngest)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
