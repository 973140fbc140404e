package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scoreline/internal/apperr"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/pubsub"
	"github.com/mauv0809/scoreline/internal/stats"
	"github.com/slack-go/slack"
)

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestLogger(r).Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// ReconcileLocksHandler assigns missing lock boundaries. Meant for a
// scheduler job.
func (s *Server) ReconcileLocksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestLogger(r).Info("Starting lock reconciliation...")
		fixed := s.Processor.ReconcileLocks(r.Context(), isDryRunFromContext(r))
		respondJSON(w, http.StatusOK, map[string]any{"ok": true, "fixed": fixed})
		requestLogger(r).Info("Lock reconciliation finished.", "fixed", fixed)
	}
}

// MatchCreatedPushHandler is the Pub/Sub push endpoint for match-created
// events. Processing failures are logged and acknowledged; only malformed
// deliveries are rejected.
func (s *Server) MatchCreatedPushHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var push pubsub.PushRequest
		if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
			requestLogger(r).Error("Failed to unmarshal push request", "error", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		requestLogger(r).Debug("Received match-created message", "subscription", push.Subscription, "messageId", push.Message.MessageID)

		var event ledger.MatchCreatedEvent
		if err := s.pubsub.ProcessMessage(push.Message.Data, &event); err != nil {
			requestLogger(r).Error("Failed to decode match-created payload", "error", err)
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		if event.LeagueID == "" || event.MatchID == "" {
			http.Error(w, "Incomplete event", http.StatusBadRequest)
			return
		}
		s.Processor.HandleMatchCreated(r.Context(), event, isDryRunFromContext(r))
		w.Write([]byte("OK"))
	}
}

// AnonymousSignInHandler issues a token for a new principal.
func (s *Server) AnonymousSignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, principalID, expiresAt, err := s.Signer.IssuePrincipal()
		if err != nil {
			respondError(w, err)
			return
		}
		requestLogger(r).Info("Issued anonymous principal", "principal", principalID)
		respondJSON(w, http.StatusOK, principalResponse{
			Token:       token,
			PrincipalID: principalID,
			ExpiresAt:   expiresAt.Format(time.RFC3339),
		})
	}
}

// StandingsCommandHandler serves /standings <league> [mode] [teams].
func (s *Server) StandingsCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := slack.SlashCommandParse(r)
		if err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		fields := strings.Fields(cmd.Text)
		if len(fields) == 0 {
			http.Error(w, "League id is required.", http.StatusBadRequest)
			return
		}
		leagueID := fields[0]
		opts := stats.Options{Mode: stats.ModeRaw}
		for _, f := range fields[1:] {
			if mode, ok := stats.ParseMode(f); ok {
				opts.Mode = mode
				continue
			}
			if f == "teams" || f == "partnerships" {
				opts.PartnershipsOnly = true
			}
		}
		requestLogger(r).Info("Received standings command", "leagueID", leagueID, "mode", opts.Mode, "user", cmd.UserName)

		rows, err := s.standings(r, leagueID, 0, opts)
		if err != nil {
			http.Error(w, "Failed to compute standings", http.StatusInternalServerError)
			requestLogger(r).Error("Failed to compute standings", "error", err, "leagueID", leagueID)
			return
		}
		msg, err := s.Notifier.FormatStandingsResponse(leagueID, rows, opts.Mode)
		if err != nil {
			http.Error(w, "Failed to format standings", http.StatusInternalServerError)
			requestLogger(r).Error("Failed to format standings", "error", err)
			return
		}
		respondWithSlackMsg(w, msg)
	}
}

// PlayerStatsCommandHandler serves /player-stats <league> <player name>.
func (s *Server) PlayerStatsCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := slack.SlashCommandParse(r)
		if err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		leagueID, name, ok := strings.Cut(strings.TrimSpace(cmd.Text), " ")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			http.Error(w, "League id and player name are required.", http.StatusBadRequest)
			return
		}
		requestLogger(r).Info("Received player stats command", "leagueID", leagueID, "player", name)

		all, err := s.Ledger.PlayerStats(r.Context(), leagueID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			http.Error(w, "Failed to get player stats", http.StatusInternalServerError)
			requestLogger(r).Error("Failed to get player stats from store", "error", err)
			return
		}
		var ps *ledger.PlayerStats
		if found, ok := all[name]; ok {
			ps = &found
		}
		msg, err := s.Notifier.FormatPlayerStatsResponse(leagueID, name, ps)
		if err != nil {
			http.Error(w, "Failed to format player stats", http.StatusInternalServerError)
			requestLogger(r).Error("Failed to format player stats", "error", err)
			return
		}
		respondWithSlackMsg(w, msg)
	}
}

// respondWithSlackMsg is a helper to format and write a Slack message as an HTTP response.
func respondWithSlackMsg(w http.ResponseWriter, msg any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		log.Error("Failed to encode slack message to JSON", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to write response", "error", err)
	}
}

// respondError writes err as {ok:false, code, message}. Errors without a code
// are logged and reported as internal.
func respondError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	message := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	if code == apperr.Internal {
		log.Error("Request failed", "error", err)
		message = "internal error"
	}
	respondJSON(w, apperr.HTTPStatus(code), errorResponse{OK: false, Code: string(code), Message: message})
}
