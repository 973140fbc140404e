package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mauv0809/scoreline/internal/apperr"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/score"
	"github.com/mauv0809/scoreline/internal/stats"
)

// actor resolves the caller's rights in league. A request without an admin
// claim acts as a plain principal; a claim that fails authorization is an
// error rather than a silent downgrade.
func (s *Server) actor(r *http.Request, leagueID string) (ledger.Actor, error) {
	claim := r.Header.Get(adminClaimHeader)
	if claim == "" {
		return ledger.Actor{}, nil
	}
	if _, err := s.Admin.Authorize(r.Context(), principalFromContext(r), claim, leagueID); err != nil {
		return ledger.Actor{}, err
	}
	return ledger.Actor{Admin: true}, nil
}

func seasonParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("season")
	if raw == "" {
		return 0, nil
	}
	season, err := strconv.Atoi(raw)
	if err != nil || season < 0 {
		return 0, apperr.New(apperr.InvalidArgument, "invalid season %q", raw)
	}
	return season, nil
}

func timestampParam(r *http.Request) (string, error) {
	ts := r.URL.Query().Get("ts")
	if ts == "" {
		return "", apperr.New(apperr.InvalidArgument, "query parameter ts is required")
	}
	return ts, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, err, "malformed request body")
	}
	return nil
}

func (s *Server) LeagueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		league, err := s.Ledger.League(r.Context(), r.PathValue("league"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, league)
	}
}

func (s *Server) SeasonsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seasons, err := s.Ledger.Seasons(r.Context(), r.PathValue("league"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, seasons)
	}
}

func (s *Server) ListMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		season, err := seasonParam(r)
		if err != nil {
			respondError(w, err)
			return
		}
		matches, err := s.Ledger.ListMatches(r.Context(), r.PathValue("league"), season)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, matches)
	}
}

func (s *Server) AppendMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, err)
			return
		}
		sc, err := score.Parse(req.Raw)
		if err != nil {
			respondError(w, err)
			return
		}
		if isDryRunFromContext(r) {
			requestLogger(r).Info("[Dry Run] Would record match", "leagueID", r.PathValue("league"), "team1", req.Team1, "team2", req.Team2, "result", score.Resolve(sc))
			respondJSON(w, http.StatusOK, map[string]any{"ok": true, "result": score.Resolve(sc)})
			return
		}
		m, err := s.Ledger.Append(r.Context(), r.PathValue("league"), ledger.AppendInput{
			Season:    req.Season,
			Team1:     req.Team1,
			Team2:     req.Team2,
			Score:     sc,
			Timestamp: req.Timestamp,
			Details:   req.Details,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, m)
	}
}

func (s *Server) FindMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := timestampParam(r)
		if err != nil {
			respondError(w, err)
			return
		}
		m, err := s.Ledger.FindByTimestamp(r.Context(), r.PathValue("league"), ts)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, m)
	}
}

func (s *Server) UpdateMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leagueID := r.PathValue("league")
		ts, err := timestampParam(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var raw score.Raw
		if err := decodeJSON(r, &raw); err != nil {
			respondError(w, err)
			return
		}
		sc, err := score.Parse(raw)
		if err != nil {
			respondError(w, err)
			return
		}
		actor, err := s.actor(r, leagueID)
		if err != nil {
			respondError(w, err)
			return
		}
		m, err := s.Ledger.Update(r.Context(), leagueID, ts, sc, actor)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, m)
	}
}

func (s *Server) DeleteMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leagueID := r.PathValue("league")
		ts, err := timestampParam(r)
		if err != nil {
			respondError(w, err)
			return
		}
		actor, err := s.actor(r, leagueID)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := s.Ledger.Delete(r.Context(), leagueID, ts, actor); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (s *Server) DeleteLastMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leagueID := r.PathValue("league")
		actor, err := s.actor(r, leagueID)
		if err != nil {
			respondError(w, err)
			return
		}
		m, err := s.Ledger.DeleteLast(r.Context(), leagueID, actor)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, m)
	}
}

func (s *Server) ListPlayersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		players, err := s.Ledger.Players(r.Context(), r.PathValue("league"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, players)
	}
}

func (s *Server) AddPlayerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playerRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, err)
			return
		}
		if err := s.Ledger.AddPlayer(r.Context(), r.PathValue("league"), req.Name); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{"ok": true})
	}
}

func (s *Server) SetPlayerActiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playerRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, err)
			return
		}
		if req.Active == nil {
			respondError(w, apperr.New(apperr.InvalidArgument, "active is required"))
			return
		}
		if err := s.Ledger.SetPlayerActive(r.Context(), r.PathValue("league"), r.PathValue("name"), *req.Active); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (s *Server) PlayerStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ps, err := s.Ledger.PlayerStats(r.Context(), r.PathValue("league"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ps)
	}
}

// RecomputeStatsHandler rebuilds the aggregates from the ledger. Admin only.
func (s *Server) RecomputeStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leagueID := r.PathValue("league")
		actor, err := s.actor(r, leagueID)
		if err != nil {
			respondError(w, err)
			return
		}
		if !actor.Admin {
			respondError(w, apperr.New(apperr.PermissionDenied, "admin claim required"))
			return
		}
		ps, err := s.Ledger.RecomputeStats(r.Context(), leagueID)
		if err != nil {
			respondError(w, err)
			return
		}
		requestLogger(r).Info("Recomputed player stats", "leagueID", leagueID, "players", len(ps))
		respondJSON(w, http.StatusOK, ps)
	}
}

// StandingsHandler serves the team table. Query: view=all|teams (teams and
// its alias partnerships drop solo rosters), mode=raw|per-game|projected,
// season.
func (s *Server) StandingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := stats.Options{Mode: stats.ModeRaw}
		if raw := q.Get("mode"); raw != "" {
			mode, ok := stats.ParseMode(raw)
			if !ok {
				respondError(w, apperr.New(apperr.InvalidArgument, "unknown mode %q", raw))
				return
			}
			opts.Mode = mode
		}
		switch q.Get("view") {
		case "", "all":
		case "teams", "partnerships":
			opts.PartnershipsOnly = true
		default:
			respondError(w, apperr.New(apperr.InvalidArgument, "unknown view %q", q.Get("view")))
			return
		}
		season, err := seasonParam(r)
		if err != nil {
			respondError(w, err)
			return
		}
		leagueID := r.PathValue("league")
		rows, err := s.standings(r, leagueID, season, opts)
		if err != nil {
			respondError(w, err)
			return
		}
		if isDryRunFromContext(r) {
			respondJSON(w, http.StatusOK, rows)
			return
		}
		if q.Get("notify") == "true" {
			if err := s.Notifier.SendStandings(leagueID, rows, opts.Mode, false); err != nil {
				requestLogger(r).Error("Failed to post standings", "error", err, "leagueID", leagueID)
			}
		}
		respondJSON(w, http.StatusOK, rows)
	}
}

func (s *Server) standings(r *http.Request, leagueID string, season int, opts stats.Options) ([]stats.Standing, error) {
	matches, err := s.Ledger.ListMatches(r.Context(), leagueID, season)
	if err != nil {
		return nil, err
	}
	fixtures := make([]stats.Fixture, 0, len(matches))
	for _, m := range matches {
		fixtures = append(fixtures, m.Fixture())
	}
	return stats.Standings(fixtures, opts), nil
}
