package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/apperr"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/pubsub"
	"github.com/mauv0809/scoreline/internal/score"
	"github.com/mauv0809/scoreline/internal/stats"
)

const matchColumns = `id, league_id, season, seq, team1_json, team2_json,
	team1_score, team2_score, team1_extra_time_score, team2_extra_time_score,
	team1_penalties_score, team2_penalties_score, result, timestamp, created_at,
	lock_at, presence_json, team1_name, team2_name, team1_league, team2_league`

// New creates a Ledger backed by db. publisher may be nil, in which case no
// match-created events are emitted and locks are only assigned on read.
func New(db *sql.DB, clk clock.Clock, loc *time.Location, publisher Publisher, m metrics.Metrics) Ledger {
	s := &store{
		db:        db,
		clock:     clk,
		loc:       loc,
		publisher: publisher,
		metrics:   m,
	}
	s.scheduler = lock.NewScheduler(s, loc, m)
	return s
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *store) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

// Append records a match, applies the player deltas and bumps the match
// counter in one transaction, then announces the match.
func (s *store) Append(ctx context.Context, leagueID string, in AppendInput) (*Match, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	team1, team2, err := normalizeRosters(in.Team1, in.Team2)
	if err != nil {
		return nil, err
	}
	if _, err := score.Parse(in.Score.ToRaw()); err != nil {
		return nil, err
	}
	if in.Season < 0 {
		return nil, apperr.New(apperr.InvalidArgument, "season must not be negative")
	}

	now := s.now()
	ts := strings.TrimSpace(in.Timestamp)
	if ts == "" {
		ts = now.Format(time.RFC3339Nano)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureLeague(ctx, tx, leagueID, now); err != nil {
		return nil, err
	}
	season := in.Season
	if season == 0 {
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(number), 1) FROM seasons WHERE league_id = ?", leagueID).Scan(&season); err != nil {
			return nil, fmt.Errorf("failed to resolve current season: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO seasons (league_id, number, start_date) VALUES (?, ?, ?) ON CONFLICT(league_id, number) DO NOTHING",
		leagueID, season, now.Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("failed to create season %d: %w", season, err)
	}

	presence, err := ensurePlayers(ctx, tx, leagueID, append(append([]string{}, team1...), team2...), now)
	if err != nil {
		return nil, err
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM matches WHERE league_id = ?", leagueID).Scan(&seq); err != nil {
		return nil, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	m := &Match{
		ID:             uuid.NewString(),
		LeagueID:       leagueID,
		Season:         season,
		Team1:          team1,
		Team2:          team2,
		Score:          in.Score,
		Result:         score.Resolve(in.Score),
		Timestamp:      ts,
		CreatedAt:      now,
		PlayerPresence: presence,
		Details:        in.Details,
	}
	if err := insertMatch(ctx, tx, m, seq); err != nil {
		return nil, err
	}
	if err := applyDeltas(ctx, tx, leagueID, stats.Deltas(m.Fixture())); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE leagues SET total_matches = total_matches + 1 WHERE id = ?", leagueID); err != nil {
		return nil, fmt.Errorf("failed to increment match counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match: %w", err)
	}

	log.Info("Recorded match", "leagueID", leagueID, "matchID", m.ID, "season", season, "result", m.Result)
	s.metrics.IncMatchesRecorded()
	s.publishCreated(m)
	return m, nil
}

func (s *store) publishCreated(m *Match) {
	if s.publisher == nil {
		return
	}
	event := MatchCreatedEvent{
		LeagueID:  m.LeagueID,
		MatchID:   m.ID,
		Timestamp: m.Timestamp,
		CreatedAt: m.CreatedAt,
	}
	if err := s.publisher.SendMessage(pubsub.EventMatchCreated, event); err != nil {
		log.Error("Failed to publish match created event, lock will be assigned on read", "error", err, "matchID", m.ID)
	}
}

// FindByTimestamp returns the first match with ts, seasons ascending and
// insertion order within a season.
func (s *store) FindByTimestamp(ctx context.Context, leagueID, ts string) (*Match, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	m, err := findByTimestamp(ctx, s.db, leagueID, ts)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, m)
	return m, nil
}

// Match loads a match by id as stored, without assigning a missing boundary.
func (s *store) Match(ctx context.Context, leagueID, matchID string) (*Match, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE league_id = ? AND id = ?", leagueID, matchID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "match %q not found in league %q", matchID, leagueID)
	}
	return m, err
}

// Update rewrites the score and result of a match. Player aggregates keep
// the contribution of the previous result.
func (s *store) Update(ctx context.Context, leagueID, ts string, sc score.Score, actor Actor) (*Match, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	if _, err := score.Parse(sc.ToRaw()); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := findByTimestamp(ctx, tx, leagueID, ts)
	if err != nil {
		return nil, err
	}
	if err := s.checkEditable(m, actor); err != nil {
		return nil, err
	}

	m.Score = sc
	m.Result = score.Resolve(sc)
	et1, et2, pen1, pen2 := tieBreakArgs(sc)
	_, err = tx.ExecContext(ctx, `
		UPDATE matches SET team1_score = ?, team2_score = ?,
			team1_extra_time_score = ?, team2_extra_time_score = ?,
			team1_penalties_score = ?, team2_penalties_score = ?, result = ?
		WHERE id = ?`,
		sc.Regular.Team1, sc.Regular.Team2, et1, et2, pen1, pen2, m.Result, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update match %s: %w", m.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match update: %w", err)
	}

	log.Info("Updated match", "leagueID", leagueID, "matchID", m.ID, "result", m.Result, "admin", actor.Admin)
	s.metrics.IncMatchesEdited()
	s.reconcile(ctx, m)
	return m, nil
}

// Delete removes the first match with ts. Player aggregates are untouched.
func (s *store) Delete(ctx context.Context, leagueID, ts string, actor Actor) error {
	if err := validateLeague(leagueID); err != nil {
		return err
	}
	_, err := s.deleteWhere(ctx, leagueID, actor, func(q queryer) (*Match, error) {
		return findByTimestamp(ctx, q, leagueID, ts)
	})
	return err
}

// DeleteLast removes the most recently appended match of the league.
func (s *store) DeleteLast(ctx context.Context, leagueID string, actor Actor) (*Match, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	return s.deleteWhere(ctx, leagueID, actor, func(q queryer) (*Match, error) {
		row := q.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE league_id = ? ORDER BY seq DESC LIMIT 1", leagueID)
		m, err := scanMatch(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "league %q has no matches", leagueID)
		}
		return m, err
	})
}

func (s *store) deleteWhere(ctx context.Context, leagueID string, actor Actor, find func(queryer) (*Match, error)) (*Match, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := find(tx)
	if err != nil {
		return nil, err
	}
	if err := s.checkEditable(m, actor); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", m.ID); err != nil {
		return nil, fmt.Errorf("failed to delete match %s: %w", m.ID, err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE leagues SET total_matches = MAX(total_matches - 1, 0) WHERE id = ?", leagueID); err != nil {
		return nil, fmt.Errorf("failed to decrement match counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match deletion: %w", err)
	}

	log.Info("Deleted match", "leagueID", leagueID, "matchID", m.ID, "admin", actor.Admin)
	s.metrics.IncMatchesDeleted()
	return m, nil
}

// checkEditable applies the lock rule. A match that has not been assigned a
// boundary yet gets one computed on the spot.
func (s *store) checkEditable(m *Match, actor Actor) error {
	lockAt := m.LockAt
	if lockAt == nil {
		if t, err := lock.Compute(m.Timestamp, m.CreatedAt, s.loc); err == nil {
			lockAt = &t
		}
	}
	if lock.Locked(lockAt, s.clock.Now(), actor.Admin) {
		s.metrics.IncLockedEditRejected()
		return apperr.New(apperr.PermissionDenied, "match is locked")
	}
	return nil
}

// ListMatches returns the matches of one season, or of every season when
// season is 0.
func (s *store) ListMatches(ctx context.Context, leagueID string, season int) ([]*Match, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	query := "SELECT " + matchColumns + " FROM matches WHERE league_id = ?"
	args := []any{leagueID}
	if season > 0 {
		query += " AND season = ?"
		args = append(args, season)
	}
	query += " ORDER BY season ASC, seq ASC"

	matches, err := queryMatches(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, matches...)
	return matches, nil
}

func (s *store) Seasons(ctx context.Context, leagueID string) ([]Season, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT number, start_date FROM seasons WHERE league_id = ? ORDER BY number", leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seasons: %w", err)
	}
	defer rows.Close()

	var seasons []Season
	for rows.Next() {
		var (
			season Season
			start  string
		)
		if err := rows.Scan(&season.Number, &start); err != nil {
			return nil, fmt.Errorf("failed to scan season: %w", err)
		}
		season.StartDate, _ = time.Parse(time.RFC3339Nano, start)
		seasons = append(seasons, season)
	}
	return seasons, rows.Err()
}

// League assembles the full state of a league.
func (s *store) League(ctx context.Context, leagueID string) (*League, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	l := &League{ID: leagueID, Seasons: make(map[int]*Season)}
	err := s.db.QueryRowContext(ctx, "SELECT total_matches FROM leagues WHERE id = ?", leagueID).Scan(&l.OverallStats.TotalMatches)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "league %q not found", leagueID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load league %s: %w", leagueID, err)
	}

	players, err := s.Players(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	l.Players = make([]string, 0, len(players))
	for _, p := range players {
		l.Players = append(l.Players, p.Name)
	}
	if l.OverallStats.Players, err = s.PlayerStats(ctx, leagueID); err != nil {
		return nil, err
	}

	seasons, err := s.Seasons(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	for i := range seasons {
		season := seasons[i]
		season.Matches = []*Match{}
		l.Seasons[season.Number] = &season
	}
	matches, err := s.ListMatches(ctx, leagueID, 0)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if season, ok := l.Seasons[m.Season]; ok {
			season.Matches = append(season.Matches, m)
		}
	}

	var setAt int64
	err = s.db.QueryRowContext(ctx, "SELECT version, set_at FROM admin_credentials WHERE league_id = ?", leagueID).Scan(&l.AdminPinVersion, &setAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to load admin credential state: %w", err)
	default:
		t := fromMillis(setAt)
		l.AdminPinSetAt = &t
	}
	return l, nil
}

func (s *store) PlayerStats(ctx context.Context, leagueID string) (map[string]PlayerStats, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	return loadPlayerStats(ctx, s.db, leagueID)
}

// RecomputeStats rebuilds the player aggregates and the match counter from
// the stored matches.
func (s *store) RecomputeStats(ctx context.Context, leagueID string) (map[string]PlayerStats, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	matches, err := queryMatches(ctx, tx, "SELECT "+matchColumns+" FROM matches WHERE league_id = ? ORDER BY season, seq", leagueID)
	if err != nil {
		return nil, err
	}
	fixtures := make([]stats.Fixture, 0, len(matches))
	for _, m := range matches {
		fixtures = append(fixtures, m.Fixture())
	}

	if _, err := tx.ExecContext(ctx, "UPDATE player_stats SET wins = 0, losses = 0, draws = 0, goals_for = 0, goals_against = 0 WHERE league_id = ?", leagueID); err != nil {
		return nil, fmt.Errorf("failed to reset player stats: %w", err)
	}
	if err := applyDeltas(ctx, tx, leagueID, stats.Totals(fixtures)); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, "UPDATE leagues SET total_matches = ? WHERE id = ?", len(matches), leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset match counter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.NotFound, "league %q not found", leagueID)
	}
	out, err := loadPlayerStats(ctx, tx, leagueID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recomputed stats: %w", err)
	}
	log.Info("Recomputed player stats", "leagueID", leagueID, "matches", len(matches), "players", len(out))
	return out, nil
}

func (s *store) Players(ctx context.Context, leagueID string) ([]Player, error) {
	if err := validateLeague(leagueID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT name, active, created_at FROM players WHERE league_id = ? ORDER BY created_at, name", leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	players := []Player{}
	for rows.Next() {
		var (
			p       Player
			created int64
		)
		if err := rows.Scan(&p.Name, &p.Active, &created); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		p.CreatedAt = fromMillis(created)
		players = append(players, p)
	}
	return players, rows.Err()
}

// AddPlayer adds an active player to the roster. Adding a known player is a
// no-op.
func (s *store) AddPlayer(ctx context.Context, leagueID, name string) error {
	if err := validateLeague(leagueID); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.New(apperr.InvalidArgument, "player name must not be empty")
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureLeague(ctx, tx, leagueID, now); err != nil {
		return err
	}
	if _, err := ensurePlayers(ctx, tx, leagueID, []string{name}, now); err != nil {
		return err
	}
	return tx.Commit()
}

// SetPlayerActive changes the roster flag that later presence snapshots read.
func (s *store) SetPlayerActive(ctx context.Context, leagueID, name string, active bool) error {
	if err := validateLeague(leagueID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE players SET active = ? WHERE league_id = ? AND name = ?", active, leagueID, name)
	if err != nil {
		return fmt.Errorf("failed to update player %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "player %q not found in league %q", name, leagueID)
	}
	return nil
}

// SetLockAt stores the lock boundary of a match. A boundary, once set, is
// never overwritten.
func (s *store) SetLockAt(ctx context.Context, leagueID, matchID string, lockAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE matches SET lock_at = ? WHERE league_id = ? AND id = ? AND lock_at IS NULL",
		lockAt.UnixMilli(), leagueID, matchID)
	if err != nil {
		return fmt.Errorf("failed to set lock boundary on %s: %w", matchID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM matches WHERE league_id = ? AND id = ?", leagueID, matchID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.NotFound, "match %q not found in league %q", matchID, leagueID)
	}
	return err
}

// MatchesWithoutLock lists matches, oldest first, that still lack a boundary.
func (s *store) MatchesWithoutLock(ctx context.Context, limit int) ([]*Match, error) {
	if limit <= 0 {
		limit = 100
	}
	return queryMatches(ctx, s.db, "SELECT "+matchColumns+" FROM matches WHERE lock_at IS NULL ORDER BY created_at LIMIT ?", limit)
}

// reconcile assigns a boundary to every match that was read without one.
func (s *store) reconcile(ctx context.Context, matches ...*Match) {
	for _, m := range matches {
		if m.LockAt != nil {
			continue
		}
		if lockAt, ok := s.scheduler.Assign(ctx, m.LeagueID, m.ID, m.Timestamp, m.CreatedAt); ok {
			m.LockAt = &lockAt
		}
	}
}

func validateLeague(leagueID string) error {
	if strings.TrimSpace(leagueID) == "" {
		return apperr.New(apperr.InvalidArgument, "league id must not be empty")
	}
	return nil
}

// normalizeRosters trims names and rejects empty sides, blank names and
// players listed twice.
func normalizeRosters(team1, team2 []string) ([]string, []string, error) {
	seen := make(map[string]int)
	clean := func(side int, roster []string) ([]string, error) {
		if len(roster) == 0 {
			return nil, apperr.New(apperr.InvalidArgument, "team%d needs at least one player", side)
		}
		out := make([]string, 0, len(roster))
		for _, name := range roster {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, apperr.New(apperr.InvalidArgument, "team%d has an empty player name", side)
			}
			if prev, ok := seen[name]; ok {
				if prev == side {
					return nil, apperr.New(apperr.InvalidArgument, "player %q is listed twice in team%d", name, side)
				}
				return nil, apperr.New(apperr.InvalidArgument, "player %q cannot play on both teams", name)
			}
			seen[name] = side
			out = append(out, name)
		}
		return out, nil
	}
	t1, err := clean(1, team1)
	if err != nil {
		return nil, nil, err
	}
	t2, err := clean(2, team2)
	if err != nil {
		return nil, nil, err
	}
	return t1, t2, nil
}

func ensureLeague(ctx context.Context, tx *sql.Tx, leagueID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO leagues (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING", leagueID, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create league %s: %w", leagueID, err)
	}
	return nil
}

// ensurePlayers creates unknown players as active and returns the current
// active flag of every name.
func ensurePlayers(ctx context.Context, tx *sql.Tx, leagueID string, names []string, now time.Time) (map[string]bool, error) {
	presence := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO players (league_id, name, active, created_at) VALUES (?, ?, 1, ?) ON CONFLICT(league_id, name) DO NOTHING",
			leagueID, name, now.UnixMilli()); err != nil {
			return nil, fmt.Errorf("failed to create player %s: %w", name, err)
		}
		var active bool
		if err := tx.QueryRowContext(ctx, "SELECT active FROM players WHERE league_id = ? AND name = ?", leagueID, name).Scan(&active); err != nil {
			return nil, fmt.Errorf("failed to read player %s: %w", name, err)
		}
		presence[name] = active
	}
	return presence, nil
}

func applyDeltas(ctx context.Context, tx *sql.Tx, leagueID string, deltas map[string]stats.PlayerDelta) error {
	for name, d := range deltas {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO player_stats (league_id, name, wins, losses, draws, goals_for, goals_against)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(league_id, name) DO UPDATE SET
				wins = wins + excluded.wins,
				losses = losses + excluded.losses,
				draws = draws + excluded.draws,
				goals_for = goals_for + excluded.goals_for,
				goals_against = goals_against + excluded.goals_against`,
			leagueID, name, d.Wins, d.Losses, d.Draws, d.GoalsFor, d.GoalsAgainst)
		if err != nil {
			return fmt.Errorf("failed to apply stats for %s: %w", name, err)
		}
	}
	return nil
}

func loadPlayerStats(ctx context.Context, q queryer, leagueID string) (map[string]PlayerStats, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, wins, losses, draws, goals_for, goals_against FROM player_stats WHERE league_id = ?", leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query player stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]PlayerStats)
	for rows.Next() {
		var (
			name string
			ps   PlayerStats
		)
		if err := rows.Scan(&name, &ps.Wins, &ps.Losses, &ps.Draws, &ps.GoalsFor, &ps.GoalsAgainst); err != nil {
			return nil, fmt.Errorf("failed to scan player stats: %w", err)
		}
		out[name] = ps
	}
	return out, rows.Err()
}

func insertMatch(ctx context.Context, tx *sql.Tx, m *Match, seq int64) error {
	team1JSON, err := json.Marshal(m.Team1)
	if err != nil {
		return err
	}
	team2JSON, err := json.Marshal(m.Team2)
	if err != nil {
		return err
	}
	presenceJSON, err := json.Marshal(m.PlayerPresence)
	if err != nil {
		return err
	}
	et1, et2, pen1, pen2 := tieBreakArgs(m.Score)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.LeagueID, m.Season, seq, string(team1JSON), string(team2JSON),
		m.Score.Regular.Team1, m.Score.Regular.Team2, et1, et2, pen1, pen2,
		m.Result, m.Timestamp, m.CreatedAt.UnixMilli(), nil, string(presenceJSON),
		nullString(m.Team1Name), nullString(m.Team2Name), nullString(m.Team1League), nullString(m.Team2League))
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func findByTimestamp(ctx context.Context, q queryer, leagueID, ts string) (*Match, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+matchColumns+" FROM matches WHERE league_id = ? AND timestamp = ? ORDER BY season ASC, seq ASC LIMIT 1",
		leagueID, ts)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "no match at %q in league %q", ts, leagueID)
	}
	return m, err
}

func queryMatches(ctx context.Context, q queryer, query string, args ...any) ([]*Match, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := []*Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// scanMatch is a helper function to scan a single match row.
func scanMatch(scanner interface{ Scan(...any) error }) (*Match, error) {
	var (
		m                                  Match
		seq, created                       int64
		team1JSON, team2JSON, presenceJSON string
		et1, et2, pen1, pen2, lockAt       sql.NullInt64
		team1Name, team2Name, t1Lg, t2Lg   sql.NullString
	)
	err := scanner.Scan(&m.ID, &m.LeagueID, &m.Season, &seq, &team1JSON, &team2JSON,
		&m.Score.Regular.Team1, &m.Score.Regular.Team2, &et1, &et2, &pen1, &pen2,
		&m.Result, &m.Timestamp, &created, &lockAt, &presenceJSON,
		&team1Name, &team2Name, &t1Lg, &t2Lg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	if err := json.Unmarshal([]byte(team1JSON), &m.Team1); err != nil {
		return nil, fmt.Errorf("failed to decode team1 of %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(team2JSON), &m.Team2); err != nil {
		return nil, fmt.Errorf("failed to decode team2 of %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(presenceJSON), &m.PlayerPresence); err != nil {
		return nil, fmt.Errorf("failed to decode presence of %s: %w", m.ID, err)
	}
	if et1.Valid && et2.Valid {
		m.Score = m.Score.WithExtraTime(int(et1.Int64), int(et2.Int64))
	}
	if pen1.Valid && pen2.Valid {
		m.Score = m.Score.WithPenalties(int(pen1.Int64), int(pen2.Int64))
	}
	m.CreatedAt = fromMillis(created)
	if lockAt.Valid {
		t := fromMillis(lockAt.Int64)
		m.LockAt = &t
	}
	m.Team1Name, m.Team2Name = team1Name.String, team2Name.String
	m.Team1League, m.Team2League = t1Lg.String, t2Lg.String
	return &m, nil
}

func tieBreakArgs(s score.Score) (et1, et2, pen1, pen2 any) {
	if s.ExtraTime != nil {
		et1, et2 = s.ExtraTime.Team1, s.ExtraTime.Team2
	}
	if s.Penalties != nil {
		pen1, pen2 = s.Penalties.Team1, s.Penalties.Team2
	}
	return et1, et2, pen1, pen2
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
