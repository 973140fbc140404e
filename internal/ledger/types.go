package ledger

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/pubsub"
	"github.com/mauv0809/scoreline/internal/score"
	"github.com/mauv0809/scoreline/internal/stats"
)

// store handles all database operations for the ledger.
type store struct {
	db        *sql.DB
	clock     clock.Clock
	loc       *time.Location
	publisher Publisher
	metrics   metrics.Metrics
	scheduler *lock.Scheduler
}

// Publisher is the part of a pubsub client the ledger needs.
type Publisher interface {
	SendMessage(topic pubsub.EventType, data any) error
}

// Actor is what the caller is allowed to do. Admin comes from a verified
// admin claim for the league.
type Actor struct {
	Admin bool
}

// Details is optional display metadata of a match.
type Details struct {
	Team1Name   string `json:"team1Name,omitempty"`
	Team2Name   string `json:"team2Name,omitempty"`
	Team1League string `json:"team1League,omitempty"`
	Team2League string `json:"team2League,omitempty"`
}

// Match is one recorded result.
type Match struct {
	ID             string          `json:"id"`
	LeagueID       string          `json:"leagueId"`
	Season         int             `json:"season"`
	Team1          []string        `json:"team1"`
	Team2          []string        `json:"team2"`
	Score          score.Score     `json:"-"`
	Result         score.Result    `json:"result"`
	Timestamp      string          `json:"timestamp"`
	CreatedAt      time.Time       `json:"createdAt"`
	LockAt         *time.Time      `json:"lockAt,omitempty"`
	PlayerPresence map[string]bool `json:"playerPresence"`
	Details
}

// MarshalJSON flattens the score into the team1Score/... wire fields.
func (m Match) MarshalJSON() ([]byte, error) {
	type alias Match
	return json.Marshal(struct {
		alias
		score.Raw
	}{alias(m), m.Score.ToRaw()})
}

// Fixture is the view of m the standings fold reads.
func (m *Match) Fixture() stats.Fixture {
	return stats.Fixture{Team1: m.Team1, Team2: m.Team2, Goals: m.Score.Goals(), Result: m.Result}
}

// AppendInput is a match as submitted for recording.
type AppendInput struct {
	// Season 0 records into the current season.
	Season    int
	Team1     []string
	Team2     []string
	Score     score.Score
	Timestamp string
	Details   Details
}

// PlayerStats are the running totals of one player.
type PlayerStats struct {
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
	Draws        int `json:"draws"`
	GoalsFor     int `json:"goalsFor"`
	GoalsAgainst int `json:"goalsAgainst"`
}

// Player is a roster entry of a league.
type Player struct {
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Season groups matches in insertion order.
type Season struct {
	Number    int       `json:"number"`
	StartDate time.Time `json:"startDate"`
	Matches   []*Match  `json:"matches"`
}

// OverallStats holds the league-wide counters.
type OverallStats struct {
	TotalMatches int                    `json:"totalMatches"`
	Players      map[string]PlayerStats `json:"players"`
}

// League is the whole persisted state of one league.
type League struct {
	ID              string          `json:"id"`
	Players         []string        `json:"players"`
	OverallStats    OverallStats    `json:"overallStats"`
	Seasons         map[int]*Season `json:"seasons"`
	AdminPinVersion int             `json:"adminPinVersion"`
	AdminPinSetAt   *time.Time      `json:"adminPinSetAt,omitempty"`
}

// MatchCreatedEvent is published once a match is durably stored.
type MatchCreatedEvent struct {
	LeagueID  string    `msgpack:"league_id" json:"leagueId"`
	MatchID   string    `msgpack:"match_id" json:"matchId"`
	Timestamp string    `msgpack:"timestamp" json:"timestamp"`
	CreatedAt time.Time `msgpack:"created_at" json:"createdAt"`
}
