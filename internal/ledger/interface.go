package ledger

import (
	"context"
	"time"

	"github.com/mauv0809/scoreline/internal/score"
)

// Ledger records matches per league and keeps the player aggregates.
type Ledger interface {
	Append(ctx context.Context, leagueID string, in AppendInput) (*Match, error)
	FindByTimestamp(ctx context.Context, leagueID, ts string) (*Match, error)
	Match(ctx context.Context, leagueID, matchID string) (*Match, error)
	Update(ctx context.Context, leagueID, ts string, s score.Score, actor Actor) (*Match, error)
	Delete(ctx context.Context, leagueID, ts string, actor Actor) error
	DeleteLast(ctx context.Context, leagueID string, actor Actor) (*Match, error)
	ListMatches(ctx context.Context, leagueID string, season int) ([]*Match, error)
	Seasons(ctx context.Context, leagueID string) ([]Season, error)
	League(ctx context.Context, leagueID string) (*League, error)
	PlayerStats(ctx context.Context, leagueID string) (map[string]PlayerStats, error)
	RecomputeStats(ctx context.Context, leagueID string) (map[string]PlayerStats, error)
	Players(ctx context.Context, leagueID string) ([]Player, error)
	AddPlayer(ctx context.Context, leagueID, name string) error
	SetPlayerActive(ctx context.Context, leagueID, name string, active bool) error
	SetLockAt(ctx context.Context, leagueID, matchID string, lockAt time.Time) error
	MatchesWithoutLock(ctx context.Context, limit int) ([]*Match, error)
}
