package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mauv0809/scoreline/internal/score"
)

// MockLedger is a mock implementation of the Ledger interface for testing.
// It is safe for concurrent use. Methods without a Func return zero values.
type MockLedger struct {
	mu sync.Mutex

	// Spies for method calls
	AppendFunc             func(ctx context.Context, leagueID string, in AppendInput) (*Match, error)
	FindByTimestampFunc    func(ctx context.Context, leagueID, ts string) (*Match, error)
	MatchFunc              func(ctx context.Context, leagueID, matchID string) (*Match, error)
	UpdateFunc             func(ctx context.Context, leagueID, ts string, s score.Score, actor Actor) (*Match, error)
	DeleteFunc             func(ctx context.Context, leagueID, ts string, actor Actor) error
	DeleteLastFunc         func(ctx context.Context, leagueID string, actor Actor) (*Match, error)
	ListMatchesFunc        func(ctx context.Context, leagueID string, season int) ([]*Match, error)
	SeasonsFunc            func(ctx context.Context, leagueID string) ([]Season, error)
	LeagueFunc             func(ctx context.Context, leagueID string) (*League, error)
	PlayerStatsFunc        func(ctx context.Context, leagueID string) (map[string]PlayerStats, error)
	RecomputeStatsFunc     func(ctx context.Context, leagueID string) (map[string]PlayerStats, error)
	PlayersFunc            func(ctx context.Context, leagueID string) ([]Player, error)
	AddPlayerFunc          func(ctx context.Context, leagueID, name string) error
	SetPlayerActiveFunc    func(ctx context.Context, leagueID, name string, active bool) error
	SetLockAtFunc          func(ctx context.Context, leagueID, matchID string, lockAt time.Time) error
	MatchesWithoutLockFunc func(ctx context.Context, limit int) ([]*Match, error)

	// Call records
	AppendCalls    []AppendCall
	UpdateCalls    []UpdateCall
	DeleteCalls    []DeleteCall
	SetLockAtCalls []SetLockAtCall
}

type AppendCall struct {
	LeagueID string
	Input    AppendInput
}

type UpdateCall struct {
	LeagueID  string
	Timestamp string
	Score     score.Score
	Actor     Actor
}

type DeleteCall struct {
	LeagueID  string
	Timestamp string
	Actor     Actor
}

type SetLockAtCall struct {
	LeagueID string
	MatchID  string
	LockAt   time.Time
}

func NewMock() *MockLedger {
	return &MockLedger{}
}

func (m *MockLedger) Append(ctx context.Context, leagueID string, in AppendInput) (*Match, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{LeagueID: leagueID, Input: in})
	m.mu.Unlock()
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, leagueID, in)
	}
	return &Match{LeagueID: leagueID, Team1: in.Team1, Team2: in.Team2, Score: in.Score, Result: score.Resolve(in.Score), Timestamp: in.Timestamp}, nil
}

func (m *MockLedger) FindByTimestamp(ctx context.Context, leagueID, ts string) (*Match, error) {
	if m.FindByTimestampFunc != nil {
		return m.FindByTimestampFunc(ctx, leagueID, ts)
	}
	return nil, nil
}

func (m *MockLedger) Match(ctx context.Context, leagueID, matchID string) (*Match, error) {
	if m.MatchFunc != nil {
		return m.MatchFunc(ctx, leagueID, matchID)
	}
	return &Match{ID: matchID, LeagueID: leagueID}, nil
}

func (m *MockLedger) Update(ctx context.Context, leagueID, ts string, s score.Score, actor Actor) (*Match, error) {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{LeagueID: leagueID, Timestamp: ts, Score: s, Actor: actor})
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, leagueID, ts, s, actor)
	}
	return &Match{LeagueID: leagueID, Timestamp: ts, Score: s, Result: score.Resolve(s)}, nil
}

func (m *MockLedger) Delete(ctx context.Context, leagueID, ts string, actor Actor) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, DeleteCall{LeagueID: leagueID, Timestamp: ts, Actor: actor})
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, leagueID, ts, actor)
	}
	return nil
}

func (m *MockLedger) DeleteLast(ctx context.Context, leagueID string, actor Actor) (*Match, error) {
	if m.DeleteLastFunc != nil {
		return m.DeleteLastFunc(ctx, leagueID, actor)
	}
	return nil, nil
}

func (m *MockLedger) ListMatches(ctx context.Context, leagueID string, season int) ([]*Match, error) {
	if m.ListMatchesFunc != nil {
		return m.ListMatchesFunc(ctx, leagueID, season)
	}
	return nil, nil
}

func (m *MockLedger) Seasons(ctx context.Context, leagueID string) ([]Season, error) {
	if m.SeasonsFunc != nil {
		return m.SeasonsFunc(ctx, leagueID)
	}
	return nil, nil
}

func (m *MockLedger) League(ctx context.Context, leagueID string) (*League, error) {
	if m.LeagueFunc != nil {
		return m.LeagueFunc(ctx, leagueID)
	}
	return nil, nil
}

func (m *MockLedger) PlayerStats(ctx context.Context, leagueID string) (map[string]PlayerStats, error) {
	if m.PlayerStatsFunc != nil {
		return m.PlayerStatsFunc(ctx, leagueID)
	}
	return map[string]PlayerStats{}, nil
}

func (m *MockLedger) RecomputeStats(ctx context.Context, leagueID string) (map[string]PlayerStats, error) {
	if m.RecomputeStatsFunc != nil {
		return m.RecomputeStatsFunc(ctx, leagueID)
	}
	return map[string]PlayerStats{}, nil
}

func (m *MockLedger) Players(ctx context.Context, leagueID string) ([]Player, error) {
	if m.PlayersFunc != nil {
		return m.PlayersFunc(ctx, leagueID)
	}
	return nil, nil
}

func (m *MockLedger) AddPlayer(ctx context.Context, leagueID, name string) error {
	if m.AddPlayerFunc != nil {
		return m.AddPlayerFunc(ctx, leagueID, name)
	}
	return nil
}

func (m *MockLedger) SetPlayerActive(ctx context.Context, leagueID, name string, active bool) error {
	if m.SetPlayerActiveFunc != nil {
		return m.SetPlayerActiveFunc(ctx, leagueID, name, active)
	}
	return nil
}

func (m *MockLedger) SetLockAt(ctx context.Context, leagueID, matchID string, lockAt time.Time) error {
	m.mu.Lock()
	m.SetLockAtCalls = append(m.SetLockAtCalls, SetLockAtCall{LeagueID: leagueID, MatchID: matchID, LockAt: lockAt})
	m.mu.Unlock()
	if m.SetLockAtFunc != nil {
		return m.SetLockAtFunc(ctx, leagueID, matchID, lockAt)
	}
	return nil
}

func (m *MockLedger) MatchesWithoutLock(ctx context.Context, limit int) ([]*Match, error) {
	if m.MatchesWithoutLockFunc != nil {
		return m.MatchesWithoutLockFunc(ctx, limit)
	}
	return nil, nil
}

// SetLockAtCallsSnapshot returns a copy of the recorded SetLockAt calls.
func (m *MockLedger) SetLockAtCallsSnapshot() []SetLockAtCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SetLockAtCall(nil), m.SetLockAtCalls...)
}
