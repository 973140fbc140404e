package notifier

import (
	"sync"

	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/stats"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies for method calls
	SendResultNotificationFunc func(match *ledger.Match, dryRun bool) error

	// Call records
	SendResultNotificationCalls []*ledger.Match
	SendStandingsCalls          []StandingsCall
	FormatStandingsCalls        []StandingsCall
	FormatPlayerStatsCalls      []string
}

// StandingsCall holds the arguments of a standings notification.
type StandingsCall struct {
	LeagueID string
	Rows     []stats.Standing
	Mode     stats.Mode
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendResultNotificationCalls = nil
	m.SendStandingsCalls = nil
	m.FormatStandingsCalls = nil
	m.FormatPlayerStatsCalls = nil
}

func (m *Mock) SendResultNotification(match *ledger.Match, dryRun bool) error {
	m.mu.Lock()
	m.SendResultNotificationCalls = append(m.SendResultNotificationCalls, match)
	m.mu.Unlock()
	if m.SendResultNotificationFunc != nil {
		return m.SendResultNotificationFunc(match, dryRun)
	}
	return nil
}

func (m *Mock) SendStandings(leagueID string, rows []stats.Standing, mode stats.Mode, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendStandingsCalls = append(m.SendStandingsCalls, StandingsCall{LeagueID: leagueID, Rows: rows, Mode: mode})
	return nil
}

func (m *Mock) FormatStandingsResponse(leagueID string, rows []stats.Standing, mode stats.Mode) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FormatStandingsCalls = append(m.FormatStandingsCalls, StandingsCall{LeagueID: leagueID, Rows: rows, Mode: mode})
	return map[string]any{"league": leagueID, "rows": len(rows)}, nil
}

func (m *Mock) FormatPlayerStatsResponse(leagueID, name string, ps *ledger.PlayerStats) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FormatPlayerStatsCalls = append(m.FormatPlayerStatsCalls, name)
	return map[string]any{"league": leagueID, "player": name, "found": ps != nil}, nil
}

// ResultNotifications returns a copy of the recorded result notifications.
func (m *Mock) ResultNotifications() []*ledger.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ledger.Match(nil), m.SendResultNotificationCalls...)
}
