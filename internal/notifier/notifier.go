package notifier

import (
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/stats"
)

// Notifier defines a high-level interface for sending notifications about business events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For newly recorded matches
	SendResultNotification(match *ledger.Match, dryRun bool) error
	SendStandings(leagueID string, rows []stats.Standing, mode stats.Mode, dryRun bool) error

	// For formatting responses for slash commands
	FormatStandingsResponse(leagueID string, rows []stats.Standing, mode stats.Mode) (any, error)
	FormatPlayerStatsResponse(leagueID, name string, ps *ledger.PlayerStats) (any, error)
}
