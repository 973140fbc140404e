package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/notifier"
	"github.com/mauv0809/scoreline/internal/score"
	"github.com/mauv0809/scoreline/internal/stats"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// standingsLimit caps the rows rendered in one message.
const standingsLimit = 10

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	loc       *time.Location
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier. Times are rendered in loc.
func NewNotifier(token, channelID string, loc *time.Location, metrics metrics.Metrics) *Notifier {
	api := slack.New(token)
	return NewNotifierWithAPI(api, channelID, loc, metrics)
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, loc *time.Location, metrics metrics.Metrics) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		api:       api,
		channelID: channelID,
		loc:       loc,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)

	if err != nil {
		s.metrics.IncSlackNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncSlackNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

func (s *Notifier) SendResultNotification(match *ledger.Match, dryRun bool) error {
	msg := s.formatResultNotification(match)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) SendStandings(leagueID string, rows []stats.Standing, mode stats.Mode, dryRun bool) error {
	msg := s.formatStandings(leagueID, rows, mode)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

// FormatStandingsResponse formats a standings table for a slash command response.
func (s *Notifier) FormatStandingsResponse(leagueID string, rows []stats.Standing, mode stats.Mode) (any, error) {
	return s.formatStandings(leagueID, rows, mode), nil
}

// FormatPlayerStatsResponse formats one player's totals. A nil ps renders a
// not-found message.
func (s *Notifier) FormatPlayerStatsResponse(leagueID, name string, ps *ledger.PlayerStats) (any, error) {
	return s.formatPlayerStats(leagueID, name, ps), nil
}

// formatResultNotification creates the Slack message for a newly recorded match using Block Kit.
func (s *Notifier) formatResultNotification(match *ledger.Match) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "⚽ Match recorded ⚽", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	detailsText := fmt.Sprintf("%s, season %d", match.LeagueID, match.Season)
	if t, err := time.Parse(time.RFC3339Nano, match.Timestamp); err == nil {
		detailsText += " at " + t.In(s.loc).Format("Monday 02 Jan, 15:04")
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", detailsText, false, false), nil, nil))

	team1 := teamLabel(match.Team1Name, match.Team1)
	team2 := teamLabel(match.Team2Name, match.Team2)

	var resultText string
	switch match.Result {
	case score.ResultTeam1:
		resultText = fmt.Sprintf("Result: %s won! 🏆", team1)
	case score.ResultTeam2:
		resultText = fmt.Sprintf("Result: %s won! 🏆", team2)
	default:
		resultText = "Result: draw 🤝"
	}

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject("plain_text", fmt.Sprintf("Full time\n%s %d - %d %s", team1, match.Score.Regular.Team1, match.Score.Regular.Team2, team2), true, false),
	}
	if et := match.Score.ExtraTime; et != nil {
		fields = append(fields, slack.NewTextBlockObject("plain_text", fmt.Sprintf("Extra time\n%d - %d", et.Team1, et.Team2), true, false))
	}
	if pen := match.Score.Penalties; pen != nil {
		fields = append(fields, slack.NewTextBlockObject("plain_text", fmt.Sprintf("Penalties\n%d - %d", pen.Team1, pen.Team2), true, false))
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", resultText, true, false), fields, nil))

	if match.LockAt != nil {
		lockText := fmt.Sprintf("🔒 Editable until %s", match.LockAt.In(s.loc).Format("Mon 02 Jan 15:04 MST"))
		blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", lockText, true, false)))
	}

	return slack.NewBlockMessage(blocks...)
}

// formatStandings creates a Slack message with the partnership table.
func (s *Notifier) formatStandings(leagueID string, rows []stats.Standing, mode stats.Mode) slack.Message {
	blocks := make([]slack.Block, 0)

	header := fmt.Sprintf("🏆 %s standings 🏆", leagueID)
	blocks = append(blocks, slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", header, true, false)))

	if len(rows) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "No matches recorded yet. Go play some football!", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	for i, row := range rows {
		if i == standingsLimit {
			break
		}
		rank := i + 1
		var medal string
		switch rank {
		case 1:
			medal = "🥇 "
		case 2:
			medal = "🥈 "
		case 3:
			medal = "🥉 "
		}
		text := fmt.Sprintf("%d. %s%s\n> Pts: %s | P: %s | W-D-L: %s-%s-%s | GD: %s",
			rank, medal, row.TeamID,
			num(row.Points), num(row.Played), num(row.Won), num(row.Drawn), num(row.Lost), num(row.GoalDifference))
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", text, true, false), nil, nil))
	}

	if mode != stats.ModeRaw {
		blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", fmt.Sprintf("Mode: %s", mode), true, false)))
	}
	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatPlayerStats(leagueID, name string, ps *ledger.PlayerStats) slack.Message {
	if ps == nil {
		text := fmt.Sprintf("Sorry, I couldn't find a player named '%s' in %s.", name, leagueID)
		return slack.NewBlockMessage(slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", text, false, false), nil, nil))
	}
	played := ps.Wins + ps.Losses + ps.Draws
	text := fmt.Sprintf("Stats for %s\n> Played: %d | W-D-L: %d-%d-%d | Goals: %d-%d",
		name, played, ps.Wins, ps.Draws, ps.Losses, ps.GoalsFor, ps.GoalsAgainst)
	return slack.NewBlockMessage(slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", text, true, false), nil, nil))
}

func teamLabel(name string, roster []string) string {
	if name != "" {
		return name
	}
	return strings.Join(roster, " & ")
}

// num prints whole numbers without a decimal part.
func num(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
