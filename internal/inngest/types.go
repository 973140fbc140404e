package inngest

import (
	"context"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/mauv0809/scoreline/internal/ledger"
)

// EventMatchCreated is the Inngest event name for a newly appended match.
const EventMatchCreated = "match/created"

type client struct {
	inngestClient inngestgo.Client
	handler       MatchCreatedHandler
}

// MatchCreatedHandler consumes match-created events.
type MatchCreatedHandler interface {
	HandleMatchCreated(ctx context.Context, event ledger.MatchCreatedEvent, dryRun bool)
}

// MatchData is the payload of a match/created event.
type MatchData struct {
	LeagueID  string `json:"leagueId"`
	MatchID   string `json:"matchId"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"createdAt"`
}

func (d MatchData) toEvent() ledger.MatchCreatedEvent {
	e := ledger.MatchCreatedEvent{LeagueID: d.LeagueID, MatchID: d.MatchID, Timestamp: d.Timestamp}
	if t, err := time.Parse(time.RFC3339Nano, d.CreatedAt); err == nil {
		e.CreatedAt = t
	}
	return e
}

// HandlerFunc adapts a function to MatchCreatedHandler.
type HandlerFunc func(ctx context.Context, event ledger.MatchCreatedEvent, dryRun bool)

func (f HandlerFunc) HandleMatchCreated(ctx context.Context, event ledger.MatchCreatedEvent, dryRun bool) {
	f(ctx, event, dryRun)
}
