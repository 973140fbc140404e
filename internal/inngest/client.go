package inngest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/pubsub"
)

// New registers the lock assignment function on inngestClient.
func New(inngestClient inngestgo.Client, handler MatchCreatedHandler) (InngestClient, error) {
	c := &client{
		inngestClient: inngestClient,
		handler:       handler,
	}
	if _, err := c.createAssignLockFunction(); err != nil {
		return nil, err
	}
	return c, nil
}

func (i *client) createAssignLockFunction() (inngestgo.ServableFunction, error) {
	config := inngestgo.FunctionOpts{
		ID:   "assign-match-lock",
		Name: "Assign match lock boundary",
	}
	f, err := inngestgo.CreateFunction(
		i.inngestClient,
		config,
		inngestgo.EventTrigger(EventMatchCreated, nil),
		func(ctx context.Context, input inngestgo.Input[MatchData]) (any, error) {
			event := input.Event.Data.toEvent()
			_, err := step.Run(ctx, "assign-lock", func(ctx context.Context) (string, error) {
				i.handler.HandleMatchCreated(ctx, event, false)
				return event.MatchID, nil
			})
			if err != nil {
				return nil, err
			}
			return "OK", nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inngest function: %w", err)
	}
	return f, nil
}

func (i *client) Serve() http.Handler {
	return i.inngestClient.Serve()
}

// SendMessage publishes a ledger event to Inngest. Only match-created events
// have a consumer.
func (i *client) SendMessage(topic pubsub.EventType, data any) error {
	evt, err := encodeEvent(topic, data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := i.inngestClient.Send(ctx, evt)
	if err != nil {
		log.Error("Failed to send inngest event", "error", err, "event", evt.Name)
		return err
	}
	log.Debug("Sent inngest event", "event", evt.Name, "id", id)
	return nil
}

func encodeEvent(topic pubsub.EventType, data any) (inngestgo.Event, error) {
	if topic != pubsub.EventMatchCreated {
		return inngestgo.Event{}, fmt.Errorf("no inngest event for topic %q", topic)
	}
	e, ok := data.(ledger.MatchCreatedEvent)
	if !ok {
		return inngestgo.Event{}, fmt.Errorf("unexpected payload %T for topic %q", data, topic)
	}
	return inngestgo.Event{
		Name: EventMatchCreated,
		Data: map[string]any{
			"leagueId":  e.LeagueID,
			"matchId":   e.MatchID,
			"timestamp": e.Timestamp,
			"createdAt": e.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}, nil
}
