package processor

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/pubsub"
)

// New creates a processor. notifier may be nil, in which case nothing is
// announced.
func New(store Store, notifier Notifier, loc *time.Location, clk clock.Clock, metrics metrics.Metrics) *Processor {
	return &Processor{
		store:     store,
		scheduler: lock.NewScheduler(store, loc, metrics),
		loc:       loc,
		notifier:  notifier,
		metrics:   metrics,
		clock:     clk,
	}
}

// HandleMatchCreated assigns the lock boundary of a new match and posts the
// result. The event only names the match; the boundary comes from the stored
// record. Failures are logged; the match stays editable until a later
// reconciliation assigns its boundary.
func (p *Processor) HandleMatchCreated(ctx context.Context, event ledger.MatchCreatedEvent, dryRun bool) {
	start := time.Now()
	defer func() {
		p.metrics.ObserveProcessingDuration(float64(time.Since(start)))
	}()
	log.Debug("Processing match-created event", "leagueID", event.LeagueID, "matchID", event.MatchID)

	match, err := p.store.Match(ctx, event.LeagueID, event.MatchID)
	if err != nil {
		log.Error("Failed to load created match", "error", err, "leagueID", event.LeagueID, "matchID", event.MatchID)
		p.metrics.IncLockFailures()
		return
	}
	if match.Timestamp != event.Timestamp {
		log.Warn("Event timestamp differs from stored match", "matchID", match.ID, "event", event.Timestamp, "stored", match.Timestamp)
	}

	if match.LockAt == nil {
		lockAt, ok := p.scheduler.Assign(ctx, match.LeagueID, match.ID, match.Timestamp, match.CreatedAt)
		if ok {
			match.LockAt = &lockAt
		} else {
			log.Warn("Match left without a lock boundary", "leagueID", match.LeagueID, "matchID", match.ID)
		}
	}
	if p.notifier == nil {
		return
	}
	if p.clock.Now().Sub(match.CreatedAt) > notifyWindow {
		log.Info("Skipping result notification for old match", "matchID", match.ID, "createdAt", match.CreatedAt)
		return
	}
	if err := p.notifier.SendResultNotification(match, dryRun); err != nil {
		log.Error("Failed to send result notification", "error", err, "matchID", match.ID)
	}
}

// ReconcileLocks assigns boundaries to matches that never got one, typically
// because their event was lost. It returns the number of matches fixed.
func (p *Processor) ReconcileLocks(ctx context.Context, dryRun bool) int {
	matches, err := p.store.MatchesWithoutLock(ctx, sweepBatch)
	if err != nil {
		log.Error("Failed to list matches without a lock boundary", "error", err)
		return 0
	}
	log.Info("Reconciling lock boundaries", "count", len(matches), "dryRun", dryRun)

	fixed := 0
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			log.Warn("Reconciliation interrupted", "error", err, "fixed", fixed)
			return fixed
		}
		if dryRun {
			lockAt, err := lock.Compute(m.Timestamp, m.CreatedAt, p.loc)
			if err != nil {
				log.Info("[Dry Run] Match has no computable boundary", "matchID", m.ID, "error", err)
				continue
			}
			log.Info("[Dry Run] Would assign lock boundary", "matchID", m.ID, "lockAt", lockAt.Format(time.RFC3339))
			continue
		}
		if _, ok := p.scheduler.Assign(ctx, m.LeagueID, m.ID, m.Timestamp, m.CreatedAt); ok {
			fixed++
		}
	}
	return fixed
}

// MatchCreatedHandler adapts HandleMatchCreated to a bus subscription,
// decoding payloads with decoder.
func (p *Processor) MatchCreatedHandler(decoder pubsub.PubSubClient) pubsub.Handler {
	return func(ctx context.Context, data []byte) error {
		var event ledger.MatchCreatedEvent
		if err := decoder.ProcessMessage(data, &event); err != nil {
			return err
		}
		p.HandleMatchCreated(ctx, event, false)
		return nil
	}
}
