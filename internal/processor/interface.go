package processor

import (
	"context"

	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/notifier"
)

// Store is the part of the ledger the processor works against.
type Store interface {
	lock.Patcher
	Match(ctx context.Context, leagueID, matchID string) (*ledger.Match, error)
	MatchesWithoutLock(ctx context.Context, limit int) ([]*ledger.Match, error)
}

type Notifier interface {
	notifier.Notifier
}
