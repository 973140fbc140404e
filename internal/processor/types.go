package processor

import (
	"time"

	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/metrics"
)

// Processor reacts to match-created events: it assigns the lock boundary
// and announces the result.
type Processor struct {
	store     Store
	scheduler *lock.Scheduler
	loc       *time.Location
	notifier  Notifier
	metrics   metrics.Metrics
	clock     clock.Clock
}

// sweepBatch bounds one reconciliation pass.
const sweepBatch = 100

// notifyWindow is how old a match may be and still get announced. Replayed
// or swept events for older matches only get their boundary.
const notifyWindow = 24 * time.Hour
