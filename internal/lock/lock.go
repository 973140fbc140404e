package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/charmbracelet/log"
)

// DefaultZone is the civil timezone whose calendar day bounds a match.
const DefaultZone = "Europe/London"

// ErrNoBaseDate is returned when neither the logical timestamp nor the
// insertion time can anchor a lock boundary.
var ErrNoBaseDate = errors.New("no valid base date for lock boundary")

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a logical match timestamp. Timestamps without an
// offset are read as UTC.
func ParseTimestamp(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BaseDate picks the instant a lock boundary is computed from: the logical
// timestamp when it parses, otherwise the insertion time.
func BaseDate(timestamp string, createdAt time.Time) (time.Time, error) {
	if t, ok := ParseTimestamp(timestamp); ok {
		return t, nil
	}
	if !createdAt.IsZero() {
		return createdAt, nil
	}
	return time.Time{}, ErrNoBaseDate
}

// Boundary returns the instant of local midnight that ends base's calendar day
// in loc. time.Date resolves the wall clock with the offset in effect at the
// target instant, so days that cross a clock change lock at the right moment.
func Boundary(base time.Time, loc *time.Location) time.Time {
	y, m, d := base.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).UTC()
}

// Compute is BaseDate followed by Boundary.
func Compute(timestamp string, createdAt time.Time, loc *time.Location) (time.Time, error) {
	base, err := BaseDate(timestamp, createdAt)
	if err != nil {
		return time.Time{}, err
	}
	return Boundary(base, loc), nil
}

// Locked reports whether a match is read-only for the caller. Admins are never
// locked out and a match without a boundary is always editable.
func Locked(lockAt *time.Time, now time.Time, admin bool) bool {
	if admin || lockAt == nil {
		return false
	}
	return now.After(*lockAt)
}

// LoadZone loads the lock timezone, falling back to DefaultZone.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load lock timezone %q: %w", name, err)
	}
	return loc, nil
}

// Patcher persists a computed boundary on a match.
type Patcher interface {
	SetLockAt(ctx context.Context, leagueID, matchID string, lockAt time.Time) error
}

// Recorder receives the outcome of each assignment.
type Recorder interface {
	IncLocksAssigned()
	IncLockFailures()
}

// Scheduler assigns lock boundaries to newly created matches.
type Scheduler struct {
	patcher  Patcher
	loc      *time.Location
	recorder Recorder
}

func NewScheduler(patcher Patcher, loc *time.Location, recorder Recorder) *Scheduler {
	return &Scheduler{patcher: patcher, loc: loc, recorder: recorder}
}

// Assign computes and stores the boundary for one match. Failures are logged
// and counted, never retried: a match without lockAt stays editable.
func (s *Scheduler) Assign(ctx context.Context, leagueID, matchID, timestamp string, createdAt time.Time) (time.Time, bool) {
	lockAt, err := Compute(timestamp, createdAt, s.loc)
	if err != nil {
		log.Error("Cannot compute lock boundary, match stays unlocked", "error", err, "leagueID", leagueID, "matchID", matchID, "timestamp", timestamp)
		s.recorder.IncLockFailures()
		return time.Time{}, false
	}
	if err := s.patcher.SetLockAt(ctx, leagueID, matchID, lockAt); err != nil {
		log.Error("Failed to persist lock boundary", "error", err, "leagueID", leagueID, "matchID", matchID)
		s.recorder.IncLockFailures()
		return time.Time{}, false
	}
	log.Info("Assigned lock boundary", "leagueID", leagueID, "matchID", matchID, "lockAt", lockAt.Format(time.RFC3339))
	s.recorder.IncLocksAssigned()
	return lockAt, true
}
