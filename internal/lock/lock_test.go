package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadZone("")
	require.NoError(t, err)
	return loc
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBoundary(t *testing.T) {
	loc := london(t)
	testCases := []struct {
		name string
		base string
		want string
	}{
		{"winter evening", "2025-01-14T19:45:00Z", "2025-01-15T00:00:00Z"},
		{"evening before spring forward", "2025-03-29T20:00:00Z", "2025-03-30T00:00:00Z"},
		{"last minute before spring-forward day", "2025-03-29T23:59:00Z", "2025-03-30T00:00:00Z"},
		// 00:30 GMT on the change day: the next midnight is already in BST.
		{"spring-forward day before the change", "2025-03-30T00:30:00Z", "2025-03-30T23:00:00Z"},
		{"spring-forward day after the change", "2025-03-30T10:00:00Z", "2025-03-30T23:00:00Z"},
		{"summer late evening", "2025-07-10T22:30:00Z", "2025-07-10T23:00:00Z"},
		{"summer after local midnight", "2025-07-10T23:30:00Z", "2025-07-11T23:00:00Z"},
		// 00:30 BST on the fall-back day: the next midnight is back in GMT.
		{"fall-back day before the change", "2025-10-25T23:30:00Z", "2025-10-27T00:00:00Z"},
		{"evening before fall back", "2025-10-25T21:00:00Z", "2025-10-25T23:00:00Z"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Boundary(utc(tc.base), loc)
			assert.Equal(t, utc(tc.want), got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestBoundaryUsesTargetOffset(t *testing.T) {
	loc := london(t)
	base := utc("2025-03-30T00:30:00Z")
	_, baseOffset := base.In(loc).Zone()
	naive := time.Date(2025, 3, 31, 0, 0, 0, 0, time.FixedZone("base", baseOffset)).UTC()

	got := Boundary(base, loc)
	assert.NotEqual(t, naive, got, "the offset at the base instant would lock an hour late")
	assert.Equal(t, 0, got.In(loc).Hour())
}

func TestBaseDate(t *testing.T) {
	created := utc("2025-05-01T12:00:00Z")

	t.Run("logical timestamp wins", func(t *testing.T) {
		got, err := BaseDate("2025-04-30T18:00:00+01:00", created)
		require.NoError(t, err)
		assert.True(t, got.Equal(utc("2025-04-30T17:00:00Z")))
	})

	t.Run("timestamp without offset", func(t *testing.T) {
		got, err := BaseDate("2025-04-30T18:00:00", created)
		require.NoError(t, err)
		assert.True(t, got.Equal(utc("2025-04-30T18:00:00Z")))
	})

	t.Run("unparseable timestamp falls back to insertion time", func(t *testing.T) {
		got, err := BaseDate("last tuesday", created)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("nothing valid", func(t *testing.T) {
		_, err := BaseDate("", time.Time{})
		assert.ErrorIs(t, err, ErrNoBaseDate)
	})
}

func TestLocked(t *testing.T) {
	lockAt := utc("2025-03-30T00:00:00Z")
	before := lockAt.Add(-time.Second)
	after := lockAt.Add(time.Second)

	assert.False(t, Locked(&lockAt, before, false))
	assert.False(t, Locked(&lockAt, lockAt, false), "locked only strictly after the boundary")
	assert.True(t, Locked(&lockAt, after, false))
	assert.False(t, Locked(&lockAt, after, true), "admins bypass the lock")
	assert.False(t, Locked(nil, after, false), "no boundary means editable")
}

type fakePatcher struct {
	calls []time.Time
	err   error
}

func (f *fakePatcher) SetLockAt(ctx context.Context, leagueID, matchID string, lockAt time.Time) error {
	f.calls = append(f.calls, lockAt)
	return f.err
}

func TestScheduler_Assign(t *testing.T) {
	loc := london(t)

	t.Run("patches the computed boundary", func(t *testing.T) {
		p := &fakePatcher{}
		m := metrics.NewMock()
		s := NewScheduler(p, loc, m)

		lockAt, ok := s.Assign(context.Background(), "l1", "m1", "2025-03-29T20:00:00Z", time.Time{})
		require.True(t, ok)
		assert.Equal(t, utc("2025-03-30T00:00:00Z"), lockAt)
		assert.Equal(t, []time.Time{lockAt}, p.calls)
		assert.Equal(t, 1, m.LocksAssigned())
	})

	t.Run("is idempotent for the same base date", func(t *testing.T) {
		p := &fakePatcher{}
		s := NewScheduler(p, loc, metrics.NewMock())
		first, _ := s.Assign(context.Background(), "l1", "m1", "2025-07-10T22:30:00Z", time.Time{})
		second, _ := s.Assign(context.Background(), "l1", "m1", "2025-07-10T22:30:00Z", time.Time{})
		assert.Equal(t, first, second)
	})

	t.Run("falls back to insertion time", func(t *testing.T) {
		p := &fakePatcher{}
		s := NewScheduler(p, loc, metrics.NewMock())
		lockAt, ok := s.Assign(context.Background(), "l1", "m1", "garbage", utc("2025-01-14T19:45:00Z"))
		require.True(t, ok)
		assert.Equal(t, utc("2025-01-15T00:00:00Z"), lockAt)
	})

	t.Run("aborts without a base date", func(t *testing.T) {
		p := &fakePatcher{}
		m := metrics.NewMock()
		s := NewScheduler(p, loc, m)
		_, ok := s.Assign(context.Background(), "l1", "m1", "", time.Time{})
		assert.False(t, ok)
		assert.Empty(t, p.calls)
		assert.Equal(t, 1, m.LockFailures())
	})

	t.Run("store failure is swallowed", func(t *testing.T) {
		p := &fakePatcher{err: errors.New("database is locked")}
		m := metrics.NewMock()
		s := NewScheduler(p, loc, m)
		_, ok := s.Assign(context.Background(), "l1", "m1", "2025-01-14T19:45:00Z", time.Time{})
		assert.False(t, ok)
		assert.Equal(t, 1, m.LockFailures())
		assert.Equal(t, 0, m.LocksAssigned())
	})
}
