package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/apperr"
	"github.com/mauv0809/scoreline/internal/database"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/pubsub"
	"github.com/mauv0809/scoreline/internal/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ledger  Ledger
	clock   *clock.Mock
	metrics *metrics.Mock
	pubsub  *pubsub.MockPubSubClient
}

// setupTestDB creates a ledger on a fresh in-memory database with the clock
// parked on a Saturday evening before the spring clock change.
func setupTestDB(t *testing.T) *testEnv {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err, "Failed to initialize test database")
	t.Cleanup(teardown)

	loc, err := lock.LoadZone("")
	require.NoError(t, err)

	clk := clock.NewMock()
	clk.Set(time.Date(2025, 3, 29, 20, 0, 0, 0, time.UTC))
	m := metrics.NewMock()
	ps := pubsub.NewMock()
	return &testEnv{
		ledger:  New(db, clk, loc, ps, m),
		clock:   clk,
		metrics: m,
		pubsub:  ps,
	}
}

func appendMatch(t *testing.T, l Ledger, team1, team2 []string, g1, g2 int, ts string) *Match {
	t.Helper()
	m, err := l.Append(context.Background(), "league", AppendInput{
		Team1:     team1,
		Team2:     team2,
		Score:     score.Regular(g1, g2),
		Timestamp: ts,
	})
	require.NoError(t, err)
	return m
}

func TestAppendThenFind(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	appended, err := env.ledger.Append(ctx, "league", AppendInput{
		Team1:     []string{"ann", "bob"},
		Team2:     []string{"cat", "dan"},
		Score:     score.Regular(1, 1).WithPenalties(5, 4),
		Timestamp: "2025-03-29T20:00:00Z",
		Details:   Details{Team1Name: "Reds", Team2League: "Sunday"},
	})
	require.NoError(t, err)
	assert.Equal(t, score.ResultTeam1, appended.Result)
	assert.Equal(t, 1, appended.Season)
	assert.Nil(t, appended.LockAt, "the boundary is assigned after creation")

	found, err := env.ledger.FindByTimestamp(ctx, "league", "2025-03-29T20:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, found.LockAt, "reading a match without a boundary assigns one")
	assert.Equal(t, time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC), *found.LockAt)

	appended.LockAt = found.LockAt
	assert.Equal(t, appended, found)
	assert.Equal(t, 1, env.metrics.LocksAssigned())
}

func TestAppendDefaultsTimestampToInsertionTime(t *testing.T) {
	env := setupTestDB(t)
	m := appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "")
	assert.Equal(t, "2025-03-29T20:00:00Z", m.Timestamp)
	assert.Equal(t, env.clock.Now().UTC(), m.CreatedAt)
}

func TestAppendPublishesMatchCreated(t *testing.T) {
	env := setupTestDB(t)
	m := appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "2025-03-29T19:00:00Z")

	require.Len(t, env.pubsub.SendMessageCalls, 1)
	var event MatchCreatedEvent
	topic, err := env.pubsub.Published(0, &event)
	require.NoError(t, err)
	assert.Equal(t, pubsub.EventMatchCreated, topic)
	assert.Equal(t, "league", event.LeagueID)
	assert.Equal(t, m.ID, event.MatchID)
	assert.Equal(t, "2025-03-29T19:00:00Z", event.Timestamp)
	assert.True(t, m.CreatedAt.Equal(event.CreatedAt), "createdAt survives the wire: %s vs %s", m.CreatedAt, event.CreatedAt)
	assert.Equal(t, 1, env.metrics.MatchesRecorded())
}

func TestAppendValidation(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	testCases := []struct {
		name string
		in   AppendInput
	}{
		{"empty team", AppendInput{Team1: []string{"ann"}}},
		{"blank name", AppendInput{Team1: []string{"ann"}, Team2: []string{"  "}}},
		{"player on both sides", AppendInput{Team1: []string{"ann"}, Team2: []string{"ann"}}},
		{"player twice on one side", AppendInput{Team1: []string{"ann", "ann"}, Team2: []string{"bob"}}},
		{"negative score", AppendInput{Team1: []string{"ann"}, Team2: []string{"bob"}, Score: score.Regular(-1, 0)}},
		{"negative season", AppendInput{Team1: []string{"ann"}, Team2: []string{"bob"}, Season: -1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.ledger.Append(ctx, "league", tc.in)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}

	_, err := env.ledger.Append(ctx, "", AppendInput{Team1: []string{"ann"}, Team2: []string{"bob"}})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = env.ledger.League(ctx, "league")
	assert.ErrorIs(t, err, apperr.ErrNotFound, "rejected appends must not create the league")
	assert.Empty(t, env.pubsub.SendMessageCalls)
}

func TestDeleteThenFind(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 2, 1, "2025-03-29T18:00:00Z")
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 0, 1, "2025-03-29T19:00:00Z")

	require.NoError(t, env.ledger.Delete(ctx, "league", "2025-03-29T18:00:00Z", Actor{}))

	_, err := env.ledger.FindByTimestamp(ctx, "league", "2025-03-29T18:00:00Z")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	league, err := env.ledger.League(ctx, "league")
	require.NoError(t, err)
	assert.Equal(t, 1, league.OverallStats.TotalMatches)
	assert.Equal(t, PlayerStats{Wins: 1, Losses: 1, GoalsFor: 2, GoalsAgainst: 2}, league.OverallStats.Players["ann"],
		"deleting a match leaves the aggregates alone")
	assert.Equal(t, 1, env.metrics.MatchesDeleted())

	err = env.ledger.Delete(ctx, "league", "2025-03-29T18:00:00Z", Actor{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDuplicateTimestamps(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	const ts = "2025-03-29T18:00:00Z"
	first := appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, ts)
	second := appendMatch(t, env.ledger, []string{"cat"}, []string{"dan"}, 0, 1, ts)
	require.NotEqual(t, first.ID, second.ID)

	found, err := env.ledger.FindByTimestamp(ctx, "league", ts)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID, "the first match in insertion order wins")

	require.NoError(t, env.ledger.Delete(ctx, "league", ts, Actor{}))
	found, err = env.ledger.FindByTimestamp(ctx, "league", ts)
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
}

func TestFindScansSeasonsInOrder(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	const ts = "2025-03-29T18:00:00Z"
	later, err := env.ledger.Append(ctx, "league", AppendInput{Season: 2, Team1: []string{"ann"}, Team2: []string{"bob"}, Timestamp: ts})
	require.NoError(t, err)
	earlier, err := env.ledger.Append(ctx, "league", AppendInput{Season: 1, Team1: []string{"ann"}, Team2: []string{"bob"}, Timestamp: ts})
	require.NoError(t, err)

	found, err := env.ledger.FindByTimestamp(ctx, "league", ts)
	require.NoError(t, err)
	assert.Equal(t, earlier.ID, found.ID)
	assert.NotEqual(t, later.ID, found.ID)
}

func TestCurrentSeason(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	m := appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "")
	assert.Equal(t, 1, m.Season)

	_, err := env.ledger.Append(ctx, "league", AppendInput{Season: 3, Team1: []string{"ann"}, Team2: []string{"bob"}})
	require.NoError(t, err)
	m = appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "")
	assert.Equal(t, 3, m.Season)

	seasons, err := env.ledger.Seasons(ctx, "league")
	require.NoError(t, err)
	require.Len(t, seasons, 2)
	assert.Equal(t, 1, seasons[0].Number)
	assert.Equal(t, 3, seasons[1].Number)

	inThree, err := env.ledger.ListMatches(ctx, "league", 3)
	require.NoError(t, err)
	assert.Len(t, inThree, 2)
	all, err := env.ledger.ListMatches(ctx, "league", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStatsTrackParticipation(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	names := []string{"ann", "bob", "cat", "dan", "eve"}

	participation := map[string]int{}
	for i := 0; i < 25; i++ {
		team1 := []string{names[i%5]}
		team2 := []string{names[(i+1)%5], names[(i+2)%5]}
		if i%3 == 0 {
			team1 = append(team1, names[(i+3)%5])
		}
		for _, n := range append(append([]string{}, team1...), team2...) {
			participation[n]++
		}
		appendMatch(t, env.ledger, team1, team2, i%4, (i*7)%3, fmt.Sprintf("2025-03-%02dT12:00:00Z", 1+i%28))
	}

	got, err := env.ledger.PlayerStats(ctx, "league")
	require.NoError(t, err)
	for name, played := range participation {
		ps := got[name]
		assert.Equal(t, played, ps.Wins+ps.Losses+ps.Draws, name)
	}

	league, err := env.ledger.League(ctx, "league")
	require.NoError(t, err)
	assert.Equal(t, 25, league.OverallStats.TotalMatches)
}

func TestUpdateDoesNotReplayStats(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 2, 0, "2025-03-29T18:00:00Z")

	updated, err := env.ledger.Update(ctx, "league", "2025-03-29T18:00:00Z", score.Regular(2, 2).WithExtraTime(0, 1), Actor{})
	require.NoError(t, err)
	assert.Equal(t, score.ResultTeam2, updated.Result)

	found, err := env.ledger.FindByTimestamp(ctx, "league", "2025-03-29T18:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, score.ResultTeam2, found.Result)
	require.NotNil(t, found.Score.ExtraTime)
	assert.Equal(t, score.Pair{Team1: 0, Team2: 1}, *found.Score.ExtraTime)

	stats, err := env.ledger.PlayerStats(ctx, "league")
	require.NoError(t, err)
	assert.Equal(t, PlayerStats{Wins: 1, GoalsFor: 2}, stats["ann"], "aggregates keep the original result")
	assert.Equal(t, 1, env.metrics.MatchesEdited())

	recomputed, err := env.ledger.RecomputeStats(ctx, "league")
	require.NoError(t, err)
	assert.Equal(t, PlayerStats{Losses: 1, GoalsFor: 2, GoalsAgainst: 2}, recomputed["ann"])
	assert.Equal(t, PlayerStats{Wins: 1, GoalsFor: 2, GoalsAgainst: 2}, recomputed["bob"])
}

func TestRecomputeStatsAfterDelete(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 3, 0, "2025-03-29T17:00:00Z")
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 1, "2025-03-29T18:00:00Z")
	require.NoError(t, env.ledger.Delete(ctx, "league", "2025-03-29T17:00:00Z", Actor{}))

	recomputed, err := env.ledger.RecomputeStats(ctx, "league")
	require.NoError(t, err)
	assert.Equal(t, PlayerStats{Draws: 1, GoalsFor: 1, GoalsAgainst: 1}, recomputed["ann"])

	_, err = env.ledger.RecomputeStats(ctx, "nowhere")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLockedEdits(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	const ts = "2025-03-29T18:00:00Z"
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, ts)

	// Midnight has passed in London.
	env.clock.Set(time.Date(2025, 3, 30, 0, 0, 1, 0, time.UTC))

	_, err := env.ledger.Update(ctx, "league", ts, score.Regular(0, 1), Actor{})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	err = env.ledger.Delete(ctx, "league", ts, Actor{})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	_, err = env.ledger.DeleteLast(ctx, "league", Actor{})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	assert.Equal(t, 3, env.metrics.LockedEditRejected())

	updated, err := env.ledger.Update(ctx, "league", ts, score.Regular(0, 1), Actor{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, score.ResultTeam2, updated.Result)
	_, err = env.ledger.DeleteLast(ctx, "league", Actor{Admin: true})
	require.NoError(t, err)
}

func TestEditableExactlyAtBoundary(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	const ts = "2025-03-29T18:00:00Z"
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, ts)

	env.clock.Set(time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC))
	_, err := env.ledger.Update(ctx, "league", ts, score.Regular(0, 1), Actor{})
	assert.NoError(t, err)
}

func TestDeleteLast(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	_, err := env.ledger.DeleteLast(ctx, "league", Actor{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "2025-03-29T19:00:00Z")
	last := appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 0, 1, "2025-03-29T10:00:00Z")

	deleted, err := env.ledger.DeleteLast(ctx, "league", Actor{})
	require.NoError(t, err)
	assert.Equal(t, last.ID, deleted.ID, "insertion order, not timestamp order")

	league, err := env.ledger.League(ctx, "league")
	require.NoError(t, err)
	assert.Equal(t, 1, league.OverallStats.TotalMatches)
}

func TestPresenceSnapshotIsFrozen(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.AddPlayer(ctx, "league", "cat"))
	require.NoError(t, env.ledger.SetPlayerActive(ctx, "league", "cat", false))

	m := appendMatch(t, env.ledger, []string{"ann", "cat"}, []string{"bob"}, 1, 0, "2025-03-29T18:00:00Z")
	assert.Equal(t, map[string]bool{"ann": true, "cat": false, "bob": true}, m.PlayerPresence)

	require.NoError(t, env.ledger.SetPlayerActive(ctx, "league", "cat", true))
	require.NoError(t, env.ledger.SetPlayerActive(ctx, "league", "ann", false))

	found, err := env.ledger.FindByTimestamp(ctx, "league", "2025-03-29T18:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"ann": true, "cat": false, "bob": true}, found.PlayerPresence)

	err = env.ledger.SetPlayerActive(ctx, "league", "zed", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPlayers(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.AddPlayer(ctx, "league", "ann"))
	require.NoError(t, env.ledger.AddPlayer(ctx, "league", "ann"), "adding a known player is a no-op")
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "")

	players, err := env.ledger.Players(ctx, "league")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "ann", players[0].Name)
	assert.True(t, players[1].Active)

	err = env.ledger.AddPlayer(ctx, "league", " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestSetLockAtIsWriteOnce(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	m := appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "2025-03-29T18:00:00Z")

	pending, err := env.ledger.MatchesWithoutLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, m.ID, pending[0].ID)

	first := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.ledger.SetLockAt(ctx, "league", m.ID, first))
	require.NoError(t, env.ledger.SetLockAt(ctx, "league", m.ID, first.Add(time.Hour)))

	found, err := env.ledger.FindByTimestamp(ctx, "league", m.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, first, *found.LockAt)

	pending, err = env.ledger.MatchesWithoutLock(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = env.ledger.SetLockAt(ctx, "league", "missing", first)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLeagueDocument(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "2025-03-29T18:00:00Z")

	league, err := env.ledger.League(ctx, "league")
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob"}, league.Players)
	require.Contains(t, league.Seasons, 1)
	require.Len(t, league.Seasons[1].Matches, 1)
	assert.NotNil(t, league.Seasons[1].Matches[0].LockAt)
	assert.Equal(t, 0, league.AdminPinVersion)
	assert.Nil(t, league.AdminPinSetAt)
}

func TestMatchJSON(t *testing.T) {
	m := Match{
		ID:     "m1",
		Team1:  []string{"ann"},
		Team2:  []string{"bob"},
		Score:  score.Regular(1, 1).WithPenalties(5, 4),
		Result: score.ResultTeam1,
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 1.0, decoded["team1Score"])
	assert.Equal(t, 5.0, decoded["team1PenaltiesScore"])
	assert.Equal(t, 4.0, decoded["team2PenaltiesScore"])
	assert.NotContains(t, decoded, "team1ExtraTimeScore")
	assert.NotContains(t, decoded, "Score")
	assert.NotContains(t, decoded, "lockAt")
}

func TestMatchByID(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()
	m := appendMatch(t, env.ledger, []string{"ann"}, []string{"bob"}, 1, 0, "2025-03-29T18:00:00Z")

	got, err := env.ledger.Match(ctx, "league", m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Equal(t, 0, env.metrics.LocksAssigned(), "loading by id does not assign a boundary")

	_, err = env.ledger.Match(ctx, "other", m.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
