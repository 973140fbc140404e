package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/admin"
	"github.com/mauv0809/scoreline/internal/auth"
	"github.com/mauv0809/scoreline/internal/config"
	"github.com/mauv0809/scoreline/internal/database"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/notifier"
	"github.com/mauv0809/scoreline/internal/processor"
	"github.com/mauv0809/scoreline/internal/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const testSlackSigningSecret = "test-signing-secret"

type testServer struct {
	*Server
	clock    *clock.Mock
	notifier *notifier.Mock
	token    string
}

// setupTestServer initializes a server on an in-memory database with the
// clock parked on a Saturday evening in March.
func setupTestServer(t *testing.T, slackSigningSecret string) *testServer {
	t.Helper()
	db, dbTeardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(dbTeardown)

	loc, err := lock.LoadZone("")
	require.NoError(t, err)
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 3, 29, 20, 0, 0, 0, time.UTC))

	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	metricsHandler := metrics.NewMetricsHandler(reg)
	notif := notifier.NewMock()
	cfg := config.Config{Slack: config.SlackConfig{SigningSecret: slackSigningSecret}}

	signer := auth.NewSigner("test-secret", clk, 24*time.Hour)
	store := ledger.New(db, clk, loc, pubsub.NewMock(), metricsSvc)
	adminSvc := admin.New(db, signer, clk, time.Hour, metricsSvc, admin.WithKDF(admin.KDFParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}))
	proc := processor.New(store, notif, loc, clk, metricsSvc)

	server := NewServer(store, adminSvc, signer, metricsSvc, metricsHandler, cfg, notif, proc, pubsub.NewLocal(), nil)
	token, _, _, err := signer.IssuePrincipal()
	require.NoError(t, err)
	return &testServer{Server: server, clock: clk, notifier: notif, token: token}
}

// do sends a JSON request as the server's default principal.
func (s *testServer) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, rr.Body.String())
	body := decode[errorResponse](t, rr)
	assert.False(t, body.OK)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Message)
}

func recordMatch(t *testing.T, s *testServer, ts string) map[string]any {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/leagues/sunday/matches", map[string]any{
		"team1":      []string{"ann", "bob"},
		"team2":      []string{"cat", "dan"},
		"team1Score": 2,
		"team2Score": 1,
		"timestamp":  ts,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[map[string]any](t, rr)
}

func recordSoloMatch(t *testing.T, s *testServer, ts string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/leagues/sunday/matches", map[string]any{
		"team1":      []string{"solo1"},
		"team2":      []string{"solo2"},
		"team1Score": 1,
		"team2Score": 0,
		"timestamp":  ts,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

// createSlackCommandRequest creates an http.Request suitable for testing Slack slash commands,
// including the necessary signature and timestamp headers for verification.
func createSlackCommandRequest(t *testing.T, targetURL string, form url.Values, signingSecret string) *http.Request {
	t.Helper()
	body := form.Encode()
	req := httptest.NewRequest(http.MethodPost, targetURL, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	timestamp := time.Now().Unix()
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(timestamp, 10))

	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte(fmt.Sprintf("v0:%d:%s", timestamp, body)))
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(h.Sum(nil)))
	return req
}

func TestParamsMiddleware_VerboseIsRequestScoped(t *testing.T) {
	log.SetLevel(log.InfoLevel)
	var requestLevel log.Level
	var dryRun bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestLevel = requestLogger(r).GetLevel()
		dryRun = isDryRunFromContext(r)
	}), paramsMiddleware)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health?verbose=true&dry_run=true", nil))
	assert.Equal(t, log.DebugLevel, requestLevel)
	assert.True(t, dryRun)
	assert.Equal(t, log.InfoLevel, log.GetLevel(), "the process level is untouched")

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, log.InfoLevel, requestLevel)
	assert.False(t, dryRun)
}

func TestHealthCheckHandler(t *testing.T) {
	server := setupTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")
	assert.Equal(t, "OK!", rr.Body.String(), "handler returned unexpected body")
}

func TestMetricsHandler(t *testing.T) {
	server := setupTestServer(t, "")
	recordMatch(t, server, "2025-03-29T19:00:00Z")

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPrincipalRequired(t *testing.T) {
	server := setupTestServer(t, "")

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/leagues/sunday/matches", nil))
	assertError(t, rr, http.StatusUnauthorized, "unauthenticated")

	req := httptest.NewRequest(http.MethodGet, "/leagues/sunday/matches", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)
	assertError(t, rr, http.StatusUnauthorized, "unauthenticated")
}

func TestAnonymousSignIn(t *testing.T) {
	server := setupTestServer(t, "")

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/anonymous", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[principalResponse](t, rr)
	assert.NotEmpty(t, body.PrincipalID)

	server.token = body.Token
	rr = server.do(t, http.MethodGet, "/leagues/sunday/matches", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMatchLifecycle(t *testing.T) {
	server := setupTestServer(t, "")
	created := recordMatch(t, server, "2025-03-29T19:00:00Z")
	assert.Equal(t, "team1", created["result"])
	assert.EqualValues(t, 2, created["team1Score"])

	rr := server.do(t, http.MethodGet, "/leagues/sunday/matches/by-timestamp?ts=2025-03-29T19:00:00Z", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	found := decode[map[string]any](t, rr)
	assert.Equal(t, created["id"], found["id"])
	assert.Equal(t, "2025-03-30T00:00:00Z", found["lockAt"])

	rr = server.do(t, http.MethodPut, "/leagues/sunday/matches/by-timestamp?ts=2025-03-29T19:00:00Z", map[string]any{
		"team1Score": 1, "team2Score": 1, "team1PenaltiesScore": 3, "team2PenaltiesScore": 4,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "team2", decode[map[string]any](t, rr)["result"])

	rr = server.do(t, http.MethodGet, "/leagues/sunday/matches", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = server.do(t, http.MethodDelete, "/leagues/sunday/matches/by-timestamp?ts=2025-03-29T19:00:00Z", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = server.do(t, http.MethodGet, "/leagues/sunday/matches/by-timestamp?ts=2025-03-29T19:00:00Z", nil)
	assertError(t, rr, http.StatusNotFound, "not-found")
}

func TestAppendValidation(t *testing.T) {
	server := setupTestServer(t, "")

	rr := server.do(t, http.MethodPost, "/leagues/sunday/matches", map[string]any{
		"team1": []string{"ann"}, "team2": []string{"ann"},
	})
	assertError(t, rr, http.StatusBadRequest, "invalid-argument")

	rr = server.do(t, http.MethodPost, "/leagues/sunday/matches", map[string]any{
		"team1": []string{"ann"}, "team2": []string{"bob"}, "team1ExtraTimeScore": 1,
	})
	assertError(t, rr, http.StatusBadRequest, "invalid-argument")

	rr = server.do(t, http.MethodGet, "/leagues/sunday/matches/by-timestamp", nil)
	assertError(t, rr, http.StatusBadRequest, "invalid-argument")
}

func TestLockedMatchNeedsAdmin(t *testing.T) {
	server := setupTestServer(t, "")
	const target = "/leagues/sunday/matches/by-timestamp?ts=2025-03-29T19:00:00Z"
	recordMatch(t, server, "2025-03-29T19:00:00Z")
	// Reading assigns the boundary: midnight at the end of the 29th.
	require.Equal(t, http.StatusOK, server.do(t, http.MethodGet, target, nil).Code)

	server.clock.Add(6 * time.Hour)
	update := map[string]any{"team1Score": 0, "team2Score": 3}
	rr := server.do(t, http.MethodPut, target, update)
	assertError(t, rr, http.StatusForbidden, "permission-denied")

	rr = server.do(t, http.MethodPost, "/admin/set-pin", map[string]any{"leagueId": "sunday", "pin": "1234"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	grant := decode[adminResponse](t, rr)
	assert.True(t, grant.OK)
	assert.Equal(t, 1, grant.AdminPinVersion)

	rr = server.do(t, http.MethodPut, target, update, adminClaimHeader, grant.Claim)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "team2", decode[map[string]any](t, rr)["result"])

	rr = server.do(t, http.MethodPut, target, update, adminClaimHeader, "forged")
	assertError(t, rr, http.StatusForbidden, "permission-denied")
}

func TestDeleteLast(t *testing.T) {
	server := setupTestServer(t, "")
	recordMatch(t, server, "2025-03-29T18:00:00Z")
	second := recordMatch(t, server, "2025-03-29T17:00:00Z")

	rr := server.do(t, http.MethodDelete, "/leagues/sunday/matches/last", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, second["id"], decode[map[string]any](t, rr)["id"])

	rr = server.do(t, http.MethodGet, "/leagues/sunday", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	league := decode[ledger.League](t, rr)
	assert.Equal(t, 1, league.OverallStats.TotalMatches)
}

func TestAdminCredentialErrors(t *testing.T) {
	server := setupTestServer(t, "")

	rr := server.do(t, http.MethodPost, "/admin/set-pin", map[string]any{"leagueId": "sunday", "pin": "12"})
	assertError(t, rr, http.StatusBadRequest, "invalid-argument")

	rr = server.do(t, http.MethodPost, "/admin/verify-pin", map[string]any{"leagueId": "sunday", "pin": "1234"})
	assertError(t, rr, http.StatusNotFound, "not-found")

	rr = server.do(t, http.MethodPost, "/admin/set-pin", map[string]any{"leagueId": "sunday", "pin": "1234"})
	require.Equal(t, http.StatusOK, rr.Code)
	first := decode[adminResponse](t, rr)

	rr = server.do(t, http.MethodPost, "/admin/set-pin", map[string]any{"leagueId": "sunday", "pin": "9999"})
	assertError(t, rr, http.StatusPreconditionFailed, "failed-precondition")

	rr = server.do(t, http.MethodPost, "/admin/verify-pin", map[string]any{"leagueId": "sunday", "pin": "0000"})
	assertError(t, rr, http.StatusForbidden, "permission-denied")

	rr = server.do(t, http.MethodPost, "/admin/reset-pin", map[string]any{"leagueId": "sunday", "newPin": "5678"})
	assertError(t, rr, http.StatusForbidden, "permission-denied")

	rr = server.do(t, http.MethodPost, "/admin/reset-pin", map[string]any{"leagueId": "sunday", "newPin": "5678"}, adminClaimHeader, first.Claim)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 2, decode[adminResponse](t, rr).AdminPinVersion)

	rr = server.do(t, http.MethodPost, "/admin/clear", map[string]any{"leagueId": "sunday"}, adminClaimHeader, first.Claim)
	assertError(t, rr, http.StatusForbidden, "permission-denied")
}

func TestRecomputeStatsRequiresAdmin(t *testing.T) {
	server := setupTestServer(t, "")
	recordMatch(t, server, "2025-03-29T19:00:00Z")

	rr := server.do(t, http.MethodPost, "/leagues/sunday/players/stats/recompute", nil)
	assertError(t, rr, http.StatusForbidden, "permission-denied")

	rr = server.do(t, http.MethodPost, "/admin/set-pin", map[string]any{"leagueId": "sunday", "pin": "1234"})
	require.Equal(t, http.StatusOK, rr.Code)
	claim := decode[adminResponse](t, rr).Claim

	rr = server.do(t, http.MethodPost, "/leagues/sunday/players/stats/recompute", nil, adminClaimHeader, claim)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ps := decode[map[string]ledger.PlayerStats](t, rr)
	assert.Equal(t, ledger.PlayerStats{Wins: 1, GoalsFor: 2, GoalsAgainst: 1}, ps["ann"])
}

func TestPlayers(t *testing.T) {
	server := setupTestServer(t, "")

	rr := server.do(t, http.MethodPost, "/leagues/sunday/players", map[string]any{"name": "eve"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = server.do(t, http.MethodPut, "/leagues/sunday/players/eve/active", map[string]any{"active": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = server.do(t, http.MethodPut, "/leagues/sunday/players/eve/active", map[string]any{})
	assertError(t, rr, http.StatusBadRequest, "invalid-argument")

	rr = server.do(t, http.MethodGet, "/leagues/sunday/players", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	players := decode[[]ledger.Player](t, rr)
	require.Len(t, players, 1)
	assert.Equal(t, "eve", players[0].Name)
	assert.False(t, players[0].Active)
}

func TestStandingsHandler(t *testing.T) {
	server := setupTestServer(t, "")
	recordMatch(t, server, "2025-03-29T18:00:00Z")
	recordMatch(t, server, "2025-03-29T19:00:00Z")
	recordSoloMatch(t, server, "2025-03-29T19:30:00Z")

	rr := server.do(t, http.MethodGet, "/leagues/sunday/standings?view=teams&mode=per-game", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rows := decode[[]map[string]any](t, rr)
	require.Len(t, rows, 2, "solo rosters are not teams")
	assert.Equal(t, "ann & bob", rows[0]["teamId"])
	assert.Equal(t, "cat & dan", rows[1]["teamId"])
	assert.EqualValues(t, 3, rows[0]["points"])

	rr = server.do(t, http.MethodGet, "/leagues/sunday/standings", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode[[]map[string]any](t, rr), 4, "every roster by default")

	rr = server.do(t, http.MethodGet, "/leagues/sunday/standings?view=everyone", nil)
	assertError(t, rr, http.StatusBadRequest, "invalid-argument")

	rr = server.do(t, http.MethodGet, "/leagues/sunday/standings?mode=fancy", nil)
	assertError(t, rr, http.StatusBadRequest, "invalid-argument")

	rr = server.do(t, http.MethodGet, "/leagues/sunday/standings?view=teams&notify=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, server.notifier.SendStandingsCalls, 1)
	assert.Equal(t, "sunday", server.notifier.SendStandingsCalls[0].LeagueID)
}

func TestReconcileLocksHandler(t *testing.T) {
	server := setupTestServer(t, "")
	recordMatch(t, server, "2025-03-29T19:00:00Z")
	recordMatch(t, server, "")

	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, rr)["fixed"])
}

func TestMatchCreatedPushHandler(t *testing.T) {
	server := setupTestServer(t, "")
	created := recordMatch(t, server, "2025-03-29T19:00:00Z")

	payload, err := msgpack.Marshal(ledger.MatchCreatedEvent{
		LeagueID:  "sunday",
		MatchID:   created["id"].(string),
		Timestamp: "2025-03-29T19:00:00Z",
		CreatedAt: server.clock.Now(),
	})
	require.NoError(t, err)
	var push pubsub.PushRequest
	push.Subscription = "projects/test/subscriptions/match-created"
	push.Message.Data = payload
	body, err := json.Marshal(push)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pubsub/match-created", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	notified := server.notifier.ResultNotifications()
	require.Len(t, notified, 1)
	require.NotNil(t, notified[0].LockAt)
	assert.Equal(t, time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC), *notified[0].LockAt)

	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pubsub/match-created", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStandingsCommandHandler(t *testing.T) {
	server := setupTestServer(t, testSlackSigningSecret)
	recordMatch(t, server, "2025-03-29T19:00:00Z")
	recordSoloMatch(t, server, "2025-03-29T19:30:00Z")

	form := url.Values{"text": {"sunday projected teams"}, "command": {"/standings"}}
	req := createSlackCommandRequest(t, "/slack/command/standings", form, testSlackSigningSecret)
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, server.notifier.FormatStandingsCalls, 1)
	assert.Equal(t, "sunday", server.notifier.FormatStandingsCalls[0].LeagueID)
	assert.Len(t, server.notifier.FormatStandingsCalls[0].Rows, 2, "solo rosters are not teams")

	form.Set("text", "sunday projected")
	req = createSlackCommandRequest(t, "/slack/command/standings", form, testSlackSigningSecret)
	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, server.notifier.FormatStandingsCalls, 2)
	assert.Len(t, server.notifier.FormatStandingsCalls[1].Rows, 4)

	req = createSlackCommandRequest(t, "/slack/command/standings", form, "wrong-secret")
	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPlayerStatsCommandHandler(t *testing.T) {
	server := setupTestServer(t, "")
	recordMatch(t, server, "2025-03-29T19:00:00Z")

	for _, name := range []string{"cat", "zed"} {
		form := url.Values{"text": {"sunday " + name}}
		req := createSlackCommandRequest(t, "/slack/command/player-stats", form, "unused")
		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	assert.Equal(t, []string{"cat", "zed"}, server.notifier.FormatPlayerStatsCalls)

	rr := httptest.NewRecorder()
	req := createSlackCommandRequest(t, "/slack/command/player-stats", url.Values{"text": {"sunday"}}, "unused")
	server.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
