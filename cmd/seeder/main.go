package main

import (
	"context"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/itbasis/go-clock"
	"github.com/joho/godotenv"
	"github.com/mauv0809/scoreline/internal/database"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/processor"
	"github.com/mauv0809/scoreline/internal/pubsub"
	"github.com/mauv0809/scoreline/internal/score"
)

var seedPlayers = []string{"Ann", "Bob", "Cat", "Dan", "Eve", "Fred", "Gus", "Hal"}

// Simplified config loading for the script
func loadConfig() (dbName, primaryURL, authToken, leagueID string, numMatches int) {
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}
	dbName = os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "scoreline.db"
	}
	leagueID = os.Getenv("SEED_LEAGUE")
	if leagueID == "" {
		leagueID = "seeded"
	}
	numMatches = 200
	if raw := os.Getenv("SEED_MATCHES"); raw != "" {
		if numMatches, err = strconv.Atoi(raw); err != nil || numMatches <= 0 {
			log.Fatalf("Invalid SEED_MATCHES %q", raw)
		}
	}
	return dbName, os.Getenv("TURSO_PRIMARY_URL"), os.Getenv("TURSO_AUTH_TOKEN"), leagueID, numMatches
}

func main() {
	log.Info("Starting database seeder...")
	dbName, primaryURL, authToken, leagueID, numMatches := loadConfig()

	db, teardown, err := database.InitDB(dbName, primaryURL, authToken)
	if err != nil {
		log.Fatalf("Failed to open database: %s", err)
	}
	defer teardown()

	loc, err := lock.LoadZone("")
	if err != nil {
		log.Fatalf("Failed to load lock timezone: %s", err)
	}
	clk := clock.New()
	m := metrics.NewService()

	// Events go to an in-process bus so every seeded match gets its boundary.
	bus := pubsub.NewLocal()
	store := ledger.New(db, clk, loc, bus, m)
	proc := processor.New(store, nil, loc, clk, m)
	bus.Subscribe(pubsub.EventMatchCreated, proc.MatchCreatedHandler(bus))

	ctx := context.Background()
	for _, p := range seedPlayers {
		if err := store.AddPlayer(ctx, leagueID, p); err != nil {
			log.Fatalf("Failed to add player %s: %s", p, err)
		}
	}
	log.Info("Ensured seed players exist.", "leagueID", leagueID)

	log.Info("Preparing to insert matches...", "total", numMatches)
	startTime := time.Now()
	for i := 0; i < numMatches; i++ {
		team1, team2 := randomTeams()
		matchTime := clk.Now().Add(-time.Duration(rand.Intn(365*24)) * time.Hour)
		if _, err := store.Append(ctx, leagueID, ledger.AppendInput{
			Team1:     team1,
			Team2:     team2,
			Score:     randomScore(),
			Timestamp: matchTime.UTC().Format(time.RFC3339),
		}); err != nil {
			log.Fatalf("Failed to append match: %s", err)
		}
		if (i+1)%50 == 0 {
			log.Info("Inserted matches", "completed", i+1, "total", numMatches)
		}
	}
	bus.Wait()

	duration := time.Since(startTime)
	log.Info("Successfully inserted all matches.", "duration", duration)
}

// randomTeams picks two disjoint rosters of one or two players.
func randomTeams() ([]string, []string) {
	perm := rand.Perm(len(seedPlayers))
	size := 1 + rand.Intn(2)
	team1 := make([]string, 0, size)
	team2 := make([]string, 0, size)
	for i := 0; i < size; i++ {
		team1 = append(team1, seedPlayers[perm[i]])
		team2 = append(team2, seedPlayers[perm[size+i]])
	}
	return team1, team2
}

func randomScore() score.Score {
	s := score.Regular(rand.Intn(5), rand.Intn(5))
	if s.Regular.Team1 != s.Regular.Team2 || rand.Intn(3) > 0 {
		return s
	}
	s = s.WithExtraTime(s.Regular.Team1+rand.Intn(2), s.Regular.Team2+rand.Intn(2))
	if s.ExtraTime.Team1 == s.ExtraTime.Team2 {
		pens := rand.Intn(6)
		s = s.WithPenalties(pens, 5-pens)
	}
	return s
}
