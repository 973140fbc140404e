package stats

import (
	"math"
	"sort"
	"strings"

	"github.com/mauv0809/scoreline/internal/score"
)

// PlayerDelta is the change one match applies to a player's running totals.
type PlayerDelta struct {
	Wins         int
	Losses       int
	Draws        int
	GoalsFor     int
	GoalsAgainst int
}

// Add accumulates d into p.
func (p *PlayerDelta) Add(d PlayerDelta) {
	p.Wins += d.Wins
	p.Losses += d.Losses
	p.Draws += d.Draws
	p.GoalsFor += d.GoalsFor
	p.GoalsAgainst += d.GoalsAgainst
}

// Played is the number of matches the totals cover.
func (p PlayerDelta) Played() int {
	return p.Wins + p.Losses + p.Draws
}

// Fixture is the part of a recorded match the aggregations read.
type Fixture struct {
	Team1  []string
	Team2  []string
	Goals  score.Pair
	Result score.Result
}

// Deltas returns the per-player change for one match. Every player on a side
// gets the whole side's goals; nothing is split between partners.
func Deltas(f Fixture) map[string]PlayerDelta {
	out := make(map[string]PlayerDelta, len(f.Team1)+len(f.Team2))
	side := func(roster []string, gf, ga int, outcome score.Result, self score.Result) {
		for _, name := range roster {
			d := out[name]
			d.GoalsFor += gf
			d.GoalsAgainst += ga
			switch outcome {
			case score.ResultDraw:
				d.Draws++
			case self:
				d.Wins++
			default:
				d.Losses++
			}
			out[name] = d
		}
	}
	side(f.Team1, f.Goals.Team1, f.Goals.Team2, f.Result, score.ResultTeam1)
	side(f.Team2, f.Goals.Team2, f.Goals.Team1, f.Result, score.ResultTeam2)
	return out
}

// Totals folds fixtures into per-player totals from scratch.
func Totals(fixtures []Fixture) map[string]PlayerDelta {
	out := make(map[string]PlayerDelta)
	for _, f := range fixtures {
		for name, d := range Deltas(f) {
			cur := out[name]
			cur.Add(d)
			out[name] = cur
		}
	}
	return out
}

// TeamID is the grouping key of a roster: the sorted names joined together.
func TeamID(roster []string) string {
	names := append([]string(nil), roster...)
	sort.Strings(names)
	return strings.Join(names, " & ")
}

// Mode selects how standings values are presented.
type Mode string

const (
	ModeRaw       Mode = "raw"
	ModePerGame   Mode = "per-game"
	ModeProjected Mode = "projected"
)

// ParseMode maps a query value to a Mode, defaulting to raw.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeRaw:
		return ModeRaw, true
	case ModePerGame:
		return ModePerGame, true
	case ModeProjected:
		return ModeProjected, true
	}
	return "", false
}

const (
	PointsWin  = 3
	PointsDraw = 1
)

// Standing is one team's row. Values are float64 so derived modes can carry
// one decimal; in raw mode they are whole numbers.
type Standing struct {
	TeamID         string   `json:"teamId"`
	Players        []string `json:"players"`
	Played         float64  `json:"played"`
	Won            float64  `json:"won"`
	Drawn          float64  `json:"drawn"`
	Lost           float64  `json:"lost"`
	GoalsFor       float64  `json:"goalsFor"`
	GoalsAgainst   float64  `json:"goalsAgainst"`
	GoalDifference float64  `json:"goalDifference"`
	Points         float64  `json:"points"`
}

// Options controls Standings.
type Options struct {
	// PartnershipsOnly drops single-player rosters (the team view).
	PartnershipsOnly bool
	Mode             Mode
}

type tally struct {
	players                          []string
	played, won, drawn, lost, gf, ga int
}

// Standings folds the full match list into team rows. Nothing here is
// persisted; it is recomputed on every call.
func Standings(fixtures []Fixture, opts Options) []Standing {
	tallies := make(map[string]*tally)
	order := make([]string, 0)

	get := func(roster []string) *tally {
		id := TeamID(roster)
		t, ok := tallies[id]
		if !ok {
			names := append([]string(nil), roster...)
			sort.Strings(names)
			t = &tally{players: names}
			tallies[id] = t
			order = append(order, id)
		}
		return t
	}

	for _, f := range fixtures {
		sides := []struct {
			roster []string
			gf, ga int
			self   score.Result
		}{
			{f.Team1, f.Goals.Team1, f.Goals.Team2, score.ResultTeam1},
			{f.Team2, f.Goals.Team2, f.Goals.Team1, score.ResultTeam2},
		}
		for _, s := range sides {
			if opts.PartnershipsOnly && len(s.roster) < 2 {
				continue
			}
			t := get(s.roster)
			t.played++
			t.gf += s.gf
			t.ga += s.ga
			switch f.Result {
			case score.ResultDraw:
				t.drawn++
			case s.self:
				t.won++
			default:
				t.lost++
			}
		}
	}

	maxPlayed := 0
	for _, t := range tallies {
		if t.played > maxPlayed {
			maxPlayed = t.played
		}
	}

	rows := make([]Standing, 0, len(order))
	for _, id := range order {
		t := tallies[id]
		row := Standing{
			TeamID:         id,
			Players:        t.players,
			Played:         float64(t.played),
			Won:            float64(t.won),
			Drawn:          float64(t.drawn),
			Lost:           float64(t.lost),
			GoalsFor:       float64(t.gf),
			GoalsAgainst:   float64(t.ga),
			GoalDifference: float64(t.gf - t.ga),
			Points:         float64(t.won*PointsWin + t.drawn*PointsDraw),
		}
		rows = append(rows, present(row, opts.Mode, maxPlayed))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference != b.GoalDifference {
			return a.GoalDifference > b.GoalDifference
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		return a.TeamID < b.TeamID
	})
	return rows
}

func present(row Standing, mode Mode, maxPlayed int) Standing {
	var factor float64
	switch mode {
	case ModePerGame:
		if row.Played > 0 {
			factor = 1 / row.Played
		}
	case ModeProjected:
		if row.Played > 0 {
			factor = float64(maxPlayed) / row.Played
		}
	default:
		return row
	}

	scale := func(v float64) float64 { return round1(v * factor) }
	played := row.Played
	if mode == ModeProjected {
		played = float64(maxPlayed)
		if row.Played == 0 {
			played = 0
		}
	}
	return Standing{
		TeamID:         row.TeamID,
		Players:        row.Players,
		Played:         played,
		Won:            scale(row.Won),
		Drawn:          scale(row.Drawn),
		Lost:           scale(row.Lost),
		GoalsFor:       scale(row.GoalsFor),
		GoalsAgainst:   scale(row.GoalsAgainst),
		GoalDifference: scale(row.GoalDifference),
		Points:         scale(row.Points),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
