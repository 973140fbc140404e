package score

import (
	"github.com/mauv0809/scoreline/internal/apperr"
)

// Result is the canonical outcome of a match.
type Result string

const (
	ResultTeam1 Result = "team1"
	ResultTeam2 Result = "team2"
	ResultDraw  Result = "draw"
)

// Valid reports whether r is one of the three known outcomes.
func (r Result) Valid() bool {
	switch r {
	case ResultTeam1, ResultTeam2, ResultDraw:
		return true
	}
	return false
}

// Decider names the score pair that produced a result.
type Decider string

const (
	DecidedRegular   Decider = "regular"
	DecidedExtraTime Decider = "extra_time"
	DecidedPenalties Decider = "penalties"
)

// Pair is one team1/team2 score pair.
type Pair struct {
	Team1 int `json:"team1" msgpack:"team1"`
	Team2 int `json:"team2" msgpack:"team2"`
}

// Score holds the regular pair and the optional tie-break pairs. A tie-break
// pair is either fully present or nil.
type Score struct {
	Regular   Pair  `json:"regular" msgpack:"regular"`
	ExtraTime *Pair `json:"extraTime,omitempty" msgpack:"extra_time,omitempty"`
	Penalties *Pair `json:"penalties,omitempty" msgpack:"penalties,omitempty"`
}

// Regular builds a score without tie-breaks.
func Regular(team1, team2 int) Score {
	return Score{Regular: Pair{Team1: team1, Team2: team2}}
}

// WithExtraTime returns a copy of s with an extra-time pair.
func (s Score) WithExtraTime(team1, team2 int) Score {
	s.ExtraTime = &Pair{Team1: team1, Team2: team2}
	return s
}

// WithPenalties returns a copy of s with a penalties pair.
func (s Score) WithPenalties(team1, team2 int) Score {
	s.Penalties = &Pair{Team1: team1, Team2: team2}
	return s
}

// Effective returns the pair that decides the match: penalties, then extra
// time, then regular.
func (s Score) Effective() (Pair, Decider) {
	switch {
	case s.Penalties != nil:
		return *s.Penalties, DecidedPenalties
	case s.ExtraTime != nil:
		return *s.ExtraTime, DecidedExtraTime
	default:
		return s.Regular, DecidedRegular
	}
}

// Decider reports which pair decided the result.
func (s Score) Decider() Decider {
	_, d := s.Effective()
	return d
}

// Goals is the pair used for goal statistics. Tie-break pairs never count.
func (s Score) Goals() Pair {
	return s.Regular
}

// Resolve derives the canonical result of a score.
func Resolve(s Score) Result {
	p, _ := s.Effective()
	switch {
	case p.Team1 > p.Team2:
		return ResultTeam1
	case p.Team1 < p.Team2:
		return ResultTeam2
	default:
		return ResultDraw
	}
}

// Raw is a score as submitted by a client, with the tie-break values loose.
type Raw struct {
	Team1Score          int  `json:"team1Score"`
	Team2Score          int  `json:"team2Score"`
	Team1ExtraTimeScore *int `json:"team1ExtraTimeScore,omitempty"`
	Team2ExtraTimeScore *int `json:"team2ExtraTimeScore,omitempty"`
	Team1PenaltiesScore *int `json:"team1PenaltiesScore,omitempty"`
	Team2PenaltiesScore *int `json:"team2PenaltiesScore,omitempty"`
}

// Parse validates raw input and builds a Score. One-sided tie-break pairs and
// negative values are rejected.
func Parse(raw Raw) (Score, error) {
	if raw.Team1Score < 0 || raw.Team2Score < 0 {
		return Score{}, apperr.New(apperr.InvalidArgument, "scores must not be negative")
	}
	s := Regular(raw.Team1Score, raw.Team2Score)

	et, err := pair("extra-time", raw.Team1ExtraTimeScore, raw.Team2ExtraTimeScore)
	if err != nil {
		return Score{}, err
	}
	pen, err := pair("penalties", raw.Team1PenaltiesScore, raw.Team2PenaltiesScore)
	if err != nil {
		return Score{}, err
	}
	s.ExtraTime = et
	s.Penalties = pen
	return s, nil
}

func pair(name string, team1, team2 *int) (*Pair, error) {
	if team1 == nil && team2 == nil {
		return nil, nil
	}
	if team1 == nil || team2 == nil {
		return nil, apperr.New(apperr.InvalidArgument, "%s score needs both team values", name)
	}
	if *team1 < 0 || *team2 < 0 {
		return nil, apperr.New(apperr.InvalidArgument, "%s score must not be negative", name)
	}
	return &Pair{Team1: *team1, Team2: *team2}, nil
}

// ToRaw flattens s back into the wire representation.
func (s Score) ToRaw() Raw {
	raw := Raw{Team1Score: s.Regular.Team1, Team2Score: s.Regular.Team2}
	if s.ExtraTime != nil {
		t1, t2 := s.ExtraTime.Team1, s.ExtraTime.Team2
		raw.Team1ExtraTimeScore, raw.Team2ExtraTimeScore = &t1, &t2
	}
	if s.Penalties != nil {
		t1, t2 := s.Penalties.Team1, s.Penalties.Team2
		raw.Team1PenaltiesScore, raw.Team2PenaltiesScore = &t1, &t2
	}
	return raw
}
