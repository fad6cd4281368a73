package game

import (
	"fmt"
	"strings"

	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
)

// Candidate counts per turn.
const (
	OrdinaryCandidates = 3
	FinalCandidates    = 5

	MinRounds = 2
	MaxRounds = 10
)

// Phase of the active turn.
type Phase int

const (
	AwaitingCandidates Phase = iota
	Browsing
	Committed
	GameComplete
)

func (p Phase) String() string {
	switch p {
	case AwaitingCandidates:
		return "awaiting_candidates"
	case Browsing:
		return "browsing"
	case Committed:
		return "committed"
	case GameComplete:
		return "game_complete"
	default:
		return ""
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{AwaitingCandidates, Browsing, Committed, GameComplete} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: unknown phase %q", shared.ErrInvalidInput, text)
}

// Outcome is what the most recent next intent completed.
type Outcome int

const (
	NoOutcome Outcome = iota
	TurnComplete
	RoundComplete
	GameCompleted
)

func (o Outcome) String() string {
	switch o {
	case TurnComplete:
		return "turn_complete"
	case RoundComplete:
		return "round_complete"
	case GameCompleted:
		return "game_complete"
	default:
		return ""
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, candidate := range []Outcome{NoOutcome, TurnComplete, RoundComplete, GameCompleted} {
		if candidate.String() == string(text) {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: unknown outcome %q", shared.ErrInvalidInput, text)
}

// Intent is a player action. These are the only inputs that mutate a session besides drawing candidates.
type Intent string

const (
	IntentPick    Intent = "pick"
	IntentAdvance Intent = "advance"
	IntentBack    Intent = "back"
	IntentNext    Intent = "next"
)

// ParseIntent normalizes the intent names accepted from clients.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pick":
		return IntentPick, nil
	case "advance", "skip":
		return IntentAdvance, nil
	case "back", "go-back", "go_back", "goback":
		return IntentBack, nil
	case "next", "next-turn", "next_turn":
		return IntentNext, nil
	default:
		return "", fmt.Errorf("%w: unknown intent %q", shared.ErrInvalidIntent, s)
	}
}

// GoBackPolicy decides whose usage consumes the final round's go-back entitlement.
type GoBackPolicy int

const (
	// PerPlayer gives each player one go-back in the final round.
	PerPlayer GoBackPolicy = iota
	// PerRound gives the final round a single go-back, consumed by whichever player uses it first.
	PerRound
)

func (p GoBackPolicy) String() string {
	if p == PerRound {
		return shared.GoBackPerRound
	}
	return shared.GoBackPerPlayer
}

// ParseGoBackPolicy maps the config value onto a policy. Empty selects [PerPlayer].
func ParseGoBackPolicy(s string) (GoBackPolicy, error) {
	switch s {
	case "", shared.GoBackPerPlayer:
		return PerPlayer, nil
	case shared.GoBackPerRound:
		return PerRound, nil
	default:
		return PerPlayer, fmt.Errorf("%w: go-back policy %q", shared.ErrInvalidArgument, s)
	}
}

// RoundState is the state of the turn in progress.
//
// Cursor only moves backward through an explicit go-back.
type RoundState struct {
	Round       int
	TotalRounds int
	Active      models.Player
	Candidates  []models.Track
	Cursor      int
	Commits     map[models.Player]*models.Track
	GoBackUsed  map[models.Player]bool
}

func newRoundState(round, total int) RoundState {
	return RoundState{
		Round:       round,
		TotalRounds: total,
		Active:      models.PlayerOne,
		Commits:     map[models.Player]*models.Track{},
		GoBackUsed:  map[models.Player]bool{},
	}
}

// Final reports whether this is the last round.
func (r RoundState) Final() bool {
	return r.Round == r.TotalRounds
}

// CandidateCount is the number of candidates each turn of this round draws.
func (r RoundState) CandidateCount() int {
	return CandidateCount(r.Round, r.TotalRounds)
}

// Current returns the candidate under the cursor, if candidates have been drawn.
func (r RoundState) Current() (models.Track, bool) {
	if r.Cursor < 0 || r.Cursor >= len(r.Candidates) {
		return models.Track{}, false
	}
	return r.Candidates[r.Cursor], true
}

// CandidateCount returns 5 for the final round and 3 otherwise.
func CandidateCount(round, total int) int {
	if round == total {
		return FinalCandidates
	}
	return OrdinaryCandidates
}
