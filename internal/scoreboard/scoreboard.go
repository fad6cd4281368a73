// Package scoreboard tallies which committed picks each player marks as scored.
package scoreboard

import (
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
)

// Board holds the selection sets for one finished game. The picks are copied at construction and never change.
type Board struct {
	mu       sync.RWMutex
	names    map[models.Player]string
	picks    map[models.Player][]models.Track
	selected map[models.Player]map[int]struct{}
}

// View is the serializable state of a [Board].
type View struct {
	Names    map[models.Player]string         `json:"names"`
	Picks    map[models.Player][]models.Track `json:"picks"`
	Selected map[models.Player][]int          `json:"selected"`
	Scores   map[models.Player]int            `json:"scores"`
	// Winner is zero on a tie.
	Winner models.Player `json:"winner"`
}

// New creates an empty board for result.
func New(result models.GameResult) *Board {
	b := &Board{
		names:    make(map[models.Player]string, len(models.Players)),
		picks:    make(map[models.Player][]models.Track, len(models.Players)),
		selected: make(map[models.Player]map[int]struct{}, len(models.Players)),
	}
	for _, p := range models.Players {
		b.names[p] = result.Names[p]
		b.picks[p] = slices.Clone(result.Picks[p])
		b.selected[p] = make(map[int]struct{})
	}
	return b
}

// Toggle flips index in player's selection set. Unknown players and out of range indexes are ignored.
// It reports whether the index is selected afterwards.
func (b *Board) Toggle(player models.Player, index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !player.Valid() || index < 0 || index >= len(b.picks[player]) {
		return false
	}

	set := b.selected[player]
	if _, ok := set[index]; ok {
		delete(set, index)
		return false
	}
	set[index] = struct{}{}
	return true
}

// Score is the size of player's selection set.
func (b *Board) Score(player models.Player) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.selected[player])
}

// Selected returns player's selected indexes in ascending order.
func (b *Board) Selected(player models.Player) []int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selectedLocked(player)
}

// Pick returns player's pick at index.
func (b *Board) Pick(player models.Player, index int) (models.Track, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !player.Valid() {
		return models.Track{}, fmt.Errorf("%w: unknown player %d", shared.ErrInvalidArgument, int(player))
	}
	picks := b.picks[player]
	if index < 0 || index >= len(picks) {
		return models.Track{}, fmt.Errorf("%w: %s has no pick %d", shared.ErrInvalidArgument, player, index)
	}
	return picks[index], nil
}

// Winner returns the player with the higher score, or zero and false on a tie.
func (b *Board) Winner() (models.Player, bool) {
	one, two := b.Score(models.PlayerOne), b.Score(models.PlayerTwo)
	switch {
	case one > two:
		return models.PlayerOne, true
	case two > one:
		return models.PlayerTwo, true
	default:
		return 0, false
	}
}

// View returns a copy of the board state.
func (b *Board) View() View {
	winner, _ := b.Winner()

	b.mu.RLock()
	defer b.mu.RUnlock()

	v := View{
		Names:    make(map[models.Player]string, len(b.names)),
		Picks:    make(map[models.Player][]models.Track, len(b.picks)),
		Selected: make(map[models.Player][]int, len(b.selected)),
		Scores:   make(map[models.Player]int, len(b.selected)),
		Winner:   winner,
	}
	for _, p := range models.Players {
		v.Names[p] = b.names[p]
		v.Picks[p] = slices.Clone(b.picks[p])
		v.Selected[p] = b.selectedLocked(p)
		v.Scores[p] = len(b.selected[p])
	}
	return v
}

func (b *Board) selectedLocked(player models.Player) []int {
	set := b.selected[player]
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}
