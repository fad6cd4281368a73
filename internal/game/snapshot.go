package game

import "github.com/desertthunder/doowops/internal/models"

// Snapshot is the view of a session handed to presentation layers.
type Snapshot struct {
	SessionID    string                          `json:"session_id"`
	Phase        Phase                           `json:"phase"`
	Round        int                             `json:"round"`
	TotalRounds  int                             `json:"total_rounds"`
	FinalRound   bool                            `json:"final_round"`
	ActivePlayer models.Player                   `json:"active_player"`
	Names        map[models.Player]string        `json:"names"`
	Candidates   int                             `json:"candidates"`
	Cursor       int                             `json:"cursor"`
	Current      *models.Track                   `json:"current,omitempty"`
	Commits      map[models.Player]*models.Track `json:"commits"`
	PickCounts   map[models.Player]int           `json:"pick_counts"`
	GoBackUsed   map[models.Player]bool          `json:"go_back_used"`
	Drawing      bool                            `json:"drawing"`
	Outcome      Outcome                         `json:"outcome"`
	Error        string                          `json:"error,omitempty"`

	CanPick    bool `json:"can_pick"`
	CanAdvance bool `json:"can_advance"`
	CanGoBack  bool `json:"can_go_back"`
	CanNext    bool `json:"can_next"`
}

// ActiveName is the display name of the player whose turn it is.
func (s Snapshot) ActiveName() string {
	return s.Names[s.ActivePlayer]
}

// Complete reports whether the game has ended.
func (s Snapshot) Complete() bool {
	return s.Phase == GameComplete
}

// snapshot copies the session state. Callers hold s.mu.
func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:    s.ID,
		Phase:        s.phase,
		Round:        s.round.Round,
		TotalRounds:  s.round.TotalRounds,
		FinalRound:   s.round.Final(),
		ActivePlayer: s.round.Active,
		Names:        s.config.Names(),
		Candidates:   len(s.round.Candidates),
		Cursor:       s.round.Cursor,
		Commits:      make(map[models.Player]*models.Track, len(s.round.Commits)),
		PickCounts:   make(map[models.Player]int, len(s.picks)),
		GoBackUsed:   make(map[models.Player]bool, len(s.round.GoBackUsed)),
		Drawing:      s.drawing,
		Outcome:      s.outcome,
		Error:        s.lastErr,
		CanPick:      s.canPick(),
		CanAdvance:   s.canAdvance(),
		CanGoBack:    s.canGoBack(),
		CanNext:      s.canNext(),
	}

	if track, ok := s.round.Current(); ok && s.phase != AwaitingCandidates {
		snap.Current = &track
	}
	for p, t := range s.round.Commits {
		if t != nil {
			c := *t
			snap.Commits[p] = &c
		}
	}
	for p, picks := range s.picks {
		snap.PickCounts[p] = len(picks)
	}
	for p, used := range s.round.GoBackUsed {
		snap.GoBackUsed[p] = used
	}
	return snap
}
