package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
)

// Drawer supplies random candidates from a playlist.
type Drawer interface {
	Candidates(ctx context.Context, playlistID string, count int) ([]models.Track, error)
}

// SessionOpts configures optional session collaborators.
type SessionOpts struct {
	Logger *log.Logger
	// Updates receives a snapshot after every successful transition. Sends never block.
	Updates chan<- Snapshot
}

// Session is one live game. All mutations are serialized: intents and draws take the session lock, and a draw
// releases it only while waiting on the catalog, with a flag that rejects a second draw for the same turn.
type Session struct {
	ID     string
	config Config
	drawer Drawer
	logger *log.Logger

	updates chan<- Snapshot

	mu      sync.Mutex
	phase   Phase
	round   RoundState
	picks   map[models.Player][]models.Track
	drawing bool
	outcome Outcome
	lastErr string
}

// NewSession validates cfg and creates a session waiting for player one's first candidates.
func NewSession(cfg Config, drawer Drawer, opts SessionOpts) (*Session, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	id := shared.GenerateID()
	return &Session{
		ID:      id,
		config:  cfg,
		drawer:  drawer,
		logger:  shared.WithLogger(opts.Logger, "component", "game", "session", shared.ShortID(id)),
		updates: opts.Updates,
		phase:   AwaitingCandidates,
		round:   newRoundState(1, cfg.Rounds),
		picks:   map[models.Player][]models.Track{models.PlayerOne: {}, models.PlayerTwo: {}},
	}, nil
}

// Config returns the normalized configuration the session was started with.
func (s *Session) Config() Config {
	return s.config
}

// Draw requests this turn's candidates. It is valid only while awaiting candidates, and a second draw while one
// is outstanding fails with [shared.ErrDrawInFlight]. A failed draw leaves the turn awaiting candidates so the
// caller can retry.
func (s *Session) Draw(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.phase != AwaitingCandidates {
		defer s.mu.Unlock()
		return s.snapshot(), fmt.Errorf("%w: candidates already drawn for this turn", shared.ErrInvalidIntent)
	}
	if s.drawing {
		defer s.mu.Unlock()
		return s.snapshot(), fmt.Errorf("%w: %w", shared.ErrInvalidIntent, shared.ErrDrawInFlight)
	}
	s.drawing = true
	count := s.round.CandidateCount()
	round, player := s.round.Round, s.round.Active
	s.mu.Unlock()

	tracks, err := s.drawer.Candidates(ctx, s.config.PlaylistID, count)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = false

	if err == nil && len(tracks) == 0 {
		err = shared.ErrNoCandidates
	}
	if err != nil {
		s.lastErr = err.Error()
		s.logger.Warn("candidate draw failed", "round", round, "player", player, "err", err)
		snap := s.snapshot()
		s.publish(snap)
		return snap, err
	}

	s.round.Candidates = tracks
	s.round.Cursor = 0
	s.phase = Browsing
	s.lastErr = ""
	s.logger.Debug("candidates drawn", "round", round, "player", player, "count", len(tracks))

	snap := s.snapshot()
	s.publish(snap)
	return snap, nil
}

// Apply runs one intent atomically. An intent that is not permitted in the current state returns an error
// wrapping [shared.ErrInvalidIntent] and changes nothing.
func (s *Session) Apply(intent Intent) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch intent {
	case IntentPick:
		err = s.pick()
	case IntentAdvance:
		err = s.advance()
	case IntentBack:
		err = s.goBack()
	case IntentNext:
		err = s.next()
	default:
		err = fmt.Errorf("%w: unknown intent %q", shared.ErrInvalidIntent, intent)
	}

	if err != nil {
		s.logger.Debug("intent rejected", "intent", intent, "err", err)
		return s.snapshot(), err
	}

	snap := s.snapshot()
	s.publish(snap)
	return snap, nil
}

// Snapshot returns the current view state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Result returns the accumulated picks once the game is complete.
func (s *Session) Result() (models.GameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != GameComplete {
		return models.GameResult{}, fmt.Errorf("%w: game is not complete", shared.ErrInvalidIntent)
	}
	return s.result(), nil
}

func (s *Session) result() models.GameResult {
	picks := make(map[models.Player][]models.Track, len(s.picks))
	for p, tracks := range s.picks {
		picks[p] = append([]models.Track(nil), tracks...)
	}
	return models.GameResult{Names: s.config.Names(), Picks: picks}
}

func (s *Session) pick() error {
	if !s.canPick() {
		if s.round.Commits[s.round.Active] != nil {
			return fmt.Errorf("%w: %s already picked this round", shared.ErrInvalidIntent, s.round.Active)
		}
		return fmt.Errorf("%w: cannot pick while %s", shared.ErrInvalidIntent, s.phase)
	}

	track := s.round.Candidates[s.round.Cursor]
	s.round.Commits[s.round.Active] = &track
	s.picks[s.round.Active] = append(s.picks[s.round.Active], track)
	s.phase = Committed

	s.logger.Info("track picked", "round", s.round.Round, "player", s.round.Active, "track", track.Name)
	return nil
}

func (s *Session) advance() error {
	if !s.canAdvance() {
		return fmt.Errorf("%w: cannot advance past candidate %d of %d", shared.ErrInvalidIntent, s.round.Cursor+1, len(s.round.Candidates))
	}
	s.round.Cursor++
	return nil
}

func (s *Session) goBack() error {
	if !s.canGoBack() {
		return fmt.Errorf("%w: go-back not available", shared.ErrInvalidIntent)
	}
	s.round.Cursor--
	if s.round.Final() {
		s.round.GoBackUsed[s.round.Active] = true
	}
	return nil
}

func (s *Session) next() error {
	if !s.canNext() {
		return fmt.Errorf("%w: %s has not picked yet", shared.ErrInvalidIntent, s.round.Active)
	}

	if s.round.Active == models.PlayerOne {
		s.round.Active = models.PlayerTwo
		s.round.Candidates = nil
		s.round.Cursor = 0
		s.phase = AwaitingCandidates
		s.outcome = TurnComplete
		return nil
	}

	if s.round.Final() {
		s.phase = GameComplete
		s.outcome = GameCompleted
		s.logger.Info("game complete", "rounds", s.round.TotalRounds)
		return nil
	}

	s.round = newRoundState(s.round.Round+1, s.round.TotalRounds)
	s.phase = AwaitingCandidates
	s.outcome = RoundComplete
	return nil
}

func (s *Session) canPick() bool {
	return s.phase == Browsing && s.round.Commits[s.round.Active] == nil
}

func (s *Session) canAdvance() bool {
	return (s.phase == Browsing || s.phase == Committed) && s.round.Cursor < len(s.round.Candidates)-1
}

// canGoBack requires a candidate behind the cursor. In the final round it also requires an unspent entitlement;
// in other rounds it requires that the player already committed, and is then unlimited.
func (s *Session) canGoBack() bool {
	if s.phase != Browsing && s.phase != Committed || s.round.Cursor <= 0 {
		return false
	}
	if s.round.Final() {
		return !s.goBackSpent(s.round.Active)
	}
	return s.round.Commits[s.round.Active] != nil
}

func (s *Session) canNext() bool {
	return s.phase == Committed
}

func (s *Session) goBackSpent(p models.Player) bool {
	if s.config.Policy == PerRound {
		return s.round.GoBackUsed[models.PlayerOne] || s.round.GoBackUsed[models.PlayerTwo]
	}
	return s.round.GoBackUsed[p]
}

// publish sends a snapshot without blocking; a full channel drops the update.
func (s *Session) publish(snap Snapshot) {
	if s.updates == nil {
		return
	}
	select {
	case s.updates <- snap:
	default:
	}
}
