package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/doowops/internal/game"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/playback"
	"github.com/desertthunder/doowops/internal/shared"
)

type fakeDrawer struct {
	drawn int
	err   error
}

func (d *fakeDrawer) Candidates(ctx context.Context, playlistID string, count int) ([]models.Track, error) {
	if d.err != nil {
		return nil, d.err
	}
	tracks := make([]models.Track, count)
	for i := range tracks {
		d.drawn++
		tracks[i] = models.Track{
			ID:      fmt.Sprintf("t%d", d.drawn),
			URI:     fmt.Sprintf("spotify:track:t%d", d.drawn),
			Name:    fmt.Sprintf("Song %d", d.drawn),
			Artists: []string{"Band"},
		}
	}
	return tracks, nil
}

type fakePlayer struct {
	device      string
	activations int
	cues        []string
	toggles     int
}

func (p *fakePlayer) Status() playback.DeviceStatus        { return playback.DeviceStatus{DeviceID: p.device} }
func (p *fakePlayer) SetDevice(deviceID string)            { p.device = deviceID }
func (p *fakePlayer) RequestActivation()                   { p.activations++ }
func (p *fakePlayer) Cue(uri string)                       { p.cues = append(p.cues, uri) }
func (p *fakePlayer) TogglePlay(ctx context.Context) error { p.toggles++; return nil }

type fakeDevices []models.Device

func (d fakeDevices) Devices(ctx context.Context) ([]models.Device, error) { return d, nil }

func newTestModel(t *testing.T, drawer *fakeDrawer, opts ModelOpts) *Model {
	t.Helper()
	session, err := game.NewSession(game.Config{
		PlaylistID: "pl1",
		Player1:    "Ana",
		Player2:    "Ben",
		Rounds:     2,
	}, drawer, game.SessionOpts{Logger: shared.NewLogger(nil)})
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	opts.Game = session
	opts.Logger = shared.NewLogger(nil)
	return NewModel(context.Background(), opts)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends k and runs any command it returns, feeding the result back into the model.
func press(m *Model, k tea.KeyMsg) {
	_, cmd := m.Update(k)
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		m.Update(msg)
	}
}

func TestModel(t *testing.T) {
	t.Run("plays a full game silently", func(t *testing.T) {
		m := newTestModel(t, &fakeDrawer{}, ModelOpts{})
		if m.view != GameView {
			t.Fatalf("expected game view without a player, got %v", m.view)
		}
		if _, done := m.Scoreboard(); done {
			t.Error("expected no scoreboard before the game ends")
		}
		m.Update(m.drawCandidates()())

		if m.snap.Current == nil || m.snap.Current.Name != "Song 1" {
			t.Fatalf("expected first candidate, got %+v", m.snap.Current)
		}
		if !strings.Contains(m.View(), "Ana's turn") {
			t.Errorf("expected active player in view, got %s", m.View())
		}

		press(m, runes("l"))
		if m.snap.Cursor != 1 {
			t.Errorf("expected cursor 1, got %d", m.snap.Cursor)
		}

		for turn := 0; turn < 4; turn++ {
			press(m, runes("p"))
			if m.snap.Phase != game.Committed {
				t.Fatalf("turn %d: expected committed, got %v", turn, m.snap.Phase)
			}
			press(m, runes("n"))
		}

		if m.view != ScoreboardView {
			t.Fatalf("expected scoreboard after the final turn, got %v", m.view)
		}
		if len(m.rows) != 4 {
			t.Errorf("expected 4 picks on the board, got %d", len(m.rows))
		}
		if view, done := m.Scoreboard(); !done || len(view.Picks[models.PlayerOne]) != 2 {
			t.Errorf("expected the final board, got %+v", view)
		}
	})

	t.Run("rejected intents leave a notice", func(t *testing.T) {
		m := newTestModel(t, &fakeDrawer{}, ModelOpts{})
		m.Update(m.drawCandidates()())

		press(m, runes("n"))
		if !errors.Is(m.notice, shared.ErrInvalidIntent) {
			t.Errorf("expected invalid intent notice, got %v", m.notice)
		}
		press(m, runes("p"))
		if m.notice != nil {
			t.Errorf("expected notice to clear, got %v", m.notice)
		}
	})

	t.Run("failed draw can be retried", func(t *testing.T) {
		drawer := &fakeDrawer{err: shared.ErrUpstreamUnavailable}
		m := newTestModel(t, drawer, ModelOpts{})
		m.Update(m.drawCandidates()())

		if !errors.Is(m.notice, shared.ErrUpstreamUnavailable) || m.drawing {
			t.Fatalf("expected a retryable notice, got %v", m.notice)
		}
		if !strings.Contains(m.View(), "retry") {
			t.Errorf("expected retry hint, got %s", m.View())
		}

		drawer.err = nil
		press(m, runes("r"))
		if m.snap.Current == nil {
			t.Error("expected candidates after retry")
		}
	})

	t.Run("expired authorization is fatal", func(t *testing.T) {
		m := newTestModel(t, &fakeDrawer{err: shared.ErrAuthExpired}, ModelOpts{})
		m.Update(m.drawCandidates()())
		if !strings.Contains(m.View(), "Error:") {
			t.Errorf("expected error view, got %s", m.View())
		}
	})

	t.Run("keys are ignored while drawing", func(t *testing.T) {
		m := newTestModel(t, &fakeDrawer{}, ModelOpts{})
		m.Update(m.drawCandidates()())
		m.drawing = true

		press(m, runes("p"))
		if m.snap.Phase != game.Browsing {
			t.Errorf("expected no pick while drawing, got %v", m.snap.Phase)
		}
	})
}

func TestModelPlayback(t *testing.T) {
	devices := fakeDevices{{ID: "d1", Name: "Kitchen", Type: "Speaker"}}

	t.Run("selecting a device activates it and cues candidates", func(t *testing.T) {
		player := &fakePlayer{}
		m := newTestModel(t, &fakeDrawer{}, ModelOpts{Devices: devices, Player: player})
		if m.view != DeviceListView {
			t.Fatalf("expected device list, got %v", m.view)
		}
		m.Update(m.fetchDevices()())

		press(m, tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != GameView || player.device != "d1" || player.activations != 1 {
			t.Fatalf("expected d1 to be activated, got view %v device %q activations %d", m.view, player.device, player.activations)
		}
		if len(player.cues) != 1 || player.cues[0] != "spotify:track:t1" {
			t.Errorf("expected first candidate cued, got %v", player.cues)
		}

		press(m, runes("l"))
		if got := player.cues[len(player.cues)-1]; got != "spotify:track:t2" {
			t.Errorf("expected advance to cue t2, got %s", got)
		}

		press(m, runes("a"))
		press(m, tea.KeyMsg{Type: tea.KeySpace})
		if player.activations != 2 || player.toggles != 1 {
			t.Errorf("expected manual activation and toggle, got %d/%d", player.activations, player.toggles)
		}
	})

	t.Run("skipping the device plays silently", func(t *testing.T) {
		player := &fakePlayer{}
		m := newTestModel(t, &fakeDrawer{}, ModelOpts{Devices: devices, Player: player})
		m.Update(m.fetchDevices()())

		press(m, runes("s"))
		if m.view != GameView || m.player != nil {
			t.Fatal("expected silent game view")
		}
		if len(player.cues) != 0 {
			t.Errorf("expected no cues, got %v", player.cues)
		}
	})

	t.Run("device status updates", func(t *testing.T) {
		statuses := make(chan playback.DeviceStatus, 1)
		m := newTestModel(t, &fakeDrawer{}, ModelOpts{Player: &fakePlayer{}, Statuses: statuses})

		statuses <- playback.DeviceStatus{Status: playback.NotReady, Error: "device went offline"}
		_, cmd := m.Update(m.waitForStatus()())
		if m.status.Status != playback.NotReady || cmd == nil {
			t.Fatalf("expected status to be applied and the wait re-armed, got %v", m.status.Status)
		}
		if !strings.Contains(m.View(), "reconnect") {
			t.Errorf("expected reconnect hint, got %s", m.View())
		}
	})

	t.Run("scoreboard toggles and replays", func(t *testing.T) {
		player := &fakePlayer{}
		m := newTestModel(t, &fakeDrawer{}, ModelOpts{Player: player})
		m.Update(m.drawCandidates()())
		for range 4 {
			press(m, runes("p"))
			press(m, runes("n"))
		}
		if m.view != ScoreboardView {
			t.Fatalf("expected scoreboard, got %v", m.view)
		}

		press(m, tea.KeyMsg{Type: tea.KeyEnter})
		if m.board.Score(models.PlayerOne) != 1 {
			t.Errorf("expected one point for Ana, got %d", m.board.Score(models.PlayerOne))
		}
		if !strings.Contains(m.View(), "Ana wins!") {
			t.Errorf("expected Ana to lead, got %s", m.View())
		}

		press(m, runes("j"))
		press(m, runes("j"))
		press(m, runes("p"))
		want := m.rows[2].track.PlaybackHandle()
		if got := player.cues[len(player.cues)-1]; got != want {
			t.Errorf("expected replay of %s, got %s", want, got)
		}
		if m.rows[2].player != models.PlayerTwo {
			t.Errorf("expected third row to belong to Ben, got %v", m.rows[2].player)
		}
	})
}
