package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/game"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/playback"
	"github.com/desertthunder/doowops/internal/scoreboard"
	"github.com/desertthunder/doowops/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DeviceListView ViewState = iota
	GameView
	ScoreboardView
)

// Game is the session the TUI drives.
type Game interface {
	Draw(ctx context.Context) (game.Snapshot, error)
	Apply(intent game.Intent) (game.Snapshot, error)
	Snapshot() game.Snapshot
	Result() (models.GameResult, error)
}

// DeviceLister lists the account's playback devices.
type DeviceLister interface {
	Devices(ctx context.Context) ([]models.Device, error)
}

// Player is the playback surface the TUI cues tracks on.
type Player interface {
	Status() playback.DeviceStatus
	SetDevice(deviceID string)
	RequestActivation()
	Cue(uri string)
	TogglePlay(ctx context.Context) error
}

// ModelOpts wires a [Model]. Devices, Player and Statuses are optional; without a player the game runs silently.
type ModelOpts struct {
	Game     Game
	Devices  DeviceLister
	Player   Player
	Statuses <-chan playback.DeviceStatus
	Logger   *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	game     Game
	devices  DeviceLister
	player   Player
	statuses <-chan playback.DeviceStatus
	logger   *log.Logger
	width    int
	height   int

	deviceList list.Model
	snap       game.Snapshot
	drawing    bool
	status     playback.DeviceStatus
	board      *scoreboard.Board
	rows       []scoreRow
	row        int
	notice     error
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	m := &Model{
		ctx:        ctx,
		view:       GameView,
		game:       opts.Game,
		devices:    opts.Devices,
		player:     opts.Player,
		statuses:   opts.Statuses,
		logger:     shared.WithLogger(opts.Logger, "component", "tui"),
		deviceList: newDeviceList(),
		snap:       opts.Game.Snapshot(),
		help:       help.New(),
		keys:       newKeyMap(),
	}
	if m.player != nil && m.devices != nil {
		m.view = DeviceListView
	}
	return m
}

// Init fetches devices when a player is wired, otherwise it draws the first candidates.
func (m *Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.view == DeviceListView {
		cmds = append(cmds, m.fetchDevices())
	} else {
		cmds = append(cmds, m.drawCandidates())
	}
	if m.statuses != nil {
		cmds = append(cmds, m.waitForStatus())
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.deviceList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case DeviceListView:
			return m.handleDeviceKeys(msg)
		case GameView:
			return m.handleGameKeys(msg)
		case ScoreboardView:
			return m.handleScoreboardKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgDevicesFetched:
		data := msg.data.(devicesFetched)
		if data.err != nil {
			m.logger.Warn("device list failed", "err", data.err)
			m.notice = data.err
		}
		items := make([]list.Item, len(data.devices))
		for i, d := range data.devices {
			items[i] = deviceItem{device: d}
		}
		return m, m.deviceList.SetItems(items)

	case MsgCandidatesDrawn:
		data := msg.data.(candidatesDrawn)
		m.drawing = false
		if data.err != nil {
			m.logger.Warn("draw failed", "err", data.err)
			if fatal(data.err) {
				m.err = data.err
				return m, nil
			}
			m.notice = data.err
			m.snap = m.game.Snapshot()
			return m, nil
		}
		m.notice = nil
		m.setSnapshot(data.snap)
		return m, nil

	case MsgDeviceStatus:
		m.status = msg.data.(playback.DeviceStatus)
		return m, m.waitForStatus()

	case MsgPlaybackDone:
		if err, _ := msg.data.(error); err != nil {
			m.notice = err
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleDeviceKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.deviceList.SelectedItem().(deviceItem); ok {
			m.logger.Info("device selected", "device", item.device.Name)
			m.player.SetDevice(item.device.ID)
			m.player.RequestActivation()
			m.view = GameView
			return m, m.drawCandidates()
		}
		return m, nil
	case key.Matches(msg, m.keys.skip):
		m.player = nil
		m.view = GameView
		return m, m.drawCandidates()
	case key.Matches(msg, m.keys.retry):
		return m, m.fetchDevices()
	}

	var cmd tea.Cmd
	m.deviceList, cmd = m.deviceList.Update(msg)
	return m, cmd
}

func (m *Model) handleGameKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.drawing {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.pick):
		return m, m.apply(game.IntentPick)
	case key.Matches(msg, m.keys.advance):
		return m, m.apply(game.IntentAdvance)
	case key.Matches(msg, m.keys.back):
		return m, m.apply(game.IntentBack)
	case key.Matches(msg, m.keys.next):
		return m, m.apply(game.IntentNext)
	case key.Matches(msg, m.keys.retry):
		if m.snap.Phase == game.AwaitingCandidates {
			return m, m.drawCandidates()
		}
	case key.Matches(msg, m.keys.activate):
		if m.player != nil {
			m.player.RequestActivation()
		}
	case key.Matches(msg, m.keys.toggle):
		return m, m.togglePlay()
	}
	return m, nil
}

func (m *Model) handleScoreboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.down):
		if m.row < len(m.rows)-1 {
			m.row++
		}
	case key.Matches(msg, m.keys.enter):
		if r, ok := m.selectedRow(); ok {
			m.board.Toggle(r.player, r.index)
		}
	case key.Matches(msg, m.keys.play):
		if r, ok := m.selectedRow(); ok && m.player != nil {
			m.player.Cue(r.track.PlaybackHandle())
		}
	case key.Matches(msg, m.keys.toggle):
		return m, m.togglePlay()
	}
	return m, nil
}

// apply runs intent against the session. A next that opens a new turn draws its candidates.
func (m *Model) apply(intent game.Intent) tea.Cmd {
	snap, err := m.game.Apply(intent)
	if err != nil {
		m.notice = err
		return nil
	}
	m.notice = nil
	m.setSnapshot(snap)

	if snap.Complete() {
		m.showScoreboard()
		return nil
	}
	if intent == game.IntentNext && snap.Phase == game.AwaitingCandidates {
		return m.drawCandidates()
	}
	return nil
}

func (m *Model) setSnapshot(snap game.Snapshot) {
	m.snap = snap
	if m.player != nil && snap.Current != nil {
		m.player.Cue(snap.Current.PlaybackHandle())
	}
}

func (m *Model) showScoreboard() {
	result, err := m.game.Result()
	if err != nil {
		m.notice = err
		return
	}
	m.board = scoreboard.New(result)
	m.rows = scoreRows(result)
	m.row = 0
	m.view = ScoreboardView
}

func (m *Model) selectedRow() (scoreRow, bool) {
	if m.board == nil || m.row < 0 || m.row >= len(m.rows) {
		return scoreRow{}, false
	}
	return m.rows[m.row], true
}

// fatal reports errors the session cannot recover from without signing in again.
func fatal(err error) bool {
	return errors.Is(err, shared.ErrAuthExpired) || errors.Is(err, shared.ErrUnauthenticated)
}

func newDeviceList() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Playback devices"
	return l
}

func (m *Model) fetchDevices() tea.Cmd {
	return func() tea.Msg {
		devices, err := m.devices.Devices(m.ctx)
		return devicesFetchedMsg(devices, err)
	}
}

func (m *Model) drawCandidates() tea.Cmd {
	m.drawing = true
	return func() tea.Msg {
		snap, err := m.game.Draw(m.ctx)
		return candidatesDrawnMsg(snap, err)
	}
}

func (m *Model) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case status, ok := <-m.statuses:
			if !ok {
				return nil
			}
			return deviceStatusMsg(status)
		}
	}
}

func (m *Model) togglePlay() tea.Cmd {
	if m.player == nil {
		return nil
	}
	player := m.player
	return func() tea.Msg {
		return playbackDoneMsg(player.TogglePlay(m.ctx))
	}
}

// Scoreboard returns the final scoreboard, once the game has completed.
func (m *Model) Scoreboard() (scoreboard.View, bool) {
	if m.board == nil {
		return scoreboard.View{}, false
	}
	return m.board.View(), true
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case DeviceListView:
		return m.renderDeviceList()
	case GameView:
		return m.renderGame()
	case ScoreboardView:
		return m.renderScoreboard()
	default:
		return ""
	}
}

func (m *Model) renderDeviceList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.skip, m.keys.retry, m.keys.quit})
	return fmt.Sprintf("%s%s\n\n%s", m.deviceList.View(), m.renderNotice(), helpView)
}

func (m *Model) renderGame() string {
	var b strings.Builder

	round := fmt.Sprintf("Round %d/%d", m.snap.Round, m.snap.TotalRounds)
	if m.snap.FinalRound {
		round += " (final)"
	}
	b.WriteString(styles.title.Render(fmt.Sprintf("%s • %s's turn", round, m.snap.ActiveName())))
	b.WriteString("\n")

	switch {
	case m.drawing:
		b.WriteString(styles.dim.Render("Drawing candidates..."))
	case m.snap.Current != nil:
		t := m.snap.Current
		card := fmt.Sprintf("%s\n%s", styles.ok.Render(t.Name), t.ArtistLine())
		if t.Album != "" {
			card += "\n" + styles.dim.Render(t.Album)
		}
		card += fmt.Sprintf("\n\ncandidate %d of %d", m.snap.Cursor+1, m.snap.Candidates)
		if m.snap.Phase == game.Committed {
			card += styles.ok.Render("  ✓ picked")
		}
		b.WriteString(styles.card.Render(card))
	default:
		b.WriteString(styles.warn.Render("No candidates drawn. Press r to retry."))
	}
	b.WriteString("\n\n")

	for _, p := range models.Players {
		line := fmt.Sprintf("%s: %d picks", m.snap.Names[p], m.snap.PickCounts[p])
		if c := m.snap.Commits[p]; c != nil {
			line += fmt.Sprintf(" • this round: %s", c.Name)
		}
		if m.snap.FinalRound && m.snap.GoBackUsed[p] {
			line += styles.dim.Render(" • go-back used")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(m.renderDevice())
	b.WriteString(m.renderNotice())
	b.WriteString("\n\n")

	var keys []key.Binding
	if m.snap.CanPick {
		keys = append(keys, m.keys.pick)
	}
	if m.snap.CanAdvance {
		keys = append(keys, m.keys.advance)
	}
	if m.snap.CanGoBack {
		keys = append(keys, m.keys.back)
	}
	if m.snap.CanNext {
		keys = append(keys, m.keys.next)
	}
	if m.snap.Phase == game.AwaitingCandidates && !m.drawing {
		keys = append(keys, m.keys.retry)
	}
	if m.player != nil {
		keys = append(keys, m.keys.toggle, m.keys.activate)
	}
	keys = append(keys, m.keys.quit)
	b.WriteString(m.help.ShortHelpView(keys))
	return b.String()
}

func (m *Model) renderScoreboard() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Scoreboard"))
	b.WriteString("\n")

	view := m.board.View()
	var current models.Player
	for i, r := range m.rows {
		if r.player != current {
			current = r.player
			b.WriteString(fmt.Sprintf("\n%s (%d)\n", view.Names[r.player], view.Scores[r.player]))
		}
		cursor := "  "
		if i == m.row {
			cursor = "> "
		}
		mark := "[ ]"
		if slices.Contains(view.Selected[r.player], r.index) {
			mark = "[x]"
		}
		b.WriteString(fmt.Sprintf("%s%s %s - %s\n", cursor, mark, r.track.Name, r.track.ArtistLine()))
	}

	b.WriteString("\n")
	if view.Winner != 0 {
		b.WriteString(styles.ok.Render(fmt.Sprintf("%s wins!", view.Names[view.Winner])))
	} else {
		b.WriteString(styles.warn.Render("Tied"))
	}
	b.WriteString(m.renderDevice())
	b.WriteString(m.renderNotice())

	keys := []key.Binding{m.keys.up, m.keys.down, m.keys.enter}
	if m.player != nil {
		keys = append(keys, m.keys.play, m.keys.toggle)
	}
	keys = append(keys, m.keys.quit)
	return fmt.Sprintf("%s\n\n%s", b.String(), m.help.ShortHelpView(keys))
}

func (m *Model) renderDevice() string {
	if m.player == nil {
		return ""
	}
	line := fmt.Sprintf("\ndevice: %s", m.status.Status)
	switch m.status.Status {
	case playback.Ready:
		line = styles.ok.Render(line)
	case playback.NotReady:
		line = styles.warn.Render(line + " (press a to reconnect)")
	default:
		line = styles.dim.Render(line)
	}
	if m.status.Error != "" {
		line += styles.dim.Render(" • " + m.status.Error)
	}
	return line
}

func (m *Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	return "\n" + styles.err.Render(m.notice.Error())
}
