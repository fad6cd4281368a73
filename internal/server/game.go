package server

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/catalog"
	"github.com/desertthunder/doowops/internal/formatter"
	"github.com/desertthunder/doowops/internal/game"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/scoreboard"
	"github.com/desertthunder/doowops/internal/shared"
)

// GameHandler serves the lobby, game and scoreboard routes for the single live session.
type GameHandler struct {
	config    *shared.Config
	catalog   Candidates
	playlists PlaylistLookup
	device    DeviceController
	logger    *log.Logger

	mu      sync.Mutex
	session *game.Session
	board   *scoreboard.Board
}

type startRequest struct {
	Playlist     string `json:"playlist"`
	Player1      string `json:"player1"`
	Player2      string `json:"player2"`
	Rounds       int    `json:"rounds"`
	GoBackPolicy string `json:"go_back_policy"`
	Refresh      bool   `json:"refresh"`
}

type intentRequest struct {
	Intent string `json:"intent"`
}

type pickRequest struct {
	Player models.Player `json:"player"`
	Index  int           `json:"index"`
}

type playlistInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// NewGameHandler creates a [GameHandler]. playlists and device may be nil.
func NewGameHandler(config *shared.Config, candidates Candidates, playlists PlaylistLookup, device DeviceController, logger *log.Logger) *GameHandler {
	return &GameHandler{
		config:    config,
		catalog:   candidates,
		playlists: playlists,
		device:    device,
		logger:    logger,
	}
}

// Register adds the handler's routes to r.
func (h *GameHandler) Register(r Router) {
	r.HandleFunc(http.MethodGet, "/api/playlists/featured", h.featured)
	r.HandleFunc(http.MethodGet, "/api/playlist/{id}/info", h.playlistInfo)
	r.HandleFunc(http.MethodGet, "/api/playlist/{id}", h.sample)
	r.HandleFunc(http.MethodGet, "/playlist/{id}", h.sample)

	r.HandleFunc(http.MethodPost, "/api/game", h.start)
	r.HandleFunc(http.MethodGet, "/api/game", h.snapshot)
	r.HandleFunc(http.MethodPost, "/api/game/draw", h.draw)
	r.HandleFunc(http.MethodPost, "/api/game/intent", h.intent)
	r.HandleFunc(http.MethodGet, "/api/game/result", h.result)

	r.HandleFunc(http.MethodGet, "/api/scoreboard", h.scoreboard)
	r.HandleFunc(http.MethodPost, "/api/scoreboard/toggle", h.toggle)
	r.HandleFunc(http.MethodPost, "/api/scoreboard/play", h.replay)
	r.HandleFunc(http.MethodGet, "/api/scoreboard/export", h.export)
}

func (h *GameHandler) featured(w http.ResponseWriter, r *http.Request) {
	playlists := h.config.Game.Playlists
	if playlists == nil {
		playlists = []shared.FeaturedPlaylist{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
}

func (h *GameHandler) playlistInfo(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParsePlaylistID(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.playlists == nil {
		writeError(w, h.logger, fmt.Errorf("%w: playlist lookup", shared.ErrNotImplemented))
		return
	}

	p, err := h.playlists.Playlist(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	info := playlistInfo{ID: p.ID, Name: p.Name}
	if len(p.Images) > 0 {
		info.Image = p.Images[0].URL
	}
	writeJSON(w, http.StatusOK, info)
}

// sample returns count random tracks from a playlist: GET /playlist/{id}?count=N. refresh=1 drops the cached
// copy first.
func (h *GameHandler) sample(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParsePlaylistID(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if r.URL.Query().Get("refresh") == "1" {
		h.invalidate(id)
	}

	count := game.OrdinaryCandidates
	if raw := r.URL.Query().Get("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 0 {
			writeError(w, h.logger, fmt.Errorf("%w: count must be a non-negative integer", shared.ErrInvalidArgument))
			return
		}
	}

	tracks, err := h.catalog.Candidates(r.Context(), id, count)
	if err != nil {
		writeCatalogError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// start replaces any running session and draws player one's first candidates.
func (h *GameHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	playlistID, err := catalog.ParsePlaylistID(req.Playlist)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Rounds == 0 {
		req.Rounds = h.config.Game.Rounds
	}
	if req.GoBackPolicy == "" {
		req.GoBackPolicy = h.config.Game.GoBackPolicy
	}
	policy, err := game.ParseGoBackPolicy(req.GoBackPolicy)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Refresh {
		h.invalidate(playlistID)
	}

	session, err := game.NewSession(game.Config{
		PlaylistID: playlistID,
		Player1:    req.Player1,
		Player2:    req.Player2,
		Rounds:     req.Rounds,
		Policy:     policy,
	}, h.catalog, game.SessionOpts{Logger: h.logger})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.mu.Lock()
	h.session = session
	h.board = nil
	h.mu.Unlock()
	h.logger.Info("game started", "session", shared.ShortID(session.ID), "rounds", req.Rounds, "policy", policy)

	snap, err := session.Draw(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.cue(snap)
	writeJSON(w, http.StatusCreated, snap)
}

func (h *GameHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	session, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// draw retries the candidate draw for the current turn.
func (h *GameHandler) draw(w http.ResponseWriter, r *http.Request) {
	session, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	snap, err := session.Draw(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.cue(snap)
	writeJSON(w, http.StatusOK, snap)
}

// intent applies one intent. A next that starts a new turn also draws its candidates; if that draw fails the
// response is still 200 and the snapshot's error field carries the failure.
func (h *GameHandler) intent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	intent, err := game.ParseIntent(req.Intent)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	session, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	snap, err := session.Apply(intent)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// the turn has already moved on, so a failed draw is reported in the snapshot and retried via /api/game/draw
	if intent == game.IntentNext && snap.Phase == game.AwaitingCandidates {
		snap, err = session.Draw(r.Context())
		if err != nil {
			h.logger.Warn("draw after next failed", "err", err)
		}
	}
	h.cue(snap)
	writeJSON(w, http.StatusOK, snap)
}

func (h *GameHandler) result(w http.ResponseWriter, r *http.Request) {
	session, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := session.Result()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *GameHandler) scoreboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.scoreboardFor()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board.View())
}

func (h *GameHandler) toggle(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	board, err := h.scoreboardFor()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	board.Toggle(req.Player, req.Index)
	writeJSON(w, http.StatusOK, board.View())
}

// replay cues a committed pick on the device. The device plays it asynchronously.
func (h *GameHandler) replay(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	board, err := h.scoreboardFor()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	track, err := board.Pick(req.Player, req.Index)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.device == nil {
		writeError(w, h.logger, fmt.Errorf("%w: no playback device", shared.ErrDeviceNotReady))
		return
	}
	h.device.Cue(track.PlaybackHandle())
	writeJSON(w, http.StatusAccepted, h.device.Status())
}

// export downloads the scoreboard: GET /api/scoreboard/export?format=csv|md|txt.
func (h *GameHandler) export(w http.ResponseWriter, r *http.Request) {
	format, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	board, err := h.scoreboardFor()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	data, err := formatter.Export(board.View(), format)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="doowops.%s"`, format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *GameHandler) current() (*game.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return nil, fmt.Errorf("%w: start a game first", shared.ErrNoSession)
	}
	return h.session, nil
}

// scoreboardFor returns the board of the finished session, building it on first use.
func (h *GameHandler) scoreboardFor() (*scoreboard.Board, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return nil, fmt.Errorf("%w: start a game first", shared.ErrNoSession)
	}
	if h.board != nil {
		return h.board, nil
	}
	result, err := h.session.Result()
	if err != nil {
		return nil, err
	}
	h.board = scoreboard.New(result)
	return h.board, nil
}

func (h *GameHandler) invalidate(playlistID string) {
	if inv, ok := h.catalog.(Invalidator); ok {
		inv.Invalidate(playlistID)
		h.logger.Debug("playlist cache dropped", "playlist", playlistID)
	}
}

// cue asks the device for the track under the cursor.
func (h *GameHandler) cue(snap game.Snapshot) {
	if h.device == nil || snap.Current == nil {
		return
	}
	h.device.Cue(snap.Current.PlaybackHandle())
}
