package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/doowops/internal/models"
)

// FakeSpotify is an in-process stand-in for the Spotify accounts and Web API endpoints.
//
// The token endpoint is served at /token and the Web API under /v1.
type FakeSpotify struct {
	Server *httptest.Server

	mu           sync.Mutex
	access       string
	refresh      string
	omitRefresh  bool
	issued       int
	refreshes    int
	reject       int
	failStatus   int
	ignoreXfer   bool
	tokenGate    chan struct{}
	tokenEntered chan struct{}
	playlists    map[string]fakePlaylist
	devices      []models.Device
	pageRequests int
	transfers    []string
	plays        []string
	requests     []string
}

type fakePlaylist struct {
	name  string
	items []any
}

// ValidCode is the only authorization code the fake accepts.
const ValidCode = "valid-code"

// NewFakeSpotify starts the fake server. It is closed when the test ends.
func NewFakeSpotify(t interface{ Cleanup(func()) }) *FakeSpotify {
	f := &FakeSpotify{
		access:    "access-0",
		refresh:   "refresh-0",
		playlists: map[string]fakePlaylist{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", f.handleToken)
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", f.authed(f.handleTracks))
	mux.HandleFunc("GET /v1/playlists/{id}", f.authed(f.handlePlaylist))
	mux.HandleFunc("GET /v1/me/player/devices", f.authed(f.handleDevices))
	mux.HandleFunc("PUT /v1/me/player", f.authed(f.handleTransfer))
	mux.HandleFunc("PUT /v1/me/player/play", f.authed(f.handlePlay))
	mux.HandleFunc("PUT /v1/me/player/pause", f.authed(f.noContent))
	mux.HandleFunc("PUT /v1/me/player/seek", f.authed(f.noContent))
	mux.HandleFunc("PUT /v1/me/player/volume", f.authed(f.noContent))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the Web API base URL.
func (f *FakeSpotify) URL() string { return f.Server.URL + "/v1" }

// TokenURL is the token endpoint URL.
func (f *FakeSpotify) TokenURL() string { return f.Server.URL + "/token" }

// AuthURL is a placeholder authorize URL.
func (f *FakeSpotify) AuthURL() string { return f.Server.URL + "/authorize" }

// Tokens returns the currently valid access and refresh token.
func (f *FakeSpotify) Tokens() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access, f.refresh
}

// Expire invalidates the current access token as if it had timed out.
func (f *FakeSpotify) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = "expired-" + f.access
}

// RejectNext answers the next n API requests with 401 regardless of the token.
func (f *FakeSpotify) RejectNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject = n
}

// FailWith answers every API request with status. Zero clears it.
func (f *FakeSpotify) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// OmitRefreshToken makes token responses leave out refresh_token.
func (f *FakeSpotify) OmitRefreshToken(omit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitRefresh = omit
}

// IgnoreTransfers makes transfer-playback succeed without activating the device.
func (f *FakeSpotify) IgnoreTransfers(ignore bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ignoreXfer = ignore
}

// AddPlaylist registers a playlist with the given playable tracks.
func (f *FakeSpotify) AddPlaylist(id, name string, tracks []models.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.playlists[id]
	p.name = name
	for _, t := range tracks {
		p.items = append(p.items, trackItem(t, false))
	}
	f.playlists[id] = p
}

// AddUnplayable appends a removed (null) item and a local-file item to a playlist.
func (f *FakeSpotify) AddUnplayable(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.playlists[id]
	local := models.Track{ID: "", URI: "spotify:local:artist:album:song:180", Name: "Local Song"}
	p.items = append(p.items, map[string]any{"added_at": "", "track": nil}, trackItem(local, true))
	f.playlists[id] = p
}

// SetDevices replaces the device list.
func (f *FakeSpotify) SetDevices(devices ...models.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
}

// Refreshes counts refresh-token grants.
func (f *FakeSpotify) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// PageRequests counts playlist item page requests, including rejected ones.
func (f *FakeSpotify) PageRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageRequests
}

// Plays lists the "device|uri" pairs of accepted play commands.
func (f *FakeSpotify) Plays() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.plays...)
}

// Transfers lists the device ids of accepted transfer commands.
func (f *FakeSpotify) Transfers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.transfers...)
}

// Requests lists "METHOD path?query" of every API request received.
func (f *FakeSpotify) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeSpotify) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
		if strings.HasSuffix(r.URL.Path, "/tracks") {
			f.pageRequests++
		}
		rejected := f.reject > 0 || r.Header.Get("Authorization") != "Bearer "+f.access
		if f.reject > 0 {
			f.reject--
		}
		status := f.failStatus
		f.mu.Unlock()

		if rejected {
			writeError(w, http.StatusUnauthorized, "The access token expired")
			return
		}
		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next(w, r)
	}
}

// HoldTokens makes the token endpoint wait until release is called. entered receives once per held request.
func (f *FakeSpotify) HoldTokens() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.tokenGate = gate
	f.tokenEntered = make(chan struct{}, 16)
	var once sync.Once
	return f.tokenEntered, func() {
		once.Do(func() { close(gate) })
	}
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f.mu.Lock()
	gate, entered := f.tokenGate, f.tokenEntered
	f.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != ValidCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != f.refresh {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.refreshes++
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	f.issued++
	f.access = fmt.Sprintf("access-%d", f.issued)
	body := map[string]any{
		"access_token": f.access,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !f.omitRefresh {
		f.refresh = fmt.Sprintf("refresh-%d", f.issued)
		body["refresh_token"] = f.refresh
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeSpotify) handleTracks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	p, ok := f.playlists[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 100
	}

	items := []any{}
	if offset < len(p.items) {
		end := min(offset+limit, len(p.items))
		items = p.items[offset:end]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  len(p.items),
		"limit":  limit,
		"offset": offset,
	})
}

func (f *FakeSpotify) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	p, ok := f.playlists[id]
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"name":   p.name,
		"uri":    "spotify:playlist:" + id,
		"images": []map[string]any{{"url": "https://img.example/" + id + ".jpg", "height": 300, "width": 300}},
	})
}

func (f *FakeSpotify) handleDevices(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	devices := make([]map[string]any, 0, len(f.devices))
	for _, d := range f.devices {
		devices = append(devices, map[string]any{
			"id":             d.ID,
			"name":           d.Name,
			"type":           d.Type,
			"is_active":      d.IsActive,
			"volume_percent": d.VolumePercent,
		})
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (f *FakeSpotify) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceIDs []string `json:"device_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.DeviceIDs) == 0 {
		writeError(w, http.StatusBadRequest, "Missing device_ids")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, body.DeviceIDs[0])
	if !f.ignoreXfer {
		for i := range f.devices {
			f.devices[i].IsActive = f.devices[i].ID == body.DeviceIDs[0]
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeSpotify) handlePlay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URIs []string `json:"uris"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uri := range body.URIs {
		f.plays = append(f.plays, r.URL.Query().Get("device_id")+"|"+uri)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeSpotify) noContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func trackItem(t models.Track, local bool) map[string]any {
	artists := make([]map[string]any, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, map[string]any{"name": a})
	}
	images := make([]map[string]any, 0, len(t.Images))
	for _, img := range t.Images {
		images = append(images, map[string]any{"url": img.URL, "height": img.Height, "width": img.Width})
	}
	return map[string]any{
		"added_at": "2024-01-01T00:00:00Z",
		"is_local": local,
		"track": map[string]any{
			"id":          t.ID,
			"uri":         t.URI,
			"name":        t.Name,
			"duration_ms": t.DurationMS,
			"is_local":    local,
			"artists":     artists,
			"album":       map[string]any{"name": t.Album, "images": images},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": msg}})
}
