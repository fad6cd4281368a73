package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/playback"
	"github.com/desertthunder/doowops/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// DeviceHandler serves the device event socket and the playback control routes.
//
// Each socket connection forwards the browser player's events into the controller and receives the controller's
// status after every change.
type DeviceHandler struct {
	device   DeviceController
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.Mutex
	clients map[chan playback.DeviceStatus]struct{}
}

type seekRequest struct {
	PositionMS int `json:"position_ms"`
}

type volumeRequest struct {
	Percent int `json:"percent"`
}

// NewDeviceHandler creates a [DeviceHandler]. Socket upgrades are accepted from origins, or from any origin when
// origins is empty.
func NewDeviceHandler(device DeviceController, origins []string, logger *log.Logger) *DeviceHandler {
	h := &DeviceHandler{
		device:  device,
		logger:  logger,
		clients: make(map[chan playback.DeviceStatus]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(origins) == 0 || origin == "" {
				return true
			}
			if slices.Contains(origins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

// Register adds the handler's routes to r.
func (h *DeviceHandler) Register(r Router) {
	r.HandleFunc(http.MethodGet, "/ws/device", h.socket)
	r.HandleFunc(http.MethodGet, "/api/device", h.status)
	r.HandleFunc(http.MethodPost, "/api/device/activate", h.activate)
	r.HandleFunc(http.MethodPost, "/api/device/toggle", h.toggle)
	r.HandleFunc(http.MethodPost, "/api/device/seek", h.seek)
	r.HandleFunc(http.MethodPost, "/api/device/volume", h.volume)
}

// Broadcast fans controller updates out to every connected socket. Slow sockets drop updates rather than
// stalling the controller.
func (h *DeviceHandler) Broadcast(ctx context.Context, updates <-chan playback.DeviceStatus) {
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client <- status:
				default:
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *DeviceHandler) subscribe() (chan playback.DeviceStatus, func()) {
	ch := make(chan playback.DeviceStatus, 8)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

func (h *DeviceHandler) socket(w http.ResponseWriter, r *http.Request) {
	if h.device == nil {
		writeError(w, h.logger, fmt.Errorf("%w: no playback controller", shared.ErrDeviceNotReady))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go h.writeLoop(conn, updates, done)
	defer close(done)

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.logger.Info("device socket connected", "remote", r.RemoteAddr)
	for {
		var ev playback.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("device socket closed", "err", err)
			}
			return
		}
		if err := h.device.HandleEvent(ev); err != nil {
			h.logger.Debug("device event rejected", "type", ev.Type, "err", err)
			select {
			case updates <- h.failed(err):
			default:
			}
		}
	}
}

// failed reports a rejected event to its sender alongside the current status.
func (h *DeviceHandler) failed(err error) playback.DeviceStatus {
	status := h.device.Status()
	status.Error = err.Error()
	return status
}

func (h *DeviceHandler) writeLoop(conn *websocket.Conn, updates <-chan playback.DeviceStatus, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(status playback.DeviceStatus) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(status) == nil
	}

	if !write(h.device.Status()) {
		return
	}
	for {
		select {
		case <-done:
			return
		case status := <-updates:
			if !write(status) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *DeviceHandler) status(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.device.Status())
}

// activate retries activation in the background; on success the cued track plays again.
func (h *DeviceHandler) activate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	status := h.device.Status()
	if status.DeviceID == "" {
		writeError(w, h.logger, fmt.Errorf("%w: no device has connected", shared.ErrDeviceNotReady))
		return
	}
	h.device.RequestActivation()
	writeJSON(w, http.StatusAccepted, status)
}

func (h *DeviceHandler) toggle(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.device.TogglePlay(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.device.Status())
}

func (h *DeviceHandler) seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.ready(w) {
		return
	}
	if err := h.device.Seek(r.Context(), req.PositionMS); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.device.Status())
}

func (h *DeviceHandler) volume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.ready(w) {
		return
	}
	if err := h.device.SetVolume(r.Context(), req.Percent); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.device.Status())
}

func (h *DeviceHandler) ready(w http.ResponseWriter) bool {
	if h.device == nil {
		writeError(w, h.logger, fmt.Errorf("%w: no playback controller", shared.ErrDeviceNotReady))
		return false
	}
	return true
}
