package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
	"github.com/jonboulle/clockwork"
)

// DeviceAPI is the subset of the catalog provider the controller drives.
type DeviceAPI interface {
	Devices(ctx context.Context) ([]models.Device, error)
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	Play(ctx context.Context, deviceID string, uris ...string) error
	Pause(ctx context.Context, deviceID string) error
	Resume(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, deviceID string, positionMS int) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
}

// ControllerOpts configures a [Controller]. Zero values select the defaults.
type ControllerOpts struct {
	Clock      clockwork.Clock
	Activation RetryPolicy
	Play       RetryPolicy
	Logger     *log.Logger
	// Updates receives the device status after every change. Sends never block.
	Updates chan<- DeviceStatus
}

// DeviceStatus is the view of the controller handed to presentation layers.
type DeviceStatus struct {
	Status     Status             `json:"status"`
	DeviceID   string             `json:"device_id,omitempty"`
	State      models.PlayerState `json:"state"`
	LastPlayed string             `json:"last_played,omitempty"`
	Cued       string             `json:"cued,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Controller keeps the playback device in step with the track that should be audible.
//
// The retry loops run on the caller's goroutine; [Controller.Run] hosts them on a dedicated goroutine fed by
// [Controller.Cue] and [Controller.RequestActivation] so the game never waits on the device.
type Controller struct {
	api        DeviceAPI
	clock      clockwork.Clock
	activation RetryPolicy
	play       RetryPolicy
	logger     *log.Logger
	updates    chan<- DeviceStatus

	mu         sync.Mutex
	status     Status
	deviceID   string
	lastPlayed string
	state      models.PlayerState
	lastErr    string
	cued       string

	pendingCue      string
	pendingActivate bool
	wake            chan struct{}
}

// NewController creates a controller for api.
func NewController(api DeviceAPI, opts ControllerOpts) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Activation.MaxAttempts <= 0 {
		opts.Activation = DefaultActivationPolicy()
	}
	if opts.Play.MaxAttempts <= 0 {
		opts.Play = DefaultPlayPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Controller{
		api:        api,
		clock:      opts.Clock,
		activation: opts.Activation,
		play:       opts.Play,
		logger:     shared.WithLogger(opts.Logger, "component", "playback"),
		updates:    opts.Updates,
		wake:       make(chan struct{}, 1),
	}
}

// Status returns the current device status.
func (c *Controller) Status() DeviceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// SetDevice targets deviceID, for devices that do not report through [Controller.HandleEvent].
func (c *Controller) SetDevice(deviceID string) {
	c.mu.Lock()
	if deviceID != c.deviceID {
		c.lastPlayed = ""
	}
	c.deviceID = deviceID
	c.status = Activating
	c.mu.Unlock()
	c.publish()
}

// HandleEvent applies one inbound device event. A ready event targets the device and schedules its activation.
// State changes are recorded even when no activation has succeeded.
func (c *Controller) HandleEvent(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	switch ev.Type {
	case EventReady:
		c.logger.Info("device ready", "device", shared.ShortID(ev.DeviceID))
		c.SetDevice(ev.DeviceID)
		c.RequestActivation()
		return nil
	case EventNotReady:
		c.mu.Lock()
		if ev.DeviceID == c.deviceID {
			c.status = NotReady
			c.lastErr = "device went offline"
		}
		c.mu.Unlock()
		c.logger.Warn("device not ready", "device", shared.ShortID(ev.DeviceID))
	case EventStateChanged:
		c.mu.Lock()
		c.state = models.PlayerState{
			Paused:     ev.Paused,
			PositionMS: ev.PositionMS,
			DurationMS: ev.DurationMS,
			UpdatedAt:  c.clock.Now(),
		}
		c.mu.Unlock()
	}
	c.publish()
	return nil
}

// Activate runs the activation protocol against the targeted device.
//
// Each attempt polls the device list: an absent device waits and retries, an active device succeeds, and an
// inactive device gets a transfer command followed by one confirming poll. Authorization failures abort
// immediately. Exhausting the attempts fails with [shared.ErrDeviceNotReady].
func (c *Controller) Activate(ctx context.Context) error {
	deviceID := c.device()
	if deviceID == "" {
		return fmt.Errorf("%w: no device registered", shared.ErrDeviceNotReady)
	}

	c.setStatus(Activating, "")
	err := c.activate(ctx, deviceID)

	c.mu.Lock()
	if c.deviceID == deviceID {
		if err != nil {
			c.status = NotReady
			c.lastErr = err.Error()
		} else {
			c.status = Ready
			c.lastErr = ""
			c.lastPlayed = ""
		}
	}
	c.mu.Unlock()
	c.publish()
	return err
}

func (c *Controller) activate(ctx context.Context, deviceID string) error {
	p := c.activation
	for attempt := range p.MaxAttempts {
		c.logger.Debug("activation attempt", "attempt", attempt+1, "of", p.MaxAttempts, "device", shared.ShortID(deviceID))

		device, found, err := c.find(ctx, deviceID)
		switch {
		case err != nil && terminal(err):
			c.logger.Error("activation aborted", "err", err)
			return err
		case err != nil:
			c.logger.Warn("device list failed", "attempt", attempt+1, "err", err)
		case !found:
			c.logger.Debug("device not listed yet", "attempt", attempt+1)
		case device.IsActive:
			c.logger.Info("device active", "device", shared.ShortID(deviceID), "attempts", attempt+1)
			return nil
		default:
			if err := c.api.TransferPlayback(ctx, deviceID, false); err != nil {
				if terminal(err) {
					return err
				}
				c.logger.Warn("transfer failed", "attempt", attempt+1, "err", err)
				break
			}
			if err := sleep(ctx, c.clock, p.ConfirmDelay); err != nil {
				return err
			}
			if device, found, err := c.find(ctx, deviceID); err == nil && found && device.IsActive {
				c.logger.Info("device activated by transfer", "device", shared.ShortID(deviceID), "attempts", attempt+1)
				return nil
			}
		}

		if attempt < p.MaxAttempts-1 {
			if err := sleep(ctx, c.clock, p.wait(attempt)); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: not active after %d attempts", shared.ErrDeviceNotReady, p.MaxAttempts)
}

// Play starts uri on the targeted device. A (track, device) pair that was already started successfully is
// skipped. Each attempt issues the play command only if the device is listed as active; exhausting the attempts
// fails with [shared.ErrDeviceNotReady].
func (c *Controller) Play(ctx context.Context, uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: track uri", shared.ErrMissingArgument)
	}

	c.mu.Lock()
	deviceID := c.deviceID
	c.cued = uri
	key := playKey(uri, deviceID)
	duplicate := deviceID != "" && c.lastPlayed == key
	c.mu.Unlock()

	if deviceID == "" {
		return fmt.Errorf("%w: no device registered", shared.ErrDeviceNotReady)
	}
	if duplicate {
		c.logger.Debug("track already playing, skipping", "uri", uri)
		return nil
	}

	err := c.playOn(ctx, deviceID, uri)

	c.mu.Lock()
	if err == nil {
		c.lastPlayed = key
		c.lastErr = ""
	} else {
		c.lastErr = err.Error()
	}
	c.mu.Unlock()
	c.publish()
	return err
}

func (c *Controller) playOn(ctx context.Context, deviceID, uri string) error {
	p := c.play
	for attempt := range p.MaxAttempts {
		device, found, err := c.find(ctx, deviceID)
		switch {
		case err != nil && terminal(err):
			return err
		case err != nil:
			c.logger.Warn("device list failed", "attempt", attempt+1, "err", err)
		case !found || !device.IsActive:
			c.logger.Debug("device not active", "attempt", attempt+1)
		default:
			err := c.api.Play(ctx, deviceID, uri)
			if err == nil {
				c.logger.Info("playing", "uri", uri, "device", shared.ShortID(deviceID), "attempts", attempt+1)
				return nil
			}
			if terminal(err) {
				return err
			}
			c.logger.Warn("play failed", "attempt", attempt+1, "err", err)
		}

		if attempt < p.MaxAttempts-1 {
			if err := sleep(ctx, c.clock, p.wait(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: could not start playback after %d attempts", shared.ErrDeviceNotReady, p.MaxAttempts)
}

// TogglePlay pauses a playing device or resumes a paused one, based on the last reported state.
func (c *Controller) TogglePlay(ctx context.Context) error {
	c.mu.Lock()
	deviceID, paused := c.deviceID, c.state.Paused
	c.mu.Unlock()

	if deviceID == "" {
		return fmt.Errorf("%w: no device registered", shared.ErrDeviceNotReady)
	}
	if paused {
		return c.api.Resume(ctx, deviceID)
	}
	return c.api.Pause(ctx, deviceID)
}

// Seek moves the playback position of the targeted device.
func (c *Controller) Seek(ctx context.Context, positionMS int) error {
	deviceID := c.device()
	if deviceID == "" {
		return fmt.Errorf("%w: no device registered", shared.ErrDeviceNotReady)
	}
	return c.api.Seek(ctx, deviceID, positionMS)
}

// SetVolume sets the volume of the targeted device, in percent.
func (c *Controller) SetVolume(ctx context.Context, percent int) error {
	deviceID := c.device()
	if deviceID == "" {
		return fmt.Errorf("%w: no device registered", shared.ErrDeviceNotReady)
	}
	return c.api.SetVolume(ctx, deviceID, percent)
}

// Cue asks [Controller.Run] to play uri. Only the latest cue is kept; the call never blocks.
func (c *Controller) Cue(uri string) {
	if uri == "" {
		return
	}
	c.mu.Lock()
	c.pendingCue = uri
	c.cued = uri
	c.mu.Unlock()
	c.signal()
	c.publish()
}

// RequestActivation asks [Controller.Run] to (re)activate the device and then play the cued track.
func (c *Controller) RequestActivation() {
	c.mu.Lock()
	c.pendingActivate = true
	c.mu.Unlock()
	c.signal()
}

// Run processes cues and activation requests until ctx is done. Failures are recorded in the status rather
// than returned.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
			c.drain(ctx)
		}
	}
}

func (c *Controller) drain(ctx context.Context) {
	for ctx.Err() == nil {
		c.mu.Lock()
		activate, uri := c.pendingActivate, c.pendingCue
		c.pendingActivate, c.pendingCue = false, ""
		status, cued := c.status, c.cued
		c.mu.Unlock()

		switch {
		case activate:
			if err := c.Activate(ctx); err != nil {
				c.logger.Warn("activation failed", "err", err)
				continue
			}
			if uri == "" {
				uri = cued
			}
			if uri != "" {
				c.playCued(ctx, uri)
			}
		case uri != "" && status == Ready:
			c.playCued(ctx, uri)
		case uri != "":
			c.logger.Debug("device not ready, holding cue", "uri", uri, "status", status)
		default:
			return
		}
	}
}

func (c *Controller) playCued(ctx context.Context, uri string) {
	// a newer cue supersedes this one
	c.mu.Lock()
	if c.pendingCue != "" {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.Play(ctx, uri); err != nil {
		c.logger.Warn("cued playback failed", "uri", uri, "err", err)
	}
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) find(ctx context.Context, deviceID string) (models.Device, bool, error) {
	devices, err := c.api.Devices(ctx)
	if err != nil {
		return models.Device{}, false, err
	}
	for _, d := range devices {
		if d.ID == deviceID {
			return d, true, nil
		}
	}
	return models.Device{}, false, nil
}

func (c *Controller) device() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

func (c *Controller) setStatus(status Status, errMsg string) {
	c.mu.Lock()
	c.status = status
	c.lastErr = errMsg
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) statusLocked() DeviceStatus {
	status := DeviceStatus{
		Status:   c.status,
		DeviceID: c.deviceID,
		State:    c.state,
		Cued:     c.cued,
		Error:    c.lastErr,
	}
	if uri, _, ok := cutKey(c.lastPlayed); ok {
		status.LastPlayed = uri
	}
	return status
}

func (c *Controller) publish() {
	if c.updates == nil {
		return
	}
	status := c.Status()
	select {
	case c.updates <- status:
	default:
	}
}

// terminal reports errors that retrying cannot fix: the token is gone or the account lacks the scope or tier.
func terminal(err error) bool {
	return errors.Is(err, shared.ErrAuthExpired) ||
		errors.Is(err, shared.ErrUnauthenticated) ||
		errors.Is(err, shared.ErrUnauthorized) ||
		errors.Is(err, shared.ErrForbidden) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func playKey(uri, deviceID string) string {
	return uri + "|" + deviceID
}

func cutKey(key string) (uri, deviceID string, ok bool) {
	return strings.Cut(key, "|")
}
