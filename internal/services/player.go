package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
)

// Devices lists the playback devices visible to the authenticated user.
func (s *SpotifyService) Devices(ctx context.Context) ([]models.Device, error) {
	var response spotifyDevices
	if err := s.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, &response); err != nil {
		return nil, err
	}

	devices := make([]models.Device, 0, len(response.Devices))
	for _, d := range response.Devices {
		devices = append(devices, d.ToModel())
	}
	return devices, nil
}

// TransferPlayback moves playback to deviceID. play starts playback on the new device.
func (s *SpotifyService) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id", shared.ErrMissingArgument)
	}
	body := map[string]any{"device_ids": []string{deviceID}, "play": play}
	return s.doRequest(ctx, http.MethodPut, "/me/player", body, nil)
}

// Play starts the given track URIs on deviceID.
func (s *SpotifyService) Play(ctx context.Context, deviceID string, uris ...string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: track uri", shared.ErrMissingArgument)
	}
	body := map[string]any{"uris": uris}
	return s.doRequest(ctx, http.MethodPut, "/me/player/play"+deviceQuery(deviceID, nil), body, nil)
}

// Resume continues the current playback on deviceID.
func (s *SpotifyService) Resume(ctx context.Context, deviceID string) error {
	return s.doRequest(ctx, http.MethodPut, "/me/player/play"+deviceQuery(deviceID, nil), nil, nil)
}

// Pause pauses playback on deviceID.
func (s *SpotifyService) Pause(ctx context.Context, deviceID string) error {
	return s.doRequest(ctx, http.MethodPut, "/me/player/pause"+deviceQuery(deviceID, nil), nil, nil)
}

// Seek moves the playback position of deviceID to positionMS.
func (s *SpotifyService) Seek(ctx context.Context, deviceID string, positionMS int) error {
	if positionMS < 0 {
		return fmt.Errorf("%w: position %d", shared.ErrInvalidArgument, positionMS)
	}
	q := url.Values{"position_ms": {fmt.Sprint(positionMS)}}
	return s.doRequest(ctx, http.MethodPut, "/me/player/seek"+deviceQuery(deviceID, q), nil, nil)
}

// SetVolume sets the volume of deviceID, in percent.
func (s *SpotifyService) SetVolume(ctx context.Context, deviceID string, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume %d", shared.ErrInvalidArgument, percent)
	}
	q := url.Values{"volume_percent": {fmt.Sprint(percent)}}
	return s.doRequest(ctx, http.MethodPut, "/me/player/volume"+deviceQuery(deviceID, q), nil, nil)
}

func deviceQuery(deviceID string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if deviceID != "" {
		q.Set("device_id", deviceID)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
