// package services implements the HTTP client for the track catalog provider (Spotify)
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"github.com/desertthunder/doowops/internal/models"
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
	IsLocal    bool            `json:"is_local"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for removed tracks and for episodes the API cannot return.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTracksPage represents one limit/offset page of playlist items.
type SpotifyPlaylistTracksPage struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyPlaylist represents the playlist metadata used by the lobby.
type SpotifyPlaylist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyDevice represents an entry of GET /me/player/devices.
type SpotifyDevice struct {
	ID            string `json:"id"`
	IsActive      bool   `json:"is_active"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VolumePercent *int   `json:"volume_percent"`
}

type spotifyDevices struct {
	Devices []SpotifyDevice `json:"devices"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// ToModel converts a provider track into a [models.Track].
func (t SpotifyTrack) ToModel() models.Track {
	track := models.Track{
		ID:         t.ID,
		URI:        t.URI,
		Name:       t.Name,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
		Artists:    make([]string, 0, len(t.Artists)),
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	for _, img := range t.Album.Images {
		track.Images = append(track.Images, models.Image{URL: img.URL, Height: img.Height, Width: img.Width})
	}
	return track
}

// ToModel converts a provider device into a [models.Device].
func (d SpotifyDevice) ToModel() models.Device {
	device := models.Device{ID: d.ID, Name: d.Name, Type: d.Type, IsActive: d.IsActive}
	if d.VolumePercent != nil {
		device.VolumePercent = *d.VolumePercent
	}
	return device
}

// Playable reports whether the playlist item can be offered as a candidate.
func (i SpotifyPlaylistTrack) Playable() bool {
	return i.Track != nil && !i.IsLocal && !i.Track.IsLocal && i.Track.URI != ""
}
