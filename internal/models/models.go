package models

import (
	"fmt"
	"strings"
	"time"
)

// Image is a cover image reference.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// Track represents a catalog track. The URI doubles as the playback handle.
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	Images     []Image  `json:"images,omitempty"`
	DurationMS int      `json:"duration_ms,omitempty"`
}

// PlaybackHandle returns the opaque handle a device needs to play this track.
func (t Track) PlaybackHandle() string {
	return t.URI
}

// ArtistLine joins the artist names for display.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// Cover returns the preferred cover image URL, or an empty string.
func (t Track) Cover() string {
	if len(t.Images) == 0 {
		return ""
	}
	return t.Images[0].URL
}

// Player identifies one of the two seats in a game.
type Player int

const (
	PlayerOne Player = 1
	PlayerTwo Player = 2
)

// Players lists both seats in turn order.
var Players = []Player{PlayerOne, PlayerTwo}

// Valid reports whether p is a seat in the game.
func (p Player) Valid() bool {
	return p == PlayerOne || p == PlayerTwo
}

// Other returns the opposing seat.
func (p Player) Other() Player {
	if p == PlayerOne {
		return PlayerTwo
	}
	return PlayerOne
}

func (p Player) String() string {
	return fmt.Sprintf("player%d", int(p))
}

// GameResult holds each player's committed picks in commit order, one per completed round.
type GameResult struct {
	Names map[Player]string  `json:"names"`
	Picks map[Player][]Track `json:"picks"`
}

// Device is an entry in the provider's device list.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent int    `json:"volume_percent"`
}

// PlayerState is the last "state changed" report from the playback device.
type PlayerState struct {
	Paused     bool      `json:"paused"`
	PositionMS int       `json:"position_ms"`
	DurationMS int       `json:"duration_ms"`
	UpdatedAt  time.Time `json:"updated_at"`
}
