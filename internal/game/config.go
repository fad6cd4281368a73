package game

import (
	"fmt"
	"strings"

	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
)

// Config describes a game to start.
type Config struct {
	PlaylistID string
	Player1    string
	Player2    string
	Rounds     int
	Policy     GoBackPolicy
}

// Normalize trims the player names and playlist id, then validates the result.
func (c Config) Normalize() (Config, error) {
	c.PlaylistID = strings.TrimSpace(c.PlaylistID)
	c.Player1 = strings.TrimSpace(c.Player1)
	c.Player2 = strings.TrimSpace(c.Player2)

	if c.PlaylistID == "" {
		return c, fmt.Errorf("%w: playlist", shared.ErrInvalidArgument)
	}
	if c.Player1 == "" || c.Player2 == "" {
		return c, fmt.Errorf("%w: both player names are required", shared.ErrInvalidArgument)
	}
	if c.Rounds < MinRounds || c.Rounds > MaxRounds {
		return c, fmt.Errorf("%w: rounds must be between %d and %d, got %d", shared.ErrInvalidArgument, MinRounds, MaxRounds, c.Rounds)
	}
	return c, nil
}

// Names maps each seat to its display name.
func (c Config) Names() map[models.Player]string {
	return map[models.Player]string{models.PlayerOne: c.Player1, models.PlayerTwo: c.Player2}
}
