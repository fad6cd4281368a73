package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/doowops/internal/shared"
)

const playlistURIPrefix = "spotify:playlist:"

// ParsePlaylistID extracts a playlist id from a bare id, an open.spotify.com playlist link (query string
// ignored) or a spotify:playlist: URI.
func ParsePlaylistID(input string) (string, error) {
	v := strings.TrimSpace(input)
	if v == "" {
		return "", fmt.Errorf("%w: empty playlist", shared.ErrInvalidArgument)
	}

	switch {
	case strings.HasPrefix(v, playlistURIPrefix):
		v = strings.TrimPrefix(v, playlistURIPrefix)
	case strings.Contains(v, "spotify.com/"):
		if !strings.Contains(v, "://") {
			v = "https://" + v
		}
		u, err := url.Parse(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		_, after, ok := strings.Cut(u.Path, "/playlist/")
		if !ok {
			return "", fmt.Errorf("%w: not a playlist link: %s", shared.ErrInvalidArgument, input)
		}
		v, _, _ = strings.Cut(after, "/")
	}

	if !validID(v) {
		return "", fmt.Errorf("%w: malformed playlist id %q", shared.ErrInvalidArgument, v)
	}
	return v, nil
}

// validID accepts the base-62 ids the provider issues.
func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
