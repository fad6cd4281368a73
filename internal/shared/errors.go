package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrUnauthenticated = fmt.Errorf("not authenticated")
	ErrUnauthorized    = fmt.Errorf("unauthorized")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrAuthExpired     = fmt.Errorf("authorization expired, must re-authenticate")
	ErrExchangeFailed  = fmt.Errorf("authorization code exchange failed")
	ErrRefreshFailed   = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken  = fmt.Errorf("no refresh token available")
	ErrInvalidState    = fmt.Errorf("invalid oauth state")
	ErrTimeout         = fmt.Errorf("timed out")

	// Upstream and device errors
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrNotFound            = fmt.Errorf("resource not found")
	ErrPlaylistNotFound    = fmt.Errorf("playlist not found")
	ErrDeviceNotReady      = fmt.Errorf("playback device not ready")

	// Game errors
	ErrInvalidIntent = fmt.Errorf("invalid intent")
	ErrDrawInFlight  = fmt.Errorf("candidate draw already in progress")
	ErrNoCandidates  = fmt.Errorf("no candidate tracks available")
	ErrNoSession     = fmt.Errorf("no active game session")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
