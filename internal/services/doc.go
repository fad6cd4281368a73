// Package services implements the client for the track catalog provider (Spotify) and the token lifecycle that
// every provider call goes through.
//
// # Token Lifecycle
//
// [TokenManager] holds the single access/refresh token pair of the process. It is populated by the
// authorization-code exchange and mutated in place by refreshes. A refresh without a stored refresh token fails
// with [shared.ErrNoRefreshToken] and never reaches the network.
//
// [TokenManager.Do] wraps a provider call: a [shared.ErrUnauthorized] result triggers exactly one refresh and
// exactly one retry. Concurrent callers that observe the same rejected token share a single in-flight refresh
// ([golang.org/x/sync/singleflight]).
//
// # Spotify Implementation
//
// [SpotifyService] talks to the Web API directly over net/http:
//   - playlist items are fetched with limit/offset pages until an empty page, throttled by a [rate.Limiter]
//   - removed and local-file playlist items are skipped
//   - device endpoints (list, transfer, play, pause, seek, volume) back the playback controller
//
// # Error Handling
//
// Provider responses are mapped onto the shared taxonomy:
//   - [shared.ErrUnauthorized] : 401, recovered once by the token manager
//   - [shared.ErrAuthExpired] : 401 after refresh, or a failed refresh; the user must re-authenticate
//   - [shared.ErrForbidden] : 403
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrUpstreamUnavailable] : network failure, 429 or 5xx
package services
