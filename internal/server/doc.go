// Package server exposes the game engine over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers method patterns on
// an [http.ServeMux], so path wildcards such as {id} are read with [http.Request.PathValue].
//
// [Middleware] wraps handlers in reverse order (last added executes first). [Logging] and [Recover] wrap every
// route; [CORS] wraps the whole router so preflight requests are answered before method matching.
//
// # Routes
//
//	GET  /auth/login              redirect to the provider (?consent=1 forces the consent dialog)
//	GET  /auth/callback           exchange the code, then hand the token to the frontend
//	GET  /auth/status             {authenticated}
//	GET  /auth/token              {access_token} for the browser playback device
//	GET  /playlist/{id}?count=N   {tracks}: N random tracks (also under /api); refresh=1 re-fetches
//	GET  /api/playlist/{id}/info  {id, name, image}
//	GET  /api/playlists/featured  configured lobby presets
//	POST /api/game                start a game and draw player one's candidates
//	GET  /api/game                current snapshot
//	POST /api/game/draw           retry the candidate draw for this turn
//	POST /api/game/intent         {intent}: pick, advance, back or next
//	GET  /api/game/result         committed picks once the game is complete
//	GET  /api/scoreboard          picks, selections and scores
//	POST /api/scoreboard/toggle   {player, index}
//	POST /api/scoreboard/play     {player, index}: replay a pick on the device
//	GET  /api/scoreboard/export   ?format=csv|md|txt
//	GET  /ws/device               device events in, device status out
//	GET  /api/device              device status
//	POST /api/device/activate     retry activation
//	POST /api/device/toggle|seek|volume
//
// # Errors
//
// Every failure is written as {"error": "..."}. Invalid intents are 409, bad input 400, unknown sessions and
// playlists 404, upstream failures 502 and an unready device 503. Authentication failures that survived the
// token manager's refresh are 500 with "reauthenticate": true.
//
// The sampler routes only answer 400 for malformed input; every other failure, including a missing or empty
// playlist, is a 5xx. A next intent whose follow-up draw fails still answers 200: the turn has moved on and the
// snapshot's error field says why no candidates arrived.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the one-shot callback of the command-line sign-in flow: a temporary server handles a
// single callback, validates the state, exchanges the code and reports the outcome through a channel.
package server
