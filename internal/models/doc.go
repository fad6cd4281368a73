// Package models defines the value types shared by the catalog, game, playback and scoreboard packages.
//
//   - [Track] : an immutable catalog entry offered as a candidate and committed as a pick
//   - [Player] : one of the two seats in a game
//   - [GameResult] : the committed picks of a finished game, consumed by the scoreboard
//   - [Device] and [PlayerState] : what the playback device reports about itself
//
// Values are sourced verbatim from the provider and never mutated by the game engine.
package models
