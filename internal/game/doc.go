// Package game implements the two-player round/turn state machine.
//
// # Turns and Rounds
//
// Each round gives both players one turn. A turn starts in [AwaitingCandidates]; [Session.Draw] fetches 3
// candidates (5 in the final round) and moves to [Browsing] with the cursor on the first candidate. From there the
// four intents apply:
//   - pick commits the candidate under the cursor, once per player per round ([Committed])
//   - advance moves the cursor forward, before or after a pick
//   - back moves the cursor backward (see below)
//   - next ends the turn; after player two it ends the round, and after the final round the game ([GameComplete])
//
// # Go-back
//
// In ordinary rounds go-back is only available after the player has picked, and is unlimited. In the final round
// it is available before or after picking but only once, tracked per player ([PerPlayer]) or shared by both
// players ([PerRound]).
//
// Every intent is applied under one lock and either fully commits or returns an error wrapping
// [shared.ErrInvalidIntent] with the state unchanged.
package game
