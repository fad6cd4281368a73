// Package playback keeps an external playback device in step with the track the game wants audible.
//
// The device is asynchronous and eventually consistent: it announces itself with a ready event, shows up in the
// provider's device list some time later, and only accepts play commands once the provider reports it active.
// [Controller] bridges that gap with two bounded retry loops, activation and play, each driven by a
// [RetryPolicy]. Exhausting a loop is reported as [shared.ErrDeviceNotReady] and surfaces as a not-ready status;
// it never blocks the game.
//
// Inbound device events arrive through [Controller.HandleEvent]. [Controller.Run] hosts an actor that consumes
// activation requests and latest-wins cues so callers never wait on the device.
package playback
