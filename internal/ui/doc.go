// Package ui implements the terminal game client using bubbletea's Elm architecture.
//
// The TUI walks through three views:
//  1. [DeviceListView] : pick the playback device to hear candidates on (or skip audio)
//  2. [GameView] : browse, pick and pass turns, one candidate card at a time
//  3. [ScoreboardView] : mark the picks that scored and replay them
//
// The [Model] drives a game session directly. Draws and playback controls run as commands so the interface
// never blocks on the network, and device status arrives through a channel fed by the playback controller.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
