package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/doowops/internal/game"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/playback"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgDevicesFetched MsgKind = iota
	MsgCandidatesDrawn
	MsgDeviceStatus
	MsgPlaybackDone
)

type devicesFetched struct {
	devices []models.Device
	err     error
}

type candidatesDrawn struct {
	snap game.Snapshot
	err  error
}

// devicesFetchedMsg is the constructor for [MsgDevicesFetched]
func devicesFetchedMsg(devices []models.Device, err error) Msg {
	return Msg{kind: MsgDevicesFetched, data: devicesFetched{devices, err}}
}

// candidatesDrawnMsg is the constructor for [MsgCandidatesDrawn]
func candidatesDrawnMsg(snap game.Snapshot, err error) Msg {
	return Msg{kind: MsgCandidatesDrawn, data: candidatesDrawn{snap, err}}
}

// deviceStatusMsg is the constructor for [MsgDeviceStatus]
func deviceStatusMsg(status playback.DeviceStatus) Msg {
	return Msg{kind: MsgDeviceStatus, data: status}
}

// playbackDoneMsg is the constructor for [MsgPlaybackDone]; err is nil on success.
func playbackDoneMsg(err error) Msg {
	return Msg{kind: MsgPlaybackDone, data: err}
}
