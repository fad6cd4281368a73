package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/doowops/internal/models"
)

var (
	_ list.Item = deviceItem{}
)

// deviceItem wraps [models.Device] to implement [list.Item].
type deviceItem struct {
	device models.Device
}

func (i deviceItem) FilterValue() string { return i.device.Name }
func (i deviceItem) Title() string       { return i.device.Name }
func (i deviceItem) Description() string {
	desc := i.device.Type
	if i.device.IsActive {
		desc = fmt.Sprintf("%s • active", desc)
	}
	return desc
}

// scoreRow addresses one pick on the scoreboard.
type scoreRow struct {
	player models.Player
	index  int
	track  models.Track
}

func scoreRows(result models.GameResult) []scoreRow {
	var rows []scoreRow
	for _, p := range models.Players {
		for i, t := range result.Picks[p] {
			rows = append(rows, scoreRow{player: p, index: i, track: t})
		}
	}
	return rows
}
