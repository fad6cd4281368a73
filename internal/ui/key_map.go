package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	pick     key.Binding
	advance  key.Binding
	back     key.Binding
	next     key.Binding
	retry    key.Binding
	activate key.Binding
	toggle   key.Binding
	play     key.Binding
	skip     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		pick:     key.NewBinding(key.WithKeys("enter", "p"), key.WithHelp("enter/p", "pick")),
		advance:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "skip")),
		back:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "go back")),
		next:     key.NewBinding(key.WithKeys("n", "tab"), key.WithHelp("n", "next turn")),
		retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry draw")),
		activate: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "reconnect device")),
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		play:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "replay")),
		skip:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "play without device")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.pick, k.advance, k.back, k.next},
		{k.retry, k.activate, k.toggle},
		{k.up, k.down, k.enter, k.play, k.quit},
	}
}
