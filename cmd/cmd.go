// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP game server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the game, scoreboard, device and OAuth routes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// playCommand runs a game in the terminal
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play a game in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Playlist id, URL or URI to draw candidates from",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "player1",
				Usage:    "Name of the first player",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "player2",
				Usage:    "Name of the second player",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "rounds",
				Aliases: []string{"r"},
				Usage:   "Number of rounds (defaults to game.rounds)",
			},
			&cli.StringFlag{
				Name:  "go-back",
				Usage: "Final round go-back policy: per_player or per_round",
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "Name of the playback device (skips the device list)",
			},
			&cli.BoolFlag{
				Name:  "silent",
				Usage: "Play without a playback device",
			},
			&cli.StringFlag{
				Name:  "results",
				Usage: "Save the final scoreboard (.csv, .md or .txt)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the terminal UI runs",
				Value: "./tmp/doowops-play.log",
			},
		},
		Action: r.Play,
	}
}

// sampleCommand prints random tracks from a playlist
func sampleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sample",
		Usage: "Print random tracks from a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "playlist",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of tracks to draw",
				Value:   3,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Sample,
	}
}

// devicesCommand lists playback devices
func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List the account's playback devices",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Devices,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file helpers",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: r.ConfigShow,
			},
		},
	}
}
