// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func formatFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, json, csv or markdown",
		Value:   value,
	}
}

func outputFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   usage,
	}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration instead of applying pending ones",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml populated with defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write the configuration file",
						Value: "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// statsCommand computes streaming statistics.
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show listening statistics from recent plays, recommendations and the library",
		Flags: []cli.Flag{
			formatFlag("text"),
			outputFlag("Write the report to a file"),
			&cli.BoolFlag{
				Name:  "no-store",
				Usage: "Skip the record store and use local tallies only",
			},
		},
		Action: r.Stats,
	}
}

// newsCommand handles music news operations.
func newsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "news",
		Usage: "Show music news merged from every configured source",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "genre",
				Aliases: []string{"g"},
				Usage:   "Filter by genre",
			},
			&cli.StringFlag{
				Name:    "search",
				Aliases: []string{"s"},
				Usage:   "Filter by search term",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			formatFlag("text"),
		},
		Action: r.News,
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Check news API availability and remaining quota",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.NewsStatus,
			},
		},
	}
}

// genresCommand lists the genres offered for playlists and news.
func genresCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "genres",
		Usage: "List catalog and news genres",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Genres,
	}
}

// playlistCommand handles playlist generation.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Playlist generation",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate a playlist from seed tracks and an optional genre",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "seed-file",
						Usage: "JSON file holding an array of seed tracks",
					},
					&cli.StringSliceFlag{
						Name:  "seed",
						Usage: "Seed track as id:artist:title (repeatable)",
					},
					&cli.StringFlag{
						Name:    "genre",
						Aliases: []string{"g"},
						Usage:   "Genre used in seed searches and to top up the playlist",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Playlist name (defaults to \"{genre} Mix\")",
					},
					&cli.StringFlag{
						Name:  "mood",
						Usage: "Mood tag: energetic, relaxed, happy, melancholic, focused or party",
					},
					&cli.Uint64Flag{
						Name:  "shuffle-seed",
						Usage: "Seed for a reproducible shuffle",
					},
					formatFlag("text"),
					outputFlag("Write the playlist to a file (csv: base path, markdown: directory)"),
				},
				Action: r.PlaylistGenerate,
			},
			{
				Name:  "weekly",
				Usage: "Build the weekly mix from personal recommendations",
				Flags: []cli.Flag{
					formatFlag("text"),
					outputFlag("Write the playlist to a file (csv: base path, markdown: directory)"),
				},
				Action: r.PlaylistWeekly,
			},
		},
	}
}

// playsCommand handles play records.
func playsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "plays",
		Usage: "Play count records",
		Commands: []*cli.Command{
			{
				Name:  "record",
				Usage: "Record one play of a track",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Track ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Track title",
					},
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Track artist",
					},
					&cli.StringFlag{
						Name:  "album",
						Usage: "Album title",
					},
				},
				Action: r.PlaysRecord,
			},
			{
				Name:  "show",
				Usage: "Show the stored play count for a track",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: r.PlaysShow,
			},
			{
				Name:  "reset",
				Usage: "Delete the play record for a track",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.PlaysReset,
			},
			{
				Name:  "prune",
				Usage: "Delete listening sessions older than a cutoff",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age of the oldest session to keep",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: r.PlaysPrune,
			},
		},
	}
}

// apiCommand handles raw Apple Music API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the Apple Music API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the Apple Music API, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the dashboard HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to [server] host and port)",
			},
		},
		Action: r.Serve,
	}
}
