// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/libbyreads/internal/formatter"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

// setupCommand handles first-run initialization
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml populated with defaults",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the shelf cache and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "status",
						Usage: "List migrations and whether they are applied",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// shelfCommand handles importing and managing cached shelves
func shelfCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "shelf",
		Usage: "Import and manage cached Goodreads shelves",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import a shelf into the local cache",
				Commands: []*cli.Command{
					{
						Name:  "goodreads",
						Usage: "Scrape a public Goodreads shelf",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "user",
								Aliases: []string{"u"},
								Usage:   "Goodreads user id (defaults to goodreads.user_id)",
							},
							&cli.StringFlag{
								Name:    "shelf",
								Aliases: []string{"s"},
								Usage:   "Goodreads shelf (defaults to goodreads.shelf)",
							},
							&cli.StringFlag{
								Name:    "name",
								Aliases: []string{"n"},
								Usage:   "Name to cache the shelf under (defaults to the shelf)",
							},
							&cli.IntFlag{
								Name:  "max-pages",
								Usage: "Stop after this many pages; 0 reads them all",
								Value: -1,
							},
						},
						Action: r.ImportGoodreads,
					},
					{
						Name:      "csv",
						Usage:     "Read a Goodreads library export",
						ArgsUsage: "<path>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "shelf",
								Aliases: []string{"s"},
								Usage:   "Only keep books on this shelf; empty keeps every row",
								Value:   "to-read",
							},
							&cli.StringFlag{
								Name:    "name",
								Aliases: []string{"n"},
								Usage:   "Name to cache the shelf under (defaults to the shelf)",
							},
						},
						Action: r.ImportCSV,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List cached shelves",
				Flags:  jsonFlags(),
				Action: r.ListShelves,
			},
			{
				Name:      "show",
				Usage:     "Show the books of a cached shelf",
				ArgsUsage: "<name>",
				Flags:     jsonFlags(),
				Action:    r.ShowShelf,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Remove a cached shelf",
				ArgsUsage: "<name>",
				Action:    r.DeleteShelf,
			},
		},
	}
}

// targetsCommand lists configured libraries
func targetsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "targets",
		Usage: "Configured library targets",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the libraries checked by default",
				Flags:  jsonFlags(),
				Action: r.ListTargets,
			},
		},
	}
}

// checkCommand resolves availability for a shelf or a single book
func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Check library availability for a shelf or a single book",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "shelf",
				Aliases: []string{"s"},
				Usage:   "Cached shelf to check",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Check a Goodreads export directly, without caching it",
			},
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Title of a single book to check",
			},
			&cli.StringFlag{
				Name:    "author",
				Aliases: []string{"a"},
				Usage:   "Author of the single book",
			},
			&cli.StringFlag{
				Name:  "isbn",
				Usage: "ISBN-10 or ISBN-13 of the single book",
			},
			&cli.StringSliceFlag{
				Name:  "target",
				Usage: "Library target id to check (repeatable; defaults to all)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: " + formatNames(),
				Value:   string(formatter.FormatText),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Deadline for the whole check (defaults to engine.run_timeout)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Lookups in flight (defaults to engine.concurrency)",
			},
			&cli.BoolFlag{
				Name:  "color",
				Usage: "Style text output with colors even when stdout is not a terminal",
			},
		},
		Action: r.Check,
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the availability API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to bind (defaults to server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (defaults to server.port)",
			},
			&cli.IntFlag{
				Name:  "max-books",
				Usage: "Largest shelf accepted per request",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand launches the interactive interface
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Browse cached shelves and check them interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "shelf",
				Aliases: []string{"s"},
				Usage:   "Check this shelf immediately",
			},
		},
		Action: r.TUI,
	}
}

func formatNames() string {
	out := ""
	for i, f := range formatter.Formats {
		if i > 0 {
			out += ", "
		}
		out += string(f)
	}
	return out
}
