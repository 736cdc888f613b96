// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the dashboard and API server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard and API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config and PORT)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
					&cli.BoolFlag{
						Name:  "local",
						Usage: "Target the local SQLite store even when a cloud URL is configured",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a starter config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path for the generated config file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// kiteCommand handles broker authentication operations.
func kiteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "kite",
		Usage: "Kite Connect authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Kite Connect using the browser login flow",
				Action: r.KiteLogin,
			},
			{
				Name:   "status",
				Usage:  "Check the stored Kite session",
				Action: r.KiteStatus,
			},
		},
	}
}

// pipelineCommand handles market data pipeline operations.
func pipelineCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pipeline",
		Usage: "Market data pipeline operations",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a pipeline job in the foreground (fetch, features, scoring, sync, all)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "job",
					},
				},
				Action: r.PipelineRun,
			},
			{
				Name:  "status",
				Usage: "Query job states from a running server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Base URL of the running server (default from config)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PipelineStatus,
			},
		},
	}
}

// topCommand prints the current top-scored predictions.
func topCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Show the current top predictions",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of predictions to show",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Top,
	}
}

// tuiCommand returns the top-level TUI command for interactive dashboard browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for predictions and pipeline runs",
		Action:  r.TUI,
	}
}
