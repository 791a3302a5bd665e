package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ledgersync",
		Usage: "Offline write queue and sync agent CLI",
		Description: `A command-line tool for operating and debugging the ledgersync agent.

Use this CLI to record transactions through the agent, inspect and drain the
offline queue, manage scheduled sweeps, and watch synced events.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			transactionCommands(),
			queueCommands(),
			sessionCommands(),
			// Temporal schedule management commands
			{
				Name:  "temporal",
				Usage: "Temporal schedule management commands",
				Subcommands: []*cli.Command{
					applyScheduleCommand(),
					describeScheduleCommand(),
					deleteScheduleCommand(),
					triggerSyncCommand(),
				},
			},
			// NATS synced-event commands
			{
				Name:  "nats",
				Usage: "NATS synced-event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			devAPICommands(),
			// Agent utility commands
			{
				Name:  "server",
				Usage: "Agent utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "agent-url",
				Usage:   "Sync agent URL",
				EnvVars: []string{"AGENT_URL"},
				Value:   "http://127.0.0.1:8765",
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue the sync worker listens on",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "ledgersync-sync",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
