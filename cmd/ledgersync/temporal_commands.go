package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/ledgersync/service/temporal"
	"github.com/urfave/cli/v2"
)

func deviceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "device",
		Usage:    "Device id the schedule belongs to",
		EnvVars:  []string{"DEVICE_ID"},
		Required: true,
	}
}

func applyScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "apply-schedule",
		Usage: "Create, update or remove a device's scheduled sync sweep",
		Description: `Make the device's Temporal schedule match the given interval.

An interval of 0 removes the schedule.

Example:
  ledgersync temporal apply-schedule --device laptop-1 --interval 5m`,
		Flags: []cli.Flag{
			deviceFlag(),
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Time between scheduled sweeps (0 disables)",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			device := c.String("device")
			interval := c.Duration("interval")
			if err := temporal.ApplySyncSchedule(context.Background(), temporalClient, device, interval, cliLogger()); err != nil {
				return err
			}

			if interval <= 0 {
				fmt.Fprintf(c.App.Writer, "✓ Scheduled sweeps disabled for %s\n", device)
			} else {
				fmt.Fprintf(c.App.Writer, "✓ %s sweeps every %s\n", device, interval)
			}
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:    "describe-schedule",
		Usage:   "Describe a device's sync schedule",
		Aliases: []string{"desc"},
		Flags:   []cli.Flag{deviceFlag()},
		Action: func(c *cli.Context) error {
			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			info, err := temporalClient.DescribeSyncSchedule(context.Background(), c.String("device"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, info)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Schedule ID:    %s\n", info.ID)
			fmt.Fprintf(w, "State Note:     %s\n", info.Note)
			fmt.Fprintf(w, "Paused:         %v\n", info.Paused)
			fmt.Fprintf(w, "Task Queue:     %s\n", info.TaskQueue)
			for i, every := range info.Intervals {
				fmt.Fprintf(w, "Interval %d:     Every %v\n", i+1, every)
			}
			fmt.Fprintf(w, "\nRecent Actions: %d\n", info.RecentActions)
			if info.LastActionAt != nil {
				fmt.Fprintf(w, "Last Action:    %s\n", info.LastActionAt.Format(time.RFC3339))
			}
			if info.NextActionAt != nil {
				fmt.Fprintf(w, "Next Action:    %s\n", info.NextActionAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-schedule",
		Usage: "Delete a device's sync schedule",
		Flags: []cli.Flag{deviceFlag()},
		Action: func(c *cli.Context) error {
			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			device := c.String("device")
			if err := temporalClient.DeleteSyncSchedule(context.Background(), device); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Schedule deleted for %s\n", device)
			return nil
		},
	}
}

func triggerSyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "trigger-sync",
		Usage: "Run a device's scheduled sweep now",
		Flags: []cli.Flag{deviceFlag()},
		Action: func(c *cli.Context) error {
			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			device := c.String("device")
			if err := temporalClient.TriggerSync(context.Background(), device); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Sweep triggered for %s\n", device)
			return nil
		},
	}
}

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		cliLogger(),
	)
}
