package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/brojonat/ledgersync/service/queue"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func queueCommands() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect and drain the offline write queue",
		Subcommands: []*cli.Command{
			queueListCommand(),
			queueSyncCommand(),
			queueDropCommand(),
		},
	}
}

func queueListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls", "status"},
		Usage:   "Show queue status and queued writes, oldest first",
		Description: `Show the agent's offline queue.

Items can be filtered with one or more jq expressions evaluated against each
queued write; an item is shown when every filter returns a truthy value.

Example:
  ledgersync queue list --jq '.retry_count >= 3'
  ledgersync queue list --jq '.payload.account_id == "acc-1"' --jq '.last_error != null'`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to each queued write (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			state, err := agentClient(c).Queue(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get queue: %w", err)
			}

			items, err := filterItems(state.Items, filters)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				state.Items = items
				return outputJSON(c.App.Writer, state)
			}

			printQueueStatus(c, state.Status)
			if len(items) == 0 {
				return nil
			}
			fmt.Fprintln(c.App.Writer)
			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tQUEUED\tACCOUNT\tAMOUNT\tRETRIES\tLAST ERROR")
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%d\t%s\n",
					item.ID,
					item.CreatedAt.Format(time.RFC3339),
					item.Payload.AccountID,
					item.Payload.Amount.StringFixed(2),
					item.Payload.Currency,
					item.RetryCount,
					item.LastError,
				)
			}
			return w.Flush()
		},
	}
}

func queueSyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sync sweep now",
		Action: func(c *cli.Context) error {
			res, err := agentClient(c).Sync(context.Background())
			if err != nil {
				return fmt.Errorf("failed to sync: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, res)
			}

			if res.Result.Skipped != "" {
				fmt.Fprintf(c.App.Writer, "Sweep skipped: %s\n", res.Result.Skipped)
			} else {
				fmt.Fprintf(c.App.Writer, "✓ Sweep finished: %d attempted, %d synced, %d failed\n",
					res.Result.Attempted, res.Result.Succeeded, res.Result.Failed)
			}
			printQueueStatus(c, res.Status)
			return nil
		},
	}
}

func queueDropCommand() *cli.Command {
	return &cli.Command{
		Name:      "drop",
		Aliases:   []string{"rm"},
		Usage:     "Discard a queued write without syncing it",
		ArgsUsage: "PENDING_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: pending id")
			}
			id := c.Args().First()

			if err := agentClient(c).Drop(context.Background(), id); err != nil {
				return fmt.Errorf("failed to drop %s: %w", id, err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]string{"id": id, "status": "dropped"})
			}
			fmt.Fprintf(c.App.Writer, "✓ Dropped %s\n", id)
			return nil
		},
	}
}

func printQueueStatus(c *cli.Context, s queue.Status) {
	fmt.Fprintf(c.App.Writer, "Queued:      %d\n", s.Count)
	fmt.Fprintf(c.App.Writer, "Syncing:     %v\n", s.IsSyncing)
	if s.LastSyncAttemptAt != nil {
		fmt.Fprintf(c.App.Writer, "Last sweep:  %s\n", s.LastSyncAttemptAt.Format(time.RFC3339))
	}
	if s.LastSyncError != "" {
		fmt.Fprintf(c.App.Writer, "Last error:  %s\n", s.LastSyncError)
	}
}

// compileFilters parses and compiles jq expressions.
func compileFilters(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// filterItems keeps the items for which every filter is truthy.
func filterItems(items []queue.QueuedWrite, filters []*gojq.Code) ([]queue.QueuedWrite, error) {
	if len(filters) == 0 {
		return items, nil
	}

	var out []queue.QueuedWrite
	for _, item := range items {
		// gojq works on plain JSON values
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode queued write %s: %w", item.ID, err)
		}
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode queued write %s: %w", item.ID, err)
		}

		if matchesAll(filters, v) {
			out = append(out, item)
		}
	}
	return out, nil
}

func matchesAll(filters []*gojq.Code, v interface{}) bool {
	for _, code := range filters {
		iter := code.Run(v)
		res, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := res.(error); isErr {
			return false
		}
		if !isTruthy(res) {
			return false
		}
	}
	return true
}

// isTruthy follows jq semantics: only false and null are falsy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
