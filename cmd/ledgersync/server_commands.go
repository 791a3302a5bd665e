package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/ledgersync/client"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check agent health and report its queue",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			agentURL := c.String("agent-url")
			if agentURL == "" {
				return fmt.Errorf("agent-url is required (set AGENT_URL env var or use --agent-url)")
			}

			httpClient := &http.Client{
				Timeout: c.Duration("timeout"),
			}

			resp, err := httpClient.Get(agentURL + "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("agent returned unhealthy status: %d", resp.StatusCode)
			}

			fmt.Fprintf(c.App.Writer, "✓ Agent is healthy (status: %d)\n", resp.StatusCode)
			fmt.Fprintf(c.App.Writer, "  URL: %s\n", agentURL)

			agent := client.NewAgentClient(agentURL, httpClient, cliLogger())
			state, err := agent.Queue(context.Background())
			if err != nil {
				fmt.Fprintf(c.App.Writer, "  Queue: unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "  Queued: %d\n", state.Count)
			if state.LastSyncError != "" {
				fmt.Fprintf(c.App.Writer, "  Last sync error: %s\n", state.LastSyncError)
			}
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "ledgersync CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
