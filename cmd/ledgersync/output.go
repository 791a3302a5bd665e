package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/ledgersync/client"
	"github.com/urfave/cli/v2"
)

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// cliLogger only reports errors so command output stays readable.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func agentClient(c *cli.Context) *client.AgentClient {
	return client.NewAgentClient(c.String("agent-url"), nil, cliLogger())
}
