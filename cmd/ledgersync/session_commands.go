package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/ledgersync/service/session"
	"github.com/urfave/cli/v2"
)

func sessionCommands() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Sign the agent in and out",
		Subcommands: []*cli.Command{
			{
				Name:      "login",
				Usage:     "Give the agent a bearer token for the remote API",
				ArgsUsage: "TOKEN",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("requires exactly one argument: token")
					}
					userID, err := agentClient(c).SignIn(context.Background(), c.Args().First())
					if err != nil {
						return fmt.Errorf("failed to sign in: %w", err)
					}
					if c.Bool("json") {
						return outputJSON(c.App.Writer, map[string]string{"user_id": userID})
					}
					fmt.Fprintf(c.App.Writer, "✓ Signed in as %s\n", userID)
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Sign out and clear the queue and transaction list",
				Action: func(c *cli.Context) error {
					if err := agentClient(c).Logout(context.Background()); err != nil {
						return fmt.Errorf("failed to log out: %w", err)
					}
					fmt.Fprintln(c.App.Writer, "✓ Logged out")
					return nil
				},
			},
			{
				Name:  "token",
				Usage: "Development token helpers",
				Subcommands: []*cli.Command{
					tokenGenerateCommand(),
				},
			},
		},
	}
}

// tokenGenerateCommand mints a token the dev API accepts.
func tokenGenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Sign a bearer token with a shared secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "secret",
				Usage:    "HMAC secret shared with the API",
				EnvVars:  []string{"DEVAPI_SECRET"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "user",
				Usage:    "User id (token subject)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "device",
				Usage:   "Device id",
				EnvVars: []string{"DEVICE_ID"},
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			token, err := session.GenerateToken([]byte(c.String("secret")), c.String("user"), c.String("device"), c.Duration("ttl"))
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
