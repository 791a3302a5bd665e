package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brojonat/ledgersync/service/devapi"
	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/metrics"
	"github.com/urfave/cli/v2"
)

func devAPICommands() *cli.Command {
	return &cli.Command{
		Name:  "devapi",
		Usage: "In-memory stand-in for the remote finance API",
		Subcommands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the development API until interrupted",
				Description: `Run an in-memory finance API that accepts tokens signed with --secret.
Point the agent's API_BASE_URL at it to exercise offline replay locally.

Example:
  ledgersync devapi serve --addr :8080 --secret dev
  ledgersync session token generate --secret dev --user me`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "HMAC secret bearer tokens are signed with",
						EnvVars:  []string{"DEVAPI_SECRET"},
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "category",
						Usage: "Known category as id=name (repeatable)",
					},
				},
				Action: func(c *cli.Context) error {
					logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

					categories, err := parseCategories(c.StringSlice("category"))
					if err != nil {
						return err
					}

					h := devapi.NewHandler([]byte(c.String("secret")), categories, logger)
					srv := &http.Server{
						Addr:         c.String("addr"),
						Handler:      devapi.NewRouter(h, metrics.NewMetrics(nil)),
						ReadTimeout:  15 * time.Second,
						WriteTimeout: 15 * time.Second,
					}

					errCh := make(chan error, 1)
					go func() {
						logger.Info("dev api listening", "addr", srv.Addr)
						if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							errCh <- err
						}
					}()

					sigChan := make(chan os.Signal, 1)
					signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
					select {
					case err := <-errCh:
						return fmt.Errorf("dev api failed: %w", err)
					case <-sigChan:
					}

					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(ctx)
				},
			},
		},
	}
}

// parseCategories turns id=name pairs into categories.
func parseCategories(pairs []string) ([]ledger.Category, error) {
	categories := make([]ledger.Category, 0, len(pairs))
	for _, pair := range pairs {
		id, name, ok := strings.Cut(pair, "=")
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid category %q: must be id=name", pair)
		}
		categories = append(categories, ledger.Category{ID: id, Name: name})
	}
	return categories, nil
}
