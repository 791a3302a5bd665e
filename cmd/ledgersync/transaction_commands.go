package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func transactionCommands() *cli.Command {
	return &cli.Command{
		Name:    "txn",
		Aliases: []string{"transaction"},
		Usage:   "Record and list transactions through the agent",
		Subcommands: []*cli.Command{
			txnCreateCommand(),
			txnListCommand(),
		},
	}
}

func txnCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Record a transaction (queued if the API is unreachable)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Aliases: []string{"a"}, Usage: "Account id", Required: true},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category id", Required: true},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "income or expense", Value: string(ledger.TypeExpense)},
			&cli.StringFlag{Name: "amount", Usage: "Positive decimal amount (e.g. 12.50)", Required: true},
			&cli.StringFlag{Name: "currency", Usage: "ISO currency code", Value: "USD"},
			&cli.StringFlag{Name: "date", Usage: "Transaction date (YYYY-MM-DD), defaults to today"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Optional description"},
		},
		Action: func(c *cli.Context) error {
			input, err := inputFromFlags(c, time.Now())
			if err != nil {
				return err
			}
			if err := input.Validate(); err != nil {
				return fmt.Errorf("invalid transaction: %w", err)
			}

			txn, err := agentClient(c).CreateTransaction(context.Background(), input)
			if err != nil {
				return fmt.Errorf("failed to create transaction: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, txn)
			}
			if txn.Pending {
				fmt.Fprintf(c.App.Writer, "✓ Transaction queued for sync\n")
			} else {
				fmt.Fprintf(c.App.Writer, "✓ Transaction created\n")
			}
			fmt.Fprintf(c.App.Writer, "  ID:       %s\n", txn.ID)
			fmt.Fprintf(c.App.Writer, "  Amount:   %s %s (%s)\n", txn.Amount.StringFixed(2), txn.Currency, txn.Type)
			fmt.Fprintf(c.App.Writer, "  Category: %s\n", txn.Category.Name)
			return nil
		},
	}
}

// inputFromFlags builds a transaction input from txn create flags.
func inputFromFlags(c *cli.Context, now time.Time) (ledger.TransactionInput, error) {
	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return ledger.TransactionInput{}, fmt.Errorf("invalid amount %q: %w", c.String("amount"), err)
	}

	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if s := c.String("date"); s != "" {
		date, err = time.Parse(time.DateOnly, s)
		if err != nil {
			return ledger.TransactionInput{}, fmt.Errorf("invalid date %q: must be YYYY-MM-DD", s)
		}
	}

	input := ledger.TransactionInput{
		AccountID:  c.String("account"),
		CategoryID: c.String("category"),
		Type:       ledger.TransactionType(c.String("type")),
		Amount:     amount,
		Currency:   c.String("currency"),
		Date:       date,
	}
	if d := c.String("description"); d != "" {
		input.Description = &d
	}
	return input, nil
}

func txnListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the agent's visible transactions, newest first",
		Action: func(c *cli.Context) error {
			list, err := agentClient(c).ListTransactions(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, list)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTYPE\tAMOUNT\tCATEGORY\tSTATUS")
			for _, txn := range list.Transactions {
				status := "synced"
				if txn.Pending {
					status = "pending"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
					txn.ID,
					txn.Date.Format(time.DateOnly),
					txn.Type,
					txn.Amount.StringFixed(2),
					txn.Currency,
					txn.Category.Name,
					status,
				)
			}
			w.Flush()
			fmt.Fprintf(c.App.ErrWriter, "\nShowing %d of %d transactions\n", list.Count, list.Total)
			return nil
		},
	}
}
