package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solpay/client"
	"github.com/brojonat/solpay/service/solana"
	"github.com/urfave/cli/v2"
)

func newClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func identityCommand() *cli.Command {
	return &cli.Command{
		Name:  "identity",
		Usage: "Show the wallet the server signs with",
		Action: func(c *cli.Context) error {
			id, err := newClient(c).Identity(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get identity: %w", err)
			}

			out := c.App.Writer
			if c.Bool("json") {
				return printJSON(out, id)
			}
			if !id.Connected {
				fmt.Fprintf(out, "No wallet connected (%s)\n", id.Network)
				return nil
			}
			fmt.Fprintf(out, "Wallet:  %s\n", id.Address)
			fmt.Fprintf(out, "Network: %s\n", id.Network)
			fmt.Fprintf(out, "Admin:   %t\n", id.IsAdmin)
			return nil
		},
	}
}

// printReceipt prints a receipt and turns an unconfirmed one into an error.
func printReceipt(c *cli.Context, receipt *client.Receipt, err error) error {
	var rerr *client.ReceiptError
	if err != nil && !errors.As(err, &rerr) {
		return err
	}

	out := c.App.Writer
	if c.Bool("json") {
		if perr := printJSON(out, receipt); perr != nil {
			return perr
		}
	} else {
		fmt.Fprintln(out, receipt.Message)
		if receipt.Signature != "" {
			fmt.Fprintf(out, "  Signature:  %s\n", receipt.Signature)
		}
		if receipt.Confirmed() {
			switch receipt.Kind {
			case "payment":
				fmt.Fprintf(out, "  Recipient:  %s\n", receipt.Recipient)
				fmt.Fprintf(out, "  Sent:       %s SOL\n", solana.FormatSOL(receipt.NetLamports))
				fmt.Fprintf(out, "  Commission: %s SOL\n", solana.FormatSOL(receipt.CommissionLamports))
			case "request":
				fmt.Fprintf(out, "  From:       %s\n", receipt.Recipient)
				fmt.Fprintf(out, "  Amount:     %s SOL\n", solana.FormatSOL(receipt.GrossLamports))
				fmt.Fprintf(out, "  Request ID: %s\n", receipt.RequestID)
				fmt.Fprintf(out, "  Pay link:   %s\n", receipt.PaymentURL)
			}
		}
	}

	if rerr != nil {
		return fmt.Errorf("%s %s", receipt.Kind, receipt.Status)
	}
	return nil
}

func payCommand() *cli.Command {
	return &cli.Command{
		Name:      "pay",
		Usage:     "Send SOL to a recipient; the commission goes to the admin wallet",
		ArgsUsage: "RECIPIENT AMOUNT_SOL",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("recipient and amount are required")
			}
			receipt, err := newClient(c).Pay(c.Context, c.Args().Get(0), c.Args().Get(1))
			return printReceipt(c, receipt, err)
		},
	}
}

func requestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Usage:     "Ask a wallet to pay you",
		ArgsUsage: "FROM_WALLET AMOUNT_SOL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "note",
				Aliases: []string{"n"},
				Usage:   "Note attached to the request",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("target wallet and amount are required")
			}
			receipt, err := newClient(c).Request(c.Context, c.Args().Get(0), c.Args().Get(1), c.String("note"))
			return printReceipt(c, receipt, err)
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"ls"},
		Usage:   "List confirmed payments and requests",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
				Usage:   "Maximum number of entries",
			},
		},
		Action: func(c *cli.Context) error {
			receipts, err := newClient(c).History(c.Context, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list payments: %w", err)
			}

			out := c.App.Writer
			if c.Bool("json") {
				return printJSON(out, receipts)
			}
			if len(receipts) == 0 {
				fmt.Fprintln(out, "No payments yet")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tSIGNATURE\tRECIPIENT\tSOL\tCOMMISSION\tCREATED")
			for _, r := range receipts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Kind,
					r.Signature,
					r.Recipient,
					solana.FormatSOL(r.GrossLamports),
					solana.FormatSOL(r.CommissionLamports),
					r.CreatedAt.Format(time.RFC3339),
				)
			}
			return w.Flush()
		},
	}
}

func awaitCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Wait for a payment event on a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Description: `Block until the server streams a payment event for WALLET_ADDRESS that
matches every given condition.

Examples:
  solpay await <addr> --request-id 3f0c...
  solpay await <addr> --jq '.gross_lamports >= 1000000000'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "signature",
				Usage: "Match a transaction signature",
			},
			&cli.StringFlag{
				Name:  "request-id",
				Usage: "Match a payment request ID",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter over the event JSON; all must be truthy (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Minute,
				Usage: "How long to wait",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().Get(0)

			filters, err := compileJQ(c.StringSlice("jq"))
			if err != nil {
				return err
			}
			signature := c.String("signature")
			requestID := c.String("request-id")

			matcher := func(e *client.PaymentEvent) bool {
				if signature != "" && e.Signature != signature {
					return false
				}
				if requestID != "" && e.RequestID != requestID {
					return false
				}
				return filters.match(e)
			}

			if !c.Bool("json") {
				fmt.Fprintf(os.Stderr, "Waiting for payment event on %s...\n", address)
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			event, err := newClient(c).Await(ctx, address, matcher)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("timed out after %s", c.Duration("timeout"))
				}
				return fmt.Errorf("failed waiting for payment: %w", err)
			}

			out := c.App.Writer
			if c.Bool("json") {
				return printJSON(out, event)
			}
			fmt.Fprintf(out, "Payment event received\n")
			fmt.Fprintf(out, "  Kind:      %s\n", event.Kind)
			fmt.Fprintf(out, "  Signature: %s\n", event.Signature)
			fmt.Fprintf(out, "  From:      %s\n", event.Payer)
			fmt.Fprintf(out, "  Amount:    %s SOL\n", solana.FormatSOL(event.GrossLamports))
			return nil
		},
	}
}

func requestStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "request-status",
		Usage:     "Show whether a payment request has been paid",
		ArgsUsage: "REQUEST_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one argument: REQUEST_ID")
			}

			s, err := newClient(c).Settlement(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get settlement: %w", err)
			}

			out := c.App.Writer
			if c.Bool("json") {
				return printJSON(out, s)
			}

			fmt.Fprintf(out, "Request:   %s\n", s.RequestID)
			fmt.Fprintf(out, "Status:    %s\n", s.Status)
			fmt.Fprintf(out, "Polls:     %d\n", s.Polls)
			if !s.Deadline.IsZero() {
				fmt.Fprintf(out, "Deadline:  %s\n", s.Deadline.Format(time.RFC3339))
			}
			if s.Signature != "" {
				fmt.Fprintf(out, "Signature: %s\n", s.Signature)
				fmt.Fprintf(out, "Payer:     %s\n", s.Payer)
				fmt.Fprintf(out, "Amount:    %s SOL\n", solana.FormatSOL(s.Lamports))
			}
			if s.SettledAt != nil {
				fmt.Fprintf(out, "Settled:   %s\n", s.SettledAt.Format(time.RFC3339))
			}
			if s.Error != "" {
				fmt.Fprintf(out, "Error:     %s\n", s.Error)
			}
			return nil
		},
	}
}
