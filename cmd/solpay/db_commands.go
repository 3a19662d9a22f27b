package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solpay/service/db"
	"github.com/brojonat/solpay/service/solana"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listReceiptsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-receipts",
		Usage:   "List stored payment and request receipts",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   50,
				Usage:   "Maximum number of receipts",
			},
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Filter by kind (payment, request)",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			receipts, err := store.ListReceipts(c.Context, int32(c.Int("limit")))
			if err != nil {
				return fmt.Errorf("failed to list receipts: %w", err)
			}

			if kind := c.String("kind"); kind != "" {
				filtered := make([]*db.Receipt, 0, len(receipts))
				for _, r := range receipts {
					if r.Kind == kind {
						filtered = append(filtered, r)
					}
				}
				receipts = filtered
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, receipts)
			}
			if len(receipts) == 0 {
				fmt.Fprintln(c.App.Writer, "No receipts found")
				return nil
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tSIGNATURE\tPAYER\tRECIPIENT\tSOL\tCOMMISSION\tCREATED")
			for _, r := range receipts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Kind,
					r.Signature,
					r.Payer,
					r.Recipient,
					solana.FormatSOL(uint64(r.GrossLamports)),
					solana.FormatSOL(uint64(r.CommissionLamports)),
					r.CreatedAt.Format(time.RFC3339),
				)
			}
			return w.Flush()
		},
	}
}

func getReceiptCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-receipt",
		Usage:     "Show one stored receipt",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("signature is required")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			r, err := store.GetReceipt(c.Context, c.Args().Get(0))
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no receipt for signature %s", c.Args().Get(0))
			}
			if err != nil {
				return fmt.Errorf("failed to get receipt: %w", err)
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, r)
			}

			out := c.App.Writer
			fmt.Fprintf(out, "Signature:   %s\n", r.Signature)
			fmt.Fprintf(out, "Kind:        %s\n", r.Kind)
			fmt.Fprintf(out, "Payer:       %s\n", r.Payer)
			fmt.Fprintf(out, "Recipient:   %s\n", r.Recipient)
			fmt.Fprintf(out, "Gross:       %s SOL\n", solana.FormatSOL(uint64(r.GrossLamports)))
			fmt.Fprintf(out, "Net:         %s SOL\n", solana.FormatSOL(uint64(r.NetLamports)))
			fmt.Fprintf(out, "Commission:  %s SOL\n", solana.FormatSOL(uint64(r.CommissionLamports)))
			if r.RequestID != nil {
				fmt.Fprintf(out, "Request ID:  %s\n", *r.RequestID)
			}
			if r.Note != nil {
				fmt.Fprintf(out, "Note:        %s\n", *r.Note)
			}
			fmt.Fprintf(out, "Created:     %s\n", r.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool), pool.Close, nil
}
