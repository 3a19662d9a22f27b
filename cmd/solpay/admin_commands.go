package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/brojonat/solpay/client"
	"github.com/brojonat/solpay/service/solana"
	"github.com/urfave/cli/v2"
)

func commissionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "commissions",
		Aliases: []string{"admin"},
		Usage:   "Show the admin commission dashboard",
		Description: `Fetch the commission history of the admin wallet. Each call without
--snapshot makes the server refetch from the ledger; pass the snapshot ID from
a previous call to page through the same data.

Examples:
  solpay commissions --start 2024-01-01 --end 2024-01-31
  solpay commissions --all --jq '.lamports > 1000000'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "snapshot",
				Usage: "Reuse a previously loaded snapshot",
			},
			&cli.StringFlag{
				Name:  "signature",
				Usage: "Signature substring filter",
			},
			&cli.StringFlag{
				Name:  "start",
				Usage: "First day to include (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "Last day to include (YYYY-MM-DD)",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Pager offset (from next_offset of a previous page)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Follow load-more until every matching entry is shown",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to each entry; all must be truthy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQ(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			cl := newClient(c)
			q := client.CommissionsQuery{
				SnapshotID: c.String("snapshot"),
				Signature:  c.String("signature"),
				Start:      c.String("start"),
				End:        c.String("end"),
				Offset:     c.Int("offset"),
			}

			page, err := cl.Commissions(c.Context, q)
			if err != nil {
				return fmt.Errorf("failed to load commissions: %w", err)
			}
			for c.Bool("all") && page.HasMore {
				q.SnapshotID = page.SnapshotID
				q.Offset = page.NextOffset
				page, err = cl.Commissions(c.Context, q)
				if err != nil {
					return fmt.Errorf("failed to load commissions: %w", err)
				}
			}

			entries := make([]client.CommissionEntry, 0, len(page.Entries))
			for _, e := range page.Entries {
				if filters.match(e) {
					entries = append(entries, e)
				}
			}
			page.Entries = entries

			out := c.App.Writer
			if c.Bool("json") {
				return printJSON(out, page)
			}

			fmt.Fprintf(out, "Total commission: %s SOL\n", solana.FormatSOL(page.TotalLamports))
			fmt.Fprintf(out, "Matching:         %d transactions, %s SOL\n",
				page.FilteredCount, solana.FormatSOL(page.FilteredLamports))
			if page.Dropped > 0 {
				fmt.Fprintf(out, "Unavailable:      %d transactions\n", page.Dropped)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNATURE\tDATE\tSOL")
			for _, e := range entries {
				date := e.Date
				if date == "" {
					date = "unknown"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Signature, date, solana.FormatSOL(e.Lamports))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if page.HasMore {
				fmt.Fprintf(out, "\nMore available: --snapshot %s --offset %d\n", page.SnapshotID, page.NextOffset)
			}
			return nil
		},
	}
}
