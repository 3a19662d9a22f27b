package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solpay/service/temporal"
	"github.com/urfave/cli/v2"
)

func listTrackedCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-tracked",
		Usage:   "List payment requests being tracked for settlement",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   50,
				Usage:   "Maximum number of workflows",
			},
		},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			tracked, err := tc.ListTracked(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, tracked)
			}
			if len(tracked) == 0 {
				fmt.Fprintln(c.App.Writer, "No tracked payment requests")
				return nil
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REQUEST\tSTATUS\tSTARTED")
			for _, r := range tracked {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.RequestID, r.Status, r.StartedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func cancelTrackingCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Stop tracking a payment request",
		ArgsUsage: "REQUEST_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one argument: REQUEST_ID")
			}
			requestID := c.Args().First()

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.CancelTracking(c.Context, requestID); err != nil {
				if errors.Is(err, temporal.ErrUnknownRequest) {
					return fmt.Errorf("no settlement workflow for request %s", requestID)
				}
				return err
			}
			fmt.Fprintf(c.App.Writer, "Cancelled tracking for %s\n", requestID)
			return nil
		},
	}
}

// getTemporalClient connects using the global temporal flags. The task queue
// is irrelevant for listing and cancelling.
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return temporal.NewClient(c.String("temporal-host"), c.String("temporal-namespace"), "", logger)
}
