package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/solpay/service/nats"
	"github.com/brojonat/solpay/service/solana"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams payment events straight from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to payment events",
		ArgsUsage: "[recipient_address]",
		Description: `Stream confirmed payments and payment requests from NATS JetStream.

Events are published to payments.{submitted|requested}.{recipient}. Without an
address every event is streamed.

Example:
  solpay nats subscribe DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "solpay-cli",
			},
			&cli.BoolFlag{
				Name:  "replay",
				Usage: "Deliver retained events, not only new ones",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if c.NArg() == 1 {
				subject = fmt.Sprintf("%s.*.%s", natspkg.SubjectPrefix, c.Args().Get(0))
			}

			cfg := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			}
			if c.Bool("replay") {
				cfg.DeliverPolicy = jetstream.DeliverAllPolicy
			}
			if c.Bool("durable") {
				cfg.Durable = c.String("consumer-name")
				cfg.Name = c.String("consumer-name")
			}

			return streamPayments(c.String("nats-url"), cfg, c.Bool("json"))
		},
	}
}

func streamPayments(natsURL string, cfg jetstream.ConsumerConfig, jsonOutput bool) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Printf("📡 Subscribing to: %s\n", cfg.FilterSubject)
		fmt.Printf("   NATS: %s\n", natsURL)
		if cfg.Durable != "" {
			fmt.Printf("   Consumer: %s (durable)\n", cfg.Durable)
		}
		fmt.Printf("\nWaiting for payments... (Ctrl-C to exit)\n\n")
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, cfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.PaymentEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				if !jsonOutput {
					fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				}
				msg.Ack()
				continue
			}

			count++

			if jsonOutput {
				fmt.Println(string(msg.Data()))
			} else {
				fmt.Printf("─────────────────────────────────────────────────────\n")
				fmt.Printf("Payment #%d (%s)\n", count, event.Kind)
				fmt.Printf("─────────────────────────────────────────────────────\n")
				fmt.Printf("Signature:    %s\n", event.Signature)
				fmt.Printf("Payer:        %s\n", event.Payer)
				fmt.Printf("Recipient:    %s\n", event.Recipient)
				fmt.Printf("Amount:       %s SOL\n", solana.FormatSOL(event.GrossLamports))
				if event.CommissionLamports > 0 {
					fmt.Printf("Commission:   %s SOL\n", solana.FormatSOL(event.CommissionLamports))
				}
				if event.RequestID != "" {
					fmt.Printf("Request ID:   %s\n", event.RequestID)
				}
				if event.Note != "" {
					fmt.Printf("Note:         %s\n", event.Note)
				}
				fmt.Printf("Confirmed:    %s\n", event.ConfirmedAt.Format(time.RFC3339))
				fmt.Printf("\n")
			}

			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Printf("\n\n✅ Received %d payment events\n", count)
			}
			return nil
		}
	}
}

// inspectStreamCommand shows information about the payment event stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the PAYMENTS JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(info, "", "  ")
				fmt.Fprintln(c.App.Writer, string(data))
				return nil
			}

			out := c.App.Writer
			fmt.Fprintf(out, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(out, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(out, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(out, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(out, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(out, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(out, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(out, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
