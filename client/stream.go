package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PaymentEvent is a confirmed payment or payment request streamed by the
// server.
type PaymentEvent struct {
	Kind               string    `json:"kind"` // submitted, requested
	Signature          string    `json:"signature"`
	Payer              string    `json:"payer"`
	Recipient          string    `json:"recipient"`
	GrossLamports      uint64    `json:"gross_lamports"`
	NetLamports        uint64    `json:"net_lamports"`
	CommissionLamports uint64    `json:"commission_lamports"`
	RequestID          string    `json:"request_id,omitempty"`
	Note               string    `json:"note,omitempty"`
	ConfirmedAt        time.Time `json:"confirmed_at"`
	PublishedAt        time.Time `json:"published_at"`
}

// ErrStreamClosed is returned when the server ends the stream before a
// matching event arrives.
var ErrStreamClosed = errors.New("event stream closed")

// Stream calls fn for every payment event whose recipient is address, or for
// every event when address is empty. It returns when ctx is done, the stream
// ends, or fn returns false.
func (c *Client) Stream(ctx context.Context, address string, fn func(*PaymentEvent) bool) error {
	u := c.baseURL + "/api/v1/stream/payments"
	if address != "" {
		u += "/" + url.PathEscape(address)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The shared client's timeout would cut the stream short.
	streamClient := *c.httpClient
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	c.logger.Debug("payment stream connected", "address", address)

	scanner := bufio.NewScanner(resp.Body)
	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "payment" && data.Len() > 0 {
				var pe PaymentEvent
				if err := json.Unmarshal([]byte(data.String()), &pe); err != nil {
					c.logger.Warn("failed to decode payment event", "error", err)
				} else if !fn(&pe) {
					return nil
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	return ErrStreamClosed
}

// Await blocks until a payment event for address satisfies matcher.
func (c *Client) Await(ctx context.Context, address string, matcher func(*PaymentEvent) bool) (*PaymentEvent, error) {
	var found *PaymentEvent
	err := c.Stream(ctx, address, func(e *PaymentEvent) bool {
		if matcher(e) {
			found = e
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}
	if err == nil {
		err = ErrStreamClosed
	}
	return nil, err
}
