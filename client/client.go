package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Receipt is the outcome of a payment or payment request.
type Receipt struct {
	Kind               string    `json:"kind"`
	Status             string    `json:"status"`
	Message            string    `json:"message"`
	Signature          string    `json:"signature,omitempty"`
	Payer              string    `json:"payer,omitempty"`
	Recipient          string    `json:"recipient,omitempty"`
	GrossLamports      uint64    `json:"gross_lamports"`
	NetLamports        uint64    `json:"net_lamports"`
	CommissionLamports uint64    `json:"commission_lamports"`
	Note               string    `json:"note,omitempty"`
	RequestID          string    `json:"request_id,omitempty"`
	PaymentURL         string    `json:"payment_url,omitempty"`
	QRCode             string    `json:"qr_code,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Confirmed reports whether the submission reached the ledger.
func (r *Receipt) Confirmed() bool {
	return r.Status == "confirmed"
}

// Identity describes the wallet the server signs with.
type Identity struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	Network   string `json:"network"`
}

// CommissionEntry is one commission transaction on the admin dashboard.
type CommissionEntry struct {
	Signature string    `json:"signature"`
	Date      string    `json:"date"`
	BlockTime time.Time `json:"block_time"`
	Lamports  uint64    `json:"lamports"`
}

// Commissions is one page of the admin dashboard.
type Commissions struct {
	SnapshotID       string            `json:"snapshot_id"`
	FetchedAt        time.Time         `json:"fetched_at"`
	TotalLamports    uint64            `json:"total_lamports"`
	TotalSOL         float64           `json:"total_sol"`
	FilteredCount    int               `json:"filtered_count"`
	FilteredLamports uint64            `json:"filtered_lamports"`
	Shown            int               `json:"shown"`
	Offset           int               `json:"offset"`
	NextOffset       int               `json:"next_offset"`
	HasMore          bool              `json:"has_more"`
	Dropped          int               `json:"dropped"`
	Entries          []CommissionEntry `json:"entries"`
}

// CommissionsQuery selects a dashboard page. Leave SnapshotID empty to force
// the server to refetch the admin history.
type CommissionsQuery struct {
	SnapshotID string
	Signature  string
	Start      string // YYYY-MM-DD
	End        string // YYYY-MM-DD
	Offset     int
}

// Settlement is the tracked state of a payment request.
type Settlement struct {
	RequestID string     `json:"request_id"`
	Status    string     `json:"status"` // pending, settled, expired or failed
	Signature string     `json:"signature,omitempty"`
	Payer     string     `json:"payer,omitempty"`
	Lamports  uint64     `json:"lamports,omitempty"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
	Deadline  time.Time  `json:"deadline"`
	Polls     int        `json:"polls"`
	Error     string     `json:"error,omitempty"`
}

// ReceiptError is returned when the server answered with a receipt that did
// not confirm. The receipt carries the user-facing message.
type ReceiptError struct {
	StatusCode int
	Receipt    *Receipt
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("%s %s (status %d)", e.Receipt.Kind, e.Receipt.Status, e.StatusCode)
}

// Client is the HTTP client for the solpay service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new solpay client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Identity returns the server's connected wallet.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	var out Identity
	if err := c.getJSON(ctx, "/api/v1/identity", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pay sends amount SOL (a decimal string) to recipient. A rejected or failed
// payment returns the receipt together with a *ReceiptError.
func (c *Client) Pay(ctx context.Context, recipient, amount string) (*Receipt, error) {
	return c.submit(ctx, "/api/v1/payments", map[string]string{
		"recipient": recipient,
		"amount":    amount,
	})
}

// Request asks target to pay amount SOL to the server's wallet.
func (c *Client) Request(ctx context.Context, target, amount, note string) (*Receipt, error) {
	return c.submit(ctx, "/api/v1/payment-requests", map[string]string{
		"target": target,
		"amount": amount,
		"note":   note,
	})
}

func (c *Client) submit(ctx context.Context, path string, payload map[string]string) (*Receipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil || receipt.Kind == "" {
		return nil, errorFromBody(resp.StatusCode, raw)
	}

	if resp.StatusCode != http.StatusCreated {
		return &receipt, &ReceiptError{StatusCode: resp.StatusCode, Receipt: &receipt}
	}

	c.logger.Debug("submission confirmed",
		"kind", receipt.Kind,
		"signature", receipt.Signature,
	)
	return &receipt, nil
}

// History lists confirmed payments and requests, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]Receipt, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Payments []Receipt `json:"payments"`
	}
	if err := c.getJSON(ctx, "/api/v1/payments", q, &out); err != nil {
		return nil, err
	}
	return out.Payments, nil
}

// Settlement returns the settlement state of a payment request.
func (c *Client) Settlement(ctx context.Context, requestID string) (*Settlement, error) {
	var out Settlement
	path := "/api/v1/payment-requests/" + url.PathEscape(requestID) + "/settlement"
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Commissions fetches one page of the admin commission dashboard.
func (c *Client) Commissions(ctx context.Context, q CommissionsQuery) (*Commissions, error) {
	params := url.Values{}
	if q.SnapshotID != "" {
		params.Set("snapshot", q.SnapshotID)
	}
	if q.Signature != "" {
		params.Set("signature", q.Signature)
	}
	if q.Start != "" {
		params.Set("start", q.Start)
	}
	if q.End != "" {
		params.Set("end", q.End)
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var out Commissions
	if err := c.getJSON(ctx, "/api/v1/admin/commissions", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return errorFromBody(resp.StatusCode, body)
}

func errorFromBody(status int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", status, string(body))
	}
	return fmt.Errorf("request failed: %s", errResp.Error)
}
