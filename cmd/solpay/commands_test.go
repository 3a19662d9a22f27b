package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/solpay/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"solpay"}, args...))
	return out.String(), err
}

func TestHealthCommand_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server is healthy")
}

func TestHealthCommand_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := runApp(t, "--server-url", server.URL, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "server", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "solpay CLI")
	assert.Contains(t, out, "Version: dev")
}

func TestPayCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payments", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(client.Receipt{
			Kind:               "payment",
			Status:             "confirmed",
			Message:            "Payment successful!",
			Signature:          "sig123",
			Recipient:          "Recipient111",
			GrossLamports:      1_000_000_000,
			NetLamports:        950_000_000,
			CommissionLamports: 50_000_000,
		})
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "pay", "Recipient111", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Payment successful!")
	assert.Contains(t, out, "0.9500 SOL")
	assert.Contains(t, out, "0.0500 SOL")
}

func TestPayCommand_Failed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(client.Receipt{
			Kind:    "payment",
			Status:  "failed",
			Message: "Payment failed. Try again.",
		})
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "pay", "Recipient111", "1")
	require.Error(t, err)
	assert.Contains(t, out, "Payment failed. Try again.")
}

func TestPayCommand_MissingArgs(t *testing.T) {
	_, err := runApp(t, "pay", "Recipient111")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient and amount are required")
}

func TestRequestCommand_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dinner", body["note"])
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(client.Receipt{
			Kind:      "request",
			Status:    "confirmed",
			RequestID: "req-1",
		})
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "--json", "request", "--note", "dinner", "Target111", "2")
	require.NoError(t, err)

	var receipt client.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	assert.Equal(t, "req-1", receipt.RequestID)
}

func commissionsServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		page := client.Commissions{
			SnapshotID:       "snap-1",
			TotalLamports:    21_000_000,
			FilteredCount:    6,
			FilteredLamports: 21_000_000,
		}
		all := []client.CommissionEntry{
			{Signature: "sigA", Date: "2024-03-01", Lamports: 1_000_000},
			{Signature: "sigB", Date: "2024-03-02", Lamports: 2_000_000},
			{Signature: "sigC", Date: "2024-03-03", Lamports: 3_000_000},
			{Signature: "sigD", Date: "2024-03-04", Lamports: 4_000_000},
			{Signature: "sigE", Date: "2024-03-05", Lamports: 5_000_000},
			{Signature: "sigF", Date: "", Lamports: 6_000_000},
		}
		if q.Get("offset") == "4" {
			assert.Equal(t, "snap-1", q.Get("snapshot"))
			page.Entries = all
			page.Offset = 4
			page.NextOffset = 8
		} else {
			page.Entries = all[:4]
			page.NextOffset = 4
			page.HasMore = true
		}
		json.NewEncoder(w).Encode(page)
	}))
	return server, &calls
}

func TestRequestStatusCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payment-requests/req-1/settlement", r.URL.Path)
		w.Write([]byte(`{"request_id":"req-1","status":"settled","signature":"sig-settle","payer":"Payer111","lamports":2000000,"settled_at":"2024-03-02T09:00:00Z","deadline":"2024-03-03T09:00:00Z","polls":3}`))
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "request-status", "req-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:    settled")
	assert.Contains(t, out, "Signature: sig-settle")
	assert.Contains(t, out, "Amount:    0.0020 SOL")
	assert.Contains(t, out, "Settled:   2024-03-02T09:00:00Z")

	_, err = runApp(t, "--server-url", server.URL, "request-status")
	require.Error(t, err)
}

func TestCommissionsCommand_FirstPage(t *testing.T) {
	server, calls := commissionsServer(t)
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "commissions")
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	assert.Contains(t, out, "Total commission: 0.0210 SOL")
	assert.Contains(t, out, "sigD")
	assert.NotContains(t, out, "sigE")
	assert.Contains(t, out, "--snapshot snap-1 --offset 4")
}

func TestCommissionsCommand_AllWithJQ(t *testing.T) {
	server, calls := commissionsServer(t)
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "commissions", "--all", "--jq", ".lamports >= 5000000")
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
	assert.NotContains(t, out, "sigD")
	assert.Contains(t, out, "sigE")
	assert.Contains(t, out, "unknown")
}

func TestCommissionsCommand_BadJQ(t *testing.T) {
	_, err := runApp(t, "commissions", "--jq", ".lamports >=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestJQFilters(t *testing.T) {
	filters, err := compileJQ([]string{".kind == \"requested\"", ".gross_lamports > 10"})
	require.NoError(t, err)

	assert.True(t, filters.match(client.PaymentEvent{Kind: "requested", GrossLamports: 11}))
	assert.False(t, filters.match(client.PaymentEvent{Kind: "submitted", GrossLamports: 11}))
	assert.False(t, filters.match(client.PaymentEvent{Kind: "requested", GrossLamports: 10}))

	none, err := compileJQ(nil)
	require.NoError(t, err)
	assert.True(t, none.match(struct{}{}))
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
}
