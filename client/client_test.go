package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/identity", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"connected": true,
			"address":   "Admin1111",
			"is_admin":  true,
			"network":   "devnet",
		})
	}))
	defer server.Close()

	id, err := NewClient(server.URL, nil, nil).Identity(context.Background())
	require.NoError(t, err)
	assert.True(t, id.Connected)
	assert.True(t, id.IsAdmin)
	assert.Equal(t, "Admin1111", id.Address)
}

func TestPay_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/payments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Recipient111", body["recipient"])
		assert.Equal(t, "1.5", body["amount"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Receipt{
			Kind:               "payment",
			Status:             "confirmed",
			Message:            "Payment successful!",
			Signature:          "sig123",
			GrossLamports:      1_500_000_000,
			NetLamports:        1_425_000_000,
			CommissionLamports: 75_000_000,
		})
	}))
	defer server.Close()

	receipt, err := NewClient(server.URL, nil, nil).Pay(context.Background(), "Recipient111", "1.5")
	require.NoError(t, err)
	assert.True(t, receipt.Confirmed())
	assert.Equal(t, "sig123", receipt.Signature)
	assert.Equal(t, uint64(75_000_000), receipt.CommissionLamports)
}

func TestPay_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(Receipt{
			Kind:    "payment",
			Status:  "idle",
			Message: "Please enter a valid amount greater than zero.",
		})
	}))
	defer server.Close()

	receipt, err := NewClient(server.URL, nil, nil).Pay(context.Background(), "Recipient111", "0")
	require.Error(t, err)

	var rerr *ReceiptError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusBadRequest, rerr.StatusCode)
	require.NotNil(t, receipt)
	assert.False(t, receipt.Confirmed())
	assert.Contains(t, receipt.Message, "valid amount")
}

func TestPay_PlainError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "request body too large"})
	}))
	defer server.Close()

	receipt, err := NewClient(server.URL, nil, nil).Pay(context.Background(), "x", "1")
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.Contains(t, err.Error(), "request body too large")
}

func TestRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payment-requests", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Target111", body["target"])
		assert.Equal(t, "lunch", body["note"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Receipt{
			Kind:       "request",
			Status:     "confirmed",
			RequestID:  "req-1",
			PaymentURL: "solana:Me?amount=2",
		})
	}))
	defer server.Close()

	receipt, err := NewClient(server.URL, nil, nil).Request(context.Background(), "Target111", "2", "lunch")
	require.NoError(t, err)
	assert.Equal(t, "req-1", receipt.RequestID)
	assert.Equal(t, "solana:Me?amount=2", receipt.PaymentURL)
}

func TestHistory_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payments", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"payments": []Receipt{{Kind: "payment", Signature: "a"}, {Kind: "request", Signature: "b"}},
			"count":    2,
		})
	}))
	defer server.Close()

	receipts, err := NewClient(server.URL, nil, nil).History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "b", receipts[1].Signature)
}

func TestCommissions_QueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/v1/admin/commissions", r.URL.Path)
		assert.Equal(t, "snap-1", q.Get("snapshot"))
		assert.Equal(t, "abc", q.Get("signature"))
		assert.Equal(t, "2024-01-01", q.Get("start"))
		assert.Equal(t, "2024-01-31", q.Get("end"))
		assert.Equal(t, "4", q.Get("offset"))
		json.NewEncoder(w).Encode(Commissions{
			SnapshotID:    "snap-1",
			TotalLamports: 10,
			HasMore:       true,
			NextOffset:    8,
			Entries:       []CommissionEntry{{Signature: "abc1", Lamports: 10}},
		})
	}))
	defer server.Close()

	page, err := NewClient(server.URL, nil, nil).Commissions(context.Background(), CommissionsQuery{
		SnapshotID: "snap-1",
		Signature:  "abc",
		Start:      "2024-01-01",
		End:        "2024-01-31",
		Offset:     4,
	})
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, 8, page.NextOffset)
	require.Len(t, page.Entries, 1)
}

func TestCommissions_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to load commission history"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).Commissions(context.Background(), CommissionsQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load commission history")
}

func TestSettlement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/payment-requests/req-1/settlement":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"request_id": "req-1",
				"status":     "settled",
				"signature":  "sig-settle",
				"lamports":   2000000,
				"settled_at": "2024-03-02T09:00:00Z",
				"polls":      3,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "payment request not found"})
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	s, err := c.Settlement(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "settled", s.Status)
	assert.Equal(t, "sig-settle", s.Signature)
	assert.Equal(t, uint64(2_000_000), s.Lamports)
	require.NotNil(t, s.SettledAt)
	assert.Equal(t, 2024, s.SettledAt.Year())

	_, err = c.Settlement(context.Background(), "req-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment request not found")
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	assert.NoError(t, NewClient(server.URL, nil, nil).Health(context.Background()))
}

func sseServer(t *testing.T, events []PaymentEvent) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/payments/Wallet111", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		fmt.Fprintf(w, "event: connected\ndata: {\"subject\":\"payments.*.Wallet111\"}\n\n")
		fmt.Fprintf(w, ": keepalive\n\n")
		for _, e := range events {
			data, _ := json.Marshal(e)
			fmt.Fprintf(w, "event: payment\ndata: %s\n\n", data)
		}
		flusher.Flush()
	}))
}

func TestAwait_MatchingEvent(t *testing.T) {
	server := sseServer(t, []PaymentEvent{
		{Kind: "submitted", Signature: "first", GrossLamports: 1},
		{Kind: "requested", Signature: "second", RequestID: "req-42", GrossLamports: 2_000_000_000},
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event, err := NewClient(server.URL, nil, nil).Await(ctx, "Wallet111", func(e *PaymentEvent) bool {
		return e.RequestID == "req-42"
	})
	require.NoError(t, err)
	assert.Equal(t, "second", event.Signature)
	assert.Equal(t, uint64(2_000_000_000), event.GrossLamports)
}

func TestAwait_StreamEndsWithoutMatch(t *testing.T) {
	server := sseServer(t, []PaymentEvent{{Kind: "submitted", Signature: "first"}})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event, err := NewClient(server.URL, nil, nil).Await(ctx, "Wallet111", func(e *PaymentEvent) bool {
		return false
	})
	assert.Nil(t, event)
	assert.ErrorIs(t, err, ErrStreamClosed)
}
