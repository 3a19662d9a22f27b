package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/brojonat/solpay/service/access"
	"github.com/brojonat/solpay/service/dashboard"
	"github.com/brojonat/solpay/service/payment"
	"github.com/brojonat/solpay/service/temporal"
	"github.com/brojonat/solpay/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

const (
	maxRequestBodySize = 1 << 16 // 64KB - payment forms are tiny
	defaultListLimit   = 50
	maxListLimit       = 1000
)

// identityResponse is the JSON response for GET /api/v1/identity.
type identityResponse struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	Network   string `json:"network"`
}

// handleIdentity reports the connected wallet and whether it is the admin.
// GET /api/v1/identity
func handleIdentity(w wallet.Connector, gate *access.Gate, network string) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, identityFor(w, gate, network), http.StatusOK)
	})
}

func identityFor(w wallet.Connector, gate *access.Gate, network string) identityResponse {
	resp := identityResponse{Network: network}
	pk, ok := w.Identity()
	if ok {
		resp.Connected = true
		resp.Address = pk.String()
	}
	resp.IsAdmin = gate.ShowAdminLink(pk, ok)
	return resp
}

// handleCreatePayment runs the commission-split payment flow.
// POST /api/v1/payments {"recipient": "...", "amount": "1.5"}
// Responds 201 with the receipt, 400 on rejected input, 502 when the ledger
// step failed. The receipt carries the user-facing message in every case.
func handleCreatePayment(flow *payment.Flow, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in payment.PayInput
		if err := decodeBody(w, r, &in); err != nil {
			logger.DebugContext(r.Context(), "invalid payment request body", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		receipt, err := flow.Pay(r.Context(), in)
		writeReceipt(w, receipt, err)
	})
}

// handleCreatePaymentRequest runs the payment-request flow.
// POST /api/v1/payment-requests {"target": "...", "amount": "1", "note": "..."}
func handleCreatePaymentRequest(flow *payment.Flow, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in payment.RequestInput
		if err := decodeBody(w, r, &in); err != nil {
			logger.DebugContext(r.Context(), "invalid payment-request body", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		receipt, err := flow.Request(r.Context(), in)
		writeReceipt(w, receipt, err)
	})
}

// writeReceipt maps a flow outcome to a status code.
func writeReceipt(w http.ResponseWriter, receipt *payment.Receipt, err error) {
	var verr *payment.ValidationError
	switch {
	case err == nil:
		writeJSON(w, receipt, http.StatusCreated)
	case errors.As(err, &verr):
		writeJSON(w, receipt, http.StatusBadRequest)
	default:
		writeJSON(w, receipt, http.StatusBadGateway)
	}
}

// handleListPayments lists confirmed payments and requests, newest first.
// GET /api/v1/payments?limit=N
func handleListPayments(history payment.History, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseIntParam(r, "limit", defaultListLimit)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if limit < 1 {
			writeError(w, "limit must be at least 1", http.StatusBadRequest)
			return
		}
		if limit > maxListLimit {
			writeError(w, fmt.Sprintf("limit cannot exceed %d", maxListLimit), http.StatusBadRequest)
			return
		}

		receipts, err := history.Recent(r.Context(), limit)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list payments", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"payments": receipts,
			"count":    len(receipts),
			"limit":    limit,
		}, http.StatusOK)
	})
}

// handleCommissions returns one page of the admin commission dashboard.
// GET /api/v1/admin/commissions?snapshot=ID&signature=S&start=YYYY-MM-DD&end=YYYY-MM-DD&offset=N
func handleCommissions(dash *dashboard.Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := parseDashboardQuery(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		view, err := dash.View(r.Context(), q)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to load commission history", "error", err)
			writeError(w, "failed to load commission history", http.StatusBadGateway)
			return
		}

		writeJSON(w, view, http.StatusOK)
	})
}

// handleSettlement reports whether a payment request has been paid.
// GET /api/v1/payment-requests/{id}/settlement
func handleSettlement(lookup SettlementLookup, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, err := uuid.Parse(id); err != nil {
			writeError(w, "invalid request id", http.StatusBadRequest)
			return
		}

		result, err := lookup.Settlement(r.Context(), id)
		if errors.Is(err, temporal.ErrUnknownRequest) {
			writeError(w, "payment request not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to query settlement",
				"request_id", id,
				"error", err,
			)
			writeError(w, "failed to query settlement", http.StatusBadGateway)
			return
		}

		writeJSON(w, result, http.StatusOK)
	})
}

func parseDashboardQuery(r *http.Request) (dashboard.Query, error) {
	query := r.URL.Query()
	filter, err := dashboard.ParseFilter(query.Get("signature"), query.Get("start"), query.Get("end"))
	if err != nil {
		return dashboard.Query{}, err
	}
	offset, err := parseIntParam(r, "offset", 0)
	if err != nil {
		return dashboard.Query{}, err
	}
	if offset < 0 {
		return dashboard.Query{}, errors.New("offset cannot be negative")
	}
	return dashboard.Query{
		SnapshotID: query.Get("snapshot"),
		Filter:     filter,
		Offset:     offset,
	}, nil
}

func parseIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: must be an integer", name)
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress checks that address is a base58 Solana public key.
func validateAddress(address string) error {
	if _, err := solanago.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("invalid wallet address: %w", err)
	}
	return nil
}
