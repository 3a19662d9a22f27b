package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solpay/service/access"
	"github.com/brojonat/solpay/service/config"
	"github.com/brojonat/solpay/service/dashboard"
	"github.com/brojonat/solpay/service/metrics"
	"github.com/brojonat/solpay/service/payment"
	"github.com/brojonat/solpay/service/temporal"
	"github.com/brojonat/solpay/service/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for the payment service.
type Server struct {
	addr         string
	cfg          *config.Config
	flow         *payment.Flow
	dashboard    *dashboard.Service
	gate         *access.Gate
	wallet       wallet.Connector
	ssePublisher *SSEPublisher
	settlements  SettlementLookup
	renderer     *TemplateRenderer
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, cfg *config.Config, flow *payment.Flow, dash *dashboard.Service, gate *access.Gate, w wallet.Connector, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		flow:         flow,
		dashboard:    dash,
		gate:         gate,
		wallet:       w,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// SettlementLookup reports the settlement state of a payment request.
type SettlementLookup interface {
	Settlement(ctx context.Context, requestID string) (*temporal.SettleRequestResult, error)
}

// WithSettlements enables the payment-request settlement endpoint.
func (s *Server) WithSettlements(l SettlementLookup) *Server {
	s.settlements = l
	return s
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.cfg.SolanaNetwork, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// JSON API
	s.handle(mux, "GET /api/v1/identity", handleIdentity(s.wallet, s.gate, s.cfg.SolanaNetwork))
	s.handle(mux, "POST /api/v1/payments", handleCreatePayment(s.flow, s.logger))
	s.handle(mux, "GET /api/v1/payments", handleListPayments(s.flow.History(), s.logger))
	s.handle(mux, "POST /api/v1/payment-requests", handleCreatePaymentRequest(s.flow, s.logger))
	s.handle(mux, "GET /api/v1/admin/commissions", handleCommissions(s.dashboard, s.logger))

	if s.settlements != nil {
		s.handle(mux, "GET /api/v1/payment-requests/{id}/settlement", handleSettlement(s.settlements, s.logger))
	}

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		s.handle(mux, "GET /api/v1/stream/payments/{address}", handleStreamPayments(s.ssePublisher, s.logger))
		s.handle(mux, "GET /api/v1/stream/payments", handleStreamPayments(s.ssePublisher, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// HTML pages (if template renderer is configured)
	if s.renderer != nil {
		pages := pageDeps{
			renderer:  s.renderer,
			flow:      s.flow,
			dashboard: s.dashboard,
			gate:      s.gate,
			wallet:    s.wallet,
			logger:    s.logger,
		}
		s.handle(mux, "GET /{$}", handleHomePage(pages))
		s.handle(mux, "GET /payment", handlePaymentPage(pages))
		s.handle(mux, "POST /payment", handlePaymentSubmit(pages))
		s.handle(mux, "GET /payment-request", handlePaymentRequestPage(pages))
		s.handle(mux, "POST /payment-request", handlePaymentRequestSubmit(pages))
		s.handle(mux, "GET /admin", handleAdminPage(pages))
		s.logger.Info("HTML page endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// handle registers h under pattern wrapped in the per-route metrics middleware.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	// Payment handlers block until the ledger confirms, so the write timeout
	// has to outlast the confirmation timeout.
	writeTimeout := 15 * time.Second
	if s.cfg.ConfirmTimeout > 0 {
		writeTimeout += s.cfg.ConfirmTimeout
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
