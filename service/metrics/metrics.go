package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec
	transactionsParsedTotal    *prometheus.CounterVec
	confirmationDuration       *prometheus.HistogramVec

	// Payment Metrics
	paymentsTotal           *prometheus.CounterVec
	paymentLamportsTotal    *prometheus.CounterVec
	commissionLamportsTotal prometheus.Counter
	settlementsTotal        *prometheus.CounterVec

	// Dashboard Metrics
	dashboardLoadsTotal     *prometheus.CounterVec
	dashboardLoadDuration   prometheus.Histogram
	dashboardDetailsDropped prometheus.Counter
	dashboardEntries        prometheus.Gauge

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per GetSignaturesForAddress call",
				Buckets: []float64{1, 5, 10, 25, 50, 100},
			},
			[]string{"endpoint"},
		),
		transactionsParsedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_parsed_total",
				Help: "Total number of transactions parsed",
			},
			[]string{"status"},
		),
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_confirmation_duration_seconds",
				Help:    "Time spent waiting for a transaction to reach a commitment level",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"commitment", "status"},
		),

		// Payment Metrics
		paymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_total",
				Help: "Total number of payment and payment-request submissions by outcome",
			},
			[]string{"kind", "status"},
		),
		paymentLamportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_lamports_total",
				Help: "Lamports moved by confirmed submissions",
			},
			[]string{"kind"},
		),
		commissionLamportsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_lamports_total",
				Help: "Commission lamports routed to the admin wallet by confirmed payments",
			},
		),

		settlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_request_settlements_total",
				Help: "Payment requests tracked to an outcome (settled, expired)",
			},
			[]string{"status"},
		),

		// Dashboard Metrics
		dashboardLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_loads_total",
				Help: "Total number of admin dashboard snapshot loads",
			},
			[]string{"status"},
		),
		dashboardLoadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dashboard_load_duration_seconds",
				Help:    "Duration of admin dashboard snapshot loads in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30},
			},
		),
		dashboardDetailsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_details_dropped_total",
				Help: "Transaction detail lookups dropped from dashboard snapshots",
			},
		),
		dashboardEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashboard_entries",
				Help: "Number of commission entries in the latest dashboard snapshot",
			},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10, 30},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// RecordTransactionParsed records a transaction parse attempt.
func (m *Metrics) RecordTransactionParsed(status string) {
	m.transactionsParsedTotal.WithLabelValues(status).Inc()
}

// RecordConfirmation records how long a confirmation wait took.
func (m *Metrics) RecordConfirmation(commitment, status string, duration float64) {
	m.confirmationDuration.WithLabelValues(commitment, status).Observe(duration)
}

// Payment metric helpers

// RecordPayment records the outcome of a payment or payment-request submission.
func (m *Metrics) RecordPayment(kind, status string) {
	m.paymentsTotal.WithLabelValues(kind, status).Inc()
}

// RecordPaymentLamports records lamports moved by a confirmed submission.
func (m *Metrics) RecordPaymentLamports(kind string, gross, commission uint64) {
	m.paymentLamportsTotal.WithLabelValues(kind).Add(float64(gross))
	m.commissionLamportsTotal.Add(float64(commission))
}

// Dashboard metric helpers

// RecordSettlement records the outcome of a tracked payment request.
func (m *Metrics) RecordSettlement(status string) {
	m.settlementsTotal.WithLabelValues(status).Inc()
}

// RecordDashboardLoad records a dashboard snapshot load.
func (m *Metrics) RecordDashboardLoad(status string, duration float64, entries, dropped int) {
	m.dashboardLoadsTotal.WithLabelValues(status).Inc()
	m.dashboardLoadDuration.Observe(duration)
	if status == "success" {
		m.dashboardEntries.Set(float64(entries))
	}
	m.dashboardDetailsDropped.Add(float64(dropped))
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
