package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for gateway reconciliation
// observability. Status labels carry the numeric gateway status code.
type BusinessMetrics struct {
	// Callback funnel
	CallbackReceived  *prometheus.CounterVec
	CallbackProcessed *prometheus.CounterVec
	CallbackFailed    *prometheus.CounterVec
	CallbackLatency   *prometheus.HistogramVec

	// Transaction reconciliation
	TransactionsRecorded *prometheus.CounterVec
	DuplicateCallbacks   prometheus.Counter
	InvalidStatus        prometheus.Counter
	SaveFailures         prometheus.Counter

	// Amount reconciliation
	AmountRoundingWarnings prometheus.Counter
	AmountFallbacks        prometheus.Counter

	// Documents
	InvoicesCreated    *prometheus.CounterVec
	CreditMemosCreated *prometheus.CounterVec
}

// Business is the global metrics instance. Nil until InitBusinessMetrics is
// called; callers nil-check before use so library consumers can skip metrics.
var Business *BusinessMetrics

// InitBusinessMetrics registers all business metrics with the default
// Prometheus registry and installs the global instance.
func InitBusinessMetrics() *BusinessMetrics {
	m := &BusinessMetrics{
		CallbackReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_callbacks_received_total",
			Help: "Gateway callbacks received, by transaction status code.",
		}, []string{"status"}),

		CallbackProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_callbacks_processed_total",
			Help: "Gateway callbacks fully processed, by transaction status code.",
		}, []string{"status"}),

		CallbackFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_callbacks_failed_total",
			Help: "Gateway callbacks that could not be processed, by status code and reason.",
		}, []string{"status", "reason"}),

		CallbackLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_callback_duration_seconds",
			Help:    "Time spent processing one gateway callback.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),

		TransactionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_transactions_recorded_total",
			Help: "Payment transactions recorded on orders, by transaction type.",
		}, []string{"type"}),

		DuplicateCallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_duplicate_callbacks_total",
			Help: "Callbacks whose transaction number was already processed.",
		}),

		InvalidStatus: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_invalid_status_total",
			Help: "Callbacks carrying an unrecognized or missing transaction status.",
		}),

		SaveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_order_save_failures_total",
			Help: "Order persistence failures swallowed after recording a transaction.",
		}),

		AmountRoundingWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_amount_rounding_warnings_total",
			Help: "Amount reconciliations that differed from the host grand total within tolerance.",
		}),

		AmountFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_amount_fallbacks_total",
			Help: "Amount reconciliations that fell back to the host grand total.",
		}),

		InvoicesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_invoices_created_total",
			Help: "Invoices created, by capture case.",
		}, []string{"capture"}),

		CreditMemosCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_credit_memos_created_total",
			Help: "Credit memos created, by capture case.",
		}, []string{"capture"}),
	}

	Business = m
	return m
}
