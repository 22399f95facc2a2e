package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turns started through the session engine, by identity kind (guest|user).
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bluebox",
			Subsystem: "session",
			Name:      "sends_total",
			Help:      "Total messages sent through the session engine",
		},
		[]string{"identity"},
	)

	// Outcome of each turn: completed, interrupted, transport_error, store_error, rejected.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bluebox",
			Subsystem: "session",
			Name:      "turns_total",
			Help:      "Completed send turns by outcome",
		},
		[]string{"outcome"},
	)

	FragmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bluebox",
			Subsystem: "gateway",
			Name:      "fragments_total",
			Help:      "Total text fragments received from the inference stream",
		},
	)

	StreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bluebox",
			Subsystem: "gateway",
			Name:      "stream_duration_seconds",
			Help:      "Time from opening an inference stream to its end",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	// Store operations by operation and result (ok|error|not_found).
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bluebox",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Conversation store operations by result",
		},
		[]string{"operation", "result"},
	)

	ChatsCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bluebox",
			Subsystem: "store",
			Name:      "chats_cleaned_total",
			Help:      "Empty chats removed by cleanup",
		},
	)

	// Inference endpoint requests by status code class.
	InferenceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bluebox",
			Subsystem: "inference",
			Name:      "requests_total",
			Help:      "Requests served by the inference endpoint",
		},
		[]string{"status"},
	)

	ActiveWorkspaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bluebox",
			Subsystem: "workspace",
			Name:      "active",
			Help:      "Browser sessions currently held in memory",
		},
	)
)

// IdentityLabel maps presence of an identity to a low-cardinality label.
func IdentityLabel(authenticated bool) string {
	if authenticated {
		return "user"
	}
	return "guest"
}
