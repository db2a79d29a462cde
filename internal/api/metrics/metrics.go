// Package metrics defines the custom Prometheus metrics of the escrow API.
// It is the single source of truth for metric names, labels, and help
// strings.
//
// Call Register once per registry before the HTTP server starts. A collector
// may be registered with several registries, which keeps tests that build
// many routers independent.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

const namespace = "escrow"

// ── Operation metrics ─────────────────────────────────────────────────────────

// OperationsTotal counts escrow operations by outcome.
// Labels:
//   - operation: "create", "complete", "approve", "dispute", "resolve", "get", "events", "balance"
//   - result: "ok" or a short failure reason (e.g. "invalid_state", "transfer_failed")
var OperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of escrow operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// OperationDuration measures handler latency per operation.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of escrow operations from request decode to response.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// IdempotentReplaysTotal counts create requests answered from an earlier
// Idempotency-Key instead of creating a new project.
var IdempotentReplaysTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotent_replays_total",
		Help:      "Total number of project creations replayed from an Idempotency-Key.",
	},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsTotal counts delivered domain events.
// Label:
//   - type: the event type (e.g. "project_funded", "funds_released")
var EventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Total number of project events delivered, by type.",
	},
	[]string{"type"},
)

// FundsReleasedTotal sums units paid out of escrow.
// Label:
//   - reason: "approval" or "dispute"
var FundsReleasedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "funds_released_units_total",
		Help:      "Total value released from escrow, by release reason.",
	},
	[]string{"reason"},
)

// Collectors lists every metric defined in this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		OperationsTotal,
		OperationDuration,
		IdempotentReplaysTotal,
		EventsTotal,
		FundsReleasedTotal,
	}
}

// Register adds the package collectors to reg. Collectors already present
// in reg are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveOperation records the outcome and latency of one operation.
func ObserveOperation(operation string, start time.Time, err error) {
	OperationsTotal.WithLabelValues(operation, Reason(err)).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Reason maps an operation error to a low-cardinality label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrProjectNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrDeadlinePassed):
		return "deadline_passed"
	case errors.Is(err, domain.ErrTransferFailed):
		return "transfer_failed"
	default:
		return "error"
	}
}
