// Package metrics exposes Prometheus instrumentation for the ledger and the
// REST and RPC surfaces.
//
// All collectors live on a private registry so tests can build as many
// instances as they like. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spending_diary"

// Outcome labels for ledger operations.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeConflict = "conflict"
)

// Metrics holds every collector the service records to.
type Metrics struct {
	registry *prometheus.Registry

	ledgerDuration  *prometheus.HistogramVec
	ledgerRetries   *prometheus.CounterVec
	ledgerConflicts *prometheus.CounterVec
	expenses        *prometheus.CounterVec
	settlements     prometheus.Counter
	httpDuration    *prometheus.HistogramVec
	rpcDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ledgerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger units of work, including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		ledgerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "retries_total",
			Help:      "Ledger transactions retried after a concurrent modification.",
		}, []string{"op"}),
		ledgerConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "conflicts_total",
			Help:      "Ledger operations that gave up with a conflict.",
		}, []string{"op"}),
		expenses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_total",
			Help:      "Expenses created or deleted.",
		}, []string{"action"}),
		settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Balances settled between two users.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "Connect RPC latency by procedure and code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ledgerDuration,
		m.ledgerRetries,
		m.ledgerConflicts,
		m.expenses,
		m.settlements,
		m.httpDuration,
		m.rpcDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLedgerOp records how long a ledger unit of work took.
func (m *Metrics) ObserveLedgerOp(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ledgerDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (m *Metrics) IncLedgerRetry(op string) {
	if m == nil {
		return
	}
	m.ledgerRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) IncLedgerConflict(op string) {
	if m == nil {
		return
	}
	m.ledgerConflicts.WithLabelValues(op).Inc()
}

// IncExpense counts an expense lifecycle action ("created" or "deleted").
func (m *Metrics) IncExpense(action string) {
	if m == nil {
		return
	}
	m.expenses.WithLabelValues(action).Inc()
}

func (m *Metrics) IncSettlement() {
	if m == nil {
		return
	}
	m.settlements.Inc()
}

// ObserveHTTP records one served request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveRPC records one unary call. code is the Connect code name, "ok" on
// success.
func (m *Metrics) ObserveRPC(procedure, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcDuration.WithLabelValues(procedure, code).Observe(d.Seconds())
}
