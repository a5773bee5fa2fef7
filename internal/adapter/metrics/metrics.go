// Package metrics exposes Prometheus collectors for daemon RPC and ledger operations.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"coin-tip-ledger/pkg/apperror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const resultOK = "ok"

// Metrics holds the service collectors.
type Metrics struct {
	rpcCalls       *prometheus.CounterVec
	rpcDuration    *prometheus.HistogramVec
	addressRetries *prometheus.CounterVec
	ledgerOps      *prometheus.CounterVec
	hazards        *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coin_rpc_calls_total",
			Help: "Coin daemon RPC calls by method and result code.",
		}, []string{"coin", "method", "result"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coin_rpc_duration_seconds",
			Help:    "Coin daemon RPC latency, settle delay excluded.",
			Buckets: prometheus.DefBuckets,
		}, []string{"coin", "method"}),
		addressRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coin_address_retries_total",
			Help: "getnewaddress retries after a transient daemon failure.",
		}, []string{"coin"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by result code.",
		}, []string{"coin", "op", "result"}),
		hazards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_reconciliation_hazards_total",
			Help: "Withdrawals broadcast on chain whose ledger debit failed.",
		}, []string{"coin"}),
	}
	reg.MustRegister(m.rpcCalls, m.rpcDuration, m.addressRetries, m.ledgerOps, m.hazards)
	return m
}

// ObserveRPC records one daemon call started at start.
func (m *Metrics) ObserveRPC(coin, method string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(coin, method, result(err)).Inc()
	m.rpcDuration.WithLabelValues(coin, method).Observe(time.Since(start).Seconds())
}

// AddressRetry counts one retried address generation attempt.
func (m *Metrics) AddressRetry(coin string) {
	if m == nil {
		return
	}
	m.addressRetries.WithLabelValues(coin).Inc()
}

// LedgerOp records the outcome of a ledger operation.
func (m *Metrics) LedgerOp(coin, op string, err error) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(coin, op, result(err)).Inc()
}

// Hazard counts a reconciliation hazard.
func (m *Metrics) Hazard(coin string) {
	if m == nil {
		return
	}
	m.hazards.WithLabelValues(coin).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err == nil {
		return resultOK
	}
	if code := apperror.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
