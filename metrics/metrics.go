// Package metrics exposes prometheus counters for the chain engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devchain"

// Metrics holds every collector registered by the node
type Metrics struct {
	registry *prometheus.Registry

	blocksMined     prometheus.Counter
	txsIncluded     prometheus.Counter
	txsReverted     prometheus.Counter
	txsRejected     *prometheus.CounterVec
	forkCacheHits   *prometheus.CounterVec
	forkCacheMisses *prometheus.CounterVec
	forkFetchErrors prometheus.Counter
	poolSize        prometheus.Gauge
	headBlock       prometheus.Gauge
	rpcRequests     *prometheus.CounterVec
	wsClients       prometheus.Gauge
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		blocksMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_mined_total",
			Help:      "Number of blocks appended to the chain log.",
		}),
		txsIncluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_included_total",
			Help:      "Number of transactions included in mined blocks.",
		}),
		txsReverted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_reverted_total",
			Help:      "Number of included transactions with a failed receipt.",
		}),
		txsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_rejected_total",
			Help:      "Number of transactions rejected at submission or mine time.",
		}, []string{"reason"}),
		forkCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fork",
			Name:      "cache_hits_total",
			Help:      "Fork overlay cache hits.",
		}, []string{"kind"}),
		forkCacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fork",
			Name:      "cache_misses_total",
			Help:      "Fork overlay cache misses.",
		}, []string{"kind"}),
		forkFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fork",
			Name:      "fetch_errors_total",
			Help:      "Remote fetches that failed after all retries.",
		}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_transactions",
			Help:      "Transactions waiting in the pool.",
		}),
		headBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "head_block_number",
			Help:      "Number of the chain head.",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC calls served, by method and outcome.",
		}, []string{"method", "status"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}
	m.registry.MustRegister(
		m.blocksMined,
		m.txsIncluded,
		m.txsReverted,
		m.txsRejected,
		m.forkCacheHits,
		m.forkCacheMisses,
		m.forkFetchErrors,
		m.poolSize,
		m.headBlock,
		m.rpcRequests,
		m.wsClients,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BlockMined records a new head with its included and reverted transactions
func (m *Metrics) BlockMined(number uint64, included, reverted int) {
	if m == nil {
		return
	}
	m.blocksMined.Inc()
	m.txsIncluded.Add(float64(included))
	m.txsReverted.Add(float64(reverted))
	m.headBlock.Set(float64(number))
}

// TxRejected records a rejected transaction
func (m *Metrics) TxRejected(reason string) {
	if m == nil {
		return
	}
	m.txsRejected.WithLabelValues(reason).Inc()
}

// PoolSize records the number of pooled transactions
func (m *Metrics) PoolSize(n int) {
	if m == nil {
		return
	}
	m.poolSize.Set(float64(n))
}

// ForkCache records a fork cache lookup of the given kind
func (m *Metrics) ForkCache(kind string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.forkCacheHits.WithLabelValues(kind).Inc()
	} else {
		m.forkCacheMisses.WithLabelValues(kind).Inc()
	}
}

// ForkFetchFailed records a remote fetch that exhausted its retries
func (m *Metrics) ForkFetchFailed() {
	if m == nil {
		return
	}
	m.forkFetchErrors.Inc()
}

// RPCRequest records one served JSON-RPC call
func (m *Metrics) RPCRequest(method string, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.rpcRequests.WithLabelValues(method, status).Inc()
}

// WSClients records the number of connected WebSocket clients
func (m *Metrics) WSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}
