// Package metrics exposes the kernel's internal counters and gauges via
// prometheus/client_golang, the way operational visibility is wired in
// production Go services: cache hit/miss, block device I/O, ready-queue
// depth, and total syscalls served.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric this kernel exports, registered against
// its own prometheus.Registry so tests can spin up an isolated instance
// rather than fighting over the global default registry.
type Registry struct {
	reg *prometheus.Registry

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	BlockReads  prometheus.Counter
	BlockWrites prometheus.Counter

	ReadyQueueDepth prometheus.Gauge

	SyscallsTotal *prometheus.CounterVec
}

// New builds and registers a fresh Registry.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nanokernel",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Block cache lookups that found a resident entry.",
	})
	r.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nanokernel",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Block cache lookups that required a device read.",
	})
	r.BlockReads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nanokernel",
		Subsystem: "blockdev",
		Name:      "reads_total",
		Help:      "Blocks read from the backing device.",
	})
	r.BlockWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nanokernel",
		Subsystem: "blockdev",
		Name:      "writes_total",
		Help:      "Blocks written to the backing device.",
	})
	r.ReadyQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nanokernel",
		Subsystem: "scheduler",
		Name:      "ready_queue_depth",
		Help:      "Threads currently waiting on the ready queue.",
	})
	r.SyscallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nanokernel",
		Subsystem: "syscall",
		Name:      "calls_total",
		Help:      "Syscalls served, labeled by mnemonic.",
	}, []string{"name"})

	r.reg.MustRegister(
		r.CacheHits, r.CacheMisses,
		r.BlockReads, r.BlockWrites,
		r.ReadyQueueDepth,
		r.SyscallsTotal,
	)
	return r
}

// Gatherer exposes the underlying registry for an HTTP handler
// (promhttp.HandlerFor) to serve.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
