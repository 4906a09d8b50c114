package controller

// metrics.go is a thin Prometheus abstraction in the same spirit as the
// original arena-cache package's metrics sink: callers that don't pass a
// *prometheus.Registry get a noop sink and the hot path pays nothing for
// instrumentation.
//
// 	assetcore_loads_total          Ctr  domain, result
// 	assetcore_cache_hits_total     Ctr  domain
// 	assetcore_cache_misses_total   Ctr  domain
// 	assetcore_ops_inflight         Gge  domain
// 	assetcore_cache_bytes          Gge  domain

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics abstracts the concrete backend so Cache and Data controllers only
// depend on these methods, never on prometheus directly.
type Metrics interface {
	IncLoad(domain string, ok bool)
	IncCacheHit(domain string)
	IncCacheMiss(domain string)
	SetOpsInFlight(domain string, n int)
	AddCacheBytes(domain string, delta int64)
}

type noopMetrics struct{}

func (noopMetrics) IncLoad(string, bool)         {}
func (noopMetrics) IncCacheHit(string)           {}
func (noopMetrics) IncCacheMiss(string)          {}
func (noopMetrics) SetOpsInFlight(string, int)   {}
func (noopMetrics) AddCacheBytes(string, int64)  {}

// NoopMetrics returns a Metrics implementation that discards everything, the
// default when no registry is supplied.
func NoopMetrics() Metrics { return noopMetrics{} }

type promMetrics struct {
	loads      *prometheus.CounterVec
	cacheHits  *prometheus.CounterVec
	cacheMiss  *prometheus.CounterVec
	opsInFlt   *prometheus.GaugeVec
	cacheBytes *prometheus.GaugeVec
}

// NewPromMetrics registers assetcore's metric family on reg and returns a
// Metrics backed by it.
func NewPromMetrics(reg *prometheus.Registry) Metrics {
	pm := &promMetrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetcore",
			Name:      "loads_total",
			Help:      "Number of Load publications attempted, by result.",
		}, []string{"domain", "result"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetcore",
			Name:      "cache_hits_total",
			Help:      "Number of reads served from the cache controller.",
		}, []string{"domain"}),
		cacheMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetcore",
			Name:      "cache_misses_total",
			Help:      "Number of reads that fell back to source.",
		}, []string{"domain"}),
		opsInFlt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "assetcore",
			Name:      "ops_inflight",
			Help:      "Operations currently admitted to the operation controller.",
		}, []string{"domain"}),
		cacheBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "assetcore",
			Name:      "cache_bytes",
			Help:      "Live bytes allocated across a domain's cache blocks.",
		}, []string{"domain"}),
	}
	reg.MustRegister(pm.loads, pm.cacheHits, pm.cacheMiss, pm.opsInFlt, pm.cacheBytes)
	return pm
}

func (m *promMetrics) IncLoad(domain string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.loads.WithLabelValues(domain, result).Inc()
}

func (m *promMetrics) IncCacheHit(domain string)  { m.cacheHits.WithLabelValues(domain).Inc() }
func (m *promMetrics) IncCacheMiss(domain string) { m.cacheMiss.WithLabelValues(domain).Inc() }

func (m *promMetrics) SetOpsInFlight(domain string, n int) {
	m.opsInFlt.WithLabelValues(domain).Set(float64(n))
}

func (m *promMetrics) AddCacheBytes(domain string, delta int64) {
	m.cacheBytes.WithLabelValues(domain).Add(float64(delta))
}
