package controller

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNoopMetricsDoesNothing(t *testing.T) {
	m := NoopMetrics()
	// Must not panic; there is nothing else to assert about a no-op sink.
	m.IncLoad("engine", true)
	m.IncLoad("engine", false)
	m.IncCacheHit("engine")
	m.IncCacheMiss("engine")
	m.SetOpsInFlight("engine", 3)
	m.AddCacheBytes("engine", 128)
}

func TestPromMetricsRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPromMetrics(reg)

	m.IncLoad("engine", true)
	m.IncLoad("engine", false)
	m.IncCacheHit("engine")
	m.IncCacheMiss("engine")
	m.SetOpsInFlight("engine", 2)
	m.AddCacheBytes("engine", 256)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	loads, ok := byName["assetcore_loads_total"]
	if !ok || len(loads.Metric) != 2 {
		t.Fatalf("expected two label combinations for assetcore_loads_total, got %+v", loads)
	}

	if hits := byName["assetcore_cache_hits_total"]; hits == nil || hits.Metric[0].Counter.GetValue() != 1 {
		t.Fatalf("expected one cache hit recorded, got %+v", hits)
	}
	if bytes := byName["assetcore_cache_bytes"]; bytes == nil || bytes.Metric[0].Gauge.GetValue() != 256 {
		t.Fatalf("expected cache_bytes gauge == 256, got %+v", bytes)
	}
	if inflight := byName["assetcore_ops_inflight"]; inflight == nil || inflight.Metric[0].Gauge.GetValue() != 2 {
		t.Fatalf("expected ops_inflight gauge == 2, got %+v", inflight)
	}
}
