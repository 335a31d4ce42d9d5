package gridauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if m.Enabled() {
		t.Fatal("disabled metrics must report Enabled false")
	}
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}

	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty: %+v", snap)
	}

	// nil receiver is also a no-op.
	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	if nilMetrics.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics must read zero")
	}
}

func TestMetricsCountersAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricChallengeIssued)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 2 {
		t.Fatalf("snapshot login success = %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricChallengeIssued] != 1 {
		t.Fatalf("snapshot challenge issued = %d", snap.Counters[MetricChallengeIssued])
	}

	// Snapshot is a copy: mutating after does not change it.
	m.Inc(MetricLoginSuccess)
	if snap.Counters[MetricLoginSuccess] != 2 {
		t.Fatal("snapshot must be detached from live counters")
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []time.Duration{
		time.Millisecond,        // bucket 0 (<=5ms)
		8 * time.Millisecond,    // bucket 1 (<=10ms)
		20 * time.Millisecond,   // bucket 2 (<=25ms)
		40 * time.Millisecond,   // bucket 3 (<=50ms)
		80 * time.Millisecond,   // bucket 4 (<=100ms)
		200 * time.Millisecond,  // bucket 5 (<=250ms)
		400 * time.Millisecond,  // bucket 6 (<=500ms)
		2000 * time.Millisecond, // bucket 7 (+Inf)
	}
	for _, d := range samples {
		m.Observe(MetricValidateLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d = %d, want 1", i, v)
		}
	}

	// Non-latency IDs are rejected by Observe.
	m.Observe(MetricLoginSuccess, time.Millisecond)
	if v := m.Value(MetricLoginSuccess); v != 0 {
		t.Fatalf("Observe must not touch counters, got %d", v)
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 16
	const perWorker = 1000
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginSuccess); got != workers*perWorker {
		t.Fatalf("lost updates: got %d, want %d", got, workers*perWorker)
	}
}
