package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.OperationsTotal == nil {
		t.Error("OperationsTotal not initialized")
	}
	if r.OperationDuration == nil {
		t.Error("OperationDuration not initialized")
	}
	if r.BlocksTotal == nil {
		t.Error("BlocksTotal not initialized")
	}
	if r.UptimeSeconds == nil {
		t.Error("UptimeSeconds not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	// Should return the same instance
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordOperation(t *testing.T) {
	r := NewRegistry()

	r.RecordOperation("insert", "ok", 100*time.Microsecond)
	r.RecordOperation("insert", "ok", 200*time.Microsecond)
	r.RecordOperation("insert", "not_found", 50*time.Microsecond)

	counter, err := r.OperationsTotal.GetMetricWithLabelValues("insert", "ok")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2 {
		t.Errorf("Counter value = %v, want 2", metric.Counter.GetValue())
	}
}

func TestRecordSplitAndMerge(t *testing.T) {
	r := NewRegistry()

	r.RecordSplit()
	r.RecordSplit()
	r.RecordMerge()

	var metric dto.Metric
	if err := r.SplitsTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("SplitsTotal = %v, want 2", metric.Counter.GetValue())
	}

	if err := r.MergesTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("MergesTotal = %v, want 1", metric.Counter.GetValue())
	}
}

func TestRecordBorrowAndRedistribute(t *testing.T) {
	r := NewRegistry()

	r.RecordBorrow("left")
	r.RecordBorrow("left")
	r.RecordBorrow("right")
	r.RecordRedistribute("right")

	leftCounter, _ := r.BorrowsTotal.GetMetricWithLabelValues("left")
	var metric dto.Metric
	if err := leftCounter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("left borrows = %v, want 2", metric.Counter.GetValue())
	}

	rightRedis, _ := r.RedistributesTotal.GetMetricWithLabelValues("right")
	if err := rightRedis.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("right redistributes = %v, want 1", metric.Counter.GetValue())
	}
}

func TestUpdateStructuralMetrics(t *testing.T) {
	r := NewRegistry()

	r.UpdateStructuralMetrics(42, 1000, 3, 65536)

	tests := []struct {
		name     string
		gauge    prometheus.Gauge
		expected float64
	}{
		{"BlocksTotal", r.BlocksTotal, 42},
		{"RecordsTotal", r.RecordsTotal, 1000},
		{"FreeListLength", r.FreeListLength, 3},
		{"DiskUsageBytes", r.DiskUsageBytes, 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var metric dto.Metric
			if err := tt.gauge.Write(&metric); err != nil {
				t.Fatalf("Failed to write metric: %v", err)
			}

			if metric.Gauge.GetValue() != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, metric.Gauge.GetValue(), tt.expected)
			}
		})
	}
}

func TestRecordIndexRebuild(t *testing.T) {
	r := NewRegistry()

	r.RecordIndexRebuild()
	r.RecordIndexRebuild()

	var metric dto.Metric
	if err := r.IndexRebuilds.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("IndexRebuilds = %v, want 2", metric.Counter.GetValue())
	}

	if err := r.IndexStaleReads.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("IndexStaleReads = %v, want 2", metric.Counter.GetValue())
	}
}

func TestSystemMetrics(t *testing.T) {
	r := NewRegistry()

	r.UptimeSeconds.Set(3600)
	r.GoRoutines.Set(50)
	r.MemoryAllocBytes.Set(1024 * 1024 * 100) // 100 MB
	r.MemorySysBytes.Set(1024 * 1024 * 200)   // 200 MB

	tests := []struct {
		name     string
		gauge    prometheus.Gauge
		expected float64
	}{
		{"UptimeSeconds", r.UptimeSeconds, 3600},
		{"GoRoutines", r.GoRoutines, 50},
		{"MemoryAllocBytes", r.MemoryAllocBytes, 1024 * 1024 * 100},
		{"MemorySysBytes", r.MemorySysBytes, 1024 * 1024 * 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var metric dto.Metric
			if err := tt.gauge.Write(&metric); err != nil {
				t.Fatalf("Failed to write metric: %v", err)
			}

			if metric.Gauge.GetValue() != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, metric.Gauge.GetValue(), tt.expected)
			}
		})
	}
}

func TestGetPrometheusRegistry(t *testing.T) {
	r := NewRegistry()
	// Vector metrics are gathered only once a label set exists.
	r.RecordOperation("lookup", "ok", time.Microsecond)
	promRegistry := r.GetPrometheusRegistry()

	if promRegistry == nil {
		t.Fatal("GetPrometheusRegistry() returned nil")
	}

	metrics, err := promRegistry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	if len(metrics) == 0 {
		t.Error("No metrics registered")
	}

	expectedMetrics := []string{
		"blockset_blocks_total",
		"blockset_operations_total",
		"blockset_uptime_seconds",
	}

	metricNames := make(map[string]bool)
	for _, m := range metrics {
		metricNames[m.GetName()] = true
	}

	for _, expected := range expectedMetrics {
		if !metricNames[expected] {
			t.Errorf("Expected metric %s not found", expected)
		}
	}
}

func TestHistogramMetrics(t *testing.T) {
	r := NewRegistry()

	r.OperationDuration.WithLabelValues("lookup").Observe(0.0001)
	r.OperationDuration.WithLabelValues("lookup").Observe(0.0002)
	r.OperationDuration.WithLabelValues("lookup").Observe(0.00015)

	histogram, err := r.OperationDuration.GetMetricWithLabelValues("lookup")
	if err != nil {
		t.Fatalf("Failed to get histogram: %v", err)
	}

	var metric dto.Metric
	if err := histogram.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("Sample count = %v, want 3", metric.Histogram.GetSampleCount())
	}

	sum := metric.Histogram.GetSampleSum()
	if sum < 0.00044 || sum > 0.00046 {
		t.Errorf("Sample sum = %v, want ~0.00045", sum)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.RecordOperation("lookup", "ok", 10*time.Microsecond)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	counter, err := r.OperationsTotal.GetMetricWithLabelValues("lookup", "ok")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1000 {
		t.Errorf("Counter = %v, want 1000", metric.Counter.GetValue())
	}
}

func TestMetricLabels(t *testing.T) {
	r := NewRegistry()

	r.RecordOperation("insert", "ok", 10*time.Microsecond)
	r.RecordOperation("remove", "ok", 20*time.Microsecond)
	r.RecordOperation("insert", "duplicate", 15*time.Microsecond)

	insertOK, _ := r.OperationsTotal.GetMetricWithLabelValues("insert", "ok")
	removeOK, _ := r.OperationsTotal.GetMetricWithLabelValues("remove", "ok")
	insertDup, _ := r.OperationsTotal.GetMetricWithLabelValues("insert", "duplicate")

	var metric dto.Metric

	insertOK.Write(&metric)
	if metric.Counter.GetValue() != 1 {
		t.Errorf("insert/ok counter = %v, want 1", metric.Counter.GetValue())
	}

	removeOK.Write(&metric)
	if metric.Counter.GetValue() != 1 {
		t.Errorf("remove/ok counter = %v, want 1", metric.Counter.GetValue())
	}

	insertDup.Write(&metric)
	if metric.Counter.GetValue() != 1 {
		t.Errorf("insert/duplicate counter = %v, want 1", metric.Counter.GetValue())
	}
}

func TestMetricNaming(t *testing.T) {
	r := NewRegistry()
	promRegistry := r.GetPrometheusRegistry()

	metrics, err := promRegistry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, m := range metrics {
		name := m.GetName()
		if !strings.HasPrefix(name, "blockset_") {
			t.Errorf("Metric %s does not have blockset_ prefix", name)
		}
	}
}

func BenchmarkRecordOperation(b *testing.B) {
	r := NewRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.RecordOperation("lookup", "ok", 10*time.Microsecond)
	}
}

func BenchmarkUpdateStructuralMetrics(b *testing.B) {
	r := NewRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.UpdateStructuralMetrics(uint32(i), uint32(i*10), 3, 65536)
	}
}
