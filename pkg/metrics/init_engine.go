package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEngineMetrics() {
	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockset_operations_total",
			Help: "Total number of engine operations by kind and status",
		},
		[]string{"operation", "status"},
	)

	r.OperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockset_operation_duration_seconds",
			Help:    "Engine operation duration in seconds",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"operation"},
	)

	r.BlocksTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "blockset_blocks_total",
			Help: "Total number of blocks in the file, active and free",
		},
	)

	r.RecordsTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "blockset_records_total",
			Help: "Total number of records across all active blocks",
		},
	)

	r.FreeListLength = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "blockset_free_list_length",
			Help: "Number of blocks currently on the available list",
		},
	)

	r.SplitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "blockset_splits_total",
			Help: "Total number of block splits performed during insertion",
		},
	)

	r.MergesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "blockset_merges_total",
			Help: "Total number of block merges performed during deletion",
		},
	)

	r.BorrowsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockset_borrows_total",
			Help: "Total number of borrow operations performed during deletion",
		},
		[]string{"direction"},
	)

	r.RedistributesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockset_redistributes_total",
			Help: "Total number of redistribute operations performed during insertion",
		},
		[]string{"direction"},
	)

	r.DiskUsageBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "blockset_disk_usage_bytes",
			Help: "File size in bytes: header plus block array",
		},
	)

	r.IndexRebuilds = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "blockset_index_rebuilds_total",
			Help: "Total number of times the block index was rebuilt from the active chain",
		},
	)

	r.IndexStaleReads = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "blockset_index_stale_reads_total",
			Help: "Total number of Opens that rebuilt the block index instead of loading it (stale flag set, or index file missing or unreadable)",
		},
	)
}
