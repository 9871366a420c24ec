package metrics

import (
	"time"
)

// RecordOperation records one engine operation (Lookup, Insert, Remove, ...)
// with its outcome and duration.
func (r *Registry) RecordOperation(operation, status string, duration time.Duration) {
	r.OperationsTotal.WithLabelValues(operation, status).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSplit increments the split counter, called once per split performed
// while satisfying an insert.
func (r *Registry) RecordSplit() {
	r.SplitsTotal.Inc()
}

// RecordMerge increments the merge counter, called once per merge performed
// while satisfying a delete.
func (r *Registry) RecordMerge() {
	r.MergesTotal.Inc()
}

// RecordBorrow increments the borrow counter for the given direction
// ("left" or "right").
func (r *Registry) RecordBorrow(direction string) {
	r.BorrowsTotal.WithLabelValues(direction).Inc()
}

// RecordRedistribute increments the redistribute counter for the given
// direction ("left" or "right").
func (r *Registry) RecordRedistribute(direction string) {
	r.RedistributesTotal.WithLabelValues(direction).Inc()
}

// UpdateStructuralMetrics refreshes the block/record/free-list gauges,
// typically called after Open and after each mutating operation.
func (r *Registry) UpdateStructuralMetrics(blockCount, recordCount, freeListLength uint32, diskUsageBytes int64) {
	r.BlocksTotal.Set(float64(blockCount))
	r.RecordsTotal.Set(float64(recordCount))
	r.FreeListLength.Set(float64(freeListLength))
	r.DiskUsageBytes.Set(float64(diskUsageBytes))
}

// RecordIndexRebuild increments the index-rebuild and stale-read counters
// together. The engine calls it whenever Open rebuilds the index from the
// chain: stale flag set, or sidecar index file missing or unreadable.
func (r *Registry) RecordIndexRebuild() {
	r.IndexRebuilds.Inc()
	r.IndexStaleReads.Inc()
}
