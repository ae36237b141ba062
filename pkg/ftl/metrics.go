package ftl

// Metrics receives band accounting updates from a device.
//
// A nil Metrics is valid and disables collection. The Prometheus
// implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	// RecordGrouping is called once per open after bands are decorated.
	RecordGrouping(device string, g Grouping)

	// RecordReconciliation is called after a successful recovery pass.
	RecordReconciliation(device string, r Reconciliation)

	// RecordLimit is called each time the admission-control level is
	// recomputed.
	RecordLimit(device string, level Level, numFree uint64)
}
