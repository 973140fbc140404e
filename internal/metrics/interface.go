package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncMatchesRecorded()
	IncMatchesEdited()
	IncMatchesDeleted()
	IncLockedEditRejected()
	IncLocksAssigned()
	IncLockFailures()
	IncPinAttempt(operation, outcome string)
	ObserveProcessingDuration(duration float64)
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(duration float64)
}
