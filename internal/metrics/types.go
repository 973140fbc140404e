package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
type Service struct {
	MatchesRecorded    prometheus.Counter
	MatchesEdited      prometheus.Counter
	MatchesDeleted     prometheus.Counter
	LockedEditRejected prometheus.Counter
	LocksAssigned      prometheus.Counter
	LockFailures       prometheus.Counter
	PinAttempts        *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	SlackNotifSent     prometheus.Counter
	SlackNotifFailed   prometheus.Counter
	StartupTimeSeconds prometheus.Gauge
}
