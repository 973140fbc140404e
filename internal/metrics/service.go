package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		MatchesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreline_matches_recorded_total",
			Help: "The total number of matches appended to a ledger.",
		}),
		MatchesEdited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreline_matches_edited_total",
			Help: "The total number of match score edits.",
		}),
		MatchesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreline_matches_deleted_total",
			Help: "The total number of matches removed from a ledger.",
		}),
		LockedEditRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreline_locked_edits_rejected_total",
			Help: "The total number of edits refused because the match was locked.",
		}),
		LocksAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreline_locks_assigned_total",
			Help: "The total number of lock boundaries written to matches.",
		}),
		LockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreline_lock_failures_total",
			Help: "The total number of matches left unlocked because the boundary could not be assigned.",
		}),
		PinAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoreline_admin_pin_attempts_total",
			Help: "Admin PIN operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scoreline_event_processing_duration_seconds",
			Help:    "The duration of match-created event processing.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreline_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreline_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scoreline_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.MatchesRecorded,
		s.MatchesEdited,
		s.MatchesDeleted,
		s.LockedEditRejected,
		s.LocksAssigned,
		s.LockFailures,
		s.PinAttempts,
		s.ProcessingDuration,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncMatchesRecorded()    { s.MatchesRecorded.Inc() }
func (s *Service) IncMatchesEdited()      { s.MatchesEdited.Inc() }
func (s *Service) IncMatchesDeleted()     { s.MatchesDeleted.Inc() }
func (s *Service) IncLockedEditRejected() { s.LockedEditRejected.Inc() }
func (s *Service) IncLocksAssigned()      { s.LocksAssigned.Inc() }
func (s *Service) IncLockFailures()       { s.LockFailures.Inc() }

func (s *Service) IncPinAttempt(operation, outcome string) {
	s.PinAttempts.WithLabelValues(operation, outcome).Inc()
}

func (s *Service) ObserveProcessingDuration(duration float64) {
	s.ProcessingDuration.Observe(duration)
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
