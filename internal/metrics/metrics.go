package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters
var (
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualchat_turns_total",
		Help: "Completed conversation turns by outcome",
	}, []string{"outcome"})
	CollaboratorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualchat_collaborator_failures_total",
		Help: "Degraded collaborator calls by collaborator",
	}, []string{"collaborator"})
	SpeechRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualchat_speech_requests_total",
		Help: "Speak requests by selected provider",
	}, []string{"provider"})
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualchat_notifications_total",
		Help: "Notifications shown by kind",
	}, []string{"kind"})
	CaptureSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualchat_capture_sessions_total",
		Help: "Finished capture sessions by outcome",
	}, []string{"outcome"})
)

// Histograms
var (
	TurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dualchat_turn_duration_ms",
		Help:    "Turn duration in milliseconds by stage",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
	}, []string{"stage"})
)

// Gauges
var (
	Translating = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dualchat_translations_in_flight",
		Help: "Number of translation calls currently in flight",
	})
)
