package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VideosFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidstream_videos_finished_total",
		Help: "Total number of videos that reached a terminal status, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidstream_stage_duration_seconds",
		Help:    "Duration of each video processing stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	TranscodeFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidstream_transcode_fallback_total",
		Help: "Transcodes replaced by simulated progress, by reason",
	}, []string{"reason"})

	VerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidstream_classifier_verdicts_total",
		Help: "Classifier verdicts recorded, by verdict",
	}, []string{"verdict"})

	ProgressEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidstream_progress_events_total",
		Help: "Progress events emitted to clients",
	})

	EscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidstream_escalations_total",
		Help: "Failures escalated to operators because the video could not be marked as errored",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidstream_active_workers",
		Help: "Number of videos currently being processed",
	})

	RequeuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidstream_requeued_total",
		Help: "Stalled videos handed back to the queue",
	})
)
