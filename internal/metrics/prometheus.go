// Package metrics exposes Prometheus metrics for the resolution API and the
// live session core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Live session metrics
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisiv_live_sessions_started_total",
		Help: "Total number of live interrogation sessions started",
	})
	SessionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisiv_live_sessions_failed_total",
		Help: "Total number of live sessions that ended in failure",
	})
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "decisiv_live_sessions_active",
		Help: "Number of currently live interrogation sessions",
	})

	// Audio path metrics
	AudioChunksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisiv_audio_chunks_scheduled_total",
		Help: "Total number of inbound audio chunks scheduled for playback",
	})
	AudioChunksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisiv_audio_chunks_dropped_total",
		Help: "Total number of inbound audio chunks dropped as malformed",
	})
	FramesStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisiv_video_frames_streamed_total",
		Help: "Total number of video frames streamed to the reasoning service",
	})

	// Resolution metrics
	ResolutionsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decisiv_resolutions_total",
		Help: "Total number of scenario resolutions served, by outcome",
	}, []string{"outcome"})
)
