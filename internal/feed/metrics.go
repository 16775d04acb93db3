package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sampler metrics
	samplerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicegate_sampler_ticks_total",
			Help: "Total number of sampling ticks across all feeds",
		},
	)

	samplerEmptyTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicegate_sampler_empty_ticks_total",
			Help: "Total number of sampling ticks that found no new data",
		},
	)

	peakLevelDB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicegate_peak_level_db",
			Help: "Most recent peak level in dB across all feeds",
		},
	)

	// Detector metrics
	speakingTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicegate_speaking_transitions_total",
			Help: "Total number of speaking verdict flips",
		},
	)

	vadMutesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicegate_vad_mutes_total",
			Help: "Total number of mute requests issued by the voice activity controller",
		},
	)

	vadUnmutesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicegate_vad_unmutes_total",
			Help: "Total number of unmute requests issued by the voice activity controller",
		},
	)

	// Registry metrics
	activeFeeds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicegate_active_feeds",
			Help: "Number of live feeds",
		},
	)
)
