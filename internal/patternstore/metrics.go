package patternstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PatternsTotal tracks stored patterns by verification state.
	// Labels: verified (player, machine)
	PatternsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "buildscout",
			Subsystem: "patternstore",
			Name:      "patterns_total",
			Help:      "Number of stored patterns by verification state",
		},
		[]string{"verified"},
	)

	// CommentsTotal tracks stored comments.
	CommentsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "buildscout",
			Subsystem: "patternstore",
			Name:      "comments_total",
			Help:      "Number of stored comments",
		},
	)

	// KeywordsTotal tracks distinct indexed pattern keywords.
	KeywordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "buildscout",
			Subsystem: "patternstore",
			Name:      "keywords_total",
			Help:      "Number of distinct keywords in the pattern index",
		},
	)

	// LoadFailures counts store files that could not be read or decoded.
	// Labels: file (patterns, comments)
	LoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildscout",
			Subsystem: "patternstore",
			Name:      "load_failures_total",
			Help:      "Total number of store files that failed to load",
		},
		[]string{"file"},
	)

	// SaveDuration tracks how long a full save takes.
	SaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "buildscout",
			Subsystem: "patternstore",
			Name:      "save_duration_seconds",
			Help:      "Duration of store saves in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func updateStoreMetrics(st Stats) {
	PatternsTotal.WithLabelValues("player").Set(float64(st.PlayerVerified))
	PatternsTotal.WithLabelValues("machine").Set(float64(st.MachineGuessed))
	CommentsTotal.Set(float64(st.TotalComments))
	KeywordsTotal.Set(float64(st.TotalKeywords))
}
