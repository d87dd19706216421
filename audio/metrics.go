package audio

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the playback collectors. A nil *Metrics records nothing.
type Metrics struct {
	SongsStarted    prometheus.Counter
	SongsSkipped    *prometheus.CounterVec
	Autoplay        *prometheus.CounterVec
	PrepareDuration prometheus.Histogram
	ActiveGuilds    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SongsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jukebox_songs_started_total",
				Help: "Total number of songs sent to a voice connection",
			},
		),
		SongsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_songs_skipped_total",
				Help: "Total number of songs discarded because they could not be played",
			},
			[]string{"reason"},
		),
		Autoplay: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_autoplay_total",
				Help: "Autoplay extension attempts by outcome",
			},
			[]string{"result"},
		),
		PrepareDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jukebox_prepare_duration_seconds",
				Help:    "Time spent resolving a song's stream URL",
				Buckets: prometheus.DefBuckets,
			},
		),
		ActiveGuilds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jukebox_active_guilds",
				Help: "Number of guilds with live playback state",
			},
		),
	}

	reg.MustRegister(
		m.SongsStarted,
		m.SongsSkipped,
		m.Autoplay,
		m.PrepareDuration,
		m.ActiveGuilds,
	)
	return m
}

const (
	skipResolve  = "resolve"
	skipPlayback = "playback"

	autoplayAdded    = "added"
	autoplayEmpty    = "empty"
	autoplayError    = "error"
	autoplayDisabled = "disabled"
)

func (m *Metrics) songStarted() {
	if m == nil {
		return
	}
	m.SongsStarted.Inc()
}

func (m *Metrics) songSkipped(reason string) {
	if m == nil {
		return
	}
	m.SongsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) autoplayResult(result string) {
	if m == nil {
		return
	}
	m.Autoplay.WithLabelValues(result).Inc()
}

func (m *Metrics) observePrepare(d time.Duration) {
	if m == nil {
		return
	}
	m.PrepareDuration.Observe(d.Seconds())
}

func (m *Metrics) setActiveGuilds(n int) {
	if m == nil {
		return
	}
	m.ActiveGuilds.Set(float64(n))
}
