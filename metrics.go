package ctcbeam

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the Prometheus collectors the decoder reports against
// when a caller opts in via WithMetrics. A nil *Metrics (the default) makes
// every recording call below a no-op, so instrumentation costs nothing
// when unused.
type Metrics struct {
	decodeDuration prometheus.Histogram
	beamOccupancy  prometheus.Histogram
	evictions      prometheus.Counter
	emptyBeams     prometheus.Counter
}

// NewMetrics constructs a Metrics bundle and registers its collectors
// against reg. Pass prometheus.DefaultRegisterer to use the global
// registry, or a fresh *prometheus.Registry for test isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctcbeam_decode_duration_seconds",
			Help:    "Wall-clock time to decode a single batch item.",
			Buckets: prometheus.DefBuckets,
		}),
		beamOccupancy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctcbeam_beam_occupancy",
			Help:    "Number of active prefixes retained in the beam, sampled once per timestep.",
			Buckets: prometheus.LinearBuckets(0, 8, 16),
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctcbeam_beam_evictions_total",
			Help: "Number of prefixes evicted from the top-K beam heap.",
		}),
		emptyBeams: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctcbeam_empty_beam_total",
			Help: "Number of timesteps where every prefix in the beam went inactive.",
		}),
	}
	reg.MustRegister(m.decodeDuration, m.beamOccupancy, m.evictions, m.emptyBeams)
	return m
}

func (m *Metrics) observeDecodeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.decodeDuration.Observe(seconds)
}

func (m *Metrics) observeBeamOccupancy(n int) {
	if m == nil {
		return
	}
	m.beamOccupancy.Observe(float64(n))
}

func (m *Metrics) incEvictions() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *Metrics) incEmptyBeam() {
	if m == nil {
		return
	}
	m.emptyBeams.Inc()
}
