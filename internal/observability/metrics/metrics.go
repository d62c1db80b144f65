package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/gauges for the booking dialogue.
type BookingMetrics struct {
	turnsTotal      *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	commitsTotal    *prometheus.CounterVec
	conflictsTotal  *prometheus.CounterVec
	catalogSize     prometheus.Gauge
	sessionsExpired prometheus.Counter

	reg prometheus.Registerer
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymbot",
			Subsystem: "booking",
			Name:      "turns_total",
			Help:      "Dialogue turns handled, by state entered and outcome",
		}, []string{"state", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gymbot",
			Subsystem: "booking",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one dialogue turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymbot",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Booking commits by category and result",
		}, []string{"category", "result"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymbot",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Requested slots rejected as too close to an existing booking",
		}, []string{"category"}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gymbot",
			Subsystem: "catalog",
			Name:      "categories",
			Help:      "Categories in the live catalog snapshot",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gymbot",
			Subsystem: "sessions",
			Name:      "expired_total",
			Help:      "Idle booking sessions dropped by the sweeper",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m.reg = reg
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.commitsTotal, m.conflictsTotal, m.catalogSize, m.sessionsExpired)
	return m
}

func (m *BookingMetrics) ObserveTurn(state, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state, outcome).Inc()
}

func (m *BookingMetrics) ObserveTurnLatency(state string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(state).Observe(seconds)
}

func (m *BookingMetrics) ObserveCommit(category, result string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(category, result).Inc()
}

func (m *BookingMetrics) ObserveConflict(category string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(category).Inc()
}

// ObserveCatalog satisfies catalog.Observer.
func (m *BookingMetrics) ObserveCatalog(categories int) {
	if m == nil {
		return
	}
	m.catalogSize.Set(float64(categories))
}

func (m *BookingMetrics) ObserveExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsExpired.Add(float64(n))
}

// TrackLockedUsers exports fn as a gauge of users whose dialogue lock is held
// or awaited. Call it once per registry.
func (m *BookingMetrics) TrackLockedUsers(fn func() int) {
	if m == nil || fn == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "gymbot",
		Subsystem: "booking",
		Name:      "locked_users",
		Help:      "Users with a dialogue turn or session sweep in progress",
	}, func() float64 { return float64(fn()) }))
}
