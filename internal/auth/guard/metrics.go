package guard

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes guard activity to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	issuedTotal    prometheus.Counter
	admissions     *prometheus.CounterVec
	evictionsTotal prometheus.Counter
	sweeps         *prometheus.CounterVec
	usedTokens     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		issuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usersapi",
			Subsystem: "token",
			Name:      "issued_total",
			Help:      "Tokens issued.",
		}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usersapi",
			Subsystem: "token",
			Name:      "admissions_total",
			Help:      "Admission decisions by result.",
		}, []string{"result"}),
		evictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usersapi",
			Subsystem: "token",
			Name:      "evictions_total",
			Help:      "Used tokens forgotten by the sweep.",
		}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usersapi",
			Subsystem: "token",
			Name:      "sweeps_total",
			Help:      "Sweep invocations by outcome.",
		}, []string{"outcome"}),
		usedTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "usersapi",
			Subsystem: "token",
			Name:      "used",
			Help:      "Consumed tokens currently remembered.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.issuedTotal, m.admissions, m.evictionsTotal, m.sweeps, m.usedTokens)
	}
	return m
}

func (m *Metrics) issued() {
	if m == nil {
		return
	}
	m.issuedTotal.Inc()
}

func (m *Metrics) admitted(used int) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues("admitted").Inc()
	m.usedTokens.Set(float64(used))
}

func (m *Metrics) rejected(r Reason) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(string(r)).Inc()
}

func (m *Metrics) swept(evicted, remaining int) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues("ran").Inc()
	m.evictionsTotal.Add(float64(evicted))
	m.usedTokens.Set(float64(remaining))
}

func (m *Metrics) sweepSkipped() {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues("skipped").Inc()
}
