package bonus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments bonus calculations and the report cache.
type Metrics struct {
	calcDuration prometheus.Histogram
	vendors      prometheus.Counter
	cacheLookups *prometheus.CounterVec
}

// NewMetrics registers the bonus collectors. A nil registerer falls back to
// the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		calcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compensation_bonus_calculation_duration_seconds",
			Help:    "Duration of bonus calculations across all requested vendors.",
			Buckets: prometheus.DefBuckets,
		}),
		vendors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compensation_bonus_vendor_results_total",
			Help: "Vendor bonus results produced by calculations.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compensation_report_cache_lookups_total",
			Help: "Billing report cache lookups partitioned by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.calcDuration, m.vendors, m.cacheLookups)
	return m
}

// ObserveCalculation records one completed calculation.
func (m *Metrics) ObserveCalculation(d time.Duration, results int) {
	if m == nil {
		return
	}
	m.calcDuration.Observe(d.Seconds())
	m.vendors.Add(float64(results))
}

// RecordCacheLookup counts a report cache "hit", "miss" or "error".
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
