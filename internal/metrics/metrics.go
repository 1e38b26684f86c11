// Package metrics exports reservation progress as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements poller.Observer and tracks run lifecycles.
type Collector struct {
	refreshes     prometheus.Counter
	listingMisses prometheus.Counter
	attempts      *prometheus.CounterVec
	active        prometheus.Gauge
	finished      *prometheus.CounterVec
	duration      prometheus.Histogram
}

// New registers the collector's series with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srt_search_refreshes_total",
			Help: "Search result refreshes across all runs",
		}),
		listingMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srt_listing_misses_total",
			Help: "Rounds where the search result table could not be read",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srt_attempts_total",
			Help: "Book and waitlist attempts by result",
		}, []string{"action", "result"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srt_runs_active",
			Help: "Reservation runs currently polling",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srt_runs_finished_total",
			Help: "Reservation runs by final outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "srt_run_duration_seconds",
			Help:    "Wall time from sign-in to terminal outcome",
			Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600, 4 * 3600, 12 * 3600},
		}),
	}
	reg.MustRegister(c.refreshes, c.listingMisses, c.attempts, c.active, c.finished, c.duration)
	return c
}

func (c *Collector) Refreshed(reservation.PollingState) { c.refreshes.Inc() }

func (c *Collector) ListingMissed(int, error) { c.listingMisses.Inc() }

func (c *Collector) Attempted(a reservation.Action, confirmed bool) {
	result := "rejected"
	if confirmed {
		result = "confirmed"
	}
	c.attempts.WithLabelValues(a.Kind.String(), result).Inc()
}

func (c *Collector) RunStarted() { c.active.Inc() }

func (c *Collector) RunFinished(o reservation.Outcome, elapsed time.Duration) {
	c.active.Dec()
	kind := string(o.Kind)
	if kind == "" {
		kind = "error"
	}
	c.finished.WithLabelValues(kind).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// Handler serves the series gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
