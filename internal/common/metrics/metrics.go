package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds the service-level counters. Registered once at startup and
// passed by reference, never looked up globally.
type Set struct {
	Checkouts      *prometheus.CounterVec // outcome: created | validation_failed | insufficient_stock | error
	StockConflicts prometheus.Counter
	WebhookEvents  *prometheus.CounterVec // type, outcome: applied | duplicate | rejected
	Captures       *prometheus.CounterVec // trigger: explicit | sweep | webhook
	CheckoutTime   prometheus.Histogram
}

func New(service string) *Set {
	return NewWith(prometheus.DefaultRegisterer, service)
}

func NewWith(reg prometheus.Registerer, service string) *Set {
	s := &Set{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodorder",
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foodorder",
			Subsystem: service,
			Name:      "stock_conflicts_total",
			Help:      "Reservations rejected for insufficient stock.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodorder",
			Subsystem: service,
			Name:      "webhook_events_total",
			Help:      "Gateway webhook deliveries by type and outcome.",
		}, []string{"type", "outcome"}),
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodorder",
			Subsystem: service,
			Name:      "captures_total",
			Help:      "Payment captures by trigger.",
		}, []string{"trigger"}),
		CheckoutTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "foodorder",
			Subsystem: service,
			Name:      "checkout_duration_ms",
			Help:      "Checkout transaction latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
	}
	reg.MustRegister(s.Checkouts, s.StockConflicts, s.WebhookEvents, s.Captures, s.CheckoutTime)
	return s
}

func Handler() http.Handler { return promhttp.Handler() }
