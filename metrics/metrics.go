package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the billing and HTTP counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	InvoiceTransitionsTotal  *prometheus.CounterVec
	SellerStatusChangesTotal *prometheus.CounterVec
	PaymentsVerifiedTotal    prometheus.Counter
	SweepRunsTotal           prometheus.Counter
	SweepMarkedTotal         prometheus.Counter
	SweepFailedTotal         prometheus.Counter
	HTTPRequestsTotal        *prometheus.CounterVec
}

// New creates and registers all metrics on registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvoiceTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vintagemart_invoice_transitions_total",
				Help: "Invoice transitions by name and outcome (applied or noop)",
			},
			[]string{"transition", "outcome"},
		),
		SellerStatusChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vintagemart_seller_status_changes_total",
				Help: "Seller status changes caused by billing, by new status",
			},
			[]string{"status"},
		),
		PaymentsVerifiedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vintagemart_payments_verified_total",
			Help: "Payments verified by an operator",
		}),
		SweepRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vintagemart_overdue_sweep_runs_total",
			Help: "Overdue sweep runs",
		}),
		SweepMarkedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vintagemart_overdue_sweep_marked_total",
			Help: "Invoices marked overdue by the sweep",
		}),
		SweepFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vintagemart_overdue_sweep_failed_total",
			Help: "Invoices the sweep failed to process",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vintagemart_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}

	registry.MustRegister(
		m.InvoiceTransitionsTotal,
		m.SellerStatusChangesTotal,
		m.PaymentsVerifiedTotal,
		m.SweepRunsTotal,
		m.SweepMarkedTotal,
		m.SweepFailedTotal,
		m.HTTPRequestsTotal,
	)
	return m
}

func (m *Metrics) InvoiceTransition(transition string, applied bool) {
	if m == nil {
		return
	}
	outcome := "noop"
	if applied {
		outcome = "applied"
	}
	m.InvoiceTransitionsTotal.WithLabelValues(transition, outcome).Inc()
}

func (m *Metrics) SellerStatusChanged(status string) {
	if m == nil {
		return
	}
	m.SellerStatusChangesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) PaymentVerified() {
	if m == nil {
		return
	}
	m.PaymentsVerifiedTotal.Inc()
}

func (m *Metrics) SweepCompleted(marked, failed int) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.Inc()
	m.SweepMarkedTotal.Add(float64(marked))
	m.SweepFailedTotal.Add(float64(failed))
}

// Middleware counts requests by route template, not raw path.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
