package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TerminalEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "terminal_events_total",
			Help:      "Payment, scan and sale events observed by the terminal",
		},
		[]string{"event"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "http_requests_total",
			Help:      "Requests served by the mock payment backend",
		},
		[]string{"status", "method"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pos",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of the mock payment backend",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(TerminalEventsTotal, RequestsTotal, RequestDuration)
}

func IncRequest(status, method string) {
	RequestsTotal.WithLabelValues(status, method).Inc()
}

func ObserveDuration(status string, seconds float64) {
	RequestDuration.WithLabelValues(status).Observe(seconds)
}

// Counters keeps in-process totals for the terminal and mirrors every
// increment into TerminalEventsTotal. A nil *Counters only feeds Prometheus.
type Counters struct {
	StatusChecks      uint64
	StatusFailures    uint64
	StaleResults      uint64
	PaymentsReceived  uint64
	PaymentsConfirmed uint64
	PaymentTimeouts   uint64
	BarcodesScanned   uint64
	SalesCompleted    uint64
}

func (c *Counters) inc(label string, field func(*Counters) *uint64) {
	TerminalEventsTotal.WithLabelValues(label).Inc()
	if c != nil {
		atomic.AddUint64(field(c), 1)
	}
}

func (c *Counters) IncStatusChecks() {
	c.inc("status_check", func(c *Counters) *uint64 { return &c.StatusChecks })
}

func (c *Counters) IncStatusFailures() {
	c.inc("status_failure", func(c *Counters) *uint64 { return &c.StatusFailures })
}

func (c *Counters) IncStaleResults() {
	c.inc("stale_result", func(c *Counters) *uint64 { return &c.StaleResults })
}

func (c *Counters) IncPaymentsReceived() {
	c.inc("payment_received", func(c *Counters) *uint64 { return &c.PaymentsReceived })
}

func (c *Counters) IncPaymentsConfirmed() {
	c.inc("payment_confirmed", func(c *Counters) *uint64 { return &c.PaymentsConfirmed })
}

func (c *Counters) IncPaymentTimeouts() {
	c.inc("payment_timeout", func(c *Counters) *uint64 { return &c.PaymentTimeouts })
}

func (c *Counters) IncBarcodesScanned() {
	c.inc("barcode_scanned", func(c *Counters) *uint64 { return &c.BarcodesScanned })
}

func (c *Counters) IncSalesCompleted() {
	c.inc("sale_completed", func(c *Counters) *uint64 { return &c.SalesCompleted })
}

func (c *Counters) Load(field *uint64) uint64 {
	return atomic.LoadUint64(field)
}
