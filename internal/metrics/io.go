package metrics

import (
	"ntaio/internal/status"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Notification channels, used as label values.
const (
	ChanEvent		= "event"
	ChanHandle		= "handle"
	ChanPort		= "port"
	ChanPortSkipped	= "port_skipped"
	ChanAPC			= "apc"
)

type IoMetrics interface {
	// inline is true when the request finished before the issuing call returned
	Submitted(op string, inline bool)
	Completed(op string, st status.Status)
	Notified(channel string)
	Cancelled(n int)
	SetPending(n int)
}

type ioMetrics struct {
	submitted	*prometheus.CounterVec
	completed	*prometheus.CounterVec
	notified	*prometheus.CounterVec
	cancelled	prometheus.Counter
	pending		prometheus.Gauge
}

func NewIoMetrics(backend string) IoMetrics {
	if !IsEnabled() {
		return noopIoMetrics{}
	}
	reg := promauto.With(GetRegistry())
	labels := prometheus.Labels{ "backend": backend }

	return &ioMetrics{
		submitted: reg.NewCounterVec(prometheus.CounterOpts{
			Name:			"ntaio_io_submitted_total",
			Help:			"Requests accepted by the engine, by operation and path taken",
			ConstLabels:	labels,
		}, []string{"op", "path"}),
		completed: reg.NewCounterVec(prometheus.CounterOpts{
			Name:			"ntaio_io_completed_total",
			Help:			"Completions written to a status block, by operation and status",
			ConstLabels:	labels,
		}, []string{"op", "status"}),
		notified: reg.NewCounterVec(prometheus.CounterOpts{
			Name:			"ntaio_io_notifications_total",
			Help:			"Completion notifications fired, by channel",
			ConstLabels:	labels,
		}, []string{"channel"}),
		cancelled: reg.NewCounter(prometheus.CounterOpts{
			Name:			"ntaio_io_cancel_requests_total",
			Help:			"Pending operations asked to cancel",
			ConstLabels:	labels,
		}),
		pending: reg.NewGauge(prometheus.GaugeOpts{
			Name:			"ntaio_io_pending",
			Help:			"Operations submitted and not yet completed",
			ConstLabels:	labels,
		}),
	}
}

func (m *ioMetrics) Submitted(op string, inline bool) {
	path := "pending"
	if inline { path = "inline" }
	m.submitted.WithLabelValues(op, path).Inc()
}

func (m *ioMetrics) Completed(op string, st status.Status) {
	m.completed.WithLabelValues(op, st.String()).Inc()
}

func (m *ioMetrics) Notified(channel string) {
	m.notified.WithLabelValues(channel).Inc()
}

func (m *ioMetrics) Cancelled(n int) {
	m.cancelled.Add(float64(n))
}

func (m *ioMetrics) SetPending(n int) {
	m.pending.Set(float64(n))
}

type noopIoMetrics struct{}

func (noopIoMetrics) Submitted(string, bool)			{}
func (noopIoMetrics) Completed(string, status.Status)	{}
func (noopIoMetrics) Notified(string)					{}
func (noopIoMetrics) Cancelled(int)						{}
func (noopIoMetrics) SetPending(int)					{}
