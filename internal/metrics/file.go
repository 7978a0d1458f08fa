package metrics

import (
	"ntaio/internal/status"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type FileMetrics interface {
	Opened(st status.Status)
	SetOpenObjects(n int)
	// transition is one of marked, unmarked, removed, posix_removed, refused
	Disposition(transition string)
	// op is rename or link
	Namespace(op string, st status.Status)
}

type fileMetrics struct {
	opens		*prometheus.CounterVec
	objects		prometheus.Gauge
	disposition	*prometheus.CounterVec
	namespace	*prometheus.CounterVec
}

func NewFileMetrics() FileMetrics {
	if !IsEnabled() {
		return noopFileMetrics{}
	}
	reg := promauto.With(GetRegistry())

	return &fileMetrics{
		opens: reg.NewCounterVec(prometheus.CounterOpts{
			Name:	"ntaio_file_opens_total",
			Help:	"Open requests by resulting status",
		}, []string{"status"}),
		objects: reg.NewGauge(prometheus.GaugeOpts{
			Name:	"ntaio_file_objects",
			Help:	"Live File Objects",
		}),
		disposition: reg.NewCounterVec(prometheus.CounterOpts{
			Name:	"ntaio_file_disposition_total",
			Help:	"Delete disposition transitions",
		}, []string{"transition"}),
		namespace: reg.NewCounterVec(prometheus.CounterOpts{
			Name:	"ntaio_file_namespace_ops_total",
			Help:	"Rename and link requests by resulting status",
		}, []string{"op", "status"}),
	}
}

func (m *fileMetrics) Opened(st status.Status) {
	m.opens.WithLabelValues(st.String()).Inc()
}

func (m *fileMetrics) SetOpenObjects(n int) {
	m.objects.Set(float64(n))
}

func (m *fileMetrics) Disposition(transition string) {
	m.disposition.WithLabelValues(transition).Inc()
}

func (m *fileMetrics) Namespace(op string, st status.Status) {
	m.namespace.WithLabelValues(op, st.String()).Inc()
}

type noopFileMetrics struct{}

func (noopFileMetrics) Opened(status.Status)			{}
func (noopFileMetrics) SetOpenObjects(int)				{}
func (noopFileMetrics) Disposition(string)				{}
func (noopFileMetrics) Namespace(string, status.Status)	{}
