package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultDelivered = "delivered"
	resultGone      = "gone"
	resultRejected  = "rejected"
	resultError     = "error"
)

type metrics struct {
	deliveries *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		deliveries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Web push delivery attempts by push service host and result.",
		}, []string{"host", "result"}),
	}
}

func (m *metrics) observe(host, result string) {
	m.deliveries.WithLabelValues(host, result).Inc()
}
