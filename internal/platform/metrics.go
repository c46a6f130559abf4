package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scriptguard_platform_calls_total",
	Help: "Telegram API calls by operation and result",
}, []string{"op", "result"})

var downloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "scriptguard_download_bytes",
	Help:    "Size of downloaded attachments",
	Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
})

func observe(op string, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	callsTotal.WithLabelValues(op, result).Inc()
	return err
}
