package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scriptguard_scans_total",
	Help: "Scanned messages by deciding source and verdict",
}, []string{"source", "verdict"})

var scanFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scriptguard_scan_failures_total",
	Help: "Attachment scans that failed open, by stage",
}, []string{"stage"})

var extractDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "scriptguard_extract_duration_seconds",
	Help:    "Time spent downloading and extracting attachment text",
	Buckets: prometheus.DefBuckets,
}, []string{"extractor"})
