package handler

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptguard_messages_total",
		Help: "Group messages by outcome",
	}, []string{"outcome"})
	processingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scriptguard_message_processing_seconds",
		Help:    "Time from receipt to verdict, attachment scans included",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	scansInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scriptguard_attachment_scans_in_flight",
		Help: "Attachment scans currently running",
	})
)

// Stats are process-local counters shown by /status.
type Stats struct {
	started time.Time

	messages   atomic.Int64
	violations atomic.Int64
	deleted    atomic.Int64

	scansRunning atomic.Int64
	scansDone    atomic.Int64
	scansFailed  atomic.Int64

	processed      atomic.Int64
	processingNano atomic.Int64
}

func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) observe(d time.Duration) {
	s.processed.Add(1)
	s.processingNano.Add(int64(d))
	processingSeconds.Observe(d.Seconds())
}

func (s *Stats) scanStarted() {
	s.scansRunning.Add(1)
	scansInFlight.Inc()
}

func (s *Stats) scanFinished(failed bool) {
	s.scansRunning.Add(-1)
	scansInFlight.Dec()
	if failed {
		s.scansFailed.Add(1)
		return
	}
	s.scansDone.Add(1)
}

func (s *Stats) AverageProcessing() time.Duration {
	n := s.processed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.processingNano.Load() / n)
}

// Render formats the counters and host load in lang.
func (s *Stats) Render(lang string) string {
	t := func(key string) string { return models.GetTranslation(lang, key) }

	var b strings.Builder
	b.WriteString(t("status_title"))
	b.WriteString("\n")
	fmt.Fprintf(&b, t("status_uptime")+"\n", time.Since(s.started).Round(time.Second))
	fmt.Fprintf(&b, t("status_messages")+"\n", s.messages.Load(), s.violations.Load(), s.deleted.Load())
	fmt.Fprintf(&b, t("status_scans")+"\n", s.scansRunning.Load(), s.scansDone.Load(), s.scansFailed.Load())
	fmt.Fprintf(&b, t("status_avg")+"\n", s.AverageProcessing().Round(time.Millisecond))
	fmt.Fprintf(&b, t("status_goroutines"), runtime.NumGoroutine())

	cpuPercent, cpuErr := cpu.Percent(0, false)
	vm, memErr := mem.VirtualMemory()
	if cpuErr != nil || memErr != nil || len(cpuPercent) == 0 {
		logger.Debugf("Host stats unavailable: cpu=%v mem=%v", cpuErr, memErr)
		return b.String()
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, t("status_host"), cpuPercent[0], vm.UsedPercent)
	return b.String()
}

// LogPeriodically writes the counters to the log until stop is closed.
func (s *Stats) LogPeriodically(every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			logger.Infof("Processing stats: messages=%d violations=%d deleted=%d scans running=%d done=%d failed=%d avg=%s",
				s.messages.Load(), s.violations.Load(), s.deleted.Load(),
				s.scansRunning.Load(), s.scansDone.Load(), s.scansFailed.Load(), s.AverageProcessing())
			if running := s.scansRunning.Load(); running > 80 {
				logger.Warningf("High number of running attachment scans: %d", running)
			}
		}
	}
}
