package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/atomic"
)

var (
	consultationStartedTotal   = atomic.NewUint64(0)
	consultationCompletedTotal = atomic.NewUint64(0)
	consultationFailedTotal    = atomic.NewUint64(0)
	consultationRetriedTotal   = atomic.NewUint64(0)

	jobsReceivedTotal             = atomic.NewUint64(0)
	jobsCompletedTotal            = atomic.NewUint64(0)
	jobsFailedTotal               = atomic.NewUint64(0)
	jobsDeletedUnrecoverableTotal = atomic.NewUint64(0)
	jobsInFlight                  = atomic.NewInt64(0)

	strategyOutcomes = newLabeledCounter()
	rateLimited      = newLabeledCounter()

	consultationDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncConsultationStarted increments the started counter.
func IncConsultationStarted() {
	consultationStartedTotal.Inc()
}

// IncConsultationCompleted increments the completed counter.
func IncConsultationCompleted() {
	consultationCompletedTotal.Inc()
}

// IncConsultationFailed increments the failed counter.
func IncConsultationFailed() {
	consultationFailedTotal.Inc()
}

// IncConsultationRetried increments the scheduled-retry counter.
func IncConsultationRetried() {
	consultationRetriedTotal.Inc()
}

// IncJobsReceived counts queue messages picked up by a worker.
func IncJobsReceived() {
	jobsReceivedTotal.Inc()
}

// IncJobsCompleted counts queue messages processed and acknowledged.
func IncJobsCompleted() {
	jobsCompletedTotal.Inc()
}

// IncJobsFailed counts queue messages left for redelivery.
func IncJobsFailed() {
	jobsFailedTotal.Inc()
}

// IncJobsDeletedUnrecoverable counts malformed messages dropped without processing.
func IncJobsDeletedUnrecoverable() {
	jobsDeletedUnrecoverableTotal.Inc()
}

// TrackJobInFlight bumps the in-flight gauge and returns the matching decrement.
func TrackJobInFlight() func() {
	jobsInFlight.Inc()
	return func() { jobsInFlight.Dec() }
}

// IncStrategyOutcome counts one vision strategy call by outcome.
func IncStrategyOutcome(strategy, outcome string) {
	strategyOutcomes.Inc(fmt.Sprintf("strategy=%q,outcome=%q", strategy, outcome))
}

// IncRateLimited counts one request rejected by the limiter for group.
func IncRateLimited(group string) {
	rateLimited.Inc(fmt.Sprintf("group=%q", group))
}

// ObserveConsultationDurationMs records a pipeline duration in milliseconds.
func ObserveConsultationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	consultationDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "consultation_started_total", "Total consultation runs started", consultationStartedTotal.Load())
	writeCounter(&buf, "consultation_completed_total", "Total consultations completed", consultationCompletedTotal.Load())
	writeCounter(&buf, "consultation_failed_total", "Total consultations failed", consultationFailedTotal.Load())
	writeCounter(&buf, "consultation_retried_total", "Total consultation retries scheduled", consultationRetriedTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Total queue jobs received", jobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Total queue jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Total queue jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Total malformed queue jobs deleted", jobsDeletedUnrecoverableTotal.Load())
	writeGauge(&buf, "worker_jobs_in_flight", "Queue jobs currently being processed", jobsInFlight.Load())
	writeLabeledCounter(&buf, "vision_strategy_outcomes_total", "Vision strategy calls by outcome", strategyOutcomes.Snapshot())
	writeLabeledCounter(&buf, "http_rate_limited_total", "Requests rejected by the rate limiter", rateLimited.Snapshot())
	writeHistogram(&buf, "consultation_duration_ms", "Consultation pipeline duration in milliseconds", consultationDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]*atomic.Uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]*atomic.Uint64)}
}

func (l *labeledCounter) Inc(labels string) {
	l.mu.Lock()
	v, ok := l.values[labels]
	if !ok {
		v = atomic.NewUint64(0)
		l.values[labels] = v
	}
	l.mu.Unlock()
	v.Inc()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v.Load()
	}
	return out
}

// histogram stores per-bucket counts; Render accumulates them.
type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	labels := make([]string, 0, len(values))
	for k := range values {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for _, k := range labels {
		fmt.Fprintf(buf, "%s{%s} %d\n", name, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
