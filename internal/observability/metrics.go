package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	ingestBatchCounter    *prometheus.CounterVec
	normalizationSkips    *prometheus.CounterVec
	unidentifiedRecords   *prometheus.CounterVec
	actionCounter         *prometheus.CounterVec
	inFlightRejections    prometheus.Counter
	pendingGauge          *prometheus.GaugeVec
	staleApplyCounter     *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ingestBatchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_batches_total",
			Help: "Ingestion batches by source and outcome",
		}, []string{"source", "result"})

		normalizationSkips = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "normalization_skips_total",
			Help: "Raw records skipped because they could not be normalized",
		}, []string{"source"})

		unidentifiedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unidentified_records_total",
			Help: "Normalized records with no identifier strong enough to match or act on",
		}, []string{"source"})

		actionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_actions_total",
			Help: "Approve and reject outcomes",
		}, []string{"action", "status"})

		inFlightRejections = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_actions_in_progress_rejections_total",
			Help: "Actions refused because the same transaction already had one in flight",
		})

		pendingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pending_transactions",
			Help: "Current number of pending transactions per list",
		}, []string{"list"})

		staleApplyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stale_applies_dropped_total",
			Help: "Results discarded because their session was torn down",
		}, []string{"origin"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			ingestBatchCounter,
			normalizationSkips,
			unidentifiedRecords,
			actionCounter,
			inFlightRejections,
			pendingGauge,
			staleApplyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementIngestBatch(source, result string) {
	if ingestBatchCounter == nil {
		return
	}
	ingestBatchCounter.WithLabelValues(source, result).Inc()
}

func AddNormalizationSkips(source string, n int) {
	if normalizationSkips == nil || n <= 0 {
		return
	}
	normalizationSkips.WithLabelValues(source).Add(float64(n))
}

func AddUnidentifiedRecords(source string, n int) {
	if unidentifiedRecords == nil || n <= 0 {
		return
	}
	unidentifiedRecords.WithLabelValues(source).Add(float64(n))
}

func IncrementAction(action, status string) {
	if actionCounter == nil {
		return
	}
	actionCounter.WithLabelValues(action, status).Inc()
}

func IncrementInFlightRejection() {
	if inFlightRejections == nil {
		return
	}
	inFlightRejections.Inc()
}

func SetPendingCount(list string, n int) {
	if pendingGauge == nil {
		return
	}
	pendingGauge.WithLabelValues(list).Set(float64(n))
}

func IncrementStaleApply(origin string) {
	if staleApplyCounter == nil {
		return
	}
	staleApplyCounter.WithLabelValues(origin).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
