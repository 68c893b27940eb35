package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsSweptTotal, jobDurationMs, queueDepth) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reading_jobs_processed_total",
		Help: "Jobs processed, labeled by queue and outcome.",
	},
	[]string{"queue", "outcome"}, // 'completed', 'retried', 'failed'
)

var jobsSweptTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "reading_jobs_swept_total",
		Help: "Stale active jobs force-failed by the startup sweep.",
	},
)

var jobDurationMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "reading_job_duration_ms",
		Help:    "Handler execution time per queue in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
	[]string{"queue"},
)

var queueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "reading_queue_depth",
		Help: "Jobs per queue and state as of the last poll.",
	},
	[]string{"queue", "state"},
)

func IncJob(queue, outcome string) {
	jobsProcessedTotal.WithLabelValues(norm(queue), norm(outcome)).Inc()
}

func AddSwept(n int) { jobsSweptTotal.Add(float64(n)) }

func ObserveJobDuration(queue string, ms float64) {
	jobDurationMs.WithLabelValues(norm(queue)).Observe(ms)
}

func SetQueueDepth(queue, state string, n int) {
	queueDepth.WithLabelValues(norm(queue), norm(state)).Set(float64(n))
}
