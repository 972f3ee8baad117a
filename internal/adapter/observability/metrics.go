package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"type"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"type"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"type"},
	)

	// Parse outcomes per response kind (feedback, chatbot)
	AIParseOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_parse_outcomes_total",
			Help: "Total number of parsed AI responses by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	// Envelopes that were structurally unexpected; non-zero means the upstream contract drifted
	AIMalformedEnvelopesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_malformed_envelopes_total",
			Help: "Total number of generation envelopes without usable text",
		},
	)
	AIGenerationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_generation_cache_total",
			Help: "Generation cache lookups by layer and result",
		},
		[]string{"layer", "result"},
	)

	// Feedback outcome distributions
	FeedbackGlobalScoreHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedback_global_score",
			Help:    "Distribution of globalScore ([0,100]) by parse outcome",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"outcome"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(AIParseOutcomesTotal)
	prometheus.MustRegister(AIMalformedEnvelopesTotal)
	prometheus.MustRegister(AIGenerationCacheTotal)
	prometheus.MustRegister(FeedbackGlobalScoreHistogram)
	prometheus.MustRegister(CircuitBreakerStateGauge)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

func EnqueueJob(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func StartProcessingJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Inc()
}

func CompleteJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

func FailJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsFailedTotal.WithLabelValues(jobType).Inc()
}

// RequeueJob ends a processing attempt that will be redelivered.
func RequeueJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
}

// AbandonJob counts a job failed outside a processing attempt (retries exhausted).
func AbandonJob(jobType string) {
	JobsFailedTotal.WithLabelValues(jobType).Inc()
}

// ObserveParseOutcome counts one parsed response. kind is "feedback" or "chatbot".
func ObserveParseOutcome(kind, outcome string) {
	AIParseOutcomesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveMalformedEnvelope counts an envelope that carried no text.
func ObserveMalformedEnvelope() {
	AIMalformedEnvelopesTotal.Inc()
}

// ObserveCache counts a generation cache lookup. layer is "redis" or "local".
func ObserveCache(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	AIGenerationCacheTotal.WithLabelValues(layer, result).Inc()
}

// ObserveFeedback records the global score of a stored feedback.
func ObserveFeedback(outcome string, globalScore int) {
	if globalScore >= 0 && globalScore <= 100 {
		FeedbackGlobalScoreHistogram.WithLabelValues(outcome).Observe(float64(globalScore))
	}
}
