package observability

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var initOnce sync.Once

func initMetricsOnce() { initOnce.Do(InitMetrics) }

func TestHTTPMetricsMiddleware_Basic(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	mw := HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) }))
	mw.ServeHTTP(rec, r)
	assert.Equal(t, 204, rec.Result().StatusCode)
}

func TestHTTPMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Get("/v1/feedback/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/v1/feedback/{id}", http.MethodGet, "OK"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/feedback/abc", nil))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/v1/feedback/{id}", http.MethodGet, "OK"))
	assert.Equal(t, before+1, after)
}

func TestJobMetricsHelpers(t *testing.T) {
	initMetricsOnce()
	EnqueueJob("feedback")
	StartProcessingJob("feedback")
	CompleteJob("feedback")
	FailJob("feedback")
	ObserveFeedback("decoded", 75)
	ObserveFeedback("decoded", 400) // out of range is ignored
	ObserveMalformedEnvelope()
	ObserveCache("redis", true)
}

func TestObserveParseOutcome(t *testing.T) {
	before := testutil.ToFloat64(AIParseOutcomesTotal.WithLabelValues("chatbot", "empty_fallback"))
	ObserveParseOutcome("chatbot", "empty_fallback")
	assert.Equal(t, before+1, testutil.ToFloat64(AIParseOutcomesTotal.WithLabelValues("chatbot", "empty_fallback")))
}
