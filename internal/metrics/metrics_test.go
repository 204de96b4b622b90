package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLifecycle_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition("booking", "under_review", OutcomeSuccess, 3*time.Millisecond)
	m.ObserveTransition("booking", "under_review", OutcomeSuccess, time.Millisecond)
	m.ObserveTransition("booking", "confirmed", OutcomeInvalidTransition, time.Millisecond)
	m.NotificationFailed("appointment")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("booking", "under_review", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("booking", "confirmed", OutcomeInvalidTransition)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsFailed.WithLabelValues("appointment")))
}

func TestLifecycle_HandlerExposesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",route="/ping",status_code="204"} 1`)
}
