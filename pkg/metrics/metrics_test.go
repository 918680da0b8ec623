package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordTransfer(t *testing.T) {
	m := New()

	m.RecordTransfer("SIMPLE_TRANSFER", OutcomeSuccess, 10*time.Millisecond)
	m.RecordTransfer("SIMPLE_TRANSFER", OutcomeSuccess, 12*time.Millisecond)
	m.RecordTransfer("SIMPLE_TRANSFER", OutcomeFailure, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transfers.WithLabelValues("SIMPLE_TRANSFER", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfers.WithLabelValues("SIMPLE_TRANSFER", OutcomeFailure)))
}

func TestCollector_AuthCounters(t *testing.T) {
	m := New()

	m.RecordLoginFailure()
	m.RecordLoginFailure()
	m.RecordLockout()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loginFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var m *Collector
	assert.NotPanics(t, func() {
		m.RecordTransfer("SIMPLE_TRANSFER", OutcomeSuccess, time.Second)
		m.RecordCancellation(OutcomeSuccess)
		m.RecordScheduledExecution(OutcomeSkipped)
		m.ObserveSchedulerTick(time.Second)
		m.RecordLoginFailure()
		m.RecordLockout()
		m.RecordNotificationFailure()
	})
}

func TestCollector_Handler(t *testing.T) {
	m := New()
	m.RecordScheduledExecution(OutcomeSuccess)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mm_scheduled_executions_total{outcome="success"} 1`)
}
