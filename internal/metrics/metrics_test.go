package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.Booking("create", OutcomeOK)
	r.Booking("create", OutcomeConflict)
	r.Booking("create", OutcomeConflict)
	r.Rejection("day_not_available")
	r.Completion()
	r.Sweep(3, 1, 0.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.bookings.WithLabelValues("create", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.bookings.WithLabelValues("create", OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("day_not_available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.completions))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.sweepDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sweepFailures))
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Booking("create", OutcomeOK)
		r.Rejection("x")
		r.Completion()
		r.Sweep(1, 0, 0.1)
		r.Request("GET", "/", "200", 0.01)
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.Completion()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "appointment_completions_total 1")
}
