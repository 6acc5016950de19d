package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-engine/internal/metrics"
)

func TestMetricsServer_ServesSweepCounters(t *testing.T) {
	rec := metrics.New()
	rec.Sweep(3, 1, 0.25)

	srv := newMetricsServer(":0", rec)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "appointment_retention_deleted_total 3")
	assert.Contains(t, body, "appointment_retention_failures_total 1")
	assert.Contains(t, body, "appointment_retention_sweep_duration_seconds_count 1")
}

func TestMetricsServer_Live(t *testing.T) {
	srv := newMetricsServer(":0", metrics.New())

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
