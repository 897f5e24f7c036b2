package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.IncrementScan("rules", "ok")
	m.IncrementScan("rules", "ok")
	m.AddFields([]string{"cnp", "nume"})
	m.IncrementCodeCheck(true)
	m.IncrementCodeCheck(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Scans.WithLabelValues("rules", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldsExtracted.WithLabelValues("cnp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodeChecks.WithLabelValues("invalid")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementScan("rules", "ok")
		m.AddFields([]string{"cnp"})
		m.IncrementCodeCheck(true)
		m.ObserveOCRLatency("image-ocr", time.Second)
		m.ObserveLLMLatency(time.Second)
		m.ObserveScanLatency(time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveScanLatency(20 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "idcard_scan_duration_seconds_count 1")
}
