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
	"github.com/vendedor360/backend/internal/domain"
)

func TestRecorder_RunMetrics(t *testing.T) {
	r := NewRecorder()

	r.OpportunityScanned("wherex")
	r.OpportunityScanned("wherex")
	r.SubmissionOutcome("wherex", "submitted")
	r.SubmissionOutcome("wherex", "failed")
	r.RunFinished("wherex", domain.StateDone, 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.opportunitiesScanned.WithLabelValues("wherex")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.submissions.WithLabelValues("wherex", "submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.submissions.WithLabelValues("wherex", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("wherex", "done")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.runDuration))
}

func TestRecorder_RecordRequest(t *testing.T) {
	r := NewRecorder()
	r.RecordRequest("GET", "/health", http.StatusOK, 10*time.Millisecond)
	r.RecordRequest("POST", "/api/v1/runs", http.StatusConflict, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues("POST", "/api/v1/runs", "4xx")))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.SubmissionOutcome("senegocia", "duplicate")

	server := httptest.NewServer(r.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `vendedor360_submissions_total{outcome="duplicate",portal="senegocia"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestClassifyStatus(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 0: "unknown", 700: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, classifyStatus(code), code)
	}
}
