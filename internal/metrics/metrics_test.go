package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.LLMCall(time.Second, nil)
	m.LLMCall(time.Second, errors.New("boom"))
	m.QuestionGenerated("essay")
	m.SlotDropped()
	m.DiagramRendered("erd")
	m.RunFinished("completed")
	m.Export("pdf", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.questions.WithLabelValues("essay")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("erd")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("pdf", "ok")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.SlotDropped()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "examgen_slots_dropped_total 1"))
}

func TestNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LLMCall(time.Second, nil)
		m.QuestionGenerated("essay")
		m.SlotDropped()
		m.DiagramRendered("erd")
		m.RunFinished("failed")
		m.Export("zip", nil)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
