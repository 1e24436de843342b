package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotent(t *testing.T) {
	r := prometheus.NewRegistry()
	require.NoError(t, Register(r))
	require.NoError(t, Register(r))
	// Re-registering against a different registry after success is a no-op.
	require.NoError(t, Register(prometheus.NewRegistry()))
}

func TestCountersAccumulate(t *testing.T) {
	require.NoError(t, Register(prometheus.NewRegistry()))

	before := testutil.ToFloat64(processStarts.WithLabelValues("/tmp/p", "web"))
	IncStart("/tmp/p", "web")
	IncStart("/tmp/p", "web")
	after := testutil.ToFloat64(processStarts.WithLabelValues("/tmp/p", "web"))
	assert.Equal(t, before+2, after)

	AddRunning("/tmp/p", 1)
	AddRunning("/tmp/p", -1)
	assert.Equal(t, float64(0), testutil.ToFloat64(runningProcesses.WithLabelValues("/tmp/p")))

	crashes := testutil.ToFloat64(processCrashes.WithLabelValues("/tmp/p", "web"))
	IncCrash("/tmp/p", "web")
	assert.Equal(t, crashes+1, testutil.ToFloat64(processCrashes.WithLabelValues("/tmp/p", "web")))

	transitions := testutil.ToFloat64(stateTransitions.WithLabelValues("/tmp/p::web", "running", "crashed"))
	RecordStateTransition("/tmp/p::web", "running", "crashed")
	assert.Equal(t, transitions+1, testutil.ToFloat64(stateTransitions.WithLabelValues("/tmp/p::web", "running", "crashed")))
}

func TestHandlerServes(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}
