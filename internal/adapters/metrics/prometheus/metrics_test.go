package prometheus

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordGameActivity(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Classified(domain.VerdictAdmit, false)
	m.Classified(domain.VerdictAdmit, false)
	m.Classified(domain.VerdictReject, true)
	m.WindowClosed(domain.CloseDeadline, 2)
	m.TurnCommitted("tavern#1", 4)
	m.NarrationAttempt(true, 120*time.Millisecond)
	m.VersionConflict()
	m.SessionDegraded()
	m.ActiveSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.classified.WithLabelValues("admit", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classified.WithLabelValues("reject", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.windowsClosed.WithLabelValues("deadline")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.stateVersion.WithLabelValues("tavern#1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turnsCommitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.versionConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
}

func TestHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m := New(nil)
	m.TurnCommitted("tavern#1", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fungame_state_version{session="tavern#1"} 1`)
	assert.Contains(t, string(body), "fungame_turns_committed_total 1")
}
