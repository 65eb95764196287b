package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_Collectors(t *testing.T) {
	m := NewSync()

	m.Tasks.WithLabelValues("update").Inc()
	m.Tasks.WithLabelValues("update").Inc()
	m.FetchErrors.WithLabelValues("timeout").Inc()
	m.Progress.Set(0.5)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Tasks.WithLabelValues("update")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FetchErrors.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 0.5, testutil.ToFloat64(m.Progress), 0)
}

func TestSync_Handler(t *testing.T) {
	m := NewSync()
	m.TaskListSize.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fcisync_task_list_size 3")
}
