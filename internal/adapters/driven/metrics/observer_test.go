package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

func TestObserver_StageCompleted(t *testing.T) {
	o := NewObserver()

	o.StageCompleted(domain.StageExtract, 1, 10*time.Millisecond, nil)
	o.StageCompleted(domain.StageExtract, 3, 20*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(o.stageRuns.WithLabelValues("extract", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.stageRuns.WithLabelValues("extract", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(o.stageAttempts.WithLabelValues("extract")))
}

func TestObserver_SubmissionCompleted(t *testing.T) {
	o := NewObserver()

	o.SubmissionCompleted("created", time.Second)
	o.SubmissionCompleted("deduplicated", time.Millisecond)
	o.SubmissionCompleted("deduplicated", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.submissions.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.submissions.WithLabelValues("deduplicated")))
}

func TestObserver_Handler(t *testing.T) {
	o := NewObserver()
	o.SubmissionCompleted("created", time.Second)

	srv := httptest.NewServer(o.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "chatlogs_submissions_total")
}

func TestNewServer(t *testing.T) {
	o := NewObserver()
	o.SubmissionCompleted("created", time.Millisecond)

	server := NewServer(9090, o.Handler())
	assert.Equal(t, ":9090", server.Addr)

	srv := httptest.NewServer(server.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
