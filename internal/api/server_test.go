package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

type fakeRunner struct {
	mu      sync.Mutex
	filter  string
	opts    scrape.RunOptions
	summary scrape.RunSummary
	err     error
	block   chan struct{}
}

func (f *fakeRunner) RunScrape(_ context.Context, filter string, opts scrape.RunOptions) (scrape.RunSummary, error) {
	f.mu.Lock()
	f.filter = filter
	f.opts = opts
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.summary, f.err
}

func submitRunRequest(t *testing.T, srv *httptest.Server, body string) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["run_id"])
	return out["run_id"]
}

func getRunStatus(t *testing.T, srv *httptest.Server, runID string) (RunStatus, int) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/v1/runs/" + runID)
	require.NoError(t, err)
	defer resp.Body.Close()

	var status RunStatus
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	}
	return status, resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeRunner{}, zap.NewNop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestSubmitRunCompletes(t *testing.T) {
	runner := &fakeRunner{summary: scrape.RunSummary{Found: 4, Inserted: 3, Updated: 1}}
	srv := httptest.NewServer(NewServer(runner, zap.NewNop()).Handler())
	defer srv.Close()

	runID := submitRunRequest(t, srv,
		`{"source": "lakeside", "scrape_detail_pages": true, "max_items": 10}`)

	require.Eventually(t, func() bool {
		status, code := getRunStatus(t, srv, runID)
		return code == http.StatusOK && status.Status == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	status, _ := getRunStatus(t, srv, runID)
	assert.Equal(t, "lakeside", status.Source)
	assert.Equal(t, 4, status.Summary.Found)
	assert.Equal(t, 3, status.Summary.Inserted)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, "lakeside", runner.filter)
	assert.True(t, runner.opts.ScrapeDetailPages)
	assert.Equal(t, 10, runner.opts.MaxItems)
}

func TestSubmitRunReportsFailure(t *testing.T) {
	runner := &fakeRunner{err: context.DeadlineExceeded}
	srv := httptest.NewServer(NewServer(runner, zap.NewNop()).Handler())
	defer srv.Close()

	runID := submitRunRequest(t, srv, `{"source": "lakeside"}`)

	require.Eventually(t, func() bool {
		status, code := getRunStatus(t, srv, runID)
		return code == http.StatusOK && status.Status == "failed"
	}, 2*time.Second, 10*time.Millisecond)

	status, _ := getRunStatus(t, srv, runID)
	assert.Contains(t, status.Error, "deadline")
}

func TestSubmitRunRespondsBeforeRunFinishes(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	srv := httptest.NewServer(NewServer(runner, zap.NewNop()).Handler())
	defer srv.Close()

	runID := submitRunRequest(t, srv, `{}`)

	status, code := getRunStatus(t, srv, runID)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", status.Status)

	close(runner.block)
	require.Eventually(t, func() bool {
		status, _ := getRunStatus(t, srv, runID)
		return status.Status == "completed"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitRunRejectsBadJSON(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeRunner{}, zap.NewNop()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/runs", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRunNotFound(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeRunner{}, zap.NewNop()).Handler())
	defer srv.Close()

	_, code := getRunStatus(t, srv, "no-such-run")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeRunner{}, zap.NewNop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
