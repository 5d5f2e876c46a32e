package provider

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

type fakeDoer struct {
	lastURL string
	status  int
	body    string
	err     error
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.lastURL = req.URL.String()
	if d.err != nil {
		return nil, d.err
	}
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
	}, nil
}

func TestScrapingBeeFetch(t *testing.T) {
	doer := &fakeDoer{body: cleanHTML}
	bee := NewScrapingBee("bee-key", zap.NewNop())
	bee.client = doer

	res, err := bee.Fetch(context.Background(), "https://dealer.example.com/vehicles/x", scrape.FetchOptions{
		WaitSelector: ".vehicle-card",
		ScrollToLoad: true,
	})
	require.NoError(t, err)
	assert.Equal(t, cleanHTML, res.HTML)
	assert.Equal(t, ScrapingBeeName, res.Provider)
	assert.Contains(t, doer.lastURL, "api_key=bee-key")
	assert.Contains(t, doer.lastURL, "render_js=true")
	assert.Contains(t, doer.lastURL, "wait_for=")
	assert.Contains(t, doer.lastURL, "js_scenario=")
}

func TestScrapingBeeUnconfigured(t *testing.T) {
	assert.False(t, NewScrapingBee("", zap.NewNop()).Configured())
	assert.True(t, NewScrapingBee("key", zap.NewNop()).Configured())
}

func TestScraperAPIFetch(t *testing.T) {
	doer := &fakeDoer{body: cleanHTML}
	s := NewScraperAPI("sapi-key", zap.NewNop())
	s.client = doer

	res, err := s.Fetch(context.Background(), "https://dealer.example.com/vehicles/x", scrape.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, cleanHTML, res.HTML)
	assert.Contains(t, doer.lastURL, "render=true")
}

func TestFetchAPINon200(t *testing.T) {
	doer := &fakeDoer{status: http.StatusTooManyRequests, body: "rate limited"}

	_, err := fetchAPI(context.Background(), doer, "https://api.example.com/?x=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}
