package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndhoang/digestbus"
)

func newTestClient(baseURL string) *Client {
	cfg := &digestbus.Config{}
	cfg.News.BaseURL = baseURL
	cfg.News.APIKey = "test-key"
	cfg.News.PageSize = 2

	return NewClient(cfg)
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/top-headlines", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))

		category := r.URL.Query().Get("category")
		fmt.Fprintf(w, `{"status":"ok","articles":[
			{"title":"%s story","description":"about %s","url":"https://example.com/%s"}
		]}`, category, category, category)
	}))
	defer ts.Close()

	articles, err := newTestClient(ts.URL).Fetch(context.Background(), []string{"technology", "science"})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "technology story", articles[0].Title)
	assert.Equal(t, "https://example.com/science", articles[1].URL)
}

func TestFetchEmptyResultIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok","articles":[]}`)
	}))
	defer ts.Close()

	articles, err := newTestClient(ts.URL).Fetch(context.Background(), []string{"technology"})
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestFetchProviderError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"error","message":"apiKey invalid"}`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Fetch(context.Background(), []string{"technology"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKey invalid")
}
