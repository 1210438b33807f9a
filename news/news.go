package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/ndhoang/digestbus"
)

const defaultPageSize = 5

// Client fetches candidate articles from a NewsAPI-style top-headlines
// endpoint, one request per requested category.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

// NewClient returns a content provider backed by cfg.News
func NewClient(cfg *digestbus.Config) *Client {
	pageSize := cfg.News.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		baseURL:    cfg.News.BaseURL,
		apiKey:     cfg.News.APIKey,
		pageSize:   pageSize,
		httpClient: http.DefaultClient,
	}
}

type headlinesResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"articles"`
}

// Fetch returns candidate articles for the given categories. An empty
// result is a valid outcome, not an error.
func (c *Client) Fetch(ctx context.Context, categories []string) ([]digestbus.Article, error) {
	var all []digestbus.Article
	for _, category := range categories {
		articles, err := c.fetchCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		all = append(all, articles...)
	}

	return all, nil
}

func (c *Client) fetchCategory(ctx context.Context, category string) ([]digestbus.Article, error) {
	u := fmt.Sprintf("%s/v2/top-headlines?category=%s&pageSize=%d&apiKey=%s",
		c.baseURL, url.QueryEscape(category), c.pageSize, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "news: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "news: fetch category %s", category)
	}
	defer resp.Body.Close()

	var body headlinesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "news: decode response")
	}

	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return nil, errors.Errorf("news: %s: %s", resp.Status, body.Message)
	}

	articles := make([]digestbus.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, digestbus.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
		})
	}

	return articles, nil
}
