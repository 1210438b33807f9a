package digestbus

import "context"

// ContentProvider fetches candidate articles for a set of category tags.
// An empty result is not an error; errors are I/O failures only.
type ContentProvider interface {
	Fetch(ctx context.Context, categories []string) ([]Article, error)
}

// Article is one candidate item for a digest
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}
