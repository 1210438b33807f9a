package digestbus

import (
	"context"
	"errors"
)

// ErrNoContent is returned when the model reply contains no extractable text
var ErrNoContent = errors.New("no extractable content in model response")

// Summarizer turns a list of articles into newsletter prose (markdown).
// It must handle an empty article list.
type Summarizer interface {
	Summarize(ctx context.Context, articles []Article, categories []string) (string, error)
}
