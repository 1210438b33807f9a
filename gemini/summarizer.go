package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndhoang/digestbus"
)

const systemInstruction = `You are an expert newsletter editor creating a personalized newsletter.
Write a concise, engaging summary that:
- Highlights the most important stories
- Provides context and insights
- Uses a friendly, conversational tone
- Is well-structured with clear sections
- Keeps the reader informed and engaged
Format the response as a proper newsletter with a title and organized content.
Make it email-friendly with clear sections and engaging subject lines.`

// Client summarizes articles with the Gemini generateContent endpoint
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient returns a summarizer backed by cfg.Gemini
func NewClient(cfg *digestbus.Config) *Client {
	return &Client{
		baseURL:    cfg.Gemini.BaseURL,
		apiKey:     cfg.Gemini.APIKey,
		model:      cfg.Gemini.Model,
		httpClient: http.DefaultClient,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize asks the model for newsletter prose covering the articles.
// A reply with no extractable text is digestbus.ErrNoContent: fatal for the
// run it belongs to, but never for the subscription chain.
func (c *Client) Summarize(ctx context.Context, articles []digestbus.Article, categories []string) (string, error) {
	reqBody := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt(articles, categories)}}},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "gemini: marshal request")
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "gemini: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "gemini: generate content")
	}
	defer resp.Body.Close()

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "gemini: decode response")
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if body.Error != nil {
			msg = body.Error.Message
		}
		return "", errors.Errorf("gemini: %s", msg)
	}

	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return "", digestbus.ErrNoContent
	}
	text := body.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", digestbus.ErrNoContent
	}

	return text, nil
}

func prompt(articles []digestbus.Article, categories []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a newsletter summary for these articles from the past week.\n")
	fmt.Fprintf(&sb, "Categories requested: %s\n\nArticles:\n", strings.Join(categories, ", "))
	for i, a := range articles {
		fmt.Fprintf(&sb, "%d. %s\n  %s\n  Source: %s\n\n", i+1, a.Title, a.Description, a.URL)
	}

	return sb.String()
}
