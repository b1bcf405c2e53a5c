package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is the structured output of one scrape: the full page as
// markdown plus the schema-constrained extract fields.
type Result struct {
	Markdown    string
	Title       string
	Description string
	Summary     string
	KeyPoints   []string
}

type Client interface {
	Scrape(ctx context.Context, url string) (*Result, error)
}

// FirecrawlClient calls the Firecrawl scrape endpoint, requesting page
// markdown and a structured extract in one round trip.
type FirecrawlClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewFirecrawlClient(baseURL, apiKey string) *FirecrawlClient {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	return &FirecrawlClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

type scrapeReq struct {
	URL     string     `json:"url"`
	Formats []string   `json:"formats"`
	Extract *extractIn `json:"extract,omitempty"`
}

type extractIn struct {
	Schema map[string]any `json:"schema"`
}

type scrapeResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string `json:"markdown"`
		Extract  struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Summary     string   `json:"summary"`
			KeyPoints   []string `json:"keyPoints"`
		} `json:"extract"`
	} `json:"data"`
}

var extractSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":       map[string]any{"type": "string", "description": "The title of the page content"},
		"description": map[string]any{"type": "string", "description": "A hook of at most 7 words"},
		"summary":     map[string]any{"type": "string", "description": "A concise summary of the content"},
		"keyPoints": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"summary", "keyPoints"},
}

func (c *FirecrawlClient) Scrape(ctx context.Context, url string) (*Result, error) {
	if c.HTTP == nil {
		return nil, errors.New("firecrawl: http client is nil")
	}

	body, err := json.Marshal(scrapeReq{
		URL:     url,
		Formats: []string{"markdown", "extract"},
		Extract: &extractIn{Schema: extractSchema},
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/scrape", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("firecrawl: status %d", resp.StatusCode)
	}

	var decoded scrapeResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if !decoded.Success {
		if decoded.Error != "" {
			return nil, fmt.Errorf("firecrawl: %s", decoded.Error)
		}
		return nil, errors.New("firecrawl: scrape unsuccessful")
	}

	return &Result{
		Markdown:    decoded.Data.Markdown,
		Title:       decoded.Data.Extract.Title,
		Description: decoded.Data.Extract.Description,
		Summary:     decoded.Data.Extract.Summary,
		KeyPoints:   decoded.Data.Extract.KeyPoints,
	}, nil
}
