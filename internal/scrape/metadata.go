package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxMetadataBody = 5 * 1024 * 1024

// Metadata is what a plain page fetch can tell us without the
// extraction service: title, meta description, favicon.
type Metadata struct {
	Title       string
	Description string
	FaviconURL  string
}

type Sniffer interface {
	Sniff(ctx context.Context, pageURL string) (*Metadata, error)
}

// PageSniffer fetches the page itself and reads metadata out of the
// HTML head. Used as a fallback when the extractor omits those fields.
type PageSniffer struct {
	HTTP      *http.Client
	UserAgent string
}

func NewPageSniffer() *PageSniffer {
	return &PageSniffer{
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		UserAgent: "TabChat-LinkBot/1.0",
	}
}

func (s *PageSniffer) Sniff(ctx context.Context, pageURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxMetadataBody))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	meta := &Metadata{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if desc := strings.TrimSpace(v); desc != "" {
				meta.Description = desc
				break
			}
		}
	}

	if href, ok := doc.Find(`link[rel~="icon"]`).First().Attr("href"); ok {
		meta.FaviconURL = resolveRef(pageURL, href)
	}
	if meta.FaviconURL == "" {
		// fall back to the conventional location
		meta.FaviconURL = resolveRef(pageURL, "/favicon.ico")
	}

	return meta, nil
}

func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}
