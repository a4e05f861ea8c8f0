// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

// tavilyAPIBase is the Tavily web search endpoint. Declared as a var so
// tests can substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

// tavilyDomains restricts web search to research publication venues.
var tavilyDomains = []string{
	"arxiv.org",
	"neurips.cc",
	"openreview.net",
	"paperswithcode.com",
}

// WebProvider queries the Tavily search API for research content on the
// open web. Hits usually carry only a short content fragment; candidates
// without enough text are filled later by the lazy fetcher.
type WebProvider struct {
	Client *http.Client
	APIKey string
}

// Name returns the provider identifier.
func (p *WebProvider) Name() string { return "web" }

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	PublishedDate string `json:"published_date"`
}

// Search queries the Tavily API for documents matching the query.
func (p *WebProvider) Search(ctx context.Context, query Query, cfg types.RetrievalConfig) ([]types.CandidateSource, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("web search API key is not configured")
	}

	q := query.Title
	if q == "" {
		q = strings.Join(query.KeyTerms, " ")
	}
	if q == "" {
		return nil, fmt.Errorf("empty web query")
	}

	maxResults := cfg.MaxCandidates
	if maxResults <= 0 {
		maxResults = defaultMaxCandidates
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:         p.APIKey,
		Query:          q,
		MaxResults:     maxResults,
		IncludeDomains: tavilyDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned HTTP %d", resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing web search response: %w", err)
	}

	var candidates []types.CandidateSource
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		c := types.CandidateSource{
			SourceURL: r.URL,
			Title:     strings.TrimSpace(r.Title),
			Snippet:   truncate(strings.TrimSpace(r.Content), 300),
			Provider:  "web",
		}
		// Short fragments stay as snippets only; the lazy fetcher fills
		// the comparison text from the page itself.
		if len(r.Content) >= 400 {
			c.RetrievedText = r.Content
		}
		if t, parseErr := time.Parse("2006-01-02", r.PublishedDate); parseErr == nil {
			c.Published = t
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
