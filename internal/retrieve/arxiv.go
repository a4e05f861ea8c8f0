// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivProvider queries the arXiv API. Abstracts come back in the feed,
// so arXiv candidates have their comparison text filled immediately and
// never need the lazy fetch.
type ArxivProvider struct {
	Client *http.Client
}

// Name returns the provider identifier.
func (p *ArxivProvider) Name() string { return "arxiv" }

// Search queries the arXiv API for documents matching the query.
func (p *ArxivProvider) Search(ctx context.Context, query Query, cfg types.RetrievalConfig) ([]types.CandidateSource, error) {
	q := buildArxivQuery(query)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	maxResults := cfg.MaxCandidates
	if maxResults <= 0 {
		maxResults = defaultMaxCandidates
	}

	url := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, q, maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var candidates []types.CandidateSource
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		title := strings.TrimSpace(entry.Title)
		abstract := strings.TrimSpace(entry.Summary)

		c := types.CandidateSource{
			SourceURL:     "https://arxiv.org/abs/" + arxivID,
			Title:         title,
			Snippet:       truncate(abstract, 300),
			RetrievedText: title + "\n\n" + abstract,
			Provider:      "arxiv",
		}
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			c.Published = t
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// buildArxivQuery constructs the search_query parameter from the
// structured query fields.
func buildArxivQuery(q Query) string {
	var parts []string

	if q.Title != "" {
		terms := strings.Fields(q.Title)
		parts = append(parts, "all:"+strings.Join(terms, "+"))
	}
	for _, term := range q.KeyTerms {
		parts = append(parts, "all:"+term)
	}

	return strings.Join(parts, "+AND+")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
