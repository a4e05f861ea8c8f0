// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

// --- mock provider ---

type mockProvider struct {
	name     string
	results  []types.CandidateSource
	err      error
	failures int // fail this many calls before succeeding
	calls    int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Search(_ context.Context, _ Query, _ types.RetrievalConfig) ([]types.CandidateSource, error) {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("transient")
	}
	return m.results, m.err
}

func cand(url, provider string) types.CandidateSource {
	return types.CandidateSource{
		SourceURL:     url,
		Title:         "title for " + url,
		Snippet:       "snippet",
		RetrievedText: "text",
		Provider:      provider,
	}
}

func testCfg() types.RetrievalConfig {
	return types.RetrievalConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "test/0.1",
		},
		MaxCandidates:   5,
		ProviderTimeout: time.Second,
		MaxRetries:      2,
	}
}

func testQuery() Query {
	return Query{Title: "Deep Metric Learning", KeyTerms: []string{"retrieval"}}
}

// --- Retrieve ---

func TestRetrieveMergesProvidersInOrder(t *testing.T) {
	providers := []Provider{
		&mockProvider{name: "arxiv", results: []types.CandidateSource{
			cand("https://arxiv.org/abs/2301.00001", "arxiv"),
			cand("https://arxiv.org/abs/2301.00002", "arxiv"),
		}},
		&mockProvider{name: "web", results: []types.CandidateSource{
			cand("https://openreview.net/forum?id=abc", "web"),
		}},
	}

	out, err := Retrieve(context.Background(), testQuery(), providers, testCfg(), nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	var urls []string
	for _, c := range out.Candidates {
		urls = append(urls, c.SourceURL)
	}
	want := []string{
		"https://arxiv.org/abs/2301.00001",
		"https://arxiv.org/abs/2301.00002",
		"https://openreview.net/forum?id=abc",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("candidate order = %v, want %v", urls, want)
	}
}

func TestRetrieveDeduplicatesAcrossProviders(t *testing.T) {
	arxivHit := cand("https://arxiv.org/abs/2301.00001", "arxiv")
	webHit := types.CandidateSource{
		SourceURL: "https://ARXIV.org/abs/2301.00001/",
		Provider:  "web",
		Published: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	providers := []Provider{
		&mockProvider{name: "arxiv", results: []types.CandidateSource{arxivHit}},
		&mockProvider{name: "web", results: []types.CandidateSource{webHit}},
	}

	out, err := Retrieve(context.Background(), testQuery(), providers, testCfg(), nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(out.Candidates) != 1 {
		t.Fatalf("len(Candidates) = %d, want 1", len(out.Candidates))
	}
	if out.DupsRemoved != 1 {
		t.Errorf("DupsRemoved = %d, want 1", out.DupsRemoved)
	}

	merged := out.Candidates[0]
	if merged.Title != arxivHit.Title {
		t.Errorf("Title = %q, first occurrence should win", merged.Title)
	}
	if merged.Published.IsZero() {
		t.Error("Published not merged from duplicate hit")
	}
	if !strings.Contains(merged.Provider, "web") {
		t.Errorf("Provider = %q, want web recorded", merged.Provider)
	}
}

func TestRetrieveSoftProviderFailure(t *testing.T) {
	retryBackoffBase = time.Millisecond
	defer func() { retryBackoffBase = time.Second }()

	providers := []Provider{
		&mockProvider{name: "arxiv", err: errors.New("HTTP 500")},
		&mockProvider{name: "web", results: []types.CandidateSource{
			cand("https://openreview.net/forum?id=abc", "web"),
		}},
	}

	out, err := Retrieve(context.Background(), testQuery(), providers, testCfg(), nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v, want soft failure", err)
	}
	if !out.Degraded() {
		t.Error("Degraded() = false, want true after provider failure")
	}
	if len(out.ProviderErrors) != 1 || !strings.HasPrefix(out.ProviderErrors[0], "arxiv:") {
		t.Errorf("ProviderErrors = %v", out.ProviderErrors)
	}
	if len(out.Candidates) != 1 {
		t.Errorf("len(Candidates) = %d, want 1 from surviving provider", len(out.Candidates))
	}
}

func TestRetrieveNoCandidates(t *testing.T) {
	retryBackoffBase = time.Millisecond
	defer func() { retryBackoffBase = time.Second }()

	providers := []Provider{
		&mockProvider{name: "arxiv"},
		&mockProvider{name: "web", err: errors.New("HTTP 500")},
	}

	out, err := Retrieve(context.Background(), testQuery(), providers, testCfg(), nil)
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("Retrieve() error = %v, want ErrNoCandidates", err)
	}
	if len(out.Candidates) != 0 {
		t.Errorf("len(Candidates) = %d, want 0", len(out.Candidates))
	}
}

func TestRetrieveRetriesTransientFailure(t *testing.T) {
	retryBackoffBase = time.Millisecond
	defer func() { retryBackoffBase = time.Second }()

	p := &mockProvider{
		name:     "arxiv",
		failures: 2,
		results:  []types.CandidateSource{cand("https://arxiv.org/abs/2301.00001", "arxiv")},
	}

	out, err := Retrieve(context.Background(), testQuery(), []Provider{p}, testCfg(), nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if p.calls != 3 {
		t.Errorf("provider calls = %d, want 3 (1 initial + 2 retries)", p.calls)
	}
	if len(out.Candidates) != 1 {
		t.Errorf("len(Candidates) = %d, want 1", len(out.Candidates))
	}
}

func TestRetrieveCapsCandidates(t *testing.T) {
	var results []types.CandidateSource
	for i := 0; i < 8; i++ {
		results = append(results, cand(fmt.Sprintf("https://arxiv.org/abs/2301.%05d", i), "arxiv"))
	}

	out, err := Retrieve(context.Background(), testQuery(), []Provider{&mockProvider{name: "arxiv", results: results}}, testCfg(), nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(out.Candidates) != 5 {
		t.Errorf("len(Candidates) = %d, want cap of 5", len(out.Candidates))
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	_, err := Retrieve(context.Background(), Query{}, []Provider{&mockProvider{name: "arxiv"}}, testCfg(), nil)
	if err == nil {
		t.Fatal("Retrieve() error = nil, want error for empty query")
	}
}

// --- CanonicalURL ---

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercases host", "https://ArXiv.ORG/abs/2301.00001", "https://arxiv.org/abs/2301.00001"},
		{"strips query", "https://arxiv.org/abs/2301.00001?utm_source=feed", "https://arxiv.org/abs/2301.00001"},
		{"strips fragment", "https://arxiv.org/abs/2301.00001#sec2", "https://arxiv.org/abs/2301.00001"},
		{"strips trailing slash", "https://arxiv.org/abs/2301.00001/", "https://arxiv.org/abs/2301.00001"},
		{"trims whitespace", "  https://arxiv.org/abs/2301.00001 ", "https://arxiv.org/abs/2301.00001"},
		{"unparseable passes through", "not a url", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalURL(tt.raw); got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// --- QueryFor ---

func TestQueryFor(t *testing.T) {
	doc := &types.SubmittedDocument{
		Title: "Deep Metric Learning for Cross-Modal Retrieval",
		Sections: []types.Section{
			{Heading: "abstract", Text: "We study cross-modal embedding alignment. " + strings.Repeat("embedding alignment matters here truly. ", 20)},
			{Heading: "introduction", Text: strings.Repeat("embedding alignment across modalities. ", 10)},
		},
	}

	q := QueryFor(doc)
	if q.Title != doc.Title {
		t.Errorf("Title = %q", q.Title)
	}
	if len(q.Abstract) == 0 || len(q.Abstract) > 250 {
		t.Errorf("Abstract length = %d, want 1..250", len(q.Abstract))
	}
	if len(q.KeyTerms) == 0 || len(q.KeyTerms) > 5 {
		t.Fatalf("KeyTerms = %v, want 1..5 terms", q.KeyTerms)
	}
	if q.KeyTerms[0] != "alignment" && q.KeyTerms[0] != "embedding" {
		t.Errorf("top term = %q, want the most frequent content word", q.KeyTerms[0])
	}

	// Same document must always produce the same query.
	if !reflect.DeepEqual(q, QueryFor(doc)) {
		t.Error("QueryFor is not deterministic")
	}
}

func TestQueryForUntitledDocument(t *testing.T) {
	doc := &types.SubmittedDocument{
		Title:    "Untitled Research Paper",
		Sections: []types.Section{{Heading: "full text", Text: strings.Repeat("sparse attention kernels everywhere. ", 20)}},
	}
	q := QueryFor(doc)
	if q.Title != "" {
		t.Errorf("Title = %q, want placeholder suppressed", q.Title)
	}
	if q.IsEmpty() {
		t.Error("query should still carry abstract and key terms")
	}
}
