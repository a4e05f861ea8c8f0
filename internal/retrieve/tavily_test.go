// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebProviderSearch(t *testing.T) {
	var gotReq tavilyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(tavilyResponse{Results: []tavilyResult{
			{
				Title:         "Contrastive Embedding Alignment",
				URL:           "https://openreview.net/forum?id=abc",
				Content:       strings.Repeat("alignment of embedding spaces. ", 20),
				PublishedDate: "2024-03-15",
			},
			{
				Title:   "Short hit",
				URL:     "https://paperswithcode.com/paper/short",
				Content: "only a fragment",
			},
			{
				Title: "No URL, dropped",
			},
		}})
	}))
	defer server.Close()

	orig := tavilyAPIBase
	tavilyAPIBase = server.URL
	defer func() { tavilyAPIBase = orig }()

	p := &WebProvider{Client: server.Client(), APIKey: "tvly-test"}
	candidates, err := p.Search(context.Background(), testQuery(), testCfg())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotReq.APIKey != "tvly-test" {
		t.Errorf("request api_key = %q", gotReq.APIKey)
	}
	if gotReq.Query != "Deep Metric Learning" {
		t.Errorf("request query = %q", gotReq.Query)
	}
	if len(gotReq.IncludeDomains) == 0 {
		t.Error("request include_domains empty, want research venues")
	}

	if len(candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2 (hit without URL dropped)", len(candidates))
	}

	long := candidates[0]
	if long.Provider != "web" {
		t.Errorf("Provider = %q", long.Provider)
	}
	if long.RetrievedText == "" {
		t.Error("long content should fill RetrievedText immediately")
	}
	if len(long.Snippet) > 300 {
		t.Errorf("Snippet length = %d, want <= 300", len(long.Snippet))
	}
	if long.Published.IsZero() || long.Published.Year() != 2024 {
		t.Errorf("Published = %v", long.Published)
	}

	short := candidates[1]
	if short.RetrievedText != "" {
		t.Errorf("RetrievedText = %q, want empty so the lazy fetcher fills it", short.RetrievedText)
	}
}

func TestWebProviderRequiresAPIKey(t *testing.T) {
	p := &WebProvider{Client: http.DefaultClient}
	if _, err := p.Search(context.Background(), testQuery(), testCfg()); err == nil {
		t.Fatal("Search() error = nil, want missing key error")
	}
}
