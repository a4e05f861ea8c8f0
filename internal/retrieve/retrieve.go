// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve queries external search providers for candidate
// comparison sources. Providers run concurrently, each under its own
// timeout and bounded retry; a provider failing after retries is soft and
// the run proceeds with whatever the others returned. Results are
// deduplicated by canonical URL across providers.
package retrieve

import (
	"context"
	"errors"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

// ErrNoCandidates is returned when every provider came back empty or
// failed. It is non-fatal to the pipeline: the run proceeds directly to
// reporting with an empty match list and a low-confidence caveat.
var ErrNoCandidates = errors.New("no candidates found from any provider")

// Provider searches a single external source for candidate documents.
// Each provider (arXiv, general web) implements this interface.
type Provider interface {
	Name() string
	Search(ctx context.Context, query Query, cfg types.RetrievalConfig) ([]types.CandidateSource, error)
}

// Query holds the search parameters derived from the submitted document.
type Query struct {
	Title    string
	Abstract string
	KeyTerms []string
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return q.Title == "" && q.Abstract == "" && len(q.KeyTerms) == 0
}

// Output holds the candidates and per-provider failure notes.
type Output struct {
	Candidates     []types.CandidateSource
	ProviderErrors []string
	DupsRemoved    int
}

// Degraded reports whether at least one provider failed after retries.
func (o Output) Degraded() bool { return len(o.ProviderErrors) > 0 }

// retryBackoffBase controls the base duration for per-provider retry
// backoff. Tests override this to avoid real sleeps.
var retryBackoffBase = time.Second

const (
	defaultMaxCandidates   = 5
	defaultProviderTimeout = 10 * time.Second
	defaultMaxRetries      = 2
)

// Retrieve fans the query out to all providers concurrently, retries each
// provider with exponential backoff, deduplicates by canonical URL, and
// bounds the result to the configured maximum. Candidate order is
// deterministic: providers in the order given, each provider's results in
// the order it returned them — this order is the discovery order used for
// tie-breaking later in the pipeline.
func Retrieve(ctx context.Context, query Query, providers []Provider, cfg types.RetrievalConfig, log *zap.Logger) (Output, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if query.IsEmpty() {
		return Output{}, errors.New("query is empty: the submitted document produced no searchable terms")
	}
	if len(providers) == 0 {
		return Output{}, errors.New("no search providers configured")
	}

	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	// Per-provider result slots keep collection order independent of
	// completion order.
	results := make([][]types.CandidateSource, len(providers))
	errs := make([]error, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results[i], errs[i] = searchWithRetry(pctx, p, query, cfg)
		}(i, p)
	}
	wg.Wait()

	var out Output
	var all []types.CandidateSource
	for i, p := range providers {
		if errs[i] != nil {
			out.ProviderErrors = append(out.ProviderErrors, p.Name()+": "+errs[i].Error())
			log.Warn("search provider failed",
				zap.String("provider", p.Name()),
				zap.Error(errs[i]))
			continue
		}
		all = append(all, results[i]...)
	}

	out.Candidates, out.DupsRemoved = deduplicate(all)

	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	if len(out.Candidates) > maxCandidates {
		out.Candidates = out.Candidates[:maxCandidates]
	}

	if len(out.Candidates) == 0 {
		return out, ErrNoCandidates
	}

	log.Info("retrieval complete",
		zap.Int("candidates", len(out.Candidates)),
		zap.Int("duplicates_removed", out.DupsRemoved),
		zap.Int("provider_failures", len(out.ProviderErrors)))
	return out, nil
}

// searchWithRetry calls one provider with bounded exponential backoff.
func searchWithRetry(ctx context.Context, p Provider, query Query, cfg types.RetrievalConfig) ([]types.CandidateSource, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * retryBackoffBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		candidates, err := p.Search(ctx, query, cfg)
		if err == nil {
			return candidates, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// deduplicate removes candidates whose canonical URL was already seen,
// preserving discovery order. The first occurrence wins; a later hit from
// another provider only fills fields the first left empty.
func deduplicate(candidates []types.CandidateSource) ([]types.CandidateSource, int) {
	seen := make(map[string]int) // canonical URL -> index in deduped
	var deduped []types.CandidateSource
	removed := 0

	for _, c := range candidates {
		key := CanonicalURL(c.SourceURL)
		if key == "" {
			continue
		}
		if idx, ok := seen[key]; ok {
			mergeInto(&deduped[idx], c)
			removed++
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, c)
	}
	return deduped, removed
}

// mergeInto fills empty fields of dst from src.
func mergeInto(dst *types.CandidateSource, src types.CandidateSource) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Snippet == "" {
		dst.Snippet = src.Snippet
	}
	if dst.RetrievedText == "" {
		dst.RetrievedText = src.RetrievedText
	}
	if dst.Published.IsZero() && !src.Published.IsZero() {
		dst.Published = src.Published
	}
	if src.Provider != "" && !strings.Contains(dst.Provider, src.Provider) {
		dst.Provider = dst.Provider + "," + src.Provider
	}
}

// CanonicalURL normalizes a URL for cross-provider deduplication:
// lowercased scheme and host, no query, fragment, or trailing slash.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// wordRe splits prose into lowercase word tokens for key-term counting.
var wordRe = regexp.MustCompile(`[a-zA-Z][a-zA-Z-]{3,}`)

// stopwords excluded from key-term extraction.
var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"which": true, "their": true, "these": true, "those": true, "been": true,
	"were": true, "than": true, "them": true, "then": true, "when": true,
	"where": true, "while": true, "also": true, "into": true, "over": true,
	"such": true, "each": true, "between": true, "using": true, "used": true,
	"based": true, "paper": true, "results": true, "show": true, "propose": true,
	"proposed": true, "approach": true, "method": true, "methods": true,
}

// QueryFor derives the search query from a structured document: title,
// the abstract (or first section) truncated, and the most frequent
// non-stopword terms. Term selection is deterministic: frequency
// descending, then alphabetical.
func QueryFor(doc *types.SubmittedDocument) Query {
	q := Query{Title: doc.Title}

	if doc.Title == "Untitled Research Paper" {
		q.Title = ""
	}

	abstract := ""
	for _, s := range doc.Sections {
		if s.Heading == "abstract" {
			abstract = s.Text
			break
		}
	}
	if abstract == "" && len(doc.Sections) > 0 {
		abstract = doc.Sections[0].Text
	}
	if len(abstract) > 250 {
		abstract = abstract[:250]
	}
	q.Abstract = abstract

	counts := make(map[string]int)
	for _, w := range wordRe.FindAllString(strings.ToLower(doc.FullText()), -1) {
		if !stopwords[w] {
			counts[w]++
		}
	}
	terms := make([]string, 0, len(counts))
	for w := range counts {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > 5 {
		terms = terms[:5]
	}
	q.KeyTerms = terms

	return q
}
