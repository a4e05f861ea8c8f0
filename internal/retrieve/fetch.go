// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/pdiddy/novelty-engine/internal/httputil"
	"github.com/pdiddy/novelty-engine/pkg/types"
)

// fetchBodyLimit caps how much of a candidate page is read.
const fetchBodyLimit = 256 * 1024

var (
	htmlTagRe    = regexp.MustCompile(`(?s)<(?:script|style)[^>]*>.*?</(?:script|style)>|<[^>]+>`)
	htmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ")
)

// Fetcher lazily fills comparison text for candidates that arrived with a
// snippet only. Fetched pages are cached by canonical URL for the
// lifetime of one analysis run; the cache is never shared across runs.
type Fetcher struct {
	Client    *http.Client
	UserAgent string

	mu    sync.Mutex
	cache map[string]string
}

// Fill ensures the candidate has comparison text, fetching it lazily when
// the provider supplied only a snippet. A fetch failure is a soft
// degradation: the candidate falls back to its title and snippet.
func (f *Fetcher) Fill(ctx context.Context, c *types.CandidateSource) error {
	if c.RetrievedText != "" {
		return nil
	}
	text, err := f.FillText(ctx, c.SourceURL, c.Title, c.Snippet)
	c.RetrievedText = text
	return err
}

// FillText returns comparison text for the URL, fetching and caching on
// first use. On failure it returns the fallback assembled from the title
// and snippet, plus the fetch error so the caller can flag degradation.
func (f *Fetcher) FillText(ctx context.Context, url, title, snippet string) (string, error) {
	key := CanonicalURL(url)

	f.mu.Lock()
	if f.cache == nil {
		f.cache = make(map[string]string)
	}
	if text, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return text, nil
	}
	f.mu.Unlock()

	fallback := strings.TrimSpace(title + "\n\n" + snippet)

	text, err := f.fetch(ctx, url)
	if err != nil {
		return fallback, fmt.Errorf("fetching %s: %w", url, err)
	}

	f.mu.Lock()
	f.cache[key] = text
	f.mu.Unlock()
	return text, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 0)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		text = stripHTML(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("page produced no text")
	}
	return text, nil
}

// stripHTML reduces an HTML page to whitespace-separated text.
func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = htmlEntities.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
