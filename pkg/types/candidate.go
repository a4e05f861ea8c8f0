// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// CandidateSource is an external document found by retrieval and considered
// a possible origin of reused content. Candidates are created lazily by the
// retrieve stage and cached only for the lifetime of one analysis run;
// there is no cross-request cache.
type CandidateSource struct {
	// SourceURL is the canonical URL, unique within a run. Retrieval
	// deduplicates across providers on this field.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// Title is the candidate title as reported by the provider.
	Title string `json:"title" yaml:"title"`

	// Snippet is a short excerpt (abstract or content fragment) returned
	// by the provider alongside the hit.
	Snippet string `json:"snippet" yaml:"snippet"`

	// RetrievedText is the comparison text for this candidate. Filled by
	// the retriever's lazy fetch; falls back to Snippet when the fetch
	// fails, which is a soft degradation rather than an error.
	RetrievedText string `json:"retrieved_text" yaml:"retrieved_text"`

	// Provider identifies which search provider found this candidate
	// (e.g. "arxiv", "web").
	Provider string `json:"provider" yaml:"provider"`

	// Published is the publication date when the provider reports one;
	// zero otherwise. Used by scoring for the recency weight.
	Published time.Time `json:"published,omitempty" yaml:"published,omitempty"`
}
