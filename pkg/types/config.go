// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network
// requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout, distinct from the global
	// run timeout in PipelineConfig.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "novelty-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// IngestConfig holds settings for the ingest stage.
type IngestConfig struct {
	// MinSectionWords is the minimum word count for a detected section;
	// shorter regions are treated as heading noise (default 50).
	MinSectionWords int `json:"min_section_words" yaml:"min_section_words"`

	// MaxEquations caps detected equation regions (default 12).
	MaxEquations int `json:"max_equations" yaml:"max_equations"`

	// MaxFigures caps detected figure/table captions (default 15).
	MaxFigures int `json:"max_figures" yaml:"max_figures"`
}

// RetrievalConfig holds settings for the retrieve stage.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxCandidates bounds the candidate list returned to the pipeline
	// (default 5).
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates"`

	// ProviderTimeout bounds each provider query independently of the
	// others (default 10s).
	ProviderTimeout time.Duration `json:"provider_timeout" yaml:"provider_timeout"`

	// MaxRetries is the bounded retry count per provider after the first
	// attempt (default 2). Retries back off exponentially.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// EnableArxiv controls whether the arXiv provider is used.
	EnableArxiv bool `json:"enable_arxiv" yaml:"enable_arxiv"`

	// EnableWeb controls whether the general web provider is used.
	EnableWeb bool `json:"enable_web" yaml:"enable_web"`

	// WebAPIKey authenticates the web search provider.
	WebAPIKey string `json:"web_api_key,omitempty" yaml:"web_api_key,omitempty"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ExtractionConfig holds settings for the concept extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline"`

	// MaxConcepts caps the unit count per document side (default 40).
	MaxConcepts int `json:"max_concepts" yaml:"max_concepts"`
}

// MatchConfig holds settings for the similarity matching stage.
type MatchConfig struct {
	// OllamaBaseURL is the embedding service endpoint
	// (default "http://localhost:11434").
	OllamaBaseURL string `json:"ollama_base_url" yaml:"ollama_base_url"`

	// EmbeddingModel is the embedding model name (default "all-minilm").
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`

	// Threshold is the acceptance threshold for a best-match pair
	// (default 0.6). Submitted units without a candidate match at or
	// above it contribute zero to the candidate score.
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// ScoringConfig holds settings for the scoring stage.
type ScoringConfig struct {
	// TopK is how many of the highest-scoring matches feed the overall
	// score (default 3; fewer when fewer candidates completed).
	TopK int `json:"top_k" yaml:"top_k"`

	// RecencyWindow is the window inside which a source's recency raises
	// its weight multiplier toward 1.1 (default 2 years). Sources outside
	// the window, or without a date, keep multiplier 1.0.
	RecencyWindow time.Duration `json:"recency_window" yaml:"recency_window"`
}

// ArchiveConfig holds settings for the CLI-side report archive. The
// archive stores produced reports only; submitted documents are never
// written anywhere.
type ArchiveConfig struct {
	// Dir is the directory containing novelty.db (default "reports").
	Dir string `json:"dir" yaml:"dir"`
}

// PipelineConfig groups all stage configurations plus the orchestration
// limits.
type PipelineConfig struct {
	Ingest     IngestConfig     `json:"ingest" yaml:"ingest"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Matching   MatchConfig      `json:"matching" yaml:"matching"`
	Scoring    ScoringConfig    `json:"scoring" yaml:"scoring"`

	// Concurrency is the MATCHING worker-pool size (default 5).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// RunTimeout is the global budget for one analysis run (default 60s).
	// When it elapses, in-flight candidate analyses are cancelled and the
	// run proceeds to scoring with whatever completed.
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout"`
}
