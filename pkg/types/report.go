// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RiskCategory buckets the overall similarity score into the three bands
// downstream consumers act on.
type RiskCategory string

const (
	RiskLow      RiskCategory = "LOW"
	RiskModerate RiskCategory = "MODERATE"
	RiskHigh     RiskCategory = "HIGH"
)

// Risk band thresholds. Intervals are half-open: a boundary value belongs
// to the higher category. These are a wire contract with every consumer
// that classifies risk from overall_score; do not move them casually.
const (
	ModerateRiskThreshold = 0.3
	HighRiskThreshold     = 0.7
)

// RiskFor maps an overall score to its category: LOW below 0.3, MODERATE
// in [0.3, 0.7), HIGH at and above 0.7.
func RiskFor(overallScore float64) RiskCategory {
	switch {
	case overallScore >= HighRiskThreshold:
		return RiskHigh
	case overallScore >= ModerateRiskThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// ConceptPair is one aligned submitted/candidate concept pair that
// contributed to a match score.
type ConceptPair struct {
	Submitted ConceptUnit `json:"submitted" yaml:"submitted"`
	Matched   ConceptUnit `json:"matched" yaml:"matched"`

	// Score is the cosine similarity of the pair, in [0,1].
	Score float64 `json:"score" yaml:"score"`
}

// MatchResult is the outcome of comparing the submitted document against
// one candidate. One result exists per successfully analyzed candidate;
// candidates that timed out produce no result at all.
type MatchResult struct {
	// Candidate is the compared source.
	Candidate CandidateSource `json:"candidate" yaml:"candidate"`

	// SimilarityScore is the importance-weighted average best-match score
	// over all submitted concept units, in [0,1].
	SimilarityScore float64 `json:"similarity_score" yaml:"similarity_score"`

	// MatchedText is the candidate text of the strongest aligned pair.
	MatchedText string `json:"matched_text" yaml:"matched_text"`

	// ContributingConcepts lists aligned pairs, strongest first.
	ContributingConcepts []ConceptPair `json:"contributing_concepts" yaml:"contributing_concepts"`

	// Degraded is true when either side's concept set came from the
	// heuristic fallback or when embedding failures excluded units.
	Degraded bool `json:"degraded" yaml:"degraded"`

	// DiscoveryOrder is the candidate's position in retrieval order.
	// It breaks ties when sorting matches with equal scores.
	DiscoveryOrder int `json:"discovery_order" yaml:"discovery_order"`
}

// Explainability carries the deterministic explanation texts generated
// from aggregation internals. These are assembled from counters and
// sums, never from free-form generation, so identical inputs produce
// identical text.
type Explainability struct {
	// TemporalScoring states which sources contributed to the overall
	// score and how recency weighted them.
	TemporalScoring string `json:"temporal_scoring" yaml:"temporal_scoring"`

	// SemanticAnalysis states how many concept units matched and at what
	// average score.
	SemanticAnalysis string `json:"semantic_analysis" yaml:"semantic_analysis"`

	// MultimodalExtraction states the equation/figure/methodology share
	// of the contributing matches.
	MultimodalExtraction string `json:"multimodal_extraction" yaml:"multimodal_extraction"`
}

// AnalysisReport is the final product of one analysis run. The scorer
// always produces a report once ingestion has succeeded; every non-fatal
// failure upstream surfaces here as degradation flags instead of errors.
type AnalysisReport struct {
	// Title is the submitted document title.
	Title string `json:"title" yaml:"title"`

	// OverallScore is the aggregate similarity in [0,1].
	OverallScore float64 `json:"overall_score" yaml:"overall_score"`

	// NoveltyScore is 100 × (1 − OverallScore); higher is more original.
	NoveltyScore float64 `json:"novelty_score" yaml:"novelty_score"`

	// RiskCategory is a pure function of OverallScore; see RiskFor.
	RiskCategory RiskCategory `json:"risk_category" yaml:"risk_category"`

	// Matches is ordered by SimilarityScore descending; ties preserve
	// candidate discovery order.
	Matches []MatchResult `json:"matches" yaml:"matches"`

	// Explainability holds the deterministic explanation texts.
	Explainability Explainability `json:"explainability" yaml:"explainability"`

	// DegradedRun is true when any stage fell back to a lower-fidelity
	// method, omitted data, or hit the run timeout.
	DegradedRun bool `json:"degraded_run" yaml:"degraded_run"`

	// CandidatesAnalyzed is the number of candidates that completed
	// matching before the run finished.
	CandidatesAnalyzed int `json:"candidates_analyzed" yaml:"candidates_analyzed"`

	// Summary is a one-paragraph deterministic digest of the run.
	Summary string `json:"summary" yaml:"summary"`

	// ProcessedAt is when the report was assembled.
	ProcessedAt time.Time `json:"processed_at" yaml:"processed_at"`
}

// WireMatch is the per-candidate element of the wire JSON contract.
type WireMatch struct {
	Source          string  `json:"source"`
	SimilarityScore float64 `json:"similarity_score"`
	MatchedText     string  `json:"matched_text"`
}

// WireReport is the JSON shape consumed by UIs and other callers.
// Field names and the 0.3/0.7 risk bands implied by overall_score are a
// compatibility contract; changing either breaks downstream consumers.
type WireReport struct {
	OverallScore    float64        `json:"overall_score"`
	InternetMatches []WireMatch    `json:"internet_matches"`
	Explainability  Explainability `json:"explainability"`
}

// Wire converts the report to the wire contract shape. The matches slice
// is always non-nil so an empty run serializes as [] rather than null.
func (r *AnalysisReport) Wire() WireReport {
	matches := make([]WireMatch, 0, len(r.Matches))
	for _, m := range r.Matches {
		matches = append(matches, WireMatch{
			Source:          m.Candidate.SourceURL,
			SimilarityScore: m.SimilarityScore,
			MatchedText:     m.MatchedText,
		})
	}
	return WireReport{
		OverallScore:    r.OverallScore,
		InternetMatches: matches,
		Explainability:  r.Explainability,
	}
}
