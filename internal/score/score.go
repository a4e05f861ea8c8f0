// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score aggregates per-candidate match results into the final
// analysis report. Scoring is pure and deterministic: the same inputs and
// clock always produce the same report, which is what makes whole-run
// idempotence testable.
package score

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

const (
	defaultTopK          = 3
	defaultRecencyWindow = 2 * 365 * 24 * time.Hour

	// recencyBoost is the maximum multiplier applied to a match published
	// "now"; it decays linearly to 1.0 at the window edge.
	recencyBoost = 0.1
)

// Input carries everything the scorer needs from the earlier stages.
type Input struct {
	Title              string
	Matches            []types.MatchResult
	CandidatesAnalyzed int

	// UnitCounts is the submitted document's concept unit census by
	// modality, used for the multimodal explainability note.
	UnitCounts map[types.Modality]int

	// NoCandidates marks a run where retrieval found nothing to compare
	// against. The report still renders, with a low-confidence caveat.
	NoCandidates bool

	// DegradedRun marks a run where any stage fell back or timed out.
	DegradedRun bool
}

// BuildReport computes the overall score and assembles the report. The
// overall score is the average of the top-K candidate similarities, each
// boosted by a recency multiplier when the candidate was published inside
// the recency window, clipped to [0,1].
func BuildReport(in Input, cfg types.ScoringConfig, now time.Time) *types.AnalysisReport {
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	window := cfg.RecencyWindow
	if window <= 0 {
		window = defaultRecencyWindow
	}

	matches := make([]types.MatchResult, len(in.Matches))
	copy(matches, in.Matches)
	sortMatches(matches)

	top := matches
	if len(top) > topK {
		top = top[:topK]
	}

	var overall float64
	recentCount := 0
	if len(top) > 0 {
		var sum float64
		for _, m := range top {
			adjusted := m.SimilarityScore * recencyMultiplier(m.Candidate.Published, now, window)
			if adjusted != m.SimilarityScore {
				recentCount++
			}
			sum += clip01(adjusted)
		}
		overall = clip01(sum / float64(len(top)))
	}

	degraded := in.DegradedRun || in.NoCandidates
	for _, m := range matches {
		if m.Degraded {
			degraded = true
		}
	}

	report := &types.AnalysisReport{
		Title:              in.Title,
		OverallScore:       overall,
		NoveltyScore:       100 * (1 - overall),
		RiskCategory:       types.RiskFor(overall),
		Matches:            matches,
		DegradedRun:        degraded,
		CandidatesAnalyzed: in.CandidatesAnalyzed,
		ProcessedAt:        now.UTC(),
	}
	report.Explainability = buildExplainability(in, top, recentCount, window)
	report.Summary = buildSummary(report, in)
	return report
}

// sortMatches orders matches by similarity descending; ties break toward
// the earlier discovery order so repeated runs render identically.
func sortMatches(matches []types.MatchResult) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].SimilarityScore != matches[j].SimilarityScore {
			return matches[i].SimilarityScore > matches[j].SimilarityScore
		}
		return matches[i].DiscoveryOrder < matches[j].DiscoveryOrder
	})
}

// recencyMultiplier returns 1.0 for undated or out-of-window candidates
// and up to 1.0+recencyBoost for candidates published at the clock time.
func recencyMultiplier(published, now time.Time, window time.Duration) float64 {
	if published.IsZero() || published.After(now) {
		return 1.0
	}
	age := now.Sub(published)
	if age >= window {
		return 1.0
	}
	return 1.0 + recencyBoost*(1.0-float64(age)/float64(window))
}

func buildExplainability(in Input, top []types.MatchResult, recentCount int, window time.Duration) types.Explainability {
	windowYears := float64(window) / float64(365*24*time.Hour)

	// A run with nothing to compare against must say so on the wire, not
	// just in the summary: consumers read explainability, not Summary.
	if in.NoCandidates {
		return types.Explainability{
			TemporalScoring:      "No comparison sources were retrieved, so recency weighting did not apply; the result is low confidence.",
			SemanticAnalysis:     "No comparison sources were retrieved; no concept alignments were attempted and the zero score is low confidence.",
			MultimodalExtraction: multimodalCensus(in),
		}
	}

	temporal := fmt.Sprintf(
		"%d of %d top-ranked matches were published inside the %.1f-year recency window and received a linear boost of up to %.0f%%; older or undated sources carry no boost.",
		recentCount, len(top), windowYears, recencyBoost*100)

	pairCount := 0
	var pairSum float64
	for _, m := range in.Matches {
		for _, p := range m.ContributingConcepts {
			pairCount++
			pairSum += p.Score
		}
	}
	semantic := "No concept alignments reached the similarity threshold."
	if pairCount > 0 {
		semantic = fmt.Sprintf(
			"%d concept alignments across %d candidates reached the similarity threshold, with a mean alignment score of %.2f.",
			pairCount, len(in.Matches), pairSum/float64(pairCount))
	}

	return types.Explainability{
		TemporalScoring:      temporal,
		SemanticAnalysis:     semantic,
		MultimodalExtraction: multimodalCensus(in),
	}
}

func multimodalCensus(in Input) string {
	return fmt.Sprintf(
		"The submission decomposed into %d text claims, %d equations, %d figure descriptions, and %d methodology steps; equations and methodology steps carry the highest comparison weight.",
		in.UnitCounts[types.ModalityTextClaim],
		in.UnitCounts[types.ModalityEquation],
		in.UnitCounts[types.ModalityFigureDescription],
		in.UnitCounts[types.ModalityMethodologyStep])
}

func buildSummary(r *types.AnalysisReport, in Input) string {
	if in.NoCandidates {
		return "No comparison sources could be retrieved; the submission is provisionally rated " +
			string(r.RiskCategory) + " risk with low confidence."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s risk: overall similarity %.2f against %d analyzed candidates.",
		r.RiskCategory, r.OverallScore, r.CandidatesAnalyzed)
	if r.DegradedRun {
		b.WriteString(" Parts of the analysis ran in degraded mode; treat borderline scores with caution.")
	}
	return b.String()
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
