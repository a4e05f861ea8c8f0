// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

var clock = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func match(score float64, order int) types.MatchResult {
	return types.MatchResult{
		Candidate: types.CandidateSource{
			SourceURL: "https://arxiv.org/abs/2301.0000" + string(rune('0'+order)),
			Provider:  "arxiv",
		},
		SimilarityScore: score,
		DiscoveryOrder:  order,
	}
}

func testScoringCfg() types.ScoringConfig {
	return types.ScoringConfig{TopK: 3, RecencyWindow: 2 * 365 * 24 * time.Hour}
}

func TestBuildReportTopKAverage(t *testing.T) {
	in := Input{
		Title: "Submitted Paper",
		Matches: []types.MatchResult{
			match(0.2, 0), match(0.9, 1), match(0.7, 2), match(0.8, 3), match(0.1, 4),
		},
		CandidatesAnalyzed: 5,
	}

	r := BuildReport(in, testScoringCfg(), clock)

	want := (0.9 + 0.8 + 0.7) / 3
	if math.Abs(r.OverallScore-want) > 1e-9 {
		t.Errorf("OverallScore = %v, want %v", r.OverallScore, want)
	}
	if r.RiskCategory != types.RiskHigh {
		t.Errorf("RiskCategory = %v, want HIGH", r.RiskCategory)
	}
	if math.Abs(r.NoveltyScore-(100*(1-want))) > 1e-9 {
		t.Errorf("NoveltyScore = %v", r.NoveltyScore)
	}

	// All matches are kept in the report, sorted by score.
	if len(r.Matches) != 5 {
		t.Fatalf("len(Matches) = %d, want 5", len(r.Matches))
	}
	if r.Matches[0].SimilarityScore != 0.9 || r.Matches[4].SimilarityScore != 0.1 {
		t.Errorf("matches not sorted: %+v", r.Matches)
	}
}

func TestBuildReportFewerMatchesThanTopK(t *testing.T) {
	in := Input{Matches: []types.MatchResult{match(0.4, 0)}, CandidatesAnalyzed: 1}
	r := BuildReport(in, testScoringCfg(), clock)
	if math.Abs(r.OverallScore-0.4) > 1e-9 {
		t.Errorf("OverallScore = %v, want 0.4", r.OverallScore)
	}
	if r.RiskCategory != types.RiskModerate {
		t.Errorf("RiskCategory = %v, want MODERATE", r.RiskCategory)
	}
}

func TestBuildReportRiskBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  types.RiskCategory
	}{
		{0.0, types.RiskLow},
		{0.29999, types.RiskLow},
		{0.3, types.RiskModerate}, // lower bound inclusive
		{0.69999, types.RiskModerate},
		{0.7, types.RiskHigh}, // upper bound exclusive for MODERATE
		{1.0, types.RiskHigh},
	}
	for _, tt := range tests {
		in := Input{Matches: []types.MatchResult{match(tt.score, 0)}, CandidatesAnalyzed: 1}
		r := BuildReport(in, testScoringCfg(), clock)
		if r.RiskCategory != tt.want {
			t.Errorf("score %v: RiskCategory = %v, want %v", tt.score, r.RiskCategory, tt.want)
		}
	}
}

func TestBuildReportRecencyBoost(t *testing.T) {
	m := match(0.5, 0)
	m.Candidate.Published = clock // published at the clock time: full boost
	in := Input{Matches: []types.MatchResult{m}, CandidatesAnalyzed: 1}

	r := BuildReport(in, testScoringCfg(), clock)

	if math.Abs(r.OverallScore-0.55) > 1e-9 {
		t.Errorf("OverallScore = %v, want 0.55 with full recency boost", r.OverallScore)
	}
	if !strings.Contains(r.Explainability.TemporalScoring, "1 of 1") {
		t.Errorf("TemporalScoring = %q", r.Explainability.TemporalScoring)
	}
}

func TestRecencyMultiplier(t *testing.T) {
	window := 2 * 365 * 24 * time.Hour
	tests := []struct {
		name      string
		published time.Time
		want      float64
	}{
		{"undated", time.Time{}, 1.0},
		{"future date", clock.Add(time.Hour), 1.0},
		{"at window edge", clock.Add(-window), 1.0},
		{"older than window", clock.Add(-2 * window), 1.0},
		{"half window", clock.Add(-window / 2), 1.05},
		{"published now", clock, 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recencyMultiplier(tt.published, clock, window)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("recencyMultiplier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildReportClipsBoostedScore(t *testing.T) {
	m := match(0.98, 0)
	m.Candidate.Published = clock
	in := Input{Matches: []types.MatchResult{m}, CandidatesAnalyzed: 1}

	r := BuildReport(in, testScoringCfg(), clock)
	if r.OverallScore > 1 {
		t.Errorf("OverallScore = %v, want clipped to 1", r.OverallScore)
	}
}

func TestBuildReportStableTieOrdering(t *testing.T) {
	in := Input{
		Matches:            []types.MatchResult{match(0.5, 2), match(0.5, 0), match(0.5, 1)},
		CandidatesAnalyzed: 3,
	}

	first := BuildReport(in, testScoringCfg(), clock)
	for i := 0; i < 5; i++ {
		again := BuildReport(in, testScoringCfg(), clock)
		if !reflect.DeepEqual(again, first) {
			t.Fatalf("run %d differs from first", i)
		}
	}
	for i, m := range first.Matches {
		if m.DiscoveryOrder != i {
			t.Errorf("Matches[%d].DiscoveryOrder = %d, want discovery order for ties", i, m.DiscoveryOrder)
		}
	}
}

func TestBuildReportNoCandidates(t *testing.T) {
	in := Input{Title: "Lonely Paper", NoCandidates: true}
	r := BuildReport(in, testScoringCfg(), clock)

	if len(r.Matches) != 0 {
		t.Errorf("len(Matches) = %d, want 0", len(r.Matches))
	}
	if r.OverallScore != 0 || r.RiskCategory != types.RiskLow {
		t.Errorf("score = %v, risk = %v, want zero LOW", r.OverallScore, r.RiskCategory)
	}
	if !r.DegradedRun {
		t.Error("DegradedRun = false, want true without candidates")
	}
	if !strings.Contains(r.Summary, "low confidence") {
		t.Errorf("Summary = %q, want low-confidence caveat", r.Summary)
	}
	// The caveat must reach wire consumers, who only see explainability.
	if !strings.Contains(r.Explainability.SemanticAnalysis, "low confidence") ||
		!strings.Contains(r.Explainability.SemanticAnalysis, "No comparison sources") {
		t.Errorf("SemanticAnalysis = %q, want no-sources low-confidence caveat", r.Explainability.SemanticAnalysis)
	}
	if !strings.Contains(r.Explainability.TemporalScoring, "low confidence") {
		t.Errorf("TemporalScoring = %q, want low-confidence caveat", r.Explainability.TemporalScoring)
	}
}

func TestBuildReportDegradedMatchPropagates(t *testing.T) {
	m := match(0.2, 0)
	m.Degraded = true
	in := Input{Matches: []types.MatchResult{m}, CandidatesAnalyzed: 1}

	r := BuildReport(in, testScoringCfg(), clock)
	if !r.DegradedRun {
		t.Error("DegradedRun = false, want true when any match is degraded")
	}
	if !strings.Contains(r.Summary, "degraded") {
		t.Errorf("Summary = %q, want degradation mentioned", r.Summary)
	}
}

func TestBuildReportExplainability(t *testing.T) {
	m := match(0.8, 0)
	m.ContributingConcepts = []types.ConceptPair{
		{Submitted: types.ConceptUnit{Content: "a"}, Matched: types.ConceptUnit{Content: "b"}, Score: 0.9},
		{Submitted: types.ConceptUnit{Content: "c"}, Matched: types.ConceptUnit{Content: "d"}, Score: 0.7},
	}
	in := Input{
		Matches:            []types.MatchResult{m},
		CandidatesAnalyzed: 1,
		UnitCounts: map[types.Modality]int{
			types.ModalityTextClaim:         4,
			types.ModalityEquation:          2,
			types.ModalityMethodologyStep:   3,
			types.ModalityFigureDescription: 1,
		},
	}

	r := BuildReport(in, testScoringCfg(), clock)

	if !strings.Contains(r.Explainability.SemanticAnalysis, "2 concept alignments") {
		t.Errorf("SemanticAnalysis = %q", r.Explainability.SemanticAnalysis)
	}
	if !strings.Contains(r.Explainability.SemanticAnalysis, "0.80") {
		t.Errorf("SemanticAnalysis = %q, want mean 0.80", r.Explainability.SemanticAnalysis)
	}
	if !strings.Contains(r.Explainability.MultimodalExtraction, "4 text claims") ||
		!strings.Contains(r.Explainability.MultimodalExtraction, "2 equations") {
		t.Errorf("MultimodalExtraction = %q", r.Explainability.MultimodalExtraction)
	}
	if r.ProcessedAt != clock {
		t.Errorf("ProcessedAt = %v, want the injected clock", r.ProcessedAt)
	}
}
