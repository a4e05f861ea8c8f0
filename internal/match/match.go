// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match compares the submitted document's concept units against a
// candidate's units in embedding space. Scores are weighted by modality:
// a shared equation or methodology step counts for more than overlapping
// prose. All scoring is deterministic for a fixed set of embeddings.
package match

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

// EmbeddingError records a failure of the embedding service. It is soft:
// affected units are dropped and the result is flagged degraded.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding service: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Embedder turns text into a vector. Implementations must be safe for
// concurrent use; the pipeline embeds candidates from multiple workers.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddedUnit pairs a concept unit with its vector.
type EmbeddedUnit struct {
	Unit   types.ConceptUnit
	Vector []float32
}

// maxContributingConcepts caps the explainability pair list per match.
const maxContributingConcepts = 8

// Matcher scores candidates against the submitted document's units.
type Matcher struct {
	Embedder  Embedder
	Threshold float64
	Logger    *zap.Logger
}

func (m *Matcher) log() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// EmbedUnits embeds each unit, retrying a failed unit once before
// dropping it. It returns the embedded units and how many were dropped;
// the caller flags the result degraded when dropped > 0.
func (m *Matcher) EmbedUnits(ctx context.Context, units []types.ConceptUnit) ([]EmbeddedUnit, int) {
	var embedded []EmbeddedUnit
	dropped := 0

	for i, u := range units {
		if ctx.Err() != nil {
			dropped += len(units) - i
			break
		}
		vec, err := m.Embedder.Embed(ctx, u.Content)
		if err != nil && ctx.Err() == nil {
			vec, err = m.Embedder.Embed(ctx, u.Content)
		}
		if err != nil || len(vec) == 0 {
			dropped++
			m.log().Warn("dropping unit after embedding failure",
				zap.String("modality", string(u.Modality)),
				zap.Error(err))
			continue
		}
		embedded = append(embedded, EmbeddedUnit{Unit: u, Vector: vec})
	}

	return embedded, dropped
}

// pair is one submitted-unit-to-candidate-unit alignment.
type pair struct {
	submitted EmbeddedUnit
	matched   EmbeddedUnit
	score     float64
}

// Match scores one candidate against the submitted units. For every
// submitted unit the best-aligned candidate unit is found; alignments at
// or above the threshold contribute their similarity, weighted by the
// submitted unit's modality, and units without an alignment contribute
// zero while their weight stays in the denominator. An empty side yields
// a zero-score degraded result rather than an error.
func (m *Matcher) Match(submitted []EmbeddedUnit, candidate types.CandidateSource, candidateUnits []EmbeddedUnit, discoveryOrder int, degraded bool) types.MatchResult {
	result := types.MatchResult{
		Candidate:      candidate,
		Degraded:       degraded,
		DiscoveryOrder: discoveryOrder,
	}

	if len(submitted) == 0 || len(candidateUnits) == 0 {
		result.Degraded = true
		return result
	}

	threshold := m.Threshold
	if threshold <= 0 {
		threshold = 0.6
	}

	var pairs []pair
	var weightedSum, weightTotal float64

	for _, su := range submitted {
		weight := su.Unit.ImportanceWeight
		if weight <= 0 {
			weight = su.Unit.Modality.Weight()
		}
		weightTotal += weight

		best, ok := bestAlignment(su, candidateUnits)
		if !ok || best.score < threshold {
			continue
		}

		weightedSum += weight * best.score
		pairs = append(pairs, best)
	}

	if weightTotal > 0 {
		result.SimilarityScore = clip01(weightedSum / weightTotal)
	}

	sortPairs(pairs)
	if len(pairs) > 0 {
		result.MatchedText = pairs[0].matched.Unit.Content
	}
	if len(pairs) > maxContributingConcepts {
		pairs = pairs[:maxContributingConcepts]
	}
	for _, p := range pairs {
		result.ContributingConcepts = append(result.ContributingConcepts, types.ConceptPair{
			Submitted: p.submitted.Unit,
			Matched:   p.matched.Unit,
			Score:     p.score,
		})
	}

	return result
}

// bestAlignment finds the candidate unit closest to the submitted unit.
// Ties break toward the more specific modality, then the earlier source
// location, keeping the result independent of slice ordering accidents.
func bestAlignment(su EmbeddedUnit, candidates []EmbeddedUnit) (pair, bool) {
	best := pair{submitted: su, score: -1}
	for _, cu := range candidates {
		score := Cosine(su.Vector, cu.Vector)
		switch {
		case score > best.score:
		case score == best.score && cu.Unit.Modality.Specificity() > best.matched.Unit.Modality.Specificity():
		case score == best.score &&
			cu.Unit.Modality.Specificity() == best.matched.Unit.Modality.Specificity() &&
			cu.Unit.SourceLocation.Before(best.matched.Unit.SourceLocation):
		default:
			continue
		}
		best.matched = cu
		best.score = score
	}
	if best.score < 0 {
		return pair{}, false
	}
	return best, true
}

// sortPairs orders alignments by score descending, then by the submitted
// unit's specificity, then by its source location.
func sortPairs(pairs []pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		si, sj := pairs[i].submitted.Unit.Modality.Specificity(), pairs[j].submitted.Unit.Modality.Specificity()
		if si != sj {
			return si > sj
		}
		return pairs[i].submitted.Unit.SourceLocation.Before(pairs[j].submitted.Unit.SourceLocation)
	})
}

// Cosine returns the cosine similarity of two vectors, clipped to [0,1].
// Mismatched or zero-magnitude vectors score zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clip01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
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
