// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates one analysis run: ingest the submission,
// retrieve comparison candidates, extract and embed concepts on both
// sides, match candidates under bounded concurrency, and aggregate the
// results into a report. Only ingestion can abort a run; every later
// failure degrades the report instead.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/novelty-engine/internal/extract"
	"github.com/pdiddy/novelty-engine/internal/ingest"
	"github.com/pdiddy/novelty-engine/internal/match"
	"github.com/pdiddy/novelty-engine/internal/retrieve"
	"github.com/pdiddy/novelty-engine/internal/score"
	"github.com/pdiddy/novelty-engine/pkg/types"
)

// State is the pipeline's current stage, exposed for logging and the
// status surface. FAILED is reachable only from INGESTING.
type State string

const (
	StateIdle       State = "IDLE"
	StateIngesting  State = "INGESTING"
	StateRetrieving State = "RETRIEVING"
	StateMatching   State = "MATCHING"
	StateScoring    State = "SCORING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

const (
	defaultConcurrency = 5
	defaultRunTimeout  = 60 * time.Second
)

// Pipeline wires the five stages together. All collaborators are
// interfaces so tests run the full pipeline with stubs and no network.
type Pipeline struct {
	Extractor ingest.TextExtractor
	Providers []retrieve.Provider
	AI        extract.AIBackend
	Embedder  match.Embedder
	Fetcher   *retrieve.Fetcher
	Config    types.PipelineConfig
	Logger    *zap.Logger

	// Clock supplies the report timestamp; tests inject a fixed one.
	Clock func() time.Time

	mu    sync.Mutex
	state State
}

// State returns the pipeline's current stage.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == "" {
		return StateIdle
	}
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.log().Info("pipeline state", zap.String("state", string(s)))
}

func (p *Pipeline) log() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// Analyze runs the full pipeline on one document. The run timeout covers
// everything after the call starts; on expiry the report is assembled
// from whatever candidates completed and flagged degraded. Cancellation
// of the caller's context is different: it returns an error and no
// report. A *ingest.ParseError is the only other error return.
func (p *Pipeline) Analyze(ctx context.Context, raw []byte) (*types.AnalysisReport, error) {
	runTimeout := p.Config.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	p.setState(StateIngesting)
	doc, err := ingest.Ingest(runCtx, raw, p.Extractor, p.Config.Ingest)
	if err != nil {
		p.setState(StateFailed)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	p.log().Info("document ingested",
		zap.String("title", doc.Title),
		zap.Int("sections", len(doc.Sections)),
		zap.Int("equations", len(doc.Equations)),
		zap.Int("figures", len(doc.Figures)))

	p.setState(StateRetrieving)
	degradedRun := false
	noCandidates := false

	retrieved, err := retrieve.Retrieve(runCtx, retrieve.QueryFor(doc), p.Providers, p.Config.Retrieval, p.log())
	switch {
	case err == nil:
	case errors.Is(err, retrieve.ErrNoCandidates):
		noCandidates = true
	default:
		// Retrieval trouble beyond "nothing found" is still soft; the
		// report just carries no matches and a degraded flag.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log().Warn("retrieval failed", zap.Error(err))
		noCandidates = true
		degradedRun = true
	}
	if retrieved.Degraded() {
		degradedRun = true
	}

	submittedExt := extract.Extract(runCtx, doc, p.AI, p.Config.Extraction, p.log())
	if submittedExt.Degraded {
		degradedRun = true
	}

	matcher := &match.Matcher{
		Embedder:  p.Embedder,
		Threshold: p.Config.Matching.Threshold,
		Logger:    p.log(),
	}

	submittedUnits, droppedSubmitted := matcher.EmbedUnits(runCtx, submittedExt.Units)
	if droppedSubmitted > 0 {
		degradedRun = true
	}

	p.setState(StateMatching)
	results := p.matchCandidates(runCtx, matcher, submittedUnits, droppedSubmitted > 0 || submittedExt.Degraded, retrieved.Candidates)

	if ctx.Err() != nil {
		p.setState(StateFailed)
		return nil, fmt.Errorf("analysis cancelled: %w", ctx.Err())
	}
	if runCtx.Err() != nil {
		p.log().Warn("run timeout reached, reporting partial results",
			zap.Duration("timeout", runTimeout))
		degradedRun = true
	}

	var matches []types.MatchResult
	for _, r := range results {
		if r == nil {
			// Candidate never completed before the deadline.
			degradedRun = true
			continue
		}
		if r.Degraded {
			degradedRun = true
		}
		matches = append(matches, *r)
	}

	p.setState(StateScoring)
	report := score.BuildReport(score.Input{
		Title:              doc.Title,
		Matches:            matches,
		CandidatesAnalyzed: len(matches),
		UnitCounts:         countByModality(submittedExt.Units),
		NoCandidates:       noCandidates,
		DegradedRun:        degradedRun,
	}, p.Config.Scoring, p.now())

	p.setState(StateDone)
	p.log().Info("analysis complete",
		zap.Float64("overall_score", report.OverallScore),
		zap.String("risk", string(report.RiskCategory)),
		zap.Int("matches", len(report.Matches)),
		zap.Bool("degraded", report.DegradedRun))
	return report, nil
}

// matchCandidates runs one worker per candidate under the concurrency
// bound. Results land in per-index slots so completion order never
// affects the report; a slot left nil means the candidate missed the
// deadline. Worker failures are soft and never cancel siblings.
func (p *Pipeline) matchCandidates(ctx context.Context, matcher *match.Matcher, submitted []match.EmbeddedUnit, submittedDegraded bool, candidates []types.CandidateSource) []*types.MatchResult {
	concurrency := p.Config.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]*types.MatchResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			degraded := submittedDegraded

			if p.Fetcher != nil {
				if err := p.Fetcher.Fill(gctx, &cand); err != nil {
					p.log().Warn("candidate text fetch failed, using snippet",
						zap.String("url", cand.SourceURL),
						zap.Error(err))
					degraded = true
				}
			}

			candDoc := &types.SubmittedDocument{
				Title: cand.Title,
				Sections: []types.Section{
					{Heading: "retrieved", Text: cand.RetrievedText},
				},
			}
			candExt := extract.Extract(gctx, candDoc, p.AI, p.Config.Extraction, p.log())
			if candExt.Degraded {
				degraded = true
			}

			candUnits, dropped := matcher.EmbedUnits(gctx, candExt.Units)
			if dropped > 0 {
				degraded = true
			}

			if gctx.Err() != nil {
				return nil
			}

			result := matcher.Match(submitted, cand, candUnits, i, degraded)
			results[i] = &result
			return nil
		})
	}

	// Workers only return nil; Wait is for completion, not errors.
	_ = g.Wait()
	return results
}

func countByModality(units []types.ConceptUnit) map[types.Modality]int {
	counts := make(map[types.Modality]int)
	for _, u := range units {
		counts[u.Modality]++
	}
	return counts
}
