// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns a structured document into typed concept units:
// text claims, equations, figure descriptions, and methodology steps.
// Equations and figures come deterministically from the ingest structure;
// prose concepts come from the AI backend, with a heuristic fallback when
// the backend is unavailable or fails. Extraction failure is always soft:
// the package degrades, it never aborts a run.
package extract

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

// ExtractionError records a soft failure of the AI backend for one
// section. The run continues with heuristic units for that section.
type ExtractionError struct {
	Section string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting concepts from section %q: %v", e.Section, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AIBackend abstracts the Generative AI API so tests can supply a mock.
// Each implementation handles one section of prose and returns the raw
// typed units. Per Strategy pattern.
type AIBackend interface {
	ExtractConcepts(ctx context.Context, section string) (AIResponse, error)
}

// AIResponse is the structured response from the AI backend for one section.
type AIResponse struct {
	Units []AIResponseUnit `json:"units" yaml:"units"`
}

// AIResponseUnit is a single concept unit as returned by the AI backend.
type AIResponseUnit struct {
	Modality string `json:"modality" yaml:"modality"`
	Content  string `json:"content" yaml:"content"`
	Section  string `json:"section" yaml:"section"`
	Offset   int    `json:"offset" yaml:"offset"`
}

// Output holds the extracted units plus degradation state. Errs lists the
// soft per-section failures; Degraded is true whenever the heuristic
// fallback produced any of the units.
type Output struct {
	Units    []types.ConceptUnit
	Degraded bool
	Errs     []error
}

const defaultMaxConcepts = 40

// Extract produces the concept units for a document. Structure-derived
// units (equations, figure descriptions) are emitted first and never
// depend on the backend. Prose sections then go through the AI backend
// one at a time; a section whose extraction fails after retries falls
// back to heuristic segmentation and marks the output degraded. A nil
// backend skips straight to the heuristic for every section.
//
// Extract never returns an error: every failure mode downgrades to
// heuristic units so the pipeline always has something to match.
func Extract(ctx context.Context, doc *types.SubmittedDocument, backend AIBackend, cfg types.ExtractionConfig, log *zap.Logger) Output {
	if log == nil {
		log = zap.NewNop()
	}

	var out Output
	seen := make(map[string]bool)

	add := func(u types.ConceptUnit) {
		key := string(u.Modality) + ":" + normalizeContent(u.Content)
		if u.Content == "" || seen[key] {
			return
		}
		seen[key] = true
		out.Units = append(out.Units, u)
	}

	// Structure-derived units come straight from ingest and are always
	// present regardless of backend health.
	for _, eq := range doc.Equations {
		add(types.NewConceptUnit(types.ModalityEquation, eq.RawForm, eq.Location))
	}
	for _, fig := range doc.Figures {
		add(types.NewConceptUnit(types.ModalityFigureDescription, fig.Caption, fig.Location))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	for _, sec := range doc.Sections {
		if strings.TrimSpace(sec.Text) == "" {
			continue
		}

		if backend == nil {
			out.Degraded = true
			for _, u := range heuristicUnits(sec) {
				add(u)
			}
			continue
		}

		resp, err := callWithRetry(ctx, backend, formatChunk(sec), maxRetries)
		if err != nil {
			extErr := &ExtractionError{Section: sec.Heading, Err: err}
			out.Errs = append(out.Errs, extErr)
			out.Degraded = true
			log.Warn("AI extraction failed, falling back to heuristic",
				zap.String("section", sec.Heading),
				zap.Error(err))
			for _, u := range heuristicUnits(sec) {
				add(u)
			}
			continue
		}

		for _, u := range convertUnits(resp.Units, sec.Heading) {
			add(u)
		}
	}

	maxConcepts := cfg.MaxConcepts
	if maxConcepts <= 0 {
		maxConcepts = defaultMaxConcepts
	}
	if len(out.Units) > maxConcepts {
		out.Units = out.Units[:maxConcepts]
	}

	return out
}

// formatChunk prepares a section for the AI backend by combining heading
// and body.
func formatChunk(sec types.Section) string {
	if sec.Heading == "" {
		return sec.Text
	}
	return fmt.Sprintf("## %s\n\n%s", sec.Heading, sec.Text)
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the AI backend with exponential backoff.
func callWithRetry(ctx context.Context, backend AIBackend, chunk string, maxRetries int) (AIResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return AIResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := backend.ExtractConcepts(ctx, chunk)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return AIResponse{}, ctx.Err()
		}
	}
	return AIResponse{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// convertUnits validates AI response units and converts them to typed
// concept units. Invalid modalities and empty content are dropped rather
// than failing the section; the AI is allowed to be sloppy.
func convertUnits(units []AIResponseUnit, sectionHeading string) []types.ConceptUnit {
	var result []types.ConceptUnit
	for _, u := range units {
		modality := types.Modality(u.Modality)
		if !modality.Valid() || strings.TrimSpace(u.Content) == "" {
			continue
		}

		sec := sectionHeading
		if u.Section != "" {
			sec = u.Section
		}

		result = append(result, types.NewConceptUnit(modality, strings.TrimSpace(u.Content), types.Location{
			Section: sec,
			Offset:  u.Offset,
		}))
	}
	return result
}

// normalizeContent collapses whitespace and truncates, producing a dedup key.
func normalizeContent(s string) string {
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if len(key) > 160 {
		key = key[:160]
	}
	return key
}
