// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest turns raw document bytes into a structured
// SubmittedDocument: title, heading-delimited sections, and detected
// equation and figure regions. A ParseError from this stage is the only
// fatal error in the pipeline; everything downstream degrades instead.
package ingest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

// ParseError indicates that no extractable text exists in the submitted
// bytes (empty, encrypted, or corrupt input). It aborts the run.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing document: %s: %v", e.Reason, e.Err)
	}
	return "parsing document: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// TextExtractor is the external parse capability: it turns raw document
// bytes (PDF) into plain text. Implementations include the markitdown
// container backend and deterministic test stubs.
type TextExtractor interface {
	ExtractText(ctx context.Context, raw []byte) (string, error)
}

const untitled = "Untitled Research Paper"

// fullTextCap bounds the fallback pseudo-section when no headings were
// detected, so a heading-free document cannot blow up extraction.
const fullTextCap = 12000

// sectionPatterns maps canonical section names to the heading cues that
// open them. Order matters only for tie-breaking identical positions.
var sectionPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"abstract", regexp.MustCompile(`(?i)\babstract\b`)},
	{"introduction", regexp.MustCompile(`(?i)\bintroduction\b`)},
	{"related work", regexp.MustCompile(`(?i)(related work|literature review)`)},
	{"methodology", regexp.MustCompile(`(?i)(methodology|method|proposed approach|approach)`)},
	{"experiments", regexp.MustCompile(`(?i)(experiments?|results?|evaluation)`)},
	{"conclusion", regexp.MustCompile(`(?i)(conclusion|discussion)`)},
}

// Ingest parses raw document bytes into a SubmittedDocument. It fails
// with *ParseError only when no extractable text exists at all; malformed
// equations or figures are not fatal — whatever fails detection stays in
// the section text and reaches extraction as plain text claims.
func Ingest(ctx context.Context, raw []byte, ex TextExtractor, cfg types.IngestConfig) (*types.SubmittedDocument, error) {
	if len(raw) == 0 {
		return nil, &ParseError{Reason: "empty document"}
	}

	text, err := ex.ExtractText(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ParseError{Reason: "text extraction failed", Err: err}
	}
	if !hasExtractableText(text) {
		return nil, &ParseError{Reason: "document contains no extractable text"}
	}

	minWords := cfg.MinSectionWords
	if minWords <= 0 {
		minWords = 50
	}

	sections := splitSections(text, minWords)

	doc := &types.SubmittedDocument{
		RawBytes:  raw,
		Title:     extractTitle(text),
		Sections:  sections,
		Equations: detectEquations(sections, cfg.MaxEquations),
		Figures:   detectFigures(sections, cfg.MaxFigures),
	}
	return doc, nil
}

// hasExtractableText requires at least a handful of letters; a stream of
// control bytes or punctuation from a corrupt PDF does not count.
func hasExtractableText(text string) bool {
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if letters >= 20 {
				return true
			}
		}
	}
	return false
}

// extractTitle picks the first plausible line near the top of the
// document: between 10 and 150 characters and free of boilerplate words.
func extractTitle(text string) string {
	head := text
	if len(head) > 2000 {
		head = head[:2000]
	}

	var candidates []string
	for _, line := range strings.Split(head, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 10 && len(line) < 150 {
			candidates = append(candidates, line)
		}
	}
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}

	for _, line := range candidates {
		lower := strings.ToLower(line)
		noisy := false
		for _, bad := range []string{"abstract", "introduction", "copyright", "permission", "license"} {
			if strings.Contains(lower, bad) {
				noisy = true
				break
			}
		}
		if !noisy {
			return line
		}
	}
	return untitled
}

// splitSections locates heading cues across the full text and slices the
// document into ordered sections. Regions shorter than minWords are
// treated as heading noise and dropped. When nothing is detected, the
// whole text becomes a single "full text" section so downstream stages
// always have something to work with.
func splitSections(text string, minWords int) []types.Section {
	type boundary struct {
		pos  int
		name string
	}

	var bounds []boundary
	for _, sp := range sectionPatterns {
		for _, loc := range sp.re.FindAllStringIndex(text, -1) {
			bounds = append(bounds, boundary{pos: loc[0], name: sp.name})
		}
	}

	sort.Slice(bounds, func(i, j int) bool {
		if bounds[i].pos != bounds[j].pos {
			return bounds[i].pos < bounds[j].pos
		}
		return bounds[i].name < bounds[j].name
	})

	var sections []types.Section
	seen := make(map[string]bool)
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1].pos
		}

		body := strings.TrimSpace(text[b.pos:end])
		if len(strings.Fields(body)) < minWords {
			continue
		}
		// Keep the first occurrence of each section name.
		if seen[b.name] {
			continue
		}
		seen[b.name] = true

		sections = append(sections, types.Section{Heading: b.name, Text: body})
	}

	if len(sections) == 0 {
		body := strings.TrimSpace(text)
		if len(body) > fullTextCap {
			body = body[:fullTextCap]
		}
		sections = []types.Section{{Heading: "full text", Text: body}}
	}
	return sections
}
