// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

const (
	defaultMaxEquations = 12
	defaultMaxFigures   = 15
)

// Equation detection patterns, tried in order. Display math is blanked
// out before the inline pass so the same span is not captured twice.
var (
	displayMathRe = regexp.MustCompile(`\$\$([\s\S]{10,500}?)\$\$`)
	inlineMathRe  = regexp.MustCompile(`\$([^$\n]{10,200})\$`)
	labeledEqRe   = regexp.MustCompile(`(?:Eq\.?|Equation)\s*\(?\d+[.\d]*\)?\s*[:=]\s*([^\n.]{10,300})`)
)

// mathKeywords gates equation candidates: a span without any of these is
// assumed to be prose that happens to sit between dollar signs.
var mathKeywords = []string{
	`\`, "sum", "int", "frac", "argmin", "argmax",
	"log", "exp", "min", "max", "^", "_",
}

// Figure and table caption patterns.
var (
	figureCaptionRe = regexp.MustCompile(`(?i)(?:Figure|Fig)\.?\s*(\d+[a-zA-Z]?)\s*(?:[:\-]|shows?|presents?|illustrates?)\s*([^\n.]{15,150})`)
	tableCaptionRe  = regexp.MustCompile(`(?i)Table\s*(\d+[a-zA-Z]?)\s*(?:[:\-]|shows?|lists?)\s*([^\n.]{15,150})`)
)

// detectEquations scans each section for display math, inline math, and
// labeled equation references. Duplicate spans are collapsed by a
// whitespace-normalized key. Anything the patterns reject simply stays in
// the section text; detection failure is never an error.
func detectEquations(sections []types.Section, max int) []types.Equation {
	if max <= 0 {
		max = defaultMaxEquations
	}

	seen := make(map[string]bool)
	var equations []types.Equation

	add := func(raw, section string, offset int) {
		eq := strings.TrimSpace(raw)
		if len(eq) < 10 || !containsMathKeyword(eq) {
			return
		}
		key := normalizeSpan(eq)
		if seen[key] {
			return
		}
		seen[key] = true

		equations = append(equations, types.Equation{
			ID:      fmt.Sprintf("eq-%d", len(equations)+1),
			RawForm: eq,
			Location: types.Location{
				Section: section,
				Offset:  offset,
			},
		})
	}

	for _, sec := range sections {
		text := sec.Text

		for _, m := range displayMathRe.FindAllStringSubmatchIndex(text, -1) {
			add(text[m[2]:m[3]], sec.Heading, m[0])
		}
		// Blank display spans so the inline pass cannot re-capture them.
		masked := displayMathRe.ReplaceAllStringFunc(text, func(s string) string {
			return strings.Repeat(" ", len(s))
		})
		for _, m := range inlineMathRe.FindAllStringSubmatchIndex(masked, -1) {
			add(masked[m[2]:m[3]], sec.Heading, m[0])
		}
		for _, m := range labeledEqRe.FindAllStringSubmatchIndex(text, -1) {
			add(text[m[2]:m[3]], sec.Heading, m[0])
		}

		if len(equations) >= max {
			break
		}
	}

	if len(equations) > max {
		equations = equations[:max]
	}
	return equations
}

// detectFigures scans each section for figure and table captions.
func detectFigures(sections []types.Section, max int) []types.Figure {
	if max <= 0 {
		max = defaultMaxFigures
	}

	seen := make(map[string]bool)
	var figures []types.Figure

	add := func(kind, num, caption, section string, offset int) {
		caption = strings.TrimSpace(caption)
		if caption == "" {
			return
		}
		id := fmt.Sprintf("%s-%s", kind, strings.ToLower(num))
		key := id + ":" + normalizeSpan(caption)
		if seen[key] {
			return
		}
		seen[key] = true

		figures = append(figures, types.Figure{
			ID:      id,
			Caption: caption,
			Location: types.Location{
				Section: section,
				Offset:  offset,
			},
		})
	}

	for _, sec := range sections {
		for _, m := range figureCaptionRe.FindAllStringSubmatchIndex(sec.Text, -1) {
			add("fig", sec.Text[m[2]:m[3]], sec.Text[m[4]:m[5]], sec.Heading, m[0])
		}
		for _, m := range tableCaptionRe.FindAllStringSubmatchIndex(sec.Text, -1) {
			add("table", sec.Text[m[2]:m[3]], sec.Text[m[4]:m[5]], sec.Heading, m[0])
		}
		if len(figures) >= max {
			break
		}
	}

	if len(figures) > max {
		figures = figures[:max]
	}
	return figures
}

func containsMathKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range mathKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// normalizeSpan collapses whitespace and truncates, producing a dedup key.
func normalizeSpan(s string) string {
	key := strings.Join(strings.Fields(s), " ")
	if len(key) > 120 {
		key = key[:120]
	}
	return key
}
