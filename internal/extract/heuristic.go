// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

// sentenceRe splits prose on sentence-ending punctuation followed by
// whitespace. Rough, but the fallback only needs plausible units.
var sentenceRe = regexp.MustCompile(`[.!?]\s+`)

// claimMarkers flag sentences likely to carry a contribution claim.
var claimMarkers = []string{
	"we propose", "we present", "we introduce", "we show", "we demonstrate",
	"our method", "our approach", "our framework", "our results",
	"outperforms", "achieves", "state-of-the-art", "novel",
}

// methodSections are headings whose sentences read as procedure steps.
var methodSections = map[string]bool{
	"methodology": true,
	"methods":     true,
	"approach":    true,
}

const (
	minSentenceLen     = 40
	maxSentenceLen     = 400
	maxUnitsPerSection = 6
)

// heuristicUnits segments a section into sentences and keeps the ones
// that look like claims. Inside methodology sections the kept sentences
// become methodology steps; everywhere else they are text claims. When no
// sentence carries a claim marker the first few sentences stand in, so a
// failed AI call still yields something to embed.
func heuristicUnits(sec types.Section) []types.ConceptUnit {
	sentences := splitSentences(sec.Text)

	modality := types.ModalityTextClaim
	if methodSections[strings.ToLower(sec.Heading)] {
		modality = types.ModalityMethodologyStep
	}

	var picked []string
	for _, s := range sentences {
		if hasClaimMarker(s) {
			picked = append(picked, s)
		}
	}
	if len(picked) == 0 {
		picked = sentences
	}
	if len(picked) > maxUnitsPerSection {
		picked = picked[:maxUnitsPerSection]
	}

	var units []types.ConceptUnit
	offset := 0
	for _, s := range picked {
		units = append(units, types.NewConceptUnit(modality, s, types.Location{
			Section: sec.Heading,
			Offset:  offset,
		}))
		offset++
	}
	return units
}

// splitSentences returns cleaned sentences within the length bounds.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.Split(text, -1) {
		s = strings.TrimSpace(s)
		if len(s) < minSentenceLen || len(s) > maxSentenceLen {
			continue
		}
		out = append(out, s)
	}
	return out
}

func hasClaimMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range claimMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
