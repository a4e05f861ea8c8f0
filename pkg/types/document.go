// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the novelty-engine
// pipeline. Every stage consumes and emits these records; none of them is
// mutated after the producing stage completes.
package types

// Location identifies where a piece of content appears in a document:
// the section it belongs to and the rune offset of its first character
// within that section. Offsets order units that share a section.
type Location struct {
	// Section is the heading of the enclosing section, lowercased
	// (e.g. "methodology"), or "" when the document has no sections.
	Section string `json:"section" yaml:"section"`

	// Offset is the rune offset within the section text.
	Offset int `json:"offset" yaml:"offset"`
}

// Before reports whether l appears earlier in the document than other.
// Sections compare by name only when equal offsets would otherwise tie;
// callers that need document order across sections should track it
// separately.
func (l Location) Before(other Location) bool {
	if l.Section != other.Section {
		return l.Section < other.Section
	}
	return l.Offset < other.Offset
}

// Section is one heading-delimited region of the submitted document.
type Section struct {
	// Heading is the normalized section name (e.g. "abstract", "methodology").
	Heading string `json:"heading" yaml:"heading"`

	// Text is the section body, whitespace-trimmed.
	Text string `json:"text" yaml:"text"`
}

// Equation is a detected equation region. Malformed equations are never
// fatal to ingestion: anything that fails detection stays in the section
// text and is picked up downstream as a plain text claim.
type Equation struct {
	// ID is a stable identifier within the document (e.g. "eq-3").
	ID string `json:"id" yaml:"id"`

	// RawForm is the equation text as it appears in the document.
	RawForm string `json:"raw_form" yaml:"raw_form"`

	// Location is where the equation was detected.
	Location Location `json:"location" yaml:"location"`
}

// Figure is a detected figure or table caption.
type Figure struct {
	// ID is a stable identifier within the document (e.g. "fig-2", "table-1").
	ID string `json:"id" yaml:"id"`

	// Caption is the caption text following the figure or table label.
	Caption string `json:"caption" yaml:"caption"`

	// Location is where the caption was detected.
	Location Location `json:"location" yaml:"location"`
}

// SubmittedDocument is the structured form of one submitted paper.
// Created once per analysis run by the ingest stage, immutable afterward,
// and discarded with the run: the engine never persists document content.
type SubmittedDocument struct {
	// RawBytes is the original upload. Kept only for the lifetime of the
	// run; later stages read the structured fields, not the bytes.
	RawBytes []byte `json:"-" yaml:"-"`

	// Title is the extracted paper title, or "Untitled Research Paper"
	// when no plausible title line was found.
	Title string `json:"title" yaml:"title"`

	// Sections lists heading-delimited regions in document order.
	Sections []Section `json:"sections" yaml:"sections"`

	// Equations lists detected equation regions in document order.
	Equations []Equation `json:"equations" yaml:"equations"`

	// Figures lists detected figure and table captions in document order.
	Figures []Figure `json:"figures" yaml:"figures"`
}

// FullText returns the concatenated section bodies in document order.
func (d *SubmittedDocument) FullText() string {
	var b []byte
	for i, s := range d.Sections {
		if i > 0 {
			b = append(b, '\n', '\n')
		}
		b = append(b, s.Text...)
	}
	return string(b)
}
