// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Modality classifies a ConceptUnit by the kind of meaning it carries.
// Idea and structure reuse (equations, methodology) matters more than
// prose overlap, so each modality carries a fixed importance weight.
type Modality string

const (
	ModalityTextClaim         Modality = "text-claim"
	ModalityEquation          Modality = "equation"
	ModalityFigureDescription Modality = "figure-description"
	ModalityMethodologyStep   Modality = "methodology-step"
)

// Valid reports whether m is one of the four accepted modalities.
func (m Modality) Valid() bool {
	switch m {
	case ModalityTextClaim, ModalityEquation, ModalityFigureDescription, ModalityMethodologyStep:
		return true
	}
	return false
}

// Weight returns the fixed importance weight for the modality:
// equation and methodology-step > figure-description > text-claim.
func (m Modality) Weight() float64 {
	switch m {
	case ModalityEquation, ModalityMethodologyStep:
		return 1.5
	case ModalityFigureDescription:
		return 1.2
	default:
		return 1.0
	}
}

// Specificity orders modalities for tie-breaking among equally similar
// matches: equation > methodology-step > figure-description > text-claim.
func (m Modality) Specificity() int {
	switch m {
	case ModalityEquation:
		return 3
	case ModalityMethodologyStep:
		return 2
	case ModalityFigureDescription:
		return 1
	default:
		return 0
	}
}

// ConceptUnit is a typed, weighted atomic unit of meaning used as the
// comparison granularity instead of raw text.
type ConceptUnit struct {
	// Modality is the unit type.
	Modality Modality `json:"modality" yaml:"modality"`

	// Content is the unit text (a claim sentence, an equation's raw form,
	// a caption, or a methodology step description).
	Content string `json:"content" yaml:"content"`

	// SourceLocation is where the unit came from in its document.
	SourceLocation Location `json:"source_location" yaml:"source_location"`

	// ImportanceWeight is fixed per modality; see Modality.Weight.
	ImportanceWeight float64 `json:"importance_weight" yaml:"importance_weight"`
}

// NewConceptUnit builds a unit with the modality's fixed weight applied.
func NewConceptUnit(m Modality, content string, loc Location) ConceptUnit {
	return ConceptUnit{
		Modality:         m,
		Content:          content,
		SourceLocation:   loc,
		ImportanceWeight: m.Weight(),
	}
}
