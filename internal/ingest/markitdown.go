// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdiddy/novelty-engine/internal/container"
)

const imageMarkitdown = "markitdown:latest"

// MarkitdownExtractor extracts text by piping the document bytes through
// the markitdown container image. It depends on a container.Runtime
// (docker or podman) injected at construction time.
type MarkitdownExtractor struct {
	runtime container.Runtime
}

// NewMarkitdownExtractor creates an extractor that uses the given
// container runtime to run the markitdown image. It verifies that the
// image exists locally before returning.
func NewMarkitdownExtractor(rt container.Runtime) (*MarkitdownExtractor, error) {
	if err := rt.ImageExists(imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownExtractor{runtime: rt}, nil
}

// ExtractText pipes the raw document through the markitdown container and
// returns the resulting text.
func (m *MarkitdownExtractor) ExtractText(ctx context.Context, raw []byte) (string, error) {
	var out bytes.Buffer
	if err := m.runtime.Run(ctx, imageMarkitdown, bytes.NewReader(raw), &out); err != nil {
		return "", fmt.Errorf("extracting text with markitdown: %w", err)
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("markitdown produced empty output")
	}

	return out.String(), nil
}
