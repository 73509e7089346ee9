package generation

import (
	"context"

	"propdraft/internal/assembly"
)

// Completer sends one system/user prompt pair to a chat model and returns
// the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder defines the interface for converting text to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// PassageSource supplies example passages for a section. An empty ids list
// means any example.
type PassageSource interface {
	ExamplePassages(ctx context.Context, sectionKey string, exampleIDs []string, limit int) ([]assembly.ExamplePassage, error)
}
