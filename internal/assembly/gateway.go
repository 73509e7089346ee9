package assembly

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is the distinct "no saved assembly" outcome of a load.
	ErrNotFound = errors.New("no saved draft found")
	// ErrEmptyOutline is returned by operations that need at least one section.
	ErrEmptyOutline = errors.New("outline is empty")
	// ErrNoInstruction is returned when drafting a section with no instruction sheet.
	ErrNoInstruction = errors.New("section has no instruction sheet")
	// ErrUnknownSection is returned for keys that are not in the outline.
	ErrUnknownSection = errors.New("unknown section")
	// ErrNothingToSave is returned by Save when the outline is empty.
	ErrNothingToSave = errors.New("nothing to save")
)

// Generator is the external AI drafting service.
type Generator interface {
	GenerateOutline(ctx context.Context, req OutlineRequest) (OutlineResult, error)
	GenerateInstructions(ctx context.Context, req InstructionsRequest) (InstructionsResult, error)
	DraftSection(ctx context.Context, req DraftRequest) (DraftResult, error)
}

// Persister stores and retrieves document snapshots. LoadLatestDraft returns
// an error wrapping ErrNotFound when nothing has been saved yet.
type Persister interface {
	SaveDraft(ctx context.Context, snap DocumentSnapshot) (SaveReceipt, error)
	LoadLatestDraft(ctx context.Context) (DocumentSnapshot, error)
}

// ExampleCatalog lists the reference examples a user can select.
type ExampleCatalog interface {
	ListExamples(ctx context.Context) ([]Example, error)
}

type OutlineRequest struct {
	Topic            string
	UseKnowledgeBase bool
}

type OutlineResult struct {
	Sections []string `json:"sections"`
}

// OutlineItem is the outline entry sent with an instruction request.
type OutlineItem struct {
	Title string `json:"title"`
	Key   string `json:"key"`
}

type InstructionsRequest struct {
	Outline          []OutlineItem
	UseKnowledgeBase bool
}

// InstructionsResult holds one sheet per section, each tagged with its
// section key.
type InstructionsResult struct {
	Instructions []InstructionSheet `json:"instructions"`
}

type DraftRequest struct {
	SectionKey       string
	Instruction      InstructionSheet
	ExampleIDs       []string
	UseKnowledgeBase bool
}

// DraftResult is a generated section with its quality checks and provenance.
type DraftResult struct {
	HTML    string        `json:"html"`
	Checks  DraftChecks   `json:"checks"`
	Sources []DraftSource `json:"sources"`
}

type DraftChecks struct {
	Similarity SimilarityCheck `json:"similarity"`
	Compliance []ChecklistItem `json:"compliance"`
	Quality    QualityCheck    `json:"quality"`
}

// QualityCheck is a heuristic writing score in [0, 1] with the issues that
// lowered it.
type QualityCheck struct {
	Score  float64  `json:"score"`
	Words  int      `json:"words"`
	Issues []string `json:"issues,omitempty"`
}

// SimilarityCheck reports the closest match between the draft and the example
// passages. Flag is set when the draft reads as copied.
type SimilarityCheck struct {
	Max  float64 `json:"max"`
	Flag bool    `json:"flag"`
}

// DraftSource attributes part of a draft to an RFP, knowledge-base or
// example passage.
type DraftSource struct {
	Kind   string `json:"kind"`
	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
}

// SaveReceipt identifies a persisted snapshot.
type SaveReceipt struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"saved_at"`
}
