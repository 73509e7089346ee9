package storage

import (
	"context"
	"time"

	"propdraft/internal/assembly"
)

// Store combines snapshot and example storage capabilities.
type Store interface {
	SnapshotStore
	ExampleStore
	Close() error
}

// SnapshotStore keeps every saved version of each project's assembly.
type SnapshotStore interface {
	// SaveSnapshot appends a new version for the project.
	SaveSnapshot(ctx context.Context, projectID string, snap assembly.DocumentSnapshot) (assembly.SaveReceipt, error)

	// LatestSnapshot returns the newest version, or an error wrapping
	// assembly.ErrNotFound.
	LatestSnapshot(ctx context.Context, projectID string) (assembly.DocumentSnapshot, error)

	// ListVersions returns the project's versions, newest first.
	ListVersions(ctx context.Context, projectID string) ([]Version, error)

	// LoadVersion returns one version by id.
	LoadVersion(ctx context.Context, projectID, id string) (assembly.DocumentSnapshot, error)
}

// ExampleStore is the catalog of reference proposals and their passages.
type ExampleStore interface {
	// UpsertExample stores ex and returns its id, generating one when empty.
	UpsertExample(ctx context.Context, ex assembly.Example) (string, error)
	PutExampleSection(ctx context.Context, exampleID, sectionKey, text string) error
	ListExamples(ctx context.Context) ([]assembly.Example, error)
	DeleteExample(ctx context.Context, id string) error
	ExamplePassages(ctx context.Context, sectionKey string, exampleIDs []string, limit int) ([]assembly.ExamplePassage, error)
}

// Version summarizes one saved snapshot.
type Version struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Sections     int       `json:"sections"`
	Instructions int       `json:"instructions"`
	Drafts       int       `json:"drafts"`
	SavedAt      time.Time `json:"saved_at"`
}
