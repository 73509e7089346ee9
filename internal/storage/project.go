package storage

import (
	"context"

	"propdraft/internal/assembly"
)

// Project scopes a SnapshotStore to one project so it can serve as an
// assembly's Persister.
type Project struct {
	store SnapshotStore
	id    string
}

var _ assembly.Persister = (*Project)(nil)

func ForProject(store SnapshotStore, projectID string) *Project {
	return &Project{store: store, id: projectID}
}

func (p *Project) ID() string { return p.id }

func (p *Project) SaveDraft(ctx context.Context, snap assembly.DocumentSnapshot) (assembly.SaveReceipt, error) {
	return p.store.SaveSnapshot(ctx, p.id, snap)
}

func (p *Project) LoadLatestDraft(ctx context.Context) (assembly.DocumentSnapshot, error) {
	return p.store.LatestSnapshot(ctx, p.id)
}

func (p *Project) Versions(ctx context.Context) ([]Version, error) {
	return p.store.ListVersions(ctx, p.id)
}

func (p *Project) LoadVersion(ctx context.Context, id string) (assembly.DocumentSnapshot, error) {
	return p.store.LoadVersion(ctx, p.id, id)
}
