package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propdraft/internal/assembly"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// steppedClock returns base, base+1s, base+2s, ...
func steppedClock(base time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func testSnapshot(title string, drafted ...string) assembly.DocumentSnapshot {
	o := assembly.NewOutline()
	o.Add("Scope")
	o.Add("Risk")
	drafts := assembly.NewDraftStore()
	for _, key := range drafted {
		drafts.Set(key, "<p>"+key+"</p>")
	}
	instr := assembly.NewInstructionStore()
	instr.ReplaceAll(map[string]assembly.InstructionSheet{"scope": {Title: "Scope"}})
	return assembly.BuildSnapshot(title, o, instr, drafts, assembly.NewExampleSelection())
}

func TestSQLiteStore_LatestSnapshotNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LatestSnapshot(context.Background(), "p1")
	assert.ErrorIs(t, err, assembly.ErrNotFound)
	_, err = store.LoadVersion(context.Background(), "p1", "missing")
	assert.ErrorIs(t, err, assembly.ErrNotFound)
}

func TestSQLiteStore_VersionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	store.now = steppedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	ctx := context.Background()

	first, err := store.SaveSnapshot(ctx, "p1", testSnapshot("v1"))
	require.NoError(t, err)
	second, err := store.SaveSnapshot(ctx, "p1", testSnapshot("v2", "scope", "risk"))
	require.NoError(t, err)
	_, err = store.SaveSnapshot(ctx, "other", testSnapshot("elsewhere"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := store.LatestSnapshot(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "v2", latest.Title)

	versions, err := store.ListVersions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, Version{
		ID: second.ID, Title: "v2", Sections: 2, Instructions: 1, Drafts: 2, SavedAt: second.SavedAt,
	}, versions[0])
	assert.Equal(t, first.ID, versions[1].ID)
	assert.Equal(t, 0, versions[1].Drafts)

	old, err := store.LoadVersion(ctx, "p1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", old.Title)

	_, err = store.LoadVersion(ctx, "other", first.ID)
	assert.ErrorIs(t, err, assembly.ErrNotFound)
}

func TestProject_PersistsAssemblyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := ForProject(store, "bid-42")

	a := assembly.New(nil, project, assembly.Options{Title: "Bid 42"})
	a.AddSection("Executive Summary")
	a.AddSection("Past Performance")
	require.NoError(t, a.SetDraft("past_performance", "<p>Delivered.</p>"))
	a.ToggleExample("ex-9")
	_, err := a.Save(ctx)
	require.NoError(t, err)

	b := assembly.New(nil, project, assembly.Options{})
	found, err := b.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, a.Outline(), b.Outline())
	html, ok := b.Draft("past_performance")
	require.True(t, ok)
	assert.Equal(t, "<p>Delivered.</p>", html)
	assert.Equal(t, []string{"ex-9"}, b.SelectedExamples())

	versions, err := project.Versions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	fresh := assembly.New(nil, ForProject(store, "unknown"), assembly.Options{})
	found, err = fresh.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_ExampleCatalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.UpsertExample(ctx, assembly.Example{Title: "VA Cloud Migration", Domain: "health", Tags: []string{"cloud"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	_, err = store.UpsertExample(ctx, assembly.Example{ID: "ex-a", Title: "Army Logistics", ContractVehicle: "OASIS"})
	require.NoError(t, err)
	_, err = store.UpsertExample(ctx, assembly.Example{ID: "ex-a", Title: "Army Logistics II", ContractVehicle: "OASIS+"})
	require.NoError(t, err)

	examples, err := store.ListExamples(ctx)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, assembly.Example{ID: "ex-a", Title: "Army Logistics II", ContractVehicle: "OASIS+"}, examples[0])
	assert.Equal(t, []string{"cloud"}, examples[1].Tags)

	require.NoError(t, store.PutExampleSection(ctx, "ex-a", "technical_approach", "We move freight."))
	require.NoError(t, store.PutExampleSection(ctx, id, "technical_approach", "We migrate workloads."))
	require.NoError(t, store.PutExampleSection(ctx, id, "risk_management", "  "))
	assert.ErrorIs(t, store.PutExampleSection(ctx, "ghost", "risk", "x"), assembly.ErrNotFound)

	all, err := store.ExamplePassages(ctx, "technical_approach", nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	picked, err := store.ExamplePassages(ctx, "technical_approach", []string{"ex-a", "stale-id"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []assembly.ExamplePassage{{ExampleID: "ex-a", SectionKey: "technical_approach", Text: "We move freight."}}, picked)

	blank, err := store.ExamplePassages(ctx, "risk_management", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, blank)

	require.NoError(t, store.DeleteExample(ctx, "ex-a"))
	assert.ErrorIs(t, store.DeleteExample(ctx, "ex-a"), assembly.ErrNotFound)
	all, err = store.ExamplePassages(ctx, "technical_approach", nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
