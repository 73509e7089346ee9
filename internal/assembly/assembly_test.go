package assembly

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssembly(t *testing.T, gen *fakeGenerator) (*Assembly, *memoryPersister) {
	t.Helper()
	store := &memoryPersister{}
	return New(gen, store, Options{UseKnowledgeBase: true}), store
}

func TestAssembly_GenerateOutlineDiscardsInstructionsAndDrafts(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope", "Staffing")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()

	_, err := a.GenerateOutline(ctx, "")
	require.NoError(t, err)
	_, err = a.GenerateInstructions(ctx)
	require.NoError(t, err)
	require.NoError(t, a.SetDraft("scope", "<p>hand written</p>"))

	gen.outline = outlineOf("Scope", "Pricing")
	secs, err := a.GenerateOutline(ctx, "re-plan")
	require.NoError(t, err)

	assert.Equal(t, []string{"Scope", "Pricing"}, titlesOf(secs))
	assert.Empty(t, a.InstructionKeys())
	assert.Empty(t, a.DraftKeys())
	assert.Equal(t, "Outline created.", a.Status())
}

func TestAssembly_GenerateOutlineDefaults(t *testing.T) {
	var gotTopic string
	gen := &fakeGenerator{outline: func(req OutlineRequest) (OutlineResult, error) {
		gotTopic = req.Topic
		assert.True(t, req.UseKnowledgeBase)
		return OutlineResult{Sections: []string{"  ", ""}}, nil
	}}
	a, _ := newTestAssembly(t, gen)

	secs, err := a.GenerateOutline(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, gotTopic)
	assert.Equal(t, DefaultOutline, titlesOf(secs))
}

func TestAssembly_GenerateOutlineFailureKeepsState(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()
	_, err := a.GenerateOutline(ctx, "")
	require.NoError(t, err)

	gen.outline = func(OutlineRequest) (OutlineResult, error) { return OutlineResult{}, errors.New("timeout") }
	_, err = a.GenerateOutline(ctx, "")
	require.Error(t, err)
	assert.Equal(t, []string{"Scope"}, titlesOf(a.Outline()))
	assert.Contains(t, a.Status(), "timeout")
}

func TestAssembly_GenerateInstructionsNeedsOutline(t *testing.T) {
	a, _ := newTestAssembly(t, &fakeGenerator{})
	_, err := a.GenerateInstructions(context.Background())
	assert.ErrorIs(t, err, ErrEmptyOutline)
	assert.Equal(t, "Add or generate an outline first.", a.Status())
}

func TestAssembly_GenerateInstructionsReplacesWholeStore(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope", "Staffing", "Risk")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()
	_, err := a.GenerateOutline(ctx, "")
	require.NoError(t, err)
	_, err = a.GenerateInstructions(ctx)
	require.NoError(t, err)

	// Second batch covers only one section and names an unknown key.
	gen.instructions = func(InstructionsRequest) (InstructionsResult, error) {
		return InstructionsResult{Instructions: []InstructionSheet{
			{SectionKey: "risk", Title: "Risk", Purpose: "v2"},
			{SectionKey: "ghost", Title: "Ghost"},
		}}, nil
	}
	n, err := a.GenerateInstructions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"risk"}, a.InstructionKeys())
	sheet, ok := a.Instruction("risk")
	require.True(t, ok)
	assert.Equal(t, "v2", sheet.Purpose)
}

func TestAssembly_GenerateInstructionsFailureLeavesStore(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()
	_, _ = a.GenerateOutline(ctx, "")
	_, err := a.GenerateInstructions(ctx)
	require.NoError(t, err)

	gen.instructions = func(InstructionsRequest) (InstructionsResult, error) {
		return InstructionsResult{}, errors.New("model overloaded")
	}
	_, err = a.GenerateInstructions(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"scope"}, a.InstructionKeys())
	assert.Contains(t, a.Status(), "model overloaded")
}

func TestAssembly_DraftSectionRequiresInstruction(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope")}
	a, _ := newTestAssembly(t, gen)
	_, _ = a.GenerateOutline(context.Background(), "")

	_, err := a.DraftSection(context.Background(), "scope")
	assert.ErrorIs(t, err, ErrNoInstruction)
	assert.Empty(t, gen.drafts)

	_, err = a.DraftSection(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestAssembly_DraftSectionForwardsSelectionAndFlags(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()
	_, _ = a.GenerateOutline(ctx, "")
	_, _ = a.GenerateInstructions(ctx)
	a.ToggleExample("ex-b")
	a.ToggleExample("ex-a")

	_, err := a.DraftSection(ctx, "scope")
	require.NoError(t, err)
	require.Len(t, gen.drafts, 1)
	req := gen.drafts[0]
	assert.Equal(t, "scope", req.SectionKey)
	assert.Equal(t, "Scope", req.Instruction.Title)
	assert.Equal(t, []string{"ex-a", "ex-b"}, req.ExampleIDs)
	assert.True(t, req.UseKnowledgeBase)
}

// Outline of 3, instructions for all, draft section 2, remove section 1.
func TestAssembly_ScenarioA_RemoveCascades(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Executive Summary", "Technical Approach", "Risk Management")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()

	_, err := a.GenerateOutline(ctx, "")
	require.NoError(t, err)
	n, err := a.GenerateInstructions(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	_, err = a.DraftSection(ctx, "technical_approach")
	require.NoError(t, err)

	require.True(t, a.RemoveSection("executive_summary"))

	assert.NotContains(t, a.InstructionKeys(), "executive_summary")
	assert.NotContains(t, a.DraftKeys(), "executive_summary")
	assert.Equal(t, Deleted, a.DraftState("executive_summary"))

	_, ok := a.Instruction("technical_approach")
	assert.True(t, ok)
	html, ok := a.Draft("technical_approach")
	assert.True(t, ok)
	assert.Equal(t, "<p>technical_approach</p>", html)
	assert.Equal(t, Drafted, a.DraftState("technical_approach"))
	assert.Equal(t, Undrafted, a.DraftState("risk_management"))
}

// Load with nothing saved leaves the stores empty.
func TestAssembly_ScenarioB_LoadNotFound(t *testing.T) {
	a, _ := newTestAssembly(t, &fakeGenerator{})

	found, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, a.Outline())
	assert.Empty(t, a.InstructionKeys())
	assert.Empty(t, a.DraftKeys())
	assert.Equal(t, "No previous draft found. Ready to generate outline.", a.Status())
}

// A failed re-draft keeps the earlier draft.
func TestAssembly_ScenarioC_DraftFailurePreservesPriorDraft(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()
	_, _ = a.GenerateOutline(ctx, "")
	_, _ = a.GenerateInstructions(ctx)
	_, err := a.DraftSection(ctx, "scope")
	require.NoError(t, err)

	gen.draft = func(context.Context, DraftRequest) (DraftResult, error) {
		return DraftResult{}, errors.New("upstream 502")
	}
	_, err = a.DraftSection(ctx, "scope")
	require.Error(t, err)

	html, ok := a.Draft("scope")
	require.True(t, ok)
	assert.Equal(t, "<p>scope</p>", html)
	assert.Contains(t, a.Status(), "Draft failed for Scope")
	assert.Contains(t, a.Status(), "upstream 502")
}

// Manual edits on one key and generation on another do not bleed.
func TestAssembly_ScenarioD_NoCrossContamination(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope", "Staffing")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()
	_, _ = a.GenerateOutline(ctx, "")
	_, _ = a.GenerateInstructions(ctx)

	require.NoError(t, a.SetDraft("scope", "<p>first</p>"))
	require.NoError(t, a.SetDraft("scope", "<p>second</p>"))
	_, err := a.DraftSection(ctx, "staffing")
	require.NoError(t, err)

	scope, _ := a.Draft("scope")
	staffing, _ := a.Draft("staffing")
	assert.Equal(t, "<p>second</p>", scope)
	assert.Equal(t, "<p>staffing</p>", staffing)
}

func TestAssembly_SetDraftIdempotentAndRejectsOrphans(t *testing.T) {
	a, _ := newTestAssembly(t, &fakeGenerator{})
	a.AddSection("Scope")

	require.NoError(t, a.SetDraft("scope", "<p>x</p>"))
	once := a.Snapshot()
	require.NoError(t, a.SetDraft("scope", "<p>x</p>"))
	assert.Equal(t, once, a.Snapshot())

	assert.ErrorIs(t, a.SetDraft("ghost", "<p>y</p>"), ErrUnknownSection)
	assert.Equal(t, []string{"scope"}, a.DraftKeys())
}

func TestAssembly_StaleDraftForRemovedSectionIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gen := &fakeGenerator{outline: outlineOf("Scope", "Staffing")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()
	_, _ = a.GenerateOutline(ctx, "")
	_, _ = a.GenerateInstructions(ctx)

	gen.draft = func(context.Context, DraftRequest) (DraftResult, error) {
		close(started)
		<-release
		return DraftResult{HTML: "<p>late</p>"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := a.DraftSection(ctx, "scope")
		done <- err
	}()
	<-started
	require.True(t, a.RemoveSection("scope"))
	close(release)

	err := <-done
	assert.ErrorIs(t, err, ErrStaleDraft)
	assert.Empty(t, a.DraftKeys())
	assert.Contains(t, a.Status(), "Discarded draft for removed section")
}

func TestAssembly_LateDraftOverwritesManualEditByDefault(t *testing.T) {
	a, done, release := startBlockedDraft(t, Options{})
	require.NoError(t, a.SetDraft("scope", "<p>manual</p>"))
	close(release)
	require.NoError(t, <-done)

	html, _ := a.Draft("scope")
	assert.Equal(t, "<p>generated</p>", html)
}

func TestAssembly_RejectStaleDraftsKeepsManualEdit(t *testing.T) {
	a, done, release := startBlockedDraft(t, Options{RejectStaleDrafts: true})
	require.NoError(t, a.SetDraft("scope", "<p>manual</p>"))
	close(release)
	assert.ErrorIs(t, <-done, ErrStaleDraft)

	html, _ := a.Draft("scope")
	assert.Equal(t, "<p>manual</p>", html)
}

// startBlockedDraft begins drafting "scope" and returns once the generator
// call is in flight. Closing release lets the response arrive.
func startBlockedDraft(t *testing.T, opts Options) (*Assembly, <-chan error, chan struct{}) {
	t.Helper()
	release := make(chan struct{})
	started := make(chan struct{})
	gen := &fakeGenerator{outline: outlineOf("Scope")}
	a := New(gen, &memoryPersister{}, opts)
	ctx := context.Background()
	_, err := a.GenerateOutline(ctx, "")
	require.NoError(t, err)
	_, err = a.GenerateInstructions(ctx)
	require.NoError(t, err)

	gen.draft = func(context.Context, DraftRequest) (DraftResult, error) {
		close(started)
		<-release
		return DraftResult{HTML: "<p>generated</p>"}, nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := a.DraftSection(ctx, "scope")
		done <- err
	}()
	<-started
	return a, done, release
}

func TestAssembly_DraftChangeNotifications(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope", "Staffing")}
	a, _ := newTestAssembly(t, gen)
	var notified atomic.Int32
	a.OnDraftChange(func() { notified.Add(1) })
	ctx := context.Background()

	_, _ = a.GenerateOutline(ctx, "")
	_, _ = a.GenerateInstructions(ctx)
	assert.Equal(t, int32(0), notified.Load(), "outline and instructions do not touch drafts")

	_, err := a.DraftSection(ctx, "scope")
	require.NoError(t, err)
	require.NoError(t, a.SetDraft("staffing", "<p>x</p>"))
	assert.Equal(t, int32(2), notified.Load())

	a.RemoveSection("staffing")
	assert.Equal(t, int32(3), notified.Load())

	a.AddSection("Pricing")
	a.RenameSection("scope", "Scope of Work")
	a.MoveSection(0, 1)
	assert.Equal(t, int32(3), notified.Load())
}

func TestAssembly_SaveAndLoadRoundTrip(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope", "Staffing", "Risk")}
	a, store := newTestAssembly(t, gen)
	ctx := context.Background()
	_, _ = a.GenerateOutline(ctx, "")
	_, _ = a.GenerateInstructions(ctx)
	_, _ = a.DraftSection(ctx, "staffing")
	a.MoveSection(2, 0)
	a.ToggleExample("ex-1")

	rec, err := a.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", rec.ID)
	assert.Equal(t, "Saved with 3 instructions and 1 drafts.", a.Status())

	b := New(gen, store, Options{})
	found, err := b.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, a.Outline(), b.Outline())
	assert.Equal(t, a.InstructionKeys(), b.InstructionKeys())
	assert.Equal(t, a.DraftKeys(), b.DraftKeys())
	assert.Equal(t, []string{"ex-1"}, b.SelectedExamples())
	assert.Equal(t, "Loaded 3 sections (3 instructions, 1 drafts) from latest draft.", b.Status())
}

func TestAssembly_SaveNothing(t *testing.T) {
	a, store := newTestAssembly(t, &fakeGenerator{})
	_, err := a.Save(context.Background())
	assert.ErrorIs(t, err, ErrNothingToSave)
	assert.Equal(t, 0, store.count())
}

func TestAssembly_RemovingLastSectionIsSaved(t *testing.T) {
	a, store := newTestAssembly(t, &fakeGenerator{})
	ctx := context.Background()

	a.AddSection("Risk")
	require.NoError(t, a.SetDraft("risk", "<p>risk register</p>"))
	_, err := a.Save(ctx)
	require.NoError(t, err)

	require.True(t, a.RemoveSection("risk"))
	rec, err := a.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.ID)
	assert.Equal(t, 2, store.count())

	b := New(nil, store, Options{})
	found, err := b.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, b.Outline())
	assert.Empty(t, b.DraftKeys())

	// Once the empty outline is stored there is nothing left to save.
	_, err = a.Save(ctx)
	assert.ErrorIs(t, err, ErrNothingToSave)
	assert.Equal(t, 2, store.count())
}

func TestAssembly_EmptyDraftSurvivesSaveAsUndrafted(t *testing.T) {
	a, store := newTestAssembly(t, &fakeGenerator{})
	ctx := context.Background()

	a.AddSection("Scope")
	require.NoError(t, a.SetDraft("scope", "<p>x</p>"))
	require.NoError(t, a.SetDraft("scope", ""))
	assert.Equal(t, Undrafted, a.DraftState("scope"))

	_, err := a.Save(ctx)
	require.NoError(t, err)
	b := New(nil, store, Options{})
	_, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.DraftState("scope"), b.DraftState("scope"))
}

func TestAssembly_SaveFailureKeepsState(t *testing.T) {
	a, store := newTestAssembly(t, &fakeGenerator{})
	a.AddSection("Scope")
	require.NoError(t, a.SetDraft("scope", "<p>x</p>"))
	store.saveErr = errors.New("disk full")

	_, err := a.Save(context.Background())
	require.Error(t, err)
	assert.Contains(t, a.Status(), "disk full")
	html, _ := a.Draft("scope")
	assert.Equal(t, "<p>x</p>", html)
}

func TestAssembly_LoadFailureLeavesStores(t *testing.T) {
	a, store := newTestAssembly(t, &fakeGenerator{})
	a.AddSection("Scope")
	store.loadErr = errors.New("permission denied")

	found, err := a.Load(context.Background())
	require.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, []string{"Scope"}, titlesOf(a.Outline()))
	assert.Equal(t, "Failed to load previous draft. Ready to generate outline.", a.Status())
}

func TestAssembly_AutosaveSkipsWithoutDrafts(t *testing.T) {
	a, store := newTestAssembly(t, &fakeGenerator{})
	a.AddSection("Scope")
	require.NoError(t, a.Autosave(context.Background()))
	assert.Equal(t, 0, store.count())

	require.NoError(t, a.SetDraft("scope", "<p>x</p>"))
	require.NoError(t, a.Autosave(context.Background()))
	assert.Equal(t, 1, store.count())
}

func TestAssembly_SectionBadges(t *testing.T) {
	gen := &fakeGenerator{outline: outlineOf("Scope", "Staffing")}
	a, _ := newTestAssembly(t, gen)
	ctx := context.Background()
	_, _ = a.GenerateOutline(ctx, "")
	_, _ = a.GenerateInstructions(ctx)
	require.NoError(t, a.SetDraft("staffing", "<p>x</p>"))

	badges := a.SectionBadges()
	require.Len(t, badges, 2)
	assert.True(t, badges[0].HasInstruction)
	assert.False(t, badges[0].HasDraft)
	assert.True(t, badges[1].HasDraft)
}

func TestAssembly_OfflineOperations(t *testing.T) {
	a := New(nil, nil, Options{})
	_, err := a.GenerateOutline(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoGenerator)
	_, err = a.Save(context.Background())
	assert.ErrorIs(t, err, ErrNoPersister)
	_, ok := a.AddSection("  ")
	assert.False(t, ok)
}
