package assembly

import (
	"context"
	"fmt"
	"sync"
)

type fakeGenerator struct {
	outline      func(OutlineRequest) (OutlineResult, error)
	instructions func(InstructionsRequest) (InstructionsResult, error)
	draft        func(context.Context, DraftRequest) (DraftResult, error)

	mu     sync.Mutex
	drafts []DraftRequest
}

func (f *fakeGenerator) GenerateOutline(ctx context.Context, req OutlineRequest) (OutlineResult, error) {
	return f.outline(req)
}

func (f *fakeGenerator) GenerateInstructions(ctx context.Context, req InstructionsRequest) (InstructionsResult, error) {
	if f.instructions != nil {
		return f.instructions(req)
	}
	return sheetsFor(req), nil
}

func (f *fakeGenerator) DraftSection(ctx context.Context, req DraftRequest) (DraftResult, error) {
	f.mu.Lock()
	f.drafts = append(f.drafts, req)
	f.mu.Unlock()
	if f.draft != nil {
		return f.draft(ctx, req)
	}
	return DraftResult{HTML: "<p>" + req.SectionKey + "</p>"}, nil
}

func sheetsFor(req InstructionsRequest) InstructionsResult {
	res := InstructionsResult{}
	for _, item := range req.Outline {
		res.Instructions = append(res.Instructions, InstructionSheet{
			SectionKey:          item.Key,
			Title:               item.Title,
			Purpose:             "Explain " + item.Title,
			MustInclude:         []string{"staffing plan"},
			ComplianceChecklist: []ChecklistItem{{Item: "Section L.3"}},
			LengthHintWords:     LengthHint{Min: 300, Max: 600},
		})
	}
	return res
}

func outlineOf(titles ...string) func(OutlineRequest) (OutlineResult, error) {
	return func(OutlineRequest) (OutlineResult, error) {
		return OutlineResult{Sections: titles}, nil
	}
}

type memoryPersister struct {
	mu      sync.Mutex
	saved   []DocumentSnapshot
	saveErr error
	loadErr error
}

func (m *memoryPersister) SaveDraft(ctx context.Context, snap DocumentSnapshot) (SaveReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return SaveReceipt{}, m.saveErr
	}
	m.saved = append(m.saved, snap)
	return SaveReceipt{ID: fmt.Sprintf("v%d", len(m.saved))}, nil
}

func (m *memoryPersister) LoadLatestDraft(ctx context.Context) (DocumentSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return DocumentSnapshot{}, m.loadErr
	}
	if len(m.saved) == 0 {
		return DocumentSnapshot{}, fmt.Errorf("latest: %w", ErrNotFound)
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memoryPersister) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}
