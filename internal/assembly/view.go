package assembly

import "sync"

// SectionView holds per-section presentation state over an Assembly: which
// sections are expanded, which drafts are collapsed, and the pending draft
// and instruction edits.
//
// Typing into the draft buffer does not touch the Draft Store. Only
// CommitDraftEdit writes through SetDraft, so autosave is scheduled per
// committed edit rather than per keystroke.
type SectionView struct {
	a *Assembly

	mu                 sync.Mutex
	active             string
	expanded           map[string]bool
	collapsedDrafts    map[string]bool
	editingDraft       string
	draftBuffer        string
	editingInstruction string
}

func NewSectionView(a *Assembly) *SectionView {
	return &SectionView{
		a:               a,
		expanded:        make(map[string]bool),
		collapsedDrafts: make(map[string]bool),
	}
}

// SetActive selects the section shown in the instruction panel.
func (v *SectionView) SetActive(key string) bool {
	if v.a.DraftState(key) == Deleted {
		return false
	}
	v.mu.Lock()
	v.active = key
	v.mu.Unlock()
	return true
}

// Active returns the selected section, or "" when it has since been removed.
func (v *SectionView) Active() string {
	v.mu.Lock()
	key := v.active
	v.mu.Unlock()
	if key != "" && v.a.DraftState(key) == Deleted {
		return ""
	}
	return key
}

// ToggleExpanded flips the accordion state of key and returns the new state.
func (v *SectionView) ToggleExpanded(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded[key] = !v.expanded[key]
	if !v.expanded[key] {
		delete(v.expanded, key)
	}
	return v.expanded[key]
}

func (v *SectionView) Expanded(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded[key]
}

// ToggleDraftCollapsed flips whether the draft body of key is hidden.
func (v *SectionView) ToggleDraftCollapsed(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.collapsedDrafts[key] = !v.collapsedDrafts[key]
	if !v.collapsedDrafts[key] {
		delete(v.collapsedDrafts, key)
	}
	return v.collapsedDrafts[key]
}

func (v *SectionView) DraftCollapsed(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.collapsedDrafts[key]
}

// StartDraftEdit opens key for editing with its current draft in the buffer.
// Any edit already open is abandoned.
func (v *SectionView) StartDraftEdit(key string) error {
	if v.a.DraftState(key) == Deleted {
		return ErrUnknownSection
	}
	html, _ := v.a.Draft(key)
	v.mu.Lock()
	v.editingDraft = key
	v.draftBuffer = html
	v.mu.Unlock()
	return nil
}

// UpdateDraftBuffer replaces the pending edit text.
func (v *SectionView) UpdateDraftBuffer(html string) {
	v.mu.Lock()
	v.draftBuffer = html
	v.mu.Unlock()
}

// EditingDraft returns the section being edited and its pending text.
func (v *SectionView) EditingDraft() (key, buffer string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editingDraft, v.draftBuffer
}

// CommitDraftEdit writes the buffer into the Draft Store and closes the edit.
// It does nothing unless key is the section being edited.
func (v *SectionView) CommitDraftEdit(key string) error {
	v.mu.Lock()
	if v.editingDraft == "" || v.editingDraft != key {
		v.mu.Unlock()
		return nil
	}
	html := v.draftBuffer
	v.editingDraft, v.draftBuffer = "", ""
	v.mu.Unlock()
	return v.a.SetDraft(key, html)
}

// CancelDraftEdit discards the buffer.
func (v *SectionView) CancelDraftEdit() {
	v.mu.Lock()
	v.editingDraft, v.draftBuffer = "", ""
	v.mu.Unlock()
}

// StartInstructionEdit opens the instruction editor for key. Only sections
// with a generated sheet can be edited.
func (v *SectionView) StartInstructionEdit(key string) bool {
	if _, ok := v.a.Instruction(key); !ok {
		return false
	}
	v.mu.Lock()
	v.editingInstruction = key
	v.mu.Unlock()
	return true
}

func (v *SectionView) EditingInstruction() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editingInstruction
}

// SaveInstructionEdit merges patch into the sheet being edited and closes the
// editor.
func (v *SectionView) SaveInstructionEdit(patch InstructionPatch) bool {
	v.mu.Lock()
	key := v.editingInstruction
	v.editingInstruction = ""
	v.mu.Unlock()
	if key == "" {
		return false
	}
	return v.a.UpdateInstruction(key, patch)
}

func (v *SectionView) CancelInstructionEdit() {
	v.mu.Lock()
	v.editingInstruction = ""
	v.mu.Unlock()
}

// Prune forgets view state for sections no longer in the outline.
func (v *SectionView) Prune() {
	live := make(map[string]bool)
	for _, s := range v.a.Outline() {
		live[s.Key] = true
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for k := range v.expanded {
		if !live[k] {
			delete(v.expanded, k)
		}
	}
	for k := range v.collapsedDrafts {
		if !live[k] {
			delete(v.collapsedDrafts, k)
		}
	}
	if v.active != "" && !live[v.active] {
		v.active = ""
	}
	if v.editingDraft != "" && !live[v.editingDraft] {
		v.editingDraft, v.draftBuffer = "", ""
	}
	if v.editingInstruction != "" && !live[v.editingInstruction] {
		v.editingInstruction = ""
	}
}
