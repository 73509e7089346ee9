// Package assembly keeps a proposal's outline, instruction sheets, section
// drafts and example selection consistent while sections are added, removed
// and reordered, and while generation responses arrive in any order.
//
// Assembly owns all four stores. Gateway calls never hold its lock: each call
// runs against a copy of the inputs and commits its result in a separate step
// that first re-checks that the target section still exists.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNoGenerator is returned by generation operations when the assembly
	// was built without a Generator.
	ErrNoGenerator = errors.New("no generator configured")
	// ErrNoPersister is returned by Save and Load when the assembly was built
	// without a Persister.
	ErrNoPersister = errors.New("no persister configured")
	// ErrStaleDraft is returned when a generated draft was discarded because
	// its section was removed, or superseded by a manual edit.
	ErrStaleDraft = errors.New("generated draft discarded")
)

// DefaultTopic is sent for outline generation when the user gives no topic.
const DefaultTopic = "Draft a comprehensive proposal"

// DefaultOutline is used when outline generation returns no sections.
var DefaultOutline = []string{
	"Executive Summary",
	"Technical Approach",
	"Management Approach",
	"Staffing & Key Personnel",
	"Schedule & Milestones",
	"Risk Management",
	"Quality Assurance",
	"Compliance & Certifications",
	"Cost & Pricing Approach",
	"Assumptions & Dependencies",
}

// Options tune an Assembly.
type Options struct {
	// Title is the document title written into snapshots.
	Title string
	// UseKnowledgeBase is forwarded to every generation request.
	UseKnowledgeBase bool
	// RejectStaleDrafts discards a generated draft when the section was
	// edited by hand after the request was issued. Off by default: a late
	// response overwrites the edit.
	RejectStaleDrafts bool
	Logger            *zap.Logger
}

// Assembly is the document-assembly state machine.
type Assembly struct {
	gen   Generator
	store Persister
	opts  Options
	log   *zap.Logger

	mu           sync.Mutex
	outline      *Outline
	instructions *InstructionStore
	drafts       *DraftStore
	examples     *ExampleSelection
	edits        map[string]uint64
	status       string
	// emptied marks an outline cleared by removals since the last save; the
	// empty state must still reach the persister.
	emptied bool

	observerMu    sync.Mutex
	onDraftChange func()
}

// New builds an empty assembly. gen and store may be nil for offline use; the
// operations that need them then fail with ErrNoGenerator or ErrNoPersister.
func New(gen Generator, store Persister, opts Options) *Assembly {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(opts.Title) == "" {
		opts.Title = DefaultTitle
	}
	return &Assembly{
		gen:          gen,
		store:        store,
		opts:         opts,
		log:          log,
		outline:      NewOutline(),
		instructions: NewInstructionStore(),
		drafts:       NewDraftStore(),
		examples:     NewExampleSelection(),
		edits:        make(map[string]uint64),
		status:       "Ready.",
	}
}

// OnDraftChange registers fn to run after every Draft Store mutation. fn is
// called without the assembly lock held.
func (a *Assembly) OnDraftChange(fn func()) {
	a.observerMu.Lock()
	a.onDraftChange = fn
	a.observerMu.Unlock()
}

func (a *Assembly) notifyDraftChange() {
	a.observerMu.Lock()
	fn := a.onDraftChange
	a.observerMu.Unlock()
	if fn != nil {
		fn()
	}
}

// --- Outline ---

// GenerateOutline asks the generator for a fresh outline and replaces the
// current one. A new outline discards every instruction sheet and draft.
func (a *Assembly) GenerateOutline(ctx context.Context, topic string) ([]Section, error) {
	if a.gen == nil {
		a.setStatus("Outline generation is not configured.")
		return nil, ErrNoGenerator
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	a.setStatus("Generating outline...")
	res, err := a.gen.GenerateOutline(ctx, OutlineRequest{Topic: topic, UseKnowledgeBase: a.opts.UseKnowledgeBase})
	if err != nil {
		a.fail("Outline failed", err)
		return nil, fmt.Errorf("generate outline: %w", err)
	}

	titles := make([]string, 0, len(res.Sections))
	for _, t := range res.Sections {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		titles = DefaultOutline
	}

	sections := make([]Section, len(titles))
	for i, t := range titles {
		sections[i] = Section{Title: t}
	}

	a.mu.Lock()
	hadDrafts := a.drafts.Len() > 0
	a.outline.Replace(sections)
	a.instructions.Clear()
	a.drafts.Clear()
	a.edits = make(map[string]uint64)
	out := a.outline.Sections()
	a.status = "Outline created."
	a.mu.Unlock()

	a.log.Info("outline generated", zap.Int("sections", len(out)))
	if hadDrafts {
		a.notifyDraftChange()
	}
	return out, nil
}

// AddSection appends a section. Blank titles are ignored.
func (a *Assembly) AddSection(title string) (Section, bool) {
	if strings.TrimSpace(title) == "" {
		return Section{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outline.Add(title), true
}

func (a *Assembly) RenameSection(key, title string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outline.Rename(key, title)
}

func (a *Assembly) MoveSection(from, to int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outline.Move(from, to)
}

// RemoveSection drops key from the outline together with its instruction
// sheet and draft.
func (a *Assembly) RemoveSection(key string) bool {
	a.mu.Lock()
	if !a.outline.Remove(key) {
		a.mu.Unlock()
		return false
	}
	a.instructions.Delete(key)
	hadDraft := a.drafts.Delete(key)
	delete(a.edits, key)
	if a.outline.Len() == 0 {
		a.emptied = true
	}
	a.mu.Unlock()

	a.log.Debug("section removed", zap.String("key", key))
	if hadDraft {
		a.notifyDraftChange()
	}
	return true
}

// --- Instructions ---

// GenerateInstructions requests instruction sheets for the whole outline and
// replaces the Instruction Store with the result. Sheets for keys that are no
// longer in the outline when the response arrives are dropped. On failure the
// store is left untouched.
func (a *Assembly) GenerateInstructions(ctx context.Context) (int, error) {
	if a.gen == nil {
		a.setStatus("Instruction generation is not configured.")
		return 0, ErrNoGenerator
	}

	a.mu.Lock()
	sections := a.outline.Sections()
	a.mu.Unlock()
	if len(sections) == 0 {
		a.setStatus("Add or generate an outline first.")
		return 0, ErrEmptyOutline
	}

	items := make([]OutlineItem, len(sections))
	for i, s := range sections {
		items[i] = OutlineItem{Title: s.Title, Key: s.Key}
	}

	a.setStatus("Generating instruction sheets...")
	res, err := a.gen.GenerateInstructions(ctx, InstructionsRequest{Outline: items, UseKnowledgeBase: a.opts.UseKnowledgeBase})
	if err != nil {
		a.fail("Instruction generation failed", err)
		return 0, fmt.Errorf("generate instructions: %w", err)
	}

	a.mu.Lock()
	sheets := make(map[string]InstructionSheet, len(res.Instructions))
	for _, sheet := range res.Instructions {
		if !a.outline.Has(sheet.SectionKey) {
			a.log.Debug("dropping instruction sheet for unknown section", zap.String("key", sheet.SectionKey))
			continue
		}
		sheets[sheet.SectionKey] = sheet
	}
	a.instructions.ReplaceAll(sheets)
	a.status = "Instruction sheets generated."
	a.mu.Unlock()

	a.log.Info("instruction sheets generated", zap.Int("sheets", len(sheets)), zap.Int("sections", len(sections)))
	return len(sheets), nil
}

// UpdateInstruction merges a manual edit into the sheet for key. It does
// nothing when key has no generated sheet.
func (a *Assembly) UpdateInstruction(key string, patch InstructionPatch) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instructions.Update(key, patch)
}

// --- Drafts ---

// DraftSection generates HTML for one section and overwrites its draft. The
// section must have an instruction sheet. A failed call leaves the existing
// draft in place.
func (a *Assembly) DraftSection(ctx context.Context, key string) (DraftResult, error) {
	if a.gen == nil {
		a.setStatus("Drafting is not configured.")
		return DraftResult{}, ErrNoGenerator
	}

	a.mu.Lock()
	sec, ok := a.outline.Get(key)
	if !ok {
		a.status = fmt.Sprintf("Unknown section %q.", key)
		a.mu.Unlock()
		return DraftResult{}, fmt.Errorf("draft %q: %w", key, ErrUnknownSection)
	}
	sheet, ok := a.instructions.Get(key)
	if !ok {
		a.status = fmt.Sprintf("Generate instructions for %s first.", sec.Title)
		a.mu.Unlock()
		return DraftResult{}, fmt.Errorf("draft %q: %w", key, ErrNoInstruction)
	}
	req := DraftRequest{
		SectionKey:       key,
		Instruction:      sheet,
		ExampleIDs:       a.examples.IDs(),
		UseKnowledgeBase: a.opts.UseKnowledgeBase,
	}
	issuedAt := a.edits[key]
	a.status = fmt.Sprintf("Drafting %s...", sec.Title)
	a.mu.Unlock()

	res, err := a.gen.DraftSection(ctx, req)
	if err != nil {
		a.fail(fmt.Sprintf("Draft failed for %s", sec.Title), err)
		return DraftResult{}, fmt.Errorf("draft %q: %w", key, err)
	}

	a.mu.Lock()
	if !a.outline.Has(key) {
		a.status = fmt.Sprintf("Discarded draft for removed section %s.", sec.Title)
		a.mu.Unlock()
		a.log.Info("discarding draft for removed section", zap.String("key", key))
		return res, fmt.Errorf("draft %q: section removed: %w", key, ErrStaleDraft)
	}
	if a.opts.RejectStaleDrafts && a.edits[key] != issuedAt {
		a.status = fmt.Sprintf("Kept manual edits to %s; discarded generated draft.", sec.Title)
		a.mu.Unlock()
		a.log.Info("discarding draft superseded by manual edit", zap.String("key", key))
		return res, fmt.Errorf("draft %q: edited during generation: %w", key, ErrStaleDraft)
	}
	a.drafts.Set(key, res.HTML)
	a.status = fmt.Sprintf("Drafted %s.", sec.Title)
	a.mu.Unlock()

	a.log.Info("section drafted",
		zap.String("key", key),
		zap.Int("bytes", len(res.HTML)),
		zap.Float64("similarity", res.Checks.Similarity.Max),
		zap.Bool("similarity_flag", res.Checks.Similarity.Flag))
	a.notifyDraftChange()
	return res, nil
}

// SetDraft overwrites the draft for key with hand-edited HTML.
func (a *Assembly) SetDraft(key, html string) error {
	a.mu.Lock()
	if !a.outline.Has(key) {
		a.mu.Unlock()
		return fmt.Errorf("set draft %q: %w", key, ErrUnknownSection)
	}
	a.drafts.Set(key, html)
	a.edits[key]++
	a.mu.Unlock()

	a.notifyDraftChange()
	return nil
}

// --- Examples ---

func (a *Assembly) ToggleExample(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.examples.Toggle(id)
}

func (a *Assembly) ReplaceExamples(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.examples.Replace(ids)
}

// --- Persistence ---

// Save persists the whole assembly as a new snapshot.
func (a *Assembly) Save(ctx context.Context) (SaveReceipt, error) {
	if a.store == nil {
		return SaveReceipt{}, ErrNoPersister
	}

	a.mu.Lock()
	if a.outline.Len() == 0 && !a.emptied {
		a.status = "Nothing to save."
		a.mu.Unlock()
		return SaveReceipt{}, ErrNothingToSave
	}
	snap := BuildSnapshot(a.opts.Title, a.outline, a.instructions, a.drafts, a.examples)
	nInstr, nDrafts := a.instructions.Len(), a.drafts.Len()
	a.status = "Saving draft..."
	a.mu.Unlock()

	rec, err := a.store.SaveDraft(ctx, snap)
	if err != nil {
		a.fail("Save failed", err)
		return SaveReceipt{}, fmt.Errorf("save draft: %w", err)
	}
	a.mu.Lock()
	if a.outline.Len() > 0 || len(snap.Sections) == 0 {
		a.emptied = false
	}
	a.mu.Unlock()

	a.setStatus(fmt.Sprintf("Saved with %d instructions and %d drafts.", nInstr, nDrafts))
	a.log.Info("draft saved", zap.String("id", rec.ID), zap.Int("sections", len(snap.Sections)))
	return rec, nil
}

// Autosave saves only when there is drafted content to protect. It is the
// target of the autosave coordinator.
func (a *Assembly) Autosave(ctx context.Context) error {
	a.mu.Lock()
	skip := !a.emptied && (a.outline.Len() == 0 || a.drafts.Len() == 0)
	a.mu.Unlock()
	if skip {
		a.log.Debug("autosave skipped: no drafts")
		return nil
	}
	_, err := a.Save(ctx)
	return err
}

// Load restores the most recent snapshot. It reports false with a nil error
// when nothing has been saved yet; the stores are then left as they are. Any
// other failure also leaves the stores untouched.
func (a *Assembly) Load(ctx context.Context) (bool, error) {
	if a.store == nil {
		return false, ErrNoPersister
	}

	a.setStatus("Loading latest draft...")
	snap, err := a.store.LoadLatestDraft(ctx)
	if errors.Is(err, ErrNotFound) {
		a.setStatus("No previous draft found. Ready to generate outline.")
		return false, nil
	}
	if err != nil {
		a.setStatus("Failed to load previous draft. Ready to generate outline.")
		a.log.Warn("load failed", zap.Error(err))
		return false, fmt.Errorf("load draft: %w", err)
	}
	if len(snap.Sections) == 0 {
		a.setStatus("No previous draft found. Ready to generate outline.")
		return false, nil
	}

	n, nInstr, nDrafts := a.Restore(snap)
	a.setStatus(fmt.Sprintf("Loaded %d sections (%d instructions, %d drafts) from latest draft.", n, nInstr, nDrafts))
	return true, nil
}

// Restore replaces every store with the contents of snap. Unlike a freshly
// generated outline, restored instructions and drafts are kept.
func (a *Assembly) Restore(snap DocumentSnapshot) (sections, instructions, drafts int) {
	state := snap.restore()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.outline.Replace(state.sections)
	a.instructions.ReplaceAll(state.instructions)
	a.drafts.Clear()
	for k, html := range state.drafts {
		a.drafts.Set(k, html)
	}
	a.examples.Replace(state.exampleIDs)
	a.edits = make(map[string]uint64)
	a.emptied = false
	if strings.TrimSpace(snap.Title) != "" {
		a.opts.Title = snap.Title
	}
	return a.outline.Len(), a.instructions.Len(), a.drafts.Len()
}

// --- Read accessors ---

func (a *Assembly) Outline() []Section {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outline.Sections()
}

func (a *Assembly) Instruction(key string) (InstructionSheet, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instructions.Get(key)
}

// InstructionKeys returns the keys that have an instruction sheet, sorted.
func (a *Assembly) InstructionKeys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instructions.Keys()
}

func (a *Assembly) Draft(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drafts.Get(key)
}

// DraftKeys returns the keys that have a draft, sorted.
func (a *Assembly) DraftKeys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drafts.Keys()
}

// DraftState derives the drafting state of key from the stores.
func (a *Assembly) DraftState(key string) DraftState {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case !a.outline.Has(key):
		return Deleted
	case a.drafts.Has(key):
		return Drafted
	default:
		return Undrafted
	}
}

func (a *Assembly) SelectedExamples() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.examples.IDs()
}

// Snapshot returns the current assembly in its persisted shape.
func (a *Assembly) Snapshot() DocumentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return BuildSnapshot(a.opts.Title, a.outline, a.instructions, a.drafts, a.examples)
}

// SectionBadge is the live per-section status shown next to each outline entry.
type SectionBadge struct {
	Section        Section
	HasInstruction bool
	HasDraft       bool
}

func (a *Assembly) SectionBadges() []SectionBadge {
	a.mu.Lock()
	defer a.mu.Unlock()
	sections := a.outline.Sections()
	out := make([]SectionBadge, len(sections))
	for i, s := range sections {
		out[i] = SectionBadge{
			Section:        s,
			HasInstruction: a.instructions.Has(s.Key),
			HasDraft:       a.drafts.Has(s.Key),
		}
	}
	return out
}

func (a *Assembly) Title() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opts.Title
}

// Status returns the outcome of the most recent operation.
func (a *Assembly) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Assembly) setStatus(s string) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *Assembly) fail(what string, err error) {
	a.setStatus(fmt.Sprintf("%s: %v", what, err))
	a.log.Warn(strings.ToLower(what), zap.Error(err))
}
