package assembly

import (
	"encoding/json"
	"fmt"
	"sort"
)

// InstructionSheet is the structural and compliance guidance for drafting one
// section. Field names follow the drafting service's JSON contract.
type InstructionSheet struct {
	SectionKey          string          `json:"section_key"`
	Title               string          `json:"title"`
	Purpose             string          `json:"purpose"`
	MicroOutline        []string        `json:"micro_outline"`
	MustInclude         []string        `json:"must_include"`
	ToneRules           []string        `json:"tone_rules"`
	WinThemes           []string        `json:"win_themes"`
	EvidencePrompts     []string        `json:"evidence_prompts"`
	ComplianceChecklist []ChecklistItem `json:"compliance_checklist"`
	LengthHintWords     LengthHint      `json:"length_hint_words"`
	AcceptanceCriteria  []string        `json:"acceptance_criteria"`
	Gaps                []string        `json:"gaps"`
}

// ChecklistItem is one compliance requirement and whether a draft meets it.
type ChecklistItem struct {
	Item string `json:"item"`
	Met  bool   `json:"met"`
}

// UnmarshalJSON accepts both {"item": ..., "met": ...} objects and bare
// strings, which is what the drafting service emits for fresh sheets.
func (c *ChecklistItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ChecklistItem{Item: s}
		return nil
	}
	type plain ChecklistItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("compliance checklist item: %w", err)
	}
	*c = ChecklistItem(p)
	return nil
}

// LengthHint is the suggested word range for a section.
type LengthHint struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ChecklistItems returns the bare requirement strings of the checklist.
func (s InstructionSheet) ChecklistItems() []string {
	out := make([]string, 0, len(s.ComplianceChecklist))
	for _, c := range s.ComplianceChecklist {
		out = append(out, c.Item)
	}
	return out
}

func (s InstructionSheet) clone() InstructionSheet {
	c := s
	c.MicroOutline = cloneStrings(s.MicroOutline)
	c.MustInclude = cloneStrings(s.MustInclude)
	c.ToneRules = cloneStrings(s.ToneRules)
	c.WinThemes = cloneStrings(s.WinThemes)
	c.EvidencePrompts = cloneStrings(s.EvidencePrompts)
	c.AcceptanceCriteria = cloneStrings(s.AcceptanceCriteria)
	c.Gaps = cloneStrings(s.Gaps)
	if s.ComplianceChecklist != nil {
		c.ComplianceChecklist = append([]ChecklistItem(nil), s.ComplianceChecklist...)
	}
	return c
}

// InstructionPatch carries the fields of a manual instruction edit. Nil
// fields are left as they are.
type InstructionPatch struct {
	Title               *string
	Purpose             *string
	MicroOutline        []string
	MustInclude         []string
	ToneRules           []string
	WinThemes           []string
	EvidencePrompts     []string
	ComplianceChecklist []ChecklistItem
	LengthHintWords     *LengthHint
	AcceptanceCriteria  []string
	Gaps                []string
}

func (p InstructionPatch) apply(s InstructionSheet) InstructionSheet {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Purpose != nil {
		s.Purpose = *p.Purpose
	}
	if p.MicroOutline != nil {
		s.MicroOutline = cloneStrings(p.MicroOutline)
	}
	if p.MustInclude != nil {
		s.MustInclude = cloneStrings(p.MustInclude)
	}
	if p.ToneRules != nil {
		s.ToneRules = cloneStrings(p.ToneRules)
	}
	if p.WinThemes != nil {
		s.WinThemes = cloneStrings(p.WinThemes)
	}
	if p.EvidencePrompts != nil {
		s.EvidencePrompts = cloneStrings(p.EvidencePrompts)
	}
	if p.ComplianceChecklist != nil {
		s.ComplianceChecklist = append([]ChecklistItem(nil), p.ComplianceChecklist...)
	}
	if p.LengthHintWords != nil {
		s.LengthHintWords = *p.LengthHintWords
	}
	if p.AcceptanceCriteria != nil {
		s.AcceptanceCriteria = cloneStrings(p.AcceptanceCriteria)
	}
	if p.Gaps != nil {
		s.Gaps = cloneStrings(p.Gaps)
	}
	return s
}

// InstructionStore maps section keys to instruction sheets. A missing entry
// means the sheet has not been generated yet.
type InstructionStore struct {
	sheets map[string]InstructionSheet
}

func NewInstructionStore() *InstructionStore {
	return &InstructionStore{sheets: make(map[string]InstructionSheet)}
}

// ReplaceAll discards every sheet and installs sheets in their place. A new
// sheet fully replaces any old one; nothing is merged.
func (s *InstructionStore) ReplaceAll(sheets map[string]InstructionSheet) {
	s.sheets = make(map[string]InstructionSheet, len(sheets))
	for k, v := range sheets {
		v = v.clone()
		v.SectionKey = k
		s.sheets[k] = v
	}
}

func (s *InstructionStore) Get(key string) (InstructionSheet, bool) {
	sheet, ok := s.sheets[key]
	if !ok {
		return InstructionSheet{}, false
	}
	return sheet.clone(), true
}

// Update merges patch into the existing sheet for key. Editing requires a
// generated sheet: without one Update does nothing and reports false.
func (s *InstructionStore) Update(key string, patch InstructionPatch) bool {
	sheet, ok := s.sheets[key]
	if !ok {
		return false
	}
	s.sheets[key] = patch.apply(sheet)
	return true
}

func (s *InstructionStore) Delete(key string) bool {
	if _, ok := s.sheets[key]; !ok {
		return false
	}
	delete(s.sheets, key)
	return true
}

func (s *InstructionStore) Clear() { s.sheets = make(map[string]InstructionSheet) }

func (s *InstructionStore) Has(key string) bool {
	_, ok := s.sheets[key]
	return ok
}

func (s *InstructionStore) Len() int { return len(s.sheets) }

// Keys returns the keys with a sheet, sorted. The store itself has no order.
func (s *InstructionStore) Keys() []string {
	keys := make([]string, 0, len(s.sheets))
	for k := range s.sheets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
