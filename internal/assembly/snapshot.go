package assembly

import "strings"

const (
	// snapshotVersion tags the metadata layout written by BuildSnapshot.
	snapshotVersion = "v2"
	// DefaultTitle is used when no document title is configured.
	DefaultTitle = "Proposal Draft"
)

// DocumentSnapshot is the unit of persistence: the whole assembly at one
// point in time.
type DocumentSnapshot struct {
	Title    string            `json:"title"`
	Sections []SnapshotSection `json:"sections"`
	Metadata SnapshotMetadata  `json:"metadata"`
}

// SnapshotSection is one outline entry with its draft and instruction sheet.
type SnapshotSection struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	HTML        string            `json:"html"`
	Instruction *InstructionSheet `json:"instruction"`
}

type SnapshotMetadata struct {
	Version            string    `json:"version"`
	HasInstructions    bool      `json:"hasInstructions"`
	Outline            []Section `json:"outline"`
	SelectedExampleIDs []string  `json:"selectedExampleIds"`
}

// BuildSnapshot serializes the stores in outline order. Undrafted sections
// carry empty HTML and sections without a sheet carry a nil instruction.
func BuildSnapshot(title string, outline *Outline, instr *InstructionStore, drafts *DraftStore, examples *ExampleSelection) DocumentSnapshot {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	sections := outline.Sections()
	snap := DocumentSnapshot{
		Title:    title,
		Sections: make([]SnapshotSection, 0, len(sections)),
		Metadata: SnapshotMetadata{
			Version:            snapshotVersion,
			HasInstructions:    instr.Len() > 0,
			Outline:            sections,
			SelectedExampleIDs: examples.IDs(),
		},
	}
	for _, s := range sections {
		sec := SnapshotSection{ID: s.Key, Title: s.Title}
		if html, ok := drafts.Get(s.Key); ok {
			sec.HTML = html
		}
		if sheet, ok := instr.Get(s.Key); ok {
			sec.Instruction = &sheet
		}
		snap.Sections = append(snap.Sections, sec)
	}
	return snap
}

// restoredState is a snapshot unpacked into store contents.
type restoredState struct {
	sections     []Section
	instructions map[string]InstructionSheet
	drafts       map[string]string
	exampleIDs   []string
}

// restore rebuilds store contents from snap. A section without a persisted id
// gets one derived from its title; empty HTML counts as undrafted.
func (snap DocumentSnapshot) restore() restoredState {
	outline := NewOutline()
	sections := make([]Section, 0, len(snap.Sections))
	for _, s := range snap.Sections {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = "Section"
		}
		key := strings.TrimSpace(s.ID)
		if key == "" {
			key = DeriveKey(title)
		}
		sections = append(sections, Section{Key: key, Title: title})
	}
	outline.Replace(sections)

	// Replace may have suffixed duplicate keys, so walk both lists in step.
	state := restoredState{
		sections:     outline.Sections(),
		instructions: make(map[string]InstructionSheet),
		drafts:       make(map[string]string),
		exampleIDs:   append([]string(nil), snap.Metadata.SelectedExampleIDs...),
	}
	for i, s := range snap.Sections {
		key := state.sections[i].Key
		if s.HTML != "" {
			state.drafts[key] = s.HTML
		}
		if s.Instruction != nil {
			state.instructions[key] = s.Instruction.clone()
		}
	}
	return state
}
