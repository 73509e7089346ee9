package assembly

import "strings"

// Section is one entry of the outline. Position mirrors the section's index in
// the outline and is filled in on read.
type Section struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// Outline is the ordered list of sections. Its order is the canonical order
// for document assembly and the table of contents.
//
// Outline is not safe for concurrent use; Assembly serializes access.
type Outline struct {
	sections []Section
	index    map[string]int
}

// NewOutline returns an empty outline.
func NewOutline() *Outline {
	return &Outline{index: make(map[string]int)}
}

// Add appends a section titled title. Its key is derived from the title and
// suffixed when it would collide with an existing key.
func (o *Outline) Add(title string) Section {
	title = strings.TrimSpace(title)
	key := uniqueKey(DeriveKey(title), o.Has)
	o.sections = append(o.sections, Section{Key: key, Title: title})
	o.reindex()
	return o.sections[len(o.sections)-1]
}

// Rename changes the title of key. The key itself is immutable.
func (o *Outline) Rename(key, title string) bool {
	title = strings.TrimSpace(title)
	i, ok := o.index[key]
	if !ok || title == "" {
		return false
	}
	o.sections[i].Title = title
	return true
}

// Remove drops key from the outline. Callers cascade the removal to the
// instruction and draft stores.
func (o *Outline) Remove(key string) bool {
	i, ok := o.index[key]
	if !ok {
		return false
	}
	o.sections = append(o.sections[:i], o.sections[i+1:]...)
	o.reindex()
	return true
}

// Move splices the section at from into position to. Out-of-range indices
// leave the outline untouched.
func (o *Outline) Move(from, to int) bool {
	n := len(o.sections)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}
	moved := o.sections[from]
	o.sections = append(o.sections[:from], o.sections[from+1:]...)
	o.sections = append(o.sections[:to], append([]Section{moved}, o.sections[to:]...)...)
	o.reindex()
	return true
}

// Replace swaps in a whole new outline. Sections without a key get one
// derived from their title; duplicate keys are suffixed in order.
func (o *Outline) Replace(sections []Section) {
	next := make([]Section, 0, len(sections))
	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		title := strings.TrimSpace(s.Title)
		key := strings.TrimSpace(s.Key)
		if key == "" {
			key = DeriveKey(title)
		}
		key = uniqueKey(key, func(k string) bool { return seen[k] })
		seen[key] = true
		next = append(next, Section{Key: key, Title: title})
	}
	o.sections = next
	o.reindex()
}

// Sections returns a copy of the outline in order with positions set.
func (o *Outline) Sections() []Section {
	out := make([]Section, len(o.sections))
	copy(out, o.sections)
	return out
}

// Get returns the section for key.
func (o *Outline) Get(key string) (Section, bool) {
	i, ok := o.index[key]
	if !ok {
		return Section{}, false
	}
	return o.sections[i], true
}

// Keys returns the section keys in outline order.
func (o *Outline) Keys() []string {
	keys := make([]string, len(o.sections))
	for i, s := range o.sections {
		keys[i] = s.Key
	}
	return keys
}

func (o *Outline) Has(key string) bool {
	_, ok := o.index[key]
	return ok
}

func (o *Outline) Len() int { return len(o.sections) }

func (o *Outline) reindex() {
	o.index = make(map[string]int, len(o.sections))
	for i := range o.sections {
		o.sections[i].Position = i
		o.index[o.sections[i].Key] = i
	}
}
