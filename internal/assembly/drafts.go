package assembly

import "sort"

// DraftState is the per-section drafting state. It is derived from store
// contents and never stored.
type DraftState int

const (
	Undrafted DraftState = iota
	Drafted
	Deleted
)

func (s DraftState) String() string {
	switch s {
	case Undrafted:
		return "undrafted"
	case Drafted:
		return "drafted"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DraftStore maps section keys to draft HTML. The HTML is an opaque blob.
type DraftStore struct {
	drafts map[string]string
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[string]string)}
}

// Set overwrites the draft for key. Generation and manual edits both write
// through here; the last write wins. Empty html leaves the section
// undrafted, which is also how a saved snapshot reads it back.
func (s *DraftStore) Set(key, html string) {
	if html == "" {
		delete(s.drafts, key)
		return
	}
	s.drafts[key] = html
}

func (s *DraftStore) Get(key string) (string, bool) {
	html, ok := s.drafts[key]
	return html, ok
}

func (s *DraftStore) Delete(key string) bool {
	if _, ok := s.drafts[key]; !ok {
		return false
	}
	delete(s.drafts, key)
	return true
}

func (s *DraftStore) Clear() { s.drafts = make(map[string]string) }

func (s *DraftStore) Has(key string) bool {
	_, ok := s.drafts[key]
	return ok
}

func (s *DraftStore) Len() int { return len(s.drafts) }

func (s *DraftStore) Keys() []string {
	keys := make([]string, 0, len(s.drafts))
	for k := range s.drafts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
