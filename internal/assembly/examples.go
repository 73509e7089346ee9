package assembly

import (
	"sort"
	"strings"
)

// Example is an entry of the externally managed example catalog.
type Example struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	ClientType      string   `json:"client_type,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	ContractVehicle string   `json:"contract_vehicle,omitempty"`
	ComplexityTier  string   `json:"complexity_tier,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// ExamplePassage is the text an example carries for one section. Passages
// steer drafting style and are compared against drafts to catch copying.
type ExamplePassage struct {
	ExampleID  string `json:"example_id"`
	SectionKey string `json:"section_key"`
	Text       string `json:"text"`
}

// ExampleSelection is the set of example ids chosen to bias drafting. Ids are
// not validated against the catalog; stale ids pass through to the generator.
type ExampleSelection struct {
	ids map[string]struct{}
}

func NewExampleSelection() *ExampleSelection {
	return &ExampleSelection{ids: make(map[string]struct{})}
}

// Toggle flips membership of id and reports whether it is now selected.
func (e *ExampleSelection) Toggle(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if _, ok := e.ids[id]; ok {
		delete(e.ids, id)
		return false
	}
	e.ids[id] = struct{}{}
	return true
}

// Replace sets the selection to exactly ids.
func (e *ExampleSelection) Replace(ids []string) {
	e.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		e.ids[id] = struct{}{}
	}
}

func (e *ExampleSelection) Has(id string) bool {
	_, ok := e.ids[id]
	return ok
}

func (e *ExampleSelection) Len() int { return len(e.ids) }

// IDs returns the selection sorted. The order carries no meaning; sorting only
// keeps snapshots and requests stable.
func (e *ExampleSelection) IDs() []string {
	out := make([]string, 0, len(e.ids))
	for id := range e.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
