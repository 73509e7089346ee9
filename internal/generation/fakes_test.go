package generation

import (
	"context"
	"strings"
	"sync"

	"propdraft/internal/assembly"
)

type call struct {
	system string
	user   string
}

// scriptedCompleter answers by system prompt.
type scriptedCompleter struct {
	mu      sync.Mutex
	calls   []call
	replies map[string]func(user string) (string, error)
}

func (s *scriptedCompleter) Complete(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{system: system, user: user})
	reply := s.replies[system]
	s.mu.Unlock()
	if reply == nil {
		return "", nil
	}
	return reply(user)
}

func (s *scriptedCompleter) callsFor(system string) []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if c.system == system {
			out = append(out, c)
		}
	}
	return out
}

// keywordEmbedder maps text onto a fixed vocabulary so identical sentences
// score 1 and disjoint ones score 0.
type keywordEmbedder struct {
	vocab []string
	err   error
	// dims, when set, is reported instead of the vocabulary size.
	dims int
}

func (k keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(k.vocab))
		lower := strings.ToLower(t)
		for j, w := range k.vocab {
			if strings.Contains(lower, w) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func (k keywordEmbedder) Dimension() int {
	if k.dims > 0 {
		return k.dims
	}
	return len(k.vocab)
}

type stubPassages struct {
	passages []assembly.ExamplePassage
	err      error
	gotIDs   []string
	gotKey   string
}

func (s *stubPassages) ExamplePassages(_ context.Context, sectionKey string, ids []string, _ int) ([]assembly.ExamplePassage, error) {
	s.gotKey = sectionKey
	s.gotIDs = ids
	return s.passages, s.err
}
