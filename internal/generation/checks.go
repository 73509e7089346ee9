package generation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"propdraft/internal/assembly"
)

const (
	// DefaultSimilarityThreshold flags a draft sentence as copied from an
	// example passage.
	DefaultSimilarityThreshold = 0.92

	maxChecklistTokens = 6
	minChecklistToken  = 3
)

// TextContent returns the visible text of an HTML fragment, with element
// boundaries turned into spaces.
func TextContent(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way the text so far is all
			// there is.
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) {
				skip++
			}
			sb.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) && skip > 0 {
				skip--
			}
			sb.WriteByte(' ')
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func isRawTextTag(name string) bool {
	return name == "script" || name == "style"
}

func checklistTokens(item string) []string {
	fields := strings.FieldsFunc(strings.ToLower(item), func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	out := make([]string, 0, maxChecklistTokens)
	for _, f := range fields {
		if len(f) < minChecklistToken {
			continue
		}
		out = append(out, f)
		if len(out) == maxChecklistTokens {
			break
		}
	}
	return out
}

// CheckCompliance marks a checklist item met when each of its first six
// words of three or more characters appears in the draft text. Items with no
// such words are never met.
func CheckCompliance(draftHTML string, checklist []string) []assembly.ChecklistItem {
	text := strings.ToLower(TextContent(draftHTML))
	out := make([]assembly.ChecklistItem, 0, len(checklist))
	for _, item := range checklist {
		toks := checklistTokens(item)
		met := len(toks) > 0
		for _, t := range toks {
			if !strings.Contains(text, t) {
				met = false
				break
			}
		}
		out = append(out, assembly.ChecklistItem{Item: item, Met: met})
	}
	return out
}

// sentences splits on "." and drops empty pieces.
func sentences(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SimilarityChecker compares draft sentences against example sentences by
// embedding cosine similarity.
type SimilarityChecker struct {
	embedder  Embedder
	threshold float64
}

func NewSimilarityChecker(embedder Embedder, threshold float64) *SimilarityChecker {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &SimilarityChecker{embedder: embedder, threshold: threshold}
}

// Check returns the highest similarity between any draft sentence and any
// passage sentence. Without an embedder, draft sentences or passages the
// result is zero and unflagged.
func (c *SimilarityChecker) Check(ctx context.Context, draftHTML string, passages []string) (assembly.SimilarityCheck, error) {
	if c == nil || c.embedder == nil {
		return assembly.SimilarityCheck{}, nil
	}
	draft := sentences(TextContent(draftHTML))
	var examples []string
	for _, p := range passages {
		examples = append(examples, sentences(p)...)
	}
	if len(draft) == 0 || len(examples) == 0 {
		return assembly.SimilarityCheck{}, nil
	}

	vecs, err := c.embedder.Embed(ctx, append(append([]string(nil), draft...), examples...))
	if err != nil {
		return assembly.SimilarityCheck{}, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vecs) != len(draft)+len(examples) {
		return assembly.SimilarityCheck{}, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vecs), len(draft)+len(examples))
	}
	if dims := c.embedder.Dimension(); dims > 0 {
		for _, v := range vecs {
			if len(v) != dims {
				return assembly.SimilarityCheck{}, fmt.Errorf("embedding has %d dimensions, expected %d", len(v), dims)
			}
		}
	}

	best := 0.0
	for _, d := range vecs[:len(draft)] {
		for _, e := range vecs[len(draft):] {
			if s := cosine(d, e); s > best {
				best = s
			}
		}
	}
	return assembly.SimilarityCheck{Max: best, Flag: best >= c.threshold}, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
