package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"propdraft/internal/assembly"
)

func TestAssessQuality(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		hint   assembly.LengthHint
		score  float64
		issues []string
	}{
		{
			name:   "empty",
			html:   "<p>  </p>",
			issues: []string{IssueEmpty},
		},
		{
			name:  "clean",
			html:  "<p>We staff the program with certified engineers.</p><p>Each milestone has an owner.</p>",
			hint:  assembly.LengthHint{Min: 10, Max: 40},
			score: 1,
		},
		{
			name:   "list heavy single paragraph",
			html:   "<p>Scope:</p><ul><li>a</li><li>b</li><li>c</li></ul>",
			score:  0.55,
			issues: []string{IssueListHeavy, IssueFewParagraphs},
		},
		{
			name:   "placeholder and short",
			html:   "<p>[Insert past performance]</p><p>TBD.</p>",
			hint:   assembly.LengthHint{Min: 300, Max: 600},
			score:  0.5,
			issues: []string{IssuePlaceholder, IssueTooShort},
		},
		{
			name:   "markdown leaked",
			html:   "<p>**Bold** claim here.</p><p>Second paragraph.</p>",
			score:  0.9,
			issues: []string{IssueMarkdownLeaked},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessQuality(tt.html, tt.hint)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
			if len(tt.issues) == 0 {
				assert.Empty(t, got.Issues)
			} else {
				assert.Equal(t, tt.issues, got.Issues)
			}
		})
	}
}

func TestAssessQuality_TooLong(t *testing.T) {
	got := AssessQuality("<p>one two three four five six seven</p><p>eight nine ten</p>", assembly.LengthHint{Min: 2, Max: 4})
	assert.Equal(t, 10, got.Words)
	assert.Equal(t, []string{IssueTooLong}, got.Issues)
	assert.InDelta(t, 0.9, got.Score, 1e-9)
}
