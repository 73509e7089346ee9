package generation

import (
	"strings"

	"golang.org/x/net/html"

	"propdraft/internal/assembly"
)

// Issue codes reported by AssessQuality.
const (
	IssueEmpty          = "empty_content"
	IssueListHeavy      = "list_heavy"
	IssueFewParagraphs  = "insufficient_paragraphs"
	IssuePlaceholder    = "instructional_or_placeholder_text"
	IssueTooShort       = "too_short"
	IssueTooLong        = "too_long"
	IssueMarkdownLeaked = "markdown_in_html"
)

var placeholderTokens = []string{
	"[insert", "[client", "[company", "tbd", "placeholder", "lorem ipsum", "xx%", "as an ai",
}

// AssessQuality scores a drafted section on structure, leftover template
// text and length against the sheet's word range. It never fails; an empty
// draft scores zero.
func AssessQuality(draftHTML string, hint assembly.LengthHint) assembly.QualityCheck {
	text := TextContent(draftHTML)
	if text == "" {
		return assembly.QualityCheck{Issues: []string{IssueEmpty}}
	}
	words := len(strings.Fields(text))

	score := 1.0
	issues := make([]string, 0, 4)

	items, paragraphs := countBlocks(draftHTML)
	if total := items + paragraphs; total > 0 && float64(items)/float64(total) > 0.6 {
		score -= 0.25
		issues = append(issues, IssueListHeavy)
	}
	if paragraphs < 2 {
		score -= 0.2
		issues = append(issues, IssueFewParagraphs)
	}

	lower := strings.ToLower(text)
	for _, token := range placeholderTokens {
		if strings.Contains(lower, token) {
			score -= 0.3
			issues = append(issues, IssuePlaceholder)
			break
		}
	}
	if strings.Contains(text, "**") || strings.Contains(text, "## ") {
		score -= 0.1
		issues = append(issues, IssueMarkdownLeaked)
	}

	if hint.Min > 0 && words < hint.Min/2 {
		score -= 0.2
		issues = append(issues, IssueTooShort)
	}
	if hint.Max > 0 && words > hint.Max*3/2 {
		score -= 0.1
		issues = append(issues, IssueTooLong)
	}

	return assembly.QualityCheck{Score: max(score, 0), Words: words, Issues: issues}
}

func countBlocks(fragment string) (items, paragraphs int) {
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return items, paragraphs
		}
		if tt != html.StartTagToken {
			continue
		}
		name, _ := z.TagName()
		switch string(name) {
		case "li":
			items++
		case "p":
			paragraphs++
		}
	}
}
