package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propdraft/internal/assembly"
)

func TestParseOutline(t *testing.T) {
	md := "```markdown\n# Proposal\n## Executive Summary\n- why us\n  ## Technical Approach  \n##NoSpace\n## \n## Risk Management\n```"
	assert.Equal(t, []string{"Executive Summary", "Technical Approach", "Risk Management"}, parseOutline(md))
	assert.Empty(t, parseOutline("No headings here."))
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "<h2>X</h2>", stripFence("```html\n<h2>X</h2>\n```"))
	assert.Equal(t, "<p>x</p>", stripFence("```<p>x</p>```"))
	assert.Equal(t, "plain", stripFence("  plain  "))
}

func TestCleanHTML_UnwrapsBody(t *testing.T) {
	raw := "```html\n<!DOCTYPE html><html><body class=\"x\"><h2>Scope</h2><p>Body.</p></body></html>\n```"
	assert.Equal(t, "<h2>Scope</h2><p>Body.</p>", cleanHTML(raw))
}

func TestCleanHTML_Sanitizes(t *testing.T) {
	raw := `<p onclick="steal()">Hi <strong>team</strong></p><script>alert(1)</script><iframe src="https://x"></iframe>`
	assert.Equal(t, "<p>Hi <strong>team</strong></p>", cleanHTML(raw))
	assert.Empty(t, cleanHTML("<script>alert(1)</script>"))
}

func TestParseInstructionSheet_NormalizesQuirks(t *testing.T) {
	raw := "Here you go:\n```json\n" + `{
		"title": "Technical Approach",
		"purpose": "Explain the method",
		"must_include": "Agile delivery\n- DevSecOps pipeline",
		"micro_outline": "Overview; Method; Tools",
		"compliance_checklist": ["Addresses PWS 3.1", {"item": "Section L.4", "met": true}, ""],
		"length_hint_words": "1000"
	}` + "\n```"

	sheet, err := parseInstructionSheet(raw)
	require.NoError(t, err)
	assert.Equal(t, "Technical Approach", sheet.Title)
	assert.Equal(t, []string{"Agile delivery", "DevSecOps pipeline"}, sheet.MustInclude)
	assert.Equal(t, []string{"Overview", "Method", "Tools"}, sheet.MicroOutline)
	assert.Equal(t, []assembly.ChecklistItem{{Item: "Addresses PWS 3.1"}, {Item: "Section L.4", Met: true}}, sheet.ComplianceChecklist)
	assert.Equal(t, assembly.LengthHint{Min: 800, Max: 1000}, sheet.LengthHintWords)
}

func TestParseInstructionSheet_LengthHints(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want assembly.LengthHint
	}{
		{"missing", `{"title":"A"}`, assembly.LengthHint{Min: 1200, Max: 1800}},
		{"small number floors min", `{"length_hint_words": 200}`, assembly.LengthHint{Min: 300, Max: 200}},
		{"unparseable string", `{"length_hint_words": "lots"}`, assembly.LengthHint{Min: 1200, Max: 1500}},
		{"approx only", `{"length_hint_words": {"approx": 1000}}`, assembly.LengthHint{Min: 800, Max: 1000}},
		{"min only", `{"length_hint_words": {"min": 1700}}`, assembly.LengthHint{Min: 1700, Max: 2000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sheet, err := parseInstructionSheet(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sheet.LengthHintWords)
		})
	}
}

func TestParseInstructionSheet_TopLevelArrayAndErrors(t *testing.T) {
	sheet, err := parseInstructionSheet(`[{"title": "First"}, {"title": "Second"}]`)
	require.NoError(t, err)
	assert.Equal(t, "First", sheet.Title)

	_, err = parseInstructionSheet("I cannot help with that.")
	assert.Error(t, err)
	_, err = parseInstructionSheet(`"just a string"`)
	assert.Error(t, err)
}

func TestHardenSheet(t *testing.T) {
	item := assembly.OutlineItem{Title: "Staffing & Key Personnel", Key: "staffing_&_key_personnel"}

	sheet := hardenSheet(assembly.InstructionSheet{SectionKey: "staffing"}, item)
	assert.Equal(t, "staffing_&_key_personnel", sheet.SectionKey)
	assert.Equal(t, "Staffing & Key Personnel", sheet.Title)
	assert.Equal(t, DefaultToneRules, sheet.ToneRules)

	kept := hardenSheet(assembly.InstructionSheet{Title: "Staffing", ToneRules: []string{"crisp"}}, item)
	assert.Equal(t, "Staffing", kept.Title)
	assert.Equal(t, []string{"crisp"}, kept.ToneRules)

	derived := hardenSheet(assembly.InstructionSheet{}, assembly.OutlineItem{Title: "Past Performance"})
	assert.Equal(t, "past_performance", derived.SectionKey)
}

func TestParseInstructionSheet_SchemaRejects(t *testing.T) {
	for _, raw := range []string{
		`{"purpose": 42}`,
		`{"compliance_checklist": [{"met": true}]}`,
		`{"must_include": [{"point": "nested"}]}`,
	} {
		_, err := parseInstructionSheet(raw)
		assert.ErrorContains(t, err, "schema validation", raw)
	}

	sheet, err := parseInstructionSheet(`{"purpose": null, "gaps": null}`)
	require.NoError(t, err)
	assert.Empty(t, sheet.Purpose)
	assert.Empty(t, sheet.Gaps)
}
