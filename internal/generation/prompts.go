package generation

import (
	"fmt"
	"strings"
)

const (
	outlineSystem = "You are a senior capture manager who structures federal-style technical and management proposals."

	instructionSystem = "You are a senior proposal manager for US Government proposals. " +
		"Return only valid JSON for a SectionInstruction as per schema. " +
		"Use context excerpts to tailor must-include items and compliance cues. Avoid pricing."

	patternSystem = "You extract reusable writing patterns from proposal sections (structure, rhetorical moves, metric types). " +
		"Do NOT copy sentences. Output concise bullet points under ~250 tokens."

	draftSystem = "You are a capture manager and principal proposal writer. " +
		"Follow the instruction JSON exactly, be compliant, specific, and evidence-driven. " +
		"Use headings (H2/H3). Do not include pricing. If relying on a snippet, reference it as [S1], [S2], ... " +
		"Return HTML only."
)

const (
	maxPatternPassages = 6
	noPassages         = "(No passages available. Provide generic, section-typical patterns.)"
	noPatterns         = "(No example patterns selected.)"
	noContext          = "(No additional context.)"
)

// PromptBuilder constructs the prompts for each generation step.
type PromptBuilder struct{}

func (pb *PromptBuilder) BuildOutlinePrompt(topic string, useKnowledgeBase bool) string {
	var sb strings.Builder
	sb.WriteString("You are drafting a complete boilerplate proposal. Based on the context and topic, create an outline with 8-14 top-level sections suitable for a federal-style technical/management proposal.\n")
	sb.WriteString("Use H2 headings (##) for top-level sections; add a short bullet list under each for subpoints.\n\n")
	fmt.Fprintf(&sb, "**TOPIC:** %s\n\n", topic)
	if useKnowledgeBase {
		sb.WriteString("Draw on the organization's standard capabilities where they fit the topic.\n\n")
	}
	sb.WriteString("Return only the outline in Markdown (## headings + bullets).")
	return sb.String()
}

func (pb *PromptBuilder) BuildInstructionPrompt(title, key string, context []string) string {
	var sb strings.Builder
	sb.WriteString("Generate a Section Instruction Sheet.\n")
	sb.WriteString("Keys: section_key, title, purpose, must_include, micro_outline, tone_rules, win_themes, evidence_prompts, compliance_checklist, length_hint_words, acceptance_criteria, gaps.\n")
	fmt.Fprintf(&sb, "Section title: %s\n", title)
	fmt.Fprintf(&sb, "Canonical key (if provided): %s\n", key)
	sb.WriteString("Context excerpts:\n")
	if len(context) == 0 {
		sb.WriteString(noContext)
	} else {
		sb.WriteString(strings.Join(context, "\n\n"))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (pb *PromptBuilder) BuildPatternPrompt(sectionKey string, passages []string) string {
	cleaned := make([]string, 0, maxPatternPassages)
	for _, p := range passages {
		if len(cleaned) == maxPatternPassages {
			break
		}
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You will summarize writing patterns for the `%s` section of a government proposal.\n", sectionKey)
	sb.WriteString("Return concise bullet points that cover:\n")
	sb.WriteString("- Typical H2/H3 ordering\n")
	sb.WriteString("- Common proof types (metrics, certifications, tools)\n")
	sb.WriteString("- Rhetorical moves (contrast, benefit-led phrasing, risk->mitigation)\n")
	sb.WriteString("- Neutral phrase templates with variables (e.g., \"We will <action> to achieve <metric> within <time>\")\n")
	sb.WriteString("Do not include any real organization or person names.\n\n")
	sb.WriteString("Passages to analyze:\n")
	if len(cleaned) == 0 {
		sb.WriteString(noPassages)
	} else {
		sb.WriteString(strings.Join(cleaned, "\n\n---\n\n"))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (pb *PromptBuilder) BuildDraftPrompt(instructionJSON, patterns string, context []string) string {
	if strings.TrimSpace(patterns) == "" {
		patterns = noPatterns
	}
	var sb strings.Builder
	sb.WriteString("Instruction JSON:\n")
	sb.WriteString(instructionJSON)
	sb.WriteString("\n\nPatterns distilled from prior winning examples; do not copy text:\n")
	sb.WriteString(patterns)
	sb.WriteString("\n\nRFP/KB context snippets:\n")
	if len(context) == 0 {
		sb.WriteString(noContext)
	} else {
		for i, c := range context {
			fmt.Fprintf(&sb, "[S%d] %s\n", i+1, c)
		}
	}
	sb.WriteString("\n\nWrite the full section now.\n")
	return sb.String()
}
