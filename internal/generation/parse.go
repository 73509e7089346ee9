package generation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"propdraft/internal/assembly"
)

// DefaultToneRules fill in sheets the model returned without tone guidance.
var DefaultToneRules = []string{
	"formal plain-language",
	"active voice",
	"no colloquialisms",
	"evidence-led",
	"FAR-aware",
}

const (
	defaultLengthMin = 1200
	defaultLengthMax = 1800
	fallbackLength   = 1500
	minLengthFloor   = 300
)

var sheetListFields = []string{
	"must_include",
	"micro_outline",
	"tone_rules",
	"win_themes",
	"evidence_prompts",
	"compliance_checklist",
	"acceptance_criteria",
	"gaps",
}

// stripFence removes a surrounding ``` block, with or without a language tag.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], " <{") {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// parseOutline returns the "## " headings of a Markdown outline in order.
func parseOutline(markdown string) []string {
	var sections []string
	for _, line := range strings.Split(stripFence(markdown), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		if title := strings.TrimSpace(line[3:]); title != "" {
			sections = append(sections, title)
		}
	}
	return sections
}

// draftPolicy limits generated drafts to user-content markup: no scripts,
// event handlers or embedded frames.
var draftPolicy = bluemonday.UGCPolicy()

// cleanHTML strips code fences and stray document wrappers from a drafted
// section, then sanitizes what is left.
func cleanHTML(text string) string {
	text = stripFence(text)
	lower := strings.ToLower(text)
	if i := strings.Index(lower, "<body"); i >= 0 {
		if open := strings.IndexByte(text[i:], '>'); open >= 0 {
			text = text[i+open+1:]
			lower = strings.ToLower(text)
		}
		if end := strings.Index(lower, "</body>"); end >= 0 {
			text = text[:end]
		}
	}
	return strings.TrimSpace(draftPolicy.Sanitize(strings.TrimSpace(text)))
}

// parseInstructionSheet decodes a model reply into a sheet, tolerating the
// usual quirks: fenced JSON, prose around the object, a top-level array,
// list fields given as strings, and a bare number for the length hint.
func parseInstructionSheet(raw string) (assembly.InstructionSheet, error) {
	cleaned := stripFence(raw)

	var obj any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return assembly.InstructionSheet{}, fmt.Errorf("model did not return instruction JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &obj); err != nil {
			return assembly.InstructionSheet{}, fmt.Errorf("model did not return instruction JSON: %w", err)
		}
	}
	if list, ok := obj.([]any); ok && len(list) > 0 {
		obj = list[0]
	}
	m, ok := obj.(map[string]any)
	if !ok {
		return assembly.InstructionSheet{}, fmt.Errorf("instruction JSON is not an object")
	}

	m["length_hint_words"] = normalizeLengthHint(m["length_hint_words"])
	for _, k := range sheetListFields {
		if v, ok := m[k]; ok {
			m[k] = asList(v)
		}
	}

	normalized, err := json.Marshal(m)
	if err != nil {
		return assembly.InstructionSheet{}, err
	}
	var doc any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return assembly.InstructionSheet{}, err
	}
	if err := validateSheet(doc); err != nil {
		return assembly.InstructionSheet{}, err
	}
	var sheet assembly.InstructionSheet
	if err := json.Unmarshal(normalized, &sheet); err != nil {
		return assembly.InstructionSheet{}, fmt.Errorf("decode instruction sheet: %w", err)
	}
	return sheet, nil
}

// hardenSheet ties a sheet to the outline item it was requested for and
// fills required fields the model left empty.
func hardenSheet(sheet assembly.InstructionSheet, item assembly.OutlineItem) assembly.InstructionSheet {
	key := item.Key
	if key == "" {
		key = assembly.DeriveKey(item.Title)
	}
	sheet.SectionKey = key
	if strings.TrimSpace(sheet.Title) == "" {
		sheet.Title = item.Title
	}
	if len(sheet.ToneRules) == 0 {
		sheet.ToneRules = append([]string(nil), DefaultToneRules...)
	}
	return sheet
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return []any{}
	case []any:
		out := make([]any, 0, len(t))
		for _, x := range t {
			switch e := x.(type) {
			case map[string]any:
				out = append(out, e)
			case string:
				if e = strings.TrimSpace(e); e != "" {
					out = append(out, e)
				}
			case nil:
			default:
				out = append(out, fmt.Sprint(e))
			}
		}
		return out
	case string:
		var lines []any
		for _, l := range strings.Split(t, "\n") {
			if l = strings.TrimSpace(strings.Trim(strings.TrimSpace(l), "-•\t")); l != "" {
				lines = append(lines, l)
			}
		}
		if len(lines) > 1 {
			return lines
		}
		var parts []any
		for _, p := range strings.Split(t, ";") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			return parts
		}
		return []any{}
	default:
		return []any{}
	}
}

func normalizeLengthHint(v any) map[string]int {
	switch t := v.(type) {
	case float64, string:
		n, ok := toInt(t)
		if !ok {
			n = fallbackLength
		}
		return map[string]int{"min": max(minLengthFloor, int(float64(n)*0.8)), "max": n}
	case map[string]any:
		lo, hasMin := toInt(t["min"])
		hi, hasMax := toInt(t["max"])
		if approx, ok := toInt(t["approx"]); ok {
			if !hasMin {
				lo, hasMin = max(minLengthFloor, int(float64(approx)*0.8)), true
			}
			if !hasMax {
				hi, hasMax = approx, true
			}
		}
		if !hasMin {
			lo = defaultLengthMin
		}
		if !hasMax {
			hi = max(lo+300, defaultLengthMax)
		}
		return map[string]int{"min": lo, "max": hi}
	default:
		return map[string]int{"min": defaultLengthMin, "max": defaultLengthMax}
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}
