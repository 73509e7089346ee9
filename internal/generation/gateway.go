// Package generation implements the drafting service behind an assembly:
// outline planning, instruction sheets and section drafts over a chat model,
// plus the post-draft compliance and similarity checks.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"propdraft/internal/assembly"
)

const (
	// DefaultConcurrency bounds parallel instruction requests.
	DefaultConcurrency = 4
	// DefaultPassageLimit is how many example passages feed one draft.
	DefaultPassageLimit = 8

	exampleSourceKind = "EX"
)

type Options struct {
	Embedder            Embedder
	Passages            PassageSource
	Concurrency         int
	PassageLimit        int
	SimilarityThreshold float64
	Logger              *zap.Logger
}

// Gateway turns assembly requests into chat-model calls.
type Gateway struct {
	completer     Completer
	passages      PassageSource
	similarity    *SimilarityChecker
	promptBuilder *PromptBuilder
	concurrency   int
	passageLimit  int
	log           *zap.Logger
}

var _ assembly.Generator = (*Gateway)(nil)

func NewGateway(completer Completer, opts Options) *Gateway {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.PassageLimit <= 0 {
		opts.PassageLimit = DefaultPassageLimit
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		completer:     completer,
		passages:      opts.Passages,
		similarity:    NewSimilarityChecker(opts.Embedder, opts.SimilarityThreshold),
		promptBuilder: &PromptBuilder{},
		concurrency:   opts.Concurrency,
		passageLimit:  opts.PassageLimit,
		log:           log.Named("generation"),
	}
}

// GenerateOutline returns the "## " headings of the planned outline. An
// outline without headings yields no sections; the caller decides the
// fallback.
func (g *Gateway) GenerateOutline(ctx context.Context, req assembly.OutlineRequest) (assembly.OutlineResult, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = assembly.DefaultTopic
	}
	reply, err := g.completer.Complete(ctx, outlineSystem, g.promptBuilder.BuildOutlinePrompt(topic, req.UseKnowledgeBase))
	if err != nil {
		return assembly.OutlineResult{}, fmt.Errorf("outline request failed: %w", err)
	}
	sections := parseOutline(reply)
	g.log.Debug("outline planned", zap.String("topic", topic), zap.Int("sections", len(sections)))
	return assembly.OutlineResult{Sections: sections}, nil
}

// GenerateInstructions requests one sheet per outline item. A single failed
// item fails the whole batch.
func (g *Gateway) GenerateInstructions(ctx context.Context, req assembly.InstructionsRequest) (assembly.InstructionsResult, error) {
	sheets := make([]assembly.InstructionSheet, len(req.Outline))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, item := range req.Outline {
		eg.Go(func() error {
			sheet, err := g.buildInstruction(egCtx, item)
			if err != nil {
				return fmt.Errorf("instruction for %q: %w", item.Title, err)
			}
			sheets[i] = sheet
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return assembly.InstructionsResult{}, err
	}
	return assembly.InstructionsResult{Instructions: sheets}, nil
}

func (g *Gateway) buildInstruction(ctx context.Context, item assembly.OutlineItem) (assembly.InstructionSheet, error) {
	prompt := g.promptBuilder.BuildInstructionPrompt(item.Title, item.Key, nil)
	reply, err := g.completer.Complete(ctx, instructionSystem, prompt)
	if err != nil {
		return assembly.InstructionSheet{}, err
	}
	sheet, err := parseInstructionSheet(reply)
	if err != nil {
		return assembly.InstructionSheet{}, err
	}
	return hardenSheet(sheet, item), nil
}

// DraftSection writes the section HTML following its instruction sheet, then
// scores it against the checklist and the example passages.
func (g *Gateway) DraftSection(ctx context.Context, req assembly.DraftRequest) (assembly.DraftResult, error) {
	passages, sources := g.examplePassages(ctx, req)

	patterns := ""
	if len(passages) > 0 {
		reply, err := g.completer.Complete(ctx, patternSystem, g.promptBuilder.BuildPatternPrompt(req.SectionKey, passages))
		if err != nil {
			return assembly.DraftResult{}, fmt.Errorf("pattern extraction failed: %w", err)
		}
		patterns = stripFence(reply)
	}

	instructionJSON, err := json.Marshal(req.Instruction)
	if err != nil {
		return assembly.DraftResult{}, fmt.Errorf("encode instruction: %w", err)
	}
	reply, err := g.completer.Complete(ctx, draftSystem, g.promptBuilder.BuildDraftPrompt(string(instructionJSON), patterns, nil))
	if err != nil {
		return assembly.DraftResult{}, fmt.Errorf("draft request failed: %w", err)
	}
	html := cleanHTML(reply)
	if html == "" {
		return assembly.DraftResult{}, fmt.Errorf("draft request returned no content")
	}

	sim, err := g.similarity.Check(ctx, html, passages)
	if err != nil {
		g.log.Warn("similarity check skipped", zap.String("section", req.SectionKey), zap.Error(err))
		sim = assembly.SimilarityCheck{}
	}

	return assembly.DraftResult{
		HTML: html,
		Checks: assembly.DraftChecks{
			Similarity: sim,
			Compliance: CheckCompliance(html, req.Instruction.ChecklistItems()),
			Quality:    AssessQuality(html, req.Instruction.LengthHintWords),
		},
		Sources: sources,
	}, nil
}

// examplePassages never fails the draft: a catalog error only costs the
// style guidance.
func (g *Gateway) examplePassages(ctx context.Context, req assembly.DraftRequest) ([]string, []assembly.DraftSource) {
	if g.passages == nil {
		return nil, nil
	}
	found, err := g.passages.ExamplePassages(ctx, req.SectionKey, req.ExampleIDs, g.passageLimit)
	if err != nil {
		g.log.Warn("example passages unavailable", zap.String("section", req.SectionKey), zap.Error(err))
		return nil, nil
	}
	texts := make([]string, 0, len(found))
	sources := make([]assembly.DraftSource, 0, len(found))
	for _, p := range found {
		texts = append(texts, p.Text)
		sources = append(sources, assembly.DraftSource{Kind: exampleSourceKind, ID: p.ExampleID, Source: p.SectionKey})
	}
	return texts, sources
}
