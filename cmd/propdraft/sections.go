package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"propdraft/internal/assembly"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(outlineCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(instructionsCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(editCmd)

	instructionsCmd.AddCommand(instructionsShowCmd)
	instructionsCmd.AddCommand(instructionsEditCmd)

	editCmd.Flags().StringVarP(&editFile, "file", "f", "", "HTML file with the new draft ('-' reads stdin)")
	_ = editCmd.MarkFlagRequired("file")

	instructionsEditCmd.Flags().StringVar(&patchPurpose, "purpose", "", "Replace the section purpose")
	instructionsEditCmd.Flags().StringArrayVar(&patchMustInclude, "must-include", nil, "Replace the must-include list (repeatable)")
	instructionsEditCmd.Flags().StringArrayVar(&patchTone, "tone", nil, "Replace the tone rules (repeatable)")
	instructionsEditCmd.Flags().StringArrayVar(&patchThemes, "win-theme", nil, "Replace the win themes (repeatable)")
	instructionsEditCmd.Flags().StringArrayVar(&patchChecklist, "checklist", nil, "Replace the compliance checklist (repeatable)")
	instructionsEditCmd.Flags().IntVar(&patchMinWords, "min-words", 0, "Minimum suggested length in words")
	instructionsEditCmd.Flags().IntVar(&patchMaxWords, "max-words", 0, "Maximum suggested length in words")
}

var (
	editFile string

	patchPurpose     string
	patchMustInclude []string
	patchTone        []string
	patchThemes      []string
	patchChecklist   []string
	patchMinWords    int
	patchMaxWords    int
)

var outlineCmd = &cobra.Command{
	Use:   "outline [topic]",
	Short: "Generate a fresh outline, discarding instructions and drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Println("🧭 Generating outline...")
		start := time.Now()
		sections, err := s.asm.GenerateOutline(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("✅ Outline with %d sections in %v\n", len(sections), time.Since(start).Round(time.Millisecond))
		printOutline(s.asm)
		return s.save(ctx)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Append a section to the outline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		sec, ok := s.asm.AddSection(strings.Join(args, " "))
		if !ok {
			return fmt.Errorf("section title is empty")
		}
		fmt.Printf("➕ Added %q as %s\n", sec.Title, sec.Key)
		return s.save(ctx)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <key> <title>",
	Short: "Change a section title; its key stays the same",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if !s.asm.RenameSection(args[0], strings.Join(args[1:], " ")) {
			return fmt.Errorf("rename %q: %w", args[0], assembly.ErrUnknownSection)
		}
		fmt.Printf("✏️  Renamed %s\n", args[0])
		return s.save(ctx)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Remove a section with its instruction sheet and draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if !s.asm.RemoveSection(args[0]) {
			return fmt.Errorf("remove %q: %w", args[0], assembly.ErrUnknownSection)
		}
		fmt.Printf("🗑️  Removed %s\n", args[0])
		return s.save(ctx)
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move a section between 1-based outline positions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := parsePositions(args[0], args[1])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if !s.asm.MoveSection(from, to) {
			return fmt.Errorf("move %s -> %s: position out of range", args[0], args[1])
		}
		printOutline(s.asm)
		return s.save(ctx)
	},
}

var instructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Generate instruction sheets for every section",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("📋 Generating instruction sheets for %d sections...\n", len(s.asm.Outline()))
		start := time.Now()
		n, err := s.asm.GenerateInstructions(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✅ %d instruction sheets in %v\n", n, time.Since(start).Round(time.Millisecond))
		return s.save(ctx)
	},
}

var instructionsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print the instruction sheet of a section as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		sheet, ok := s.asm.Instruction(args[0])
		if !ok {
			return fmt.Errorf("section %q: %w", args[0], assembly.ErrNoInstruction)
		}
		out, err := json.MarshalIndent(sheet, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var instructionsEditCmd = &cobra.Command{
	Use:   "edit <key>",
	Short: "Edit fields of a generated instruction sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if !s.asm.UpdateInstruction(args[0], patchFromFlags(cmd)) {
			return fmt.Errorf("section %q: %w", args[0], assembly.ErrNoInstruction)
		}
		fmt.Printf("✏️  Updated instructions for %s\n", args[0])
		return s.save(ctx)
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft <key>",
	Short: "Generate the draft of one section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("✍️  Drafting %s...\n", args[0])
		res, err := s.asm.DraftSection(ctx, args[0])
		if err != nil {
			return err
		}
		printChecks(res)
		return s.save(ctx)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <key>",
	Short: "Replace a section draft with hand-edited HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		html, err := readInput(editFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.asm.SetDraft(args[0], html); err != nil {
			return err
		}
		fmt.Printf("✏️  Updated draft for %s (%d bytes)\n", args[0], len(html))
		return s.save(ctx)
	},
}

func patchFromFlags(cmd *cobra.Command) assembly.InstructionPatch {
	var p assembly.InstructionPatch
	flags := cmd.Flags()
	if flags.Changed("purpose") {
		p.Purpose = &patchPurpose
	}
	if flags.Changed("must-include") {
		p.MustInclude = patchMustInclude
	}
	if flags.Changed("tone") {
		p.ToneRules = patchTone
	}
	if flags.Changed("win-theme") {
		p.WinThemes = patchThemes
	}
	if flags.Changed("checklist") {
		items := make([]assembly.ChecklistItem, len(patchChecklist))
		for i, c := range patchChecklist {
			items[i] = assembly.ChecklistItem{Item: c}
		}
		p.ComplianceChecklist = items
	}
	if flags.Changed("min-words") || flags.Changed("max-words") {
		p.LengthHintWords = &assembly.LengthHint{Min: patchMinWords, Max: patchMaxWords}
	}
	return p
}

// parsePositions converts 1-based CLI positions into outline indices.
func parsePositions(fromArg, toArg string) (int, int, error) {
	from, err := strconv.Atoi(fromArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid position %q", fromArg)
	}
	to, err := strconv.Atoi(toArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid position %q", toArg)
	}
	return from - 1, to - 1, nil
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}

func printOutline(a *assembly.Assembly) {
	for _, b := range a.SectionBadges() {
		marks := ""
		if b.HasInstruction {
			marks += " 📋"
		}
		if b.HasDraft {
			marks += " ✍️"
		}
		fmt.Printf("  %2d. %-40s [%s]%s\n", b.Section.Position+1, b.Section.Title, b.Section.Key, marks)
	}
}

func printChecks(res assembly.DraftResult) {
	fmt.Printf("✅ Draft ready (%d bytes)\n", len(res.HTML))
	sim := res.Checks.Similarity
	if sim.Flag {
		fmt.Printf("⚠️  Similarity %.2f: the draft reads close to an example passage\n", sim.Max)
	} else if sim.Max > 0 {
		fmt.Printf("   Similarity %.2f\n", sim.Max)
	}
	q := res.Checks.Quality
	fmt.Printf("   Quality %.2f (%d words)", q.Score, q.Words)
	if len(q.Issues) > 0 {
		fmt.Printf(": %s", strings.Join(q.Issues, ", "))
	}
	fmt.Println()
	for _, c := range res.Checks.Compliance {
		mark := "❌"
		if c.Met {
			mark = "✅"
		}
		fmt.Printf("   %s %s\n", mark, c.Item)
	}
	for _, src := range res.Sources {
		fmt.Printf("   📎 %s %s\n", src.Kind, src.ID)
	}
}
