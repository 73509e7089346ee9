package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"propdraft/internal/assembly"
	"propdraft/internal/autosave"
	"propdraft/internal/generation"
	"propdraft/internal/render"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().BoolVar(&shellOffline, "offline", false, "Run without an LLM provider; generation commands are disabled")
}

var shellOffline bool

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with live autosave of drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, !shellOffline)
		if err != nil {
			return err
		}
		defer s.Close()

		coord := autosave.New(s.asm, autosave.Options{
			Delay:   cfg.Autosave.Delay,
			Timeout: cfg.Autosave.Timeout,
			Logger:  logger,
		})
		s.asm.OnDraftChange(coord.Notify)

		fmt.Printf("📁 %s (project %s). Type 'help' for commands, 'quit' to leave.\n", s.asm.Title(), s.project.ID())
		fmt.Println(s.asm.Status())

		sh := newShell(s, cmd.InOrStdin(), cmd.OutOrStdout())
		runErr := sh.run(ctx)

		flushed, err := coord.Flush(ctx)
		if err != nil {
			logger.Warn("final autosave failed", zap.Error(err))
		}
		coord.Close()
		// Autosave skips draftless assemblies, so a flush alone does not
		// cover outline-only edits.
		if sh.dirty && (!flushed || len(s.asm.DraftKeys()) == 0) {
			if err := s.save(ctx); err != nil {
				return err
			}
		}
		stats := coord.Stats()
		logger.Debug("shell closed", zap.Int("autosaves", stats.Saves), zap.Int("dropped", stats.Dropped), zap.Int("failures", stats.Failures))
		return runErr
	},
}

var errQuit = errors.New("quit")

type shellHandler func(ctx context.Context, args []string) error

// shell is the line-oriented editing loop over one session.
type shell struct {
	s     *session
	view  *assembly.SectionView
	in    *bufio.Scanner
	out   io.Writer
	dirty bool

	handlers map[string]shellHandler
}

func newShell(s *session, in io.Reader, out io.Writer) *shell {
	sh := &shell{
		s:    s,
		view: assembly.NewSectionView(s.asm),
		in:   bufio.NewScanner(in),
		out:  out,
	}
	sh.in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sh.handlers = map[string]shellHandler{
		"help":         sh.help,
		"outline":      sh.outline,
		"add":          sh.add,
		"rename":       sh.rename,
		"remove":       sh.remove,
		"move":         sh.move,
		"instructions": sh.instructions,
		"show":         sh.show,
		"expand":       sh.expand,
		"collapse":     sh.collapse,
		"draft":        sh.draft,
		"edit":         sh.edit,
		"tone":         sh.tone,
		"example":      sh.example,
		"save":         sh.save,
		"status":       sh.status,
		"export":       sh.export,
		"preview":      sh.preview,
		"quit":         func(context.Context, []string) error { return errQuit },
		"exit":         func(context.Context, []string) error { return errQuit },
	}
	return sh
}

// run reads commands until quit or end of input.
func (sh *shell) run(ctx context.Context) error {
	for {
		fmt.Fprint(sh.out, "propdraft> ")
		if !sh.in.Scan() {
			fmt.Fprintln(sh.out)
			return sh.in.Err()
		}
		if err := sh.exec(ctx, sh.in.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(sh.out, "❌ %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (sh *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	h, ok := sh.handlers[strings.ToLower(fields[0])]
	if !ok {
		return fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}
	err := h(ctx, fields[1:])
	sh.view.Prune()
	return err
}

func (sh *shell) help(context.Context, []string) error {
	fmt.Fprint(sh.out, `Commands:
  outline [topic]          generate a fresh outline (drops instructions and drafts)
  add <title>              append a section
  rename <key> <title>     retitle a section
  remove <key>             remove a section with its instructions and draft
  move <from> <to>         move a section between 1-based positions
  instructions             generate instruction sheets for every section
  show <key>               print a section's instruction sheet and draft
  draft <key>              generate a section draft
  edit <key>               type replacement HTML, end with a line holding only "."
  tone <key> <rule>        append a tone rule to a section's instructions
  example <id>             toggle an example in the drafting selection
  save                     save a new version now
  status                   show the outline with badges; expanded sections show detail
  expand <key>             toggle the detail of a section in status
  collapse <key>           toggle hiding the draft of an expanded section
  export <html|md> <file>  write the compiled document
  preview                  render the compiled document here
  quit                     flush autosave and leave
`)
	return nil
}

func (sh *shell) outline(ctx context.Context, args []string) error {
	if _, err := sh.s.asm.GenerateOutline(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	sh.dirty = true
	return sh.status(ctx, nil)
}

func (sh *shell) add(ctx context.Context, args []string) error {
	sec, ok := sh.s.asm.AddSection(strings.Join(args, " "))
	if !ok {
		return fmt.Errorf("usage: add <title>")
	}
	sh.dirty = true
	fmt.Fprintf(sh.out, "➕ Added %q as %s\n", sec.Title, sec.Key)
	return nil
}

func (sh *shell) rename(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: rename <key> <title>")
	}
	if !sh.s.asm.RenameSection(args[0], strings.Join(args[1:], " ")) {
		return fmt.Errorf("rename %q: %w", args[0], assembly.ErrUnknownSection)
	}
	sh.dirty = true
	return nil
}

func (sh *shell) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: remove <key>")
	}
	if !sh.s.asm.RemoveSection(args[0]) {
		return fmt.Errorf("remove %q: %w", args[0], assembly.ErrUnknownSection)
	}
	sh.dirty = true
	fmt.Fprintf(sh.out, "🗑️  Removed %s\n", args[0])
	return nil
}

func (sh *shell) move(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: move <from> <to>")
	}
	from, to, err := parsePositions(args[0], args[1])
	if err != nil {
		return err
	}
	if !sh.s.asm.MoveSection(from, to) {
		return fmt.Errorf("move %s -> %s: position out of range", args[0], args[1])
	}
	sh.dirty = true
	return sh.status(ctx, nil)
}

func (sh *shell) instructions(ctx context.Context, args []string) error {
	n, err := sh.s.asm.GenerateInstructions(ctx)
	if err != nil {
		return err
	}
	sh.dirty = true
	fmt.Fprintf(sh.out, "📋 %d instruction sheets generated\n", n)
	return nil
}

func (sh *shell) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show <key>")
	}
	key := args[0]
	if !sh.view.SetActive(key) {
		return fmt.Errorf("show %q: %w", key, assembly.ErrUnknownSection)
	}
	if sheet, ok := sh.s.asm.Instruction(key); ok {
		b, err := json.MarshalIndent(sheet, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, string(b))
	} else {
		fmt.Fprintln(sh.out, "(no instruction sheet)")
	}
	if html, ok := sh.s.asm.Draft(key); ok {
		fmt.Fprintln(sh.out, html)
	} else {
		fmt.Fprintln(sh.out, "(not drafted)")
	}
	return nil
}

func (sh *shell) draft(ctx context.Context, args []string) error {
	key := sh.view.Active()
	if len(args) == 1 {
		key = args[0]
	}
	if key == "" {
		return fmt.Errorf("usage: draft <key>")
	}
	res, err := sh.s.asm.DraftSection(ctx, key)
	if err != nil {
		return err
	}
	sh.dirty = true
	fmt.Fprintf(sh.out, "✍️  Drafted %s (%d bytes, similarity %.2f)\n", key, len(res.HTML), res.Checks.Similarity.Max)
	if res.Checks.Similarity.Flag {
		fmt.Fprintln(sh.out, "⚠️  The draft reads close to an example passage")
	}
	return nil
}

// edit collects replacement HTML into the view's buffer and commits it once
// the terminating "." line arrives.
func (sh *shell) edit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: edit <key>")
	}
	key := args[0]
	if err := sh.view.StartDraftEdit(key); err != nil {
		return fmt.Errorf("edit %q: %w", key, err)
	}
	fmt.Fprintln(sh.out, `Enter HTML; finish with "." on its own line.`)

	var lines []string
	for sh.in.Scan() {
		line := sh.in.Text()
		if line == "." {
			sh.view.UpdateDraftBuffer(strings.Join(lines, "\n"))
			if err := sh.view.CommitDraftEdit(key); err != nil {
				return err
			}
			sh.dirty = true
			fmt.Fprintf(sh.out, "✏️  Updated draft for %s\n", key)
			return nil
		}
		lines = append(lines, line)
	}
	sh.view.CancelDraftEdit()
	if err := sh.in.Err(); err != nil {
		return err
	}
	return fmt.Errorf("edit %q: input ended before \".\"", key)
}

func (sh *shell) tone(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: tone <key> <rule>")
	}
	key := args[0]
	if !sh.view.StartInstructionEdit(key) {
		return fmt.Errorf("tone %q: %w", key, assembly.ErrNoInstruction)
	}
	sheet, _ := sh.s.asm.Instruction(key)
	rules := append(sheet.ToneRules, strings.Join(args[1:], " "))
	if !sh.view.SaveInstructionEdit(assembly.InstructionPatch{ToneRules: rules}) {
		return fmt.Errorf("tone %q: %w", key, assembly.ErrNoInstruction)
	}
	sh.dirty = true
	return nil
}

func (sh *shell) example(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: example <id>")
	}
	if sh.s.asm.ToggleExample(args[0]) {
		fmt.Fprintf(sh.out, "☑️  Selected %s\n", args[0])
	} else {
		fmt.Fprintf(sh.out, "⬜ Deselected %s\n", args[0])
	}
	sh.dirty = true
	return nil
}

func (sh *shell) save(ctx context.Context, args []string) error {
	rec, err := sh.s.asm.Save(ctx)
	if err != nil {
		return err
	}
	sh.dirty = false
	fmt.Fprintf(sh.out, "💾 Saved version %s\n", rec.ID)
	return nil
}

func (sh *shell) status(ctx context.Context, args []string) error {
	fmt.Fprintln(sh.out, sh.s.asm.Status())
	active := sh.view.Active()
	for _, b := range sh.s.asm.SectionBadges() {
		cursor := " "
		if b.Section.Key == active {
			cursor = ">"
		}
		marks := ""
		if b.HasInstruction {
			marks += " 📋"
		}
		if b.HasDraft {
			marks += " ✍️"
		}
		fmt.Fprintf(sh.out, "%s %2d. %s [%s]%s\n", cursor, b.Section.Position+1, b.Section.Title, b.Section.Key, marks)
		if sh.view.Expanded(b.Section.Key) {
			sh.printDetail(b)
		}
	}
	return nil
}

// printDetail is the expanded form of a status line.
func (sh *shell) printDetail(b assembly.SectionBadge) {
	key := b.Section.Key
	if sheet, ok := sh.s.asm.Instruction(key); ok {
		fmt.Fprintf(sh.out, "       purpose: %s\n", sheet.Purpose)
		fmt.Fprintf(sh.out, "       length:  %d-%d words\n", sheet.LengthHintWords.Min, sheet.LengthHintWords.Max)
	}
	if !b.HasDraft {
		return
	}
	if sh.view.DraftCollapsed(key) {
		fmt.Fprintln(sh.out, "       draft:   (collapsed)")
		return
	}
	html, _ := sh.s.asm.Draft(key)
	fmt.Fprintf(sh.out, "       draft:   %s\n", excerpt(generation.TextContent(html), draftExcerptLen))
}

const draftExcerptLen = 120

func excerpt(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func (sh *shell) expand(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: expand <key>")
	}
	if !sh.view.SetActive(args[0]) {
		return fmt.Errorf("expand %q: %w", args[0], assembly.ErrUnknownSection)
	}
	sh.view.ToggleExpanded(args[0])
	return sh.status(ctx, nil)
}

func (sh *shell) collapse(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: collapse <key>")
	}
	if sh.s.asm.DraftState(args[0]) != assembly.Drafted {
		return fmt.Errorf("collapse %q: no draft", args[0])
	}
	sh.view.ToggleDraftCollapsed(args[0])
	return sh.status(ctx, nil)
}

func (sh *shell) export(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: export <html|md> <file>")
	}
	out, err := renderDocument(sh.s.asm.Snapshot(), args[0])
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[1], []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[1], err)
	}
	fmt.Fprintf(sh.out, "📄 Exported %s\n", args[1])
	return nil
}

func (sh *shell) preview(ctx context.Context, args []string) error {
	out, err := render.Terminal(sh.s.asm.Snapshot(), render.DefaultWrap)
	if err != nil {
		return err
	}
	fmt.Fprint(sh.out, out)
	return nil
}
