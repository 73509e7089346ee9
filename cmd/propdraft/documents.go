package main

import (
	"fmt"
	"os"
	"strings"

	"propdraft/internal/assembly"
	"propdraft/internal/render"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(previewCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "html", "Output format: html or md")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to this file instead of stdout")
	previewCmd.Flags().IntVarP(&previewWidth, "width", "w", render.DefaultWrap, "Wrap width")
}

var (
	exportFormat string
	exportOut    string
	previewWidth int
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current assembly as a new version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.save(ctx)
	},
}

var loadCmd = &cobra.Command{
	Use:   "load [version-id]",
	Short: "Show the latest draft, or restore an earlier version as the latest",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if len(args) == 0 {
			fmt.Println(s.asm.Status())
			printOutline(s.asm)
			return nil
		}

		snap, err := s.project.LoadVersion(ctx, args[0])
		if err != nil {
			return err
		}
		n, nInstr, nDrafts := s.asm.Restore(snap)
		fmt.Printf("⏪ Restored version %s: %d sections (%d instructions, %d drafts)\n", args[0], n, nInstr, nDrafts)
		return s.save(ctx)
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List saved versions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		versions, err := s.project.Versions(ctx)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Printf("No saved versions for project %s\n", s.project.ID())
			return nil
		}
		for _, v := range versions {
			fmt.Printf("%s  %s  %-30s %d sections, %d instructions, %d drafts\n",
				v.ID, v.SavedAt.Format("2006-01-02 15:04:05"), v.Title, v.Sections, v.Instructions, v.Drafts)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the compiled document as HTML or Markdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		out, err := renderDocument(s.asm.Snapshot(), exportFormat)
		if err != nil {
			return err
		}
		if exportOut == "" {
			fmt.Print(out)
			return nil
		}
		if err := os.WriteFile(exportOut, []byte(out), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOut, err)
		}
		fmt.Printf("📄 Exported %s\n", exportOut)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outline with instruction and draft badges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("📁 %s (project %s, db %s)\n", s.asm.Title(), s.project.ID(), cfg.Storage.Path)
		fmt.Println(s.asm.Status())
		printOutline(s.asm)
		if keys := s.asm.InstructionKeys(); len(keys) > 0 {
			fmt.Printf("Instructions: %s\n", strings.Join(keys, ", "))
		}
		if keys := s.asm.DraftKeys(); len(keys) > 0 {
			fmt.Printf("Drafts: %s\n", strings.Join(keys, ", "))
		}
		if ids := s.asm.SelectedExamples(); len(ids) > 0 {
			fmt.Printf("Examples: %s\n", strings.Join(ids, ", "))
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the compiled document in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		out, err := render.Terminal(s.asm.Snapshot(), previewWidth)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func renderDocument(snap assembly.DocumentSnapshot, format string) (string, error) {
	switch strings.ToLower(format) {
	case "html":
		return render.HTML(snap)
	case "md", "markdown":
		return render.Markdown(snap)
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}
