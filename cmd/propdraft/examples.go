package main

import (
	"fmt"
	"strings"

	"propdraft/internal/assembly"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(examplesCmd)
	examplesCmd.AddCommand(examplesListCmd)
	examplesCmd.AddCommand(examplesAddCmd)
	examplesCmd.AddCommand(examplesRemoveCmd)
	examplesCmd.AddCommand(examplesSelectCmd)
	examplesCmd.AddCommand(examplesClearCmd)

	f := examplesAddCmd.Flags()
	f.StringVar(&newExample.ID, "id", "", "Example id (generated when empty)")
	f.StringVar(&newExample.ClientType, "client-type", "", "Client type, e.g. federal")
	f.StringVar(&newExample.Domain, "domain", "", "Subject domain")
	f.StringVar(&newExample.ContractVehicle, "vehicle", "", "Contract vehicle")
	f.StringVar(&newExample.ComplexityTier, "tier", "", "Complexity tier")
	f.StringSliceVar(&newExample.Tags, "tag", nil, "Tags (repeatable or comma separated)")
	f.StringArrayVar(&exampleSections, "section", nil, "Section passage as key=path/to/file (repeatable)")
}

var (
	newExample      assembly.Example
	exampleSections []string
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Manage the example catalog and the examples selected for drafting",
}

var examplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog examples; selected ones are marked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		var catalog assembly.ExampleCatalog = s.store
		examples, err := catalog.ListExamples(ctx)
		if err != nil {
			return err
		}
		selected := make(map[string]bool)
		for _, id := range s.asm.SelectedExamples() {
			selected[id] = true
		}
		if len(examples) == 0 {
			fmt.Println("No examples in the catalog. Add one with 'propdraft examples add'.")
		}
		for _, ex := range examples {
			mark := " "
			if selected[ex.ID] {
				mark = "*"
			}
			meta := []string{}
			for _, v := range []string{ex.ClientType, ex.Domain, ex.ContractVehicle, ex.ComplexityTier} {
				if v != "" {
					meta = append(meta, v)
				}
			}
			meta = append(meta, ex.Tags...)
			fmt.Printf("%s %s  %s  %s\n", mark, ex.ID, ex.Title, strings.Join(meta, ", "))
		}
		return nil
	},
}

var examplesAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add or update a catalog example with per-section passages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passages := make(map[string]string, len(exampleSections))
		for _, arg := range exampleSections {
			key, path, ok := strings.Cut(arg, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return fmt.Errorf("invalid --section %q, want key=path", arg)
			}
			text, err := readInput(path)
			if err != nil {
				return err
			}
			passages[assembly.DeriveKey(key)] = text
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		ex := newExample
		ex.Title = strings.Join(args, " ")
		id, err := s.store.UpsertExample(ctx, ex)
		if err != nil {
			return err
		}
		for key, text := range passages {
			if err := s.store.PutExampleSection(ctx, id, key, text); err != nil {
				return err
			}
		}
		fmt.Printf("📚 Example %s saved with %d section passages\n", id, len(passages))
		return nil
	},
}

var examplesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete an example and its passages from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.store.DeleteExample(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("🗑️  Removed example %s\n", args[0])
		return nil
	},
}

var examplesSelectCmd = &cobra.Command{
	Use:   "select <id>...",
	Short: "Toggle examples in the drafting selection",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		for _, id := range args {
			if s.asm.ToggleExample(id) {
				fmt.Printf("☑️  Selected %s\n", id)
			} else {
				fmt.Printf("⬜ Deselected %s\n", id)
			}
		}
		return s.save(ctx)
	},
}

var examplesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the drafting selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		s.asm.ReplaceExamples(nil)
		fmt.Println("⬜ Example selection cleared")
		return s.save(ctx)
	},
}
