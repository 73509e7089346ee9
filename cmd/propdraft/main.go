package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"propdraft/internal/assembly"
	"propdraft/internal/config"
	"propdraft/internal/generation"
	"propdraft/internal/logging"
	"propdraft/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rootCmd = &cobra.Command{
		Use:   "propdraft",
		Short: "AI-assisted proposal drafting",
		Long: `propdraft assembles a proposal from an outline, per-section instruction
sheets and generated section drafts, and keeps every save as a version.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	configPath string
	dbPath     string
	projectID  string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the proposal database (SQLite); overrides the config")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", "", "Project id; overrides the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// setup loads configuration and builds the logger before any command runs.
func setup() error {
	loaded, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		loaded.Storage.Path = dbPath
	}
	if projectID != "" {
		loaded.Project.ID = projectID
	}
	cfg = loaded

	logger, err = logging.New(cfg.Log.Level, verbose, "")
	if err != nil {
		return err
	}
	return nil
}

// session is one opened project: its database, its persistence adapter and
// the assembly restored from the latest snapshot.
type session struct {
	store   *storage.SQLiteStore
	project *storage.Project
	asm     *assembly.Assembly
}

// openSession opens the database and restores the latest snapshot. When
// withGenerator is set the configured LLM provider is wired in as well.
func openSession(ctx context.Context, withGenerator bool) (*session, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var gen assembly.Generator
	if withGenerator {
		gateway, err := initGateway(ctx, store)
		if err != nil {
			store.Close()
			return nil, err
		}
		gen = gateway
	}

	project := storage.ForProject(store, cfg.Project.ID)
	asm := assembly.New(gen, project, assembly.Options{
		Title:             cfg.Project.Title,
		UseKnowledgeBase:  cfg.Drafting.UseKnowledgeBase,
		RejectStaleDrafts: cfg.Drafting.RejectStaleDrafts,
		Logger:            logger.Named("assembly"),
	})
	if _, err := asm.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return &session{store: store, project: project, asm: asm}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// save persists the assembly and reports the new version.
func (s *session) save(ctx context.Context) error {
	rec, err := s.asm.Save(ctx)
	if errors.Is(err, assembly.ErrNothingToSave) {
		fmt.Println("ℹ️  Nothing to save yet.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("💾 Saved version %s (%s)\n", rec.ID, rec.SavedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// initGateway builds the Generation Gateway for the configured provider.
func initGateway(ctx context.Context, passages generation.PassageSource) (*generation.Gateway, error) {
	if cfg.AI.APIKey == "" && cfg.AI.Provider != "ollama" {
		return nil, fmt.Errorf("AI API key not configured (set ai.api_key or PROPDRAFT_API_KEY)")
	}

	opts := generation.ProviderOptions{
		Provider:       cfg.AI.Provider,
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		EmbeddingModel: cfg.AI.EmbeddingModel,
		Dimension:      cfg.AI.Dimension,
		BaseURL:        cfg.AI.BaseURL,
		Temperature:    cfg.AI.Temperature,
	}

	completer, err := generation.NewCompleter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create completer: %w", err)
	}
	embedder, err := generation.NewEmbedder(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return generation.NewGateway(completer, generation.Options{
		Embedder:            embedder,
		Passages:            passages,
		Concurrency:         cfg.Drafting.InstructionConcurrency,
		PassageLimit:        cfg.Drafting.ExamplePassages,
		SimilarityThreshold: cfg.Drafting.SimilarityThreshold,
		Logger:              logger,
	}), nil
}
