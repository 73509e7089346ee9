package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath       = "propdraft.yaml"
	defaultProject    = "default"
	defaultProvider   = "gemini"
	defaultModel      = "gemini-2.5-flash"
	defaultEmbedModel = "gemini-embedding-001"
	defaultDBPath     = "propdraft.db"
	defaultLogLevel   = "info"
)

// defaultTemperature is seeded before decoding so an explicit 0 in the file
// survives.
const defaultTemperature = 0.1

type Config struct {
	Project struct {
		ID    string `yaml:"id"`
		Title string `yaml:"title"`
	} `yaml:"project"`
	AI struct {
		Provider       string  `yaml:"provider"`
		Model          string  `yaml:"model"`           // chat model for outline, instructions and drafts
		EmbeddingModel string  `yaml:"embedding_model"` // empty disables the similarity check
		APIKey         string  `yaml:"api_key"`
		BaseURL        string  `yaml:"base_url"`
		Dimension      int     `yaml:"dimension"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"ai"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Autosave struct {
		Delay   time.Duration `yaml:"delay"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"autosave"`
	Drafting struct {
		UseKnowledgeBase       bool    `yaml:"use_knowledge_base"`
		RejectStaleDrafts      bool    `yaml:"reject_stale_drafts"`
		SimilarityThreshold    float64 `yaml:"similarity_threshold"`
		InstructionConcurrency int     `yaml:"instruction_concurrency"`
		ExamplePassages        int     `yaml:"example_passages"`
	} `yaml:"drafting"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.AI.Temperature = defaultTemperature
	cfg.applyDefaults()
	return &cfg
}

// LoadConfig reads .env, then the YAML file at path, then environment
// overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	var cfg Config
	cfg.AI.Temperature = defaultTemperature
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if apiKey := os.Getenv("PROPDRAFT_API_KEY"); apiKey != "" {
		c.AI.APIKey = apiKey
	}
	if provider := os.Getenv("PROPDRAFT_AI_PROVIDER"); provider != "" {
		c.AI.Provider = provider
	}
	if model := os.Getenv("PROPDRAFT_AI_MODEL"); model != "" {
		c.AI.Model = model
	}
	if db := os.Getenv("PROPDRAFT_DB"); db != "" {
		c.Storage.Path = db
	}
	if project := os.Getenv("PROPDRAFT_PROJECT"); project != "" {
		c.Project.ID = project
	}
	if level := os.Getenv("PROPDRAFT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if delay := os.Getenv("PROPDRAFT_AUTOSAVE_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("PROPDRAFT_AUTOSAVE_DELAY: %w", err)
		}
		c.Autosave.Delay = d
	}
	if kb := os.Getenv("PROPDRAFT_USE_KB"); kb != "" {
		v, err := strconv.ParseBool(kb)
		if err != nil {
			return fmt.Errorf("PROPDRAFT_USE_KB: %w", err)
		}
		c.Drafting.UseKnowledgeBase = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Project.ID) == "" {
		c.Project.ID = defaultProject
	}
	if strings.TrimSpace(c.AI.Provider) == "" {
		c.AI.Provider = defaultProvider
	}
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	if c.AI.Model == "" && c.AI.Provider == defaultProvider {
		c.AI.Model = defaultModel
		if c.AI.EmbeddingModel == "" {
			c.AI.EmbeddingModel = defaultEmbedModel
		}
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultDBPath
	}
	if c.Autosave.Delay <= 0 {
		c.Autosave.Delay = 5 * time.Second
	}
	if c.Autosave.Timeout <= 0 {
		c.Autosave.Timeout = 30 * time.Second
	}
	if c.Drafting.SimilarityThreshold <= 0 {
		c.Drafting.SimilarityThreshold = 0.92
	}
	if c.Drafting.InstructionConcurrency <= 0 {
		c.Drafting.InstructionConcurrency = 4
	}
	if c.Drafting.ExamplePassages <= 0 {
		c.Drafting.ExamplePassages = 8
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}
