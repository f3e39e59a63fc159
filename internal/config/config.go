package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "taxon.yaml"

type Config struct {
	Store struct {
		Path   string `yaml:"path"`
		Backup string `yaml:"backup"` // empty disables backup flushing
	} `yaml:"store"`
	AI struct {
		Provider   string        `yaml:"provider"` // openai, gemini or dry-run
		Model      string        `yaml:"model"`
		APIKey     string        `yaml:"api_key"`
		BaseURL    string        `yaml:"base_url"`
		Timeout    time.Duration `yaml:"timeout"`
		Attempts   int           `yaml:"attempts"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"ai"`
	Taxonomy struct {
		Path string `yaml:"path"`
	} `yaml:"taxonomy"`
	Pipeline struct {
		Workers   int      `yaml:"workers"`
		Exclude   []string `yaml:"exclude"`
		Ambiguity string   `yaml:"ambiguity"` // all or first
	} `yaml:"pipeline"`
	Fetch struct {
		Source  string        `yaml:"source"` // github or git
		BaseURL string        `yaml:"base_url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
		RepoDir string        `yaml:"repo_dir"`
	} `yaml:"fetch"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Store.Path = "taxon.db"
	cfg.AI.Provider = "openai"
	cfg.AI.Timeout = 90 * time.Second
	cfg.AI.Attempts = 3
	cfg.AI.RetryDelay = 2 * time.Second
	cfg.Taxonomy.Path = "taxonomy.yaml"
	cfg.Pipeline.Workers = 4
	cfg.Pipeline.Ambiguity = "all"
	cfg.Fetch.Source = "github"
	cfg.Fetch.Timeout = 30 * time.Second
	return &cfg
}

// LoadConfig reads .env, then the YAML file over the defaults, then environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if provider := os.Getenv("TAXON_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if model := os.Getenv("TAXON_AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}
	if apiKey := os.Getenv("TAXON_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if cfg.AI.APIKey == "" {
		switch strings.ToLower(cfg.AI.Provider) {
		case "openai":
			cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			cfg.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && cfg.Fetch.Token == "" {
		cfg.Fetch.Token = token
	}
}
