package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"taxon/internal/config"
	"taxon/internal/fetch"
	"taxon/internal/knowledge"
	"taxon/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:           "taxon",
		Short:         "Classify the library APIs a code base uses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	configPath string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every unit")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(backupCmd)
}

// initStore loads the configuration and opens the primary database.
func initStore() (*config.Config, *storage.SQLiteStore, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, store, nil
}

// initClassifier builds the cached classifier chain configured under ai.
func initClassifier(ctx context.Context, cfg *config.Config, store knowledge.CacheStore) (*knowledge.CachedClassifier, error) {
	taxonomy, err := knowledge.LoadTaxonomy(cfg.Taxonomy.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}

	var inner knowledge.Classifier
	switch strings.ToLower(cfg.AI.Provider) {
	case "dry-run", "dryrun":
		inner = knowledge.NewDryRunClassifier(taxonomy)
	default:
		if cfg.AI.APIKey == "" {
			return nil, fmt.Errorf("AI API key not configured for provider %q", cfg.AI.Provider)
		}
		gen, err := knowledge.NewGenerator(ctx, knowledge.GeneratorOptions{
			Provider: cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			Model:    cfg.AI.Model,
			BaseURL:  cfg.AI.BaseURL,
			Timeout:  cfg.AI.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
		inner = knowledge.NewRetryClassifier(knowledge.NewLLMClassifier(gen, taxonomy), cfg.AI.Attempts, cfg.AI.RetryDelay)
	}
	return knowledge.NewCachedClassifier(inner, store), nil
}

func initFetcher(cfg *config.Config) (fetch.Fetcher, error) {
	switch strings.ToLower(cfg.Fetch.Source) {
	case "git":
		if cfg.Fetch.RepoDir == "" {
			return nil, fmt.Errorf("fetch.repo_dir is required for the git source")
		}
		return fetch.NewGitFetcher(cfg.Fetch.RepoDir), nil
	case "", "github":
		return fetch.NewGitHubFetcher(cfg.Fetch.BaseURL, cfg.Fetch.Token, cfg.Fetch.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported fetch source: %s", cfg.Fetch.Source)
	}
}

// repoID resolves an optional --repo flag. Empty means every repository.
func repoID(ctx context.Context, store *storage.SQLiteStore, full string) (int64, error) {
	if full == "" {
		return 0, nil
	}
	repo, err := store.FindRepository(ctx, full)
	if err != nil {
		return 0, err
	}
	return repo.ID, nil
}
