package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"taxon/internal/analysis"
	"taxon/internal/backup"
	"taxon/internal/pipeline"
	"taxon/internal/resolver"
	"taxon/internal/storage"
)

var (
	processRepo    string
	processPR      int
	processWorkers int
)

func init() {
	processCmd.Flags().StringVar(&processRepo, "repo", "", "Limit the run to one repository (owner/name)")
	processCmd.Flags().IntVar(&processPR, "pr", 0, "Limit the run to one pull request of --repo")
	processCmd.Flags().IntVarP(&processWorkers, "workers", "w", 0, "Concurrent units (default from config)")
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Classify the API usage of every unprocessed file change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, store, err := initStore()
		if err != nil {
			return err
		}
		defer store.Close()

		classifier, err := initClassifier(ctx, cfg, store)
		if err != nil {
			return err
		}
		fetcher, err := initFetcher(cfg)
		if err != nil {
			return err
		}

		opts := pipeline.Options{
			Workers:  cfg.Pipeline.Workers,
			Exclude:  cfg.Pipeline.Exclude,
			Analyzer: analysis.NewAnalyzer(nil, resolver.ParsePolicy(cfg.Pipeline.Ambiguity)),
		}
		if processWorkers > 0 {
			opts.Workers = processWorkers
		}
		if cfg.Store.Backup != "" {
			b, err := backup.Open(cfg.Store.Backup)
			if err != nil {
				return fmt.Errorf("failed to open backup: %w", err)
			}
			defer b.Close()
			opts.Backup = b
		}

		scope := pipeline.Scope{Repo: processRepo, PullNumber: processPR}
		fmt.Printf("🚀 Processing %s with %d workers...\n", scope, opts.Workers)

		report, err := pipeline.NewProcessor(store, fetcher, classifier, opts).ProcessFiles(ctx, scope)
		if report != nil {
			printReport(report)
		}
		return err
	},
}

func printReport(r *pipeline.Report) {
	fmt.Printf("✅ Run %s: %d units in %v\n", r.RunID, r.Units, r.Duration.Round(time.Millisecond))
	statuses := make([]string, 0, len(r.Counts))
	for st := range r.Counts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Printf("  -> %-22s %d\n", st, r.Counts[storage.Status(st)])
	}
	if r.Deferred > 0 {
		fmt.Printf("  -> %-22s %d (left for the next run)\n", "deferred", r.Deferred)
	}
	if r.Failed > 0 {
		fmt.Printf("  -> %-22s %d\n", "failed", r.Failed)
	}
	fmt.Printf("📊 %d usage edges, %d cache hits, %d classifier calls\n", r.Edges, r.Cache.Hits, r.Cache.Misses)
	if r.Backup != nil {
		fmt.Printf("💾 Backup: %d classes, %d functions copied\n", r.Backup.InsertedClasses, r.Backup.InsertedFunctions)
	}
}
