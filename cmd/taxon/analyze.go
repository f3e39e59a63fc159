package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taxon/internal/analysis"
	"taxon/internal/config"
	"taxon/internal/crawler"
	"taxon/internal/resolver"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|dir>",
	Short: "Print the API usage of a local file, or a usage summary of a directory, as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		analyzer := analysis.NewAnalyzer(nil, resolver.ParsePolicy(cfg.Pipeline.Ambiguity))

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}

		var out any
		if info.IsDir() {
			summary := newUsageSummary()
			if err := crawler.NewCrawler(analyzer).ScanProject(ctx, args[0], summary.add); err != nil {
				return err
			}
			out = summary
		} else {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if out, err = analyzer.AnalyzeSource(ctx, args[0], src); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// usageSummary counts, per class and per function, the files using it.
type usageSummary struct {
	Files     []string       `json:"files"`
	Classes   map[string]int `json:"classes"`
	Functions map[string]int `json:"functions"`
}

func newUsageSummary() *usageSummary {
	return &usageSummary{Classes: map[string]int{}, Functions: map[string]int{}}
}

func (s *usageSummary) add(path string, r *analysis.Report) {
	s.Files = append(s.Files, path)
	for _, c := range r.Classes {
		s.Classes[c]++
	}
	for _, fu := range r.Functions {
		if fu.Class == resolver.UnknownClass {
			continue
		}
		s.Functions[fu.Key()]++
	}
}
