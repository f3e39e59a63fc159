package crawler

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"taxon/internal/analysis"
	"taxon/internal/syntax"
)

// Crawler analyzes the source files of a local working tree.
type Crawler struct {
	analyzer *analysis.Analyzer
	ignored  map[string]struct{}
}

// NewCrawler creates a new crawler instance.
func NewCrawler(a *analysis.Analyzer) *Crawler {
	return &Crawler{
		analyzer: a,
		ignored:  map[string]struct{}{".git": {}, "target": {}, "build": {}, "node_modules": {}, ".gradle": {}, ".idea": {}},
	}
}

// ScanProject walks root and streams one report per supported file, with paths
// relative to root. Files matched by the root .gitignore are skipped, as are
// files that fail to parse.
func (c *Crawler) ScanProject(ctx context.Context, root string, onReport func(path string, r *analysis.Report)) error {
	gi := loadGitignore(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if _, skip := c.ignored[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if _, err := syntax.ForPath(rel); err != nil {
			return nil
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		report, err := c.analyzer.AnalyzeSource(ctx, rel, src)
		if errors.Is(err, syntax.ErrParse) {
			slog.Warn("crawler.parse_failed", "path", rel)
			return nil
		}
		if err != nil {
			return err
		}

		onReport(rel, report)
		return nil
	})
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
