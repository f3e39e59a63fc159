package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"taxon/internal/analysis"
	"taxon/internal/backup"
	"taxon/internal/fetch"
	"taxon/internal/knowledge"
	"taxon/internal/resolver"
	"taxon/internal/storage"
	"taxon/internal/syntax"
)

var (
	// ErrDuplicateUnit aborts a run whose queue lists the same unit twice.
	ErrDuplicateUnit = errors.New("pipeline: duplicate unit in queue")
	// ErrScope is returned for a pull request scope without a repository.
	ErrScope = errors.New("pipeline: pull request scope requires a repository")
)

// Store is the persistence the processor needs.
type Store interface {
	backup.Primary
	FindRepository(ctx context.Context, full string) (storage.Repository, error)
	PendingChanges(ctx context.Context, scope storage.Scope) ([]storage.FileChange, error)
	MarkProcessed(ctx context.Context, c storage.FileChange, status storage.Status) error
	RecordDownload(ctx context.Context, d storage.Download) error
	RecordUsage(ctx context.Context, edges []storage.Edge) (int, error)
	BeginRun(ctx context.Context, scope string) (storage.Run, error)
	FinishRun(ctx context.Context, r storage.Run) error
}

// Analyzer extracts API usage from one file.
type Analyzer interface {
	AnalyzeSource(ctx context.Context, path string, src []byte) (*analysis.Report, error)
}

// Scope limits a run. Empty processes the whole queue.
type Scope struct {
	Repo       string // owner/name
	PullNumber int
}

func (s Scope) String() string {
	switch {
	case s.Repo == "":
		return "all"
	case s.PullNumber != 0:
		return fmt.Sprintf("%s#%d", s.Repo, s.PullNumber)
	default:
		return s.Repo
	}
}

type Options struct {
	Workers  int
	Exclude  []string // doublestar patterns matched against the file path
	Analyzer Analyzer
	Backup   *backup.Store
}

// Report summarises one run.
type Report struct {
	RunID    string
	Units    int
	Counts   map[storage.Status]int
	Deferred int // left unprocessed after a degraded classification
	Failed   int
	Edges    int
	Cache    knowledge.CacheStats
	Backup   *backup.Result
	Duration time.Duration
}

type Processor struct {
	store      Store
	fetcher    fetch.Fetcher
	classifier knowledge.Classifier
	analyzer   Analyzer
	opts       Options
}

func NewProcessor(store Store, fetcher fetch.Fetcher, classifier knowledge.Classifier, opts Options) *Processor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = analysis.NewAnalyzer(nil, resolver.AllCandidates)
	}
	return &Processor{
		store:      store,
		fetcher:    fetcher,
		classifier: classifier,
		analyzer:   analyzer,
		opts:       opts,
	}
}

// ProcessFiles runs every unprocessed unit in scope. Units fail independently;
// their errors are joined into the returned error once the run finishes.
func (p *Processor) ProcessFiles(ctx context.Context, scope Scope) (*Report, error) {
	start := time.Now()

	units, err := p.loadStage(ctx, scope)
	if err != nil {
		return nil, err
	}

	run, err := p.store.BeginRun(ctx, scope.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open run: %w", err)
	}
	slog.Info("pipeline.start", "run", run.ID, "scope", scope.String(), "units", len(units), "workers", p.opts.Workers)

	before := p.cacheStats()
	report := &Report{RunID: run.ID, Units: len(units), Counts: map[storage.Status]int{}}
	failures := p.workStage(ctx, units, report)

	after := p.cacheStats()
	report.Cache = knowledge.CacheStats{Hits: after.Hits - before.Hits, Misses: after.Misses - before.Misses}

	// the ledger and backup are written even when the run was cancelled
	done := context.WithoutCancel(ctx)
	if p.opts.Backup != nil {
		res, err := backup.FlushNew(done, p.store, p.opts.Backup)
		if err != nil {
			failures = append(failures, err)
		} else {
			report.Backup = &res
		}
	}

	report.Duration = time.Since(start)
	run.Counts = report.Counts
	run.Deferred = report.Deferred
	run.Failed = report.Failed
	run.CacheHits = report.Cache.Hits
	run.Calls = report.Cache.Misses
	if err := p.store.FinishRun(done, run); err != nil {
		failures = append(failures, fmt.Errorf("failed to close run: %w", err))
	}

	slog.Info("pipeline.done", "run", run.ID, "units", report.Units, "deferred", report.Deferred,
		"failed", report.Failed, "edges", report.Edges, "cache_hits", report.Cache.Hits,
		"classifier_calls", report.Cache.Misses, "duration", report.Duration)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, errors.Join(failures...)
}

func (p *Processor) loadStage(ctx context.Context, scope Scope) ([]storage.FileChange, error) {
	if scope.PullNumber != 0 && scope.Repo == "" {
		return nil, ErrScope
	}

	var s storage.Scope
	if scope.Repo != "" {
		repo, err := p.store.FindRepository(ctx, scope.Repo)
		if err != nil {
			return nil, err
		}
		s = storage.Scope{RepoID: repo.ID, PullNumber: scope.PullNumber}
	}

	units, err := p.store.PendingChanges(ctx, s)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(units))
	for _, u := range units {
		if _, dup := seen[u.Key()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUnit, u.Key())
		}
		seen[u.Key()] = struct{}{}
	}
	return units, nil
}

func (p *Processor) workStage(ctx context.Context, units []storage.FileChange, report *Report) []error {
	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, u := range units {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := p.processUnit(gctx, u)

			mu.Lock()
			defer mu.Unlock()
			report.Edges += out.edges
			switch {
			case err != nil && gctx.Err() != nil:
				return nil
			case err != nil:
				report.Failed++
				failures = append(failures, fmt.Errorf("%s: %w", u.Key(), err))
				slog.Error("pipeline.unit_failed", "unit", u.Key(), "error", err)
			case out.deferred:
				report.Deferred++
			default:
				report.Counts[out.status]++
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

type outcome struct {
	status   storage.Status
	deferred bool
	edges    int
}

// processUnit drives one unit through download, parse and classification.
// A terminal status is written only when the unit reached it.
func (p *Processor) processUnit(ctx context.Context, u storage.FileChange) (outcome, error) {
	log := slog.With("unit", u.Key())

	finish := func(st storage.Status) (outcome, error) {
		if err := p.store.MarkProcessed(ctx, u, st); err != nil {
			if errors.Is(err, storage.ErrAlreadyProcessed) {
				log.Warn("pipeline.already_processed")
				return outcome{status: st}, nil
			}
			return outcome{}, err
		}
		log.Debug("pipeline.unit_done", "status", st)
		return outcome{status: st}, nil
	}

	if p.excluded(u.Filename) {
		return finish(storage.StatusExcluded)
	}
	if _, err := syntax.ForPath(u.Filename); err != nil {
		return finish(storage.StatusUnsupportedLanguage)
	}

	src, err := p.fetcher.Fetch(ctx, fetch.Snapshot{Owner: u.Repo.Owner, Repo: u.Repo.Name, Commit: u.Commit, Path: u.Filename})
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		log.Warn("pipeline.download_failed", "error", err)
		return finish(storage.StatusDownloadError)
	}

	sum := xxh3.Hash128(src).Bytes()
	if err := p.store.RecordDownload(ctx, storage.Download{
		Path:        u.Filename,
		Commit:      u.Commit,
		Ending:      filepath.Ext(u.Filename),
		RepoID:      u.Repo.ID,
		ContentHash: hex.EncodeToString(sum[:]),
		Size:        len(src),
	}); err != nil {
		return outcome{}, fmt.Errorf("failed to record download: %w", err)
	}

	report, err := p.analyzer.AnalyzeSource(ctx, u.Filename, src)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return outcome{}, ctx.Err()
	case errors.Is(err, syntax.ErrParse):
		log.Warn("pipeline.parse_failed", "error", err)
		return finish(storage.StatusParseError)
	case errors.Is(err, syntax.ErrUnsupportedLanguage):
		return finish(storage.StatusUnsupportedLanguage)
	default:
		return outcome{}, err
	}

	edges, deferred, err := p.classifyStage(ctx, u, report)
	if err != nil {
		return outcome{}, err
	}
	n, err := p.store.RecordUsage(ctx, edges)
	if err != nil {
		return outcome{}, fmt.Errorf("failed to record usage: %w", err)
	}
	if deferred {
		log.Info("pipeline.unit_deferred", "edges", n)
		return outcome{deferred: true, edges: n}, nil
	}

	out, err := finish(storage.StatusSuccess)
	out.edges = n
	return out, err
}

// classifyStage classifies every class before any of its functions and returns
// the usage edges of the unit. deferred is set when a classification degraded.
func (p *Processor) classifyStage(ctx context.Context, u storage.FileChange, report *analysis.Report) ([]storage.Edge, bool, error) {
	var (
		edges    []storage.Edge
		deferred bool
		domains  = make(map[string]string, len(report.Classes))
	)
	edge := func(class, function string, lines []int) storage.Edge {
		return storage.Edge{Filename: u.Filename, Commit: u.Commit, RepoID: u.Repo.ID, Class: class, Function: function, Lines: lines}
	}

	for _, class := range report.Classes {
		c, err := p.classifier.ClassifyClass(ctx, class)
		if err != nil {
			return nil, false, err
		}
		if c.Degraded {
			deferred = true
			continue
		}
		domains[class] = c.Label
		edges = append(edges, edge(class, storage.ClassEdgeFunction, report.ClassLines[class]))
	}

	for _, fu := range report.Functions {
		if fu.Class == resolver.UnknownClass {
			continue
		}
		domain, ok := domains[fu.Class]
		if !ok {
			continue
		}
		c, err := p.classifier.ClassifyFunction(ctx, fu.Class, fu.Method, domain)
		if err != nil {
			return nil, false, err
		}
		if c.Degraded {
			deferred = true
			continue
		}
		edges = append(edges, edge(fu.Class, fu.Method, fu.Lines))
	}
	return edges, deferred, nil
}

func (p *Processor) excluded(path string) bool {
	for _, pattern := range p.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func (p *Processor) cacheStats() knowledge.CacheStats {
	if s, ok := p.classifier.(interface{ Stats() knowledge.CacheStats }); ok {
		return s.Stats()
	}
	return knowledge.CacheStats{}
}
