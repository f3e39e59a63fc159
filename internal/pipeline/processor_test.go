package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxon/internal/backup"
	"taxon/internal/fetch"
	"taxon/internal/knowledge"
	"taxon/internal/storage"
)

const listUser = `import java.util.List;
import java.util.ArrayList;

class Box {
    void fill(Object y) {
        List x = new ArrayList();
        x.add(y);
        Foo f = null;
        f.run();
    }
}
`

type fakeFetcher struct {
	mu     sync.Mutex
	files  map[string]string
	fail   map[string]error
	calls  map[string]int
	onCall func()
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{files: map[string]string{}, fail: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, s fetch.Snapshot) ([]byte, error) {
	f.mu.Lock()
	f.calls[s.Path]++
	body, ok := f.files[s.Path]
	err := f.fail[s.Path]
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", fetch.ErrDownload, fetch.ErrNotFound, s)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// countingClassifier labels everything and counts external calls.
type countingClassifier struct {
	classes   atomic.Int64
	functions atomic.Int64

	degradeClass string
	failFunction error
}

func (c *countingClassifier) ClassifyClass(_ context.Context, class string) (knowledge.Classification, error) {
	c.classes.Add(1)
	if class == c.degradeClass {
		return knowledge.Classification{Label: knowledge.UnclassifiedLabel, Degraded: true}, nil
	}
	return knowledge.Classification{Label: "Data Structure", Description: "collections"}, nil
}

func (c *countingClassifier) ClassifyFunction(_ context.Context, class, function, domain string) (knowledge.Classification, error) {
	c.functions.Add(1)
	if c.failFunction != nil {
		return knowledge.Classification{}, c.failFunction
	}
	return knowledge.Classification{Label: "Linear Structures"}, nil
}

type env struct {
	store   *storage.SQLiteStore
	repo    storage.Repository
	fetcher *fakeFetcher
	inner   *countingClassifier
	cached  *knowledge.CachedClassifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "taxon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repo, err := store.AllocateRepository(context.Background(), "acme/app")
	require.NoError(t, err)

	inner := &countingClassifier{}
	return &env{
		store:   store,
		repo:    repo,
		fetcher: newFakeFetcher(),
		inner:   inner,
		cached:  knowledge.NewCachedClassifier(inner, store),
	}
}

func (e *env) enqueue(t *testing.T, changes ...storage.FileChange) {
	t.Helper()
	for i := range changes {
		changes[i].Repo = e.repo
	}
	_, err := e.store.EnqueueChanges(context.Background(), changes)
	require.NoError(t, err)
}

func (e *env) processor(opts Options) *Processor {
	return NewProcessor(e.store, e.fetcher, e.cached, opts)
}

func (e *env) status(t *testing.T, file, commit string) storage.Status {
	t.Helper()
	st, err := e.store.ChangeStatus(context.Background(), file, commit, e.repo.ID)
	require.NoError(t, err)
	return st
}

func TestProcessFiles_SuccessRecordsUsage(t *testing.T) {
	e := newEnv(t)
	e.fetcher.files["src/Box.java"] = listUser
	e.enqueue(t, storage.FileChange{Filename: "src/Box.java", Commit: "c1"})

	report, err := e.processor(Options{Workers: 2}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts[storage.StatusSuccess])
	assert.Equal(t, 3, report.Edges)
	assert.EqualValues(t, 3, report.Cache.Misses)
	assert.Equal(t, storage.StatusSuccess, e.status(t, "src/Box.java", "c1"))

	usage, err := e.store.Usage(context.Background(), "src/Box.java", "c1", e.repo.ID)
	require.NoError(t, err)
	require.Len(t, usage, 3)
	assert.Equal(t, "java.util.ArrayList", usage[0].Class)
	assert.Equal(t, storage.ClassEdgeFunction, usage[0].Function)
	assert.Equal(t, "java.util.List", usage[1].Class)
	assert.Equal(t, storage.ClassEdgeFunction, usage[1].Function)
	assert.Equal(t, []int{6}, usage[1].Lines)
	assert.Equal(t, "add", usage[2].Function)
	assert.Equal(t, []int{7}, usage[2].Lines)

	// the same classes at a later commit cost nothing
	e.fetcher.files["src/Box2.java"] = listUser
	e.enqueue(t, storage.FileChange{Filename: "src/Box2.java", Commit: "c2"})
	report, err = e.processor(Options{}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Units)
	assert.EqualValues(t, 0, report.Cache.Misses)
	assert.EqualValues(t, 2, e.inner.classes.Load())
	assert.EqualValues(t, 1, e.inner.functions.Load())

	last, ok, err := e.store.LastRun(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.ID)
}

func TestProcessFiles_DownloadErrorIsTerminal(t *testing.T) {
	e := newEnv(t)
	e.fetcher.fail["src/A.java"] = fmt.Errorf("%w: timeout", fetch.ErrDownload)
	e.enqueue(t, storage.FileChange{Filename: "src/A.java", Commit: "h"})

	report, err := e.processor(Options{}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts[storage.StatusDownloadError])
	assert.Equal(t, storage.StatusDownloadError, e.status(t, "src/A.java", "h"))

	report, err = e.processor(Options{}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Units)
	assert.Equal(t, 1, e.fetcher.count("src/A.java"))
}

func TestProcessFiles_TerminalSkips(t *testing.T) {
	e := newEnv(t)
	e.fetcher.files["src/Broken.java"] = "class Broken { void f( { }"
	e.fetcher.files["test/ATest.java"] = listUser
	e.enqueue(t,
		storage.FileChange{Filename: "scripts/build.py", Commit: "c"},
		storage.FileChange{Filename: "src/Broken.java", Commit: "c"},
		storage.FileChange{Filename: "test/ATest.java", Commit: "c"},
	)

	report, err := e.processor(Options{Exclude: []string{"test/**"}}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)

	assert.Equal(t, storage.StatusUnsupportedLanguage, e.status(t, "scripts/build.py", "c"))
	assert.Equal(t, storage.StatusParseError, e.status(t, "src/Broken.java", "c"))
	assert.Equal(t, storage.StatusExcluded, e.status(t, "test/ATest.java", "c"))
	assert.Equal(t, 0, e.fetcher.count("scripts/build.py"), "unsupported files are never downloaded")
	assert.Equal(t, 0, e.fetcher.count("test/ATest.java"))
	assert.EqualValues(t, 0, report.Cache.Misses)
}

func TestProcessFiles_DegradedClassificationDefersUnit(t *testing.T) {
	e := newEnv(t)
	e.inner.degradeClass = "java.util.List"
	e.fetcher.files["src/Box.java"] = listUser
	e.enqueue(t, storage.FileChange{Filename: "src/Box.java", Commit: "c1"})

	report, err := e.processor(Options{}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, storage.StatusPending, e.status(t, "src/Box.java", "c1"))
	assert.EqualValues(t, 0, e.inner.functions.Load(), "functions of a degraded class wait")

	usage, err := e.store.Usage(context.Background(), "src/Box.java", "c1", e.repo.ID)
	require.NoError(t, err)
	require.Len(t, usage, 1, "work for healthy classes is kept")

	e.inner.degradeClass = ""
	report, err = e.processor(Options{}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts[storage.StatusSuccess])
	assert.Equal(t, storage.StatusSuccess, e.status(t, "src/Box.java", "c1"))
}

func TestProcessFiles_PreconditionFailsUnitLoudly(t *testing.T) {
	e := newEnv(t)
	e.inner.failFunction = fmt.Errorf("%w: java.util.List", knowledge.ErrCachePrecondition)
	e.fetcher.files["src/Box.java"] = listUser
	e.enqueue(t, storage.FileChange{Filename: "src/Box.java", Commit: "c1"})

	report, err := e.processor(Options{}).ProcessFiles(context.Background(), Scope{})
	require.ErrorIs(t, err, knowledge.ErrCachePrecondition)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, storage.StatusPending, e.status(t, "src/Box.java", "c1"))
}

type duplicatingStore struct {
	*storage.SQLiteStore
}

func (d duplicatingStore) PendingChanges(ctx context.Context, scope storage.Scope) ([]storage.FileChange, error) {
	units, err := d.SQLiteStore.PendingChanges(ctx, scope)
	return append(units, units...), err
}

func TestProcessFiles_DuplicateUnitAbortsRun(t *testing.T) {
	e := newEnv(t)
	e.fetcher.files["src/Box.java"] = listUser
	e.enqueue(t, storage.FileChange{Filename: "src/Box.java", Commit: "c1"})

	p := NewProcessor(duplicatingStore{e.store}, e.fetcher, e.cached, Options{})
	_, err := p.ProcessFiles(context.Background(), Scope{})
	require.ErrorIs(t, err, ErrDuplicateUnit)
	assert.Equal(t, 0, e.fetcher.count("src/Box.java"))
	assert.Equal(t, storage.StatusPending, e.status(t, "src/Box.java", "c1"))
}

func TestProcessFiles_Scope(t *testing.T) {
	e := newEnv(t)
	e.fetcher.files["src/A.java"] = listUser
	e.fetcher.files["src/B.java"] = listUser
	e.enqueue(t,
		storage.FileChange{Filename: "src/A.java", Commit: "c1", PullNumber: 9},
		storage.FileChange{Filename: "src/B.java", Commit: "c1"},
	)

	_, err := e.processor(Options{}).ProcessFiles(context.Background(), Scope{PullNumber: 9})
	require.ErrorIs(t, err, ErrScope)

	_, err = e.processor(Options{}).ProcessFiles(context.Background(), Scope{Repo: "acme/unknown"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	report, err := e.processor(Options{}).ProcessFiles(context.Background(), Scope{Repo: "acme/app", PullNumber: 9})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Units)
	assert.Equal(t, storage.StatusSuccess, e.status(t, "src/A.java", "c1"))
	assert.Equal(t, storage.StatusPending, e.status(t, "src/B.java", "c1"))
}

func TestProcessFiles_CancelLeavesUnitsPending(t *testing.T) {
	e := newEnv(t)
	e.fetcher.files["src/Box.java"] = listUser
	e.enqueue(t, storage.FileChange{Filename: "src/Box.java", Commit: "c1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.fetcher.onCall = cancel

	_, err := e.processor(Options{}).ProcessFiles(ctx, Scope{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, storage.StatusPending, e.status(t, "src/Box.java", "c1"))
}

func TestProcessFiles_ConcurrentWorkersClassifyOncePerKey(t *testing.T) {
	e := newEnv(t)
	var changes []storage.FileChange
	for i := range 24 {
		path := fmt.Sprintf("src/Box%d.java", i)
		e.fetcher.files[path] = listUser
		changes = append(changes, storage.FileChange{Filename: path, Commit: "c1"})
	}
	e.enqueue(t, changes...)

	report, err := e.processor(Options{Workers: 8}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, 24, report.Counts[storage.StatusSuccess])
	assert.EqualValues(t, 2, e.inner.classes.Load())
	assert.EqualValues(t, 1, e.inner.functions.Load())

	classes, functions, err := e.store.CacheCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, classes)
	assert.Equal(t, 1, functions)
}

func TestProcessFiles_FlushesBackup(t *testing.T) {
	e := newEnv(t)
	b, err := backup.Open(filepath.Join(t.TempDir(), "backup.db"))
	require.NoError(t, err)
	defer b.Close()

	e.fetcher.files["src/Box.java"] = listUser
	e.enqueue(t, storage.FileChange{Filename: "src/Box.java", Commit: "c1"})

	report, err := e.processor(Options{Backup: b}).ProcessFiles(context.Background(), Scope{})
	require.NoError(t, err)
	require.NotNil(t, report.Backup)
	assert.Equal(t, 2, report.Backup.InsertedClasses)
	assert.Equal(t, 1, report.Backup.InsertedFunctions)

	classes, err := b.Classes(context.Background())
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "all", Scope{}.String())
	assert.Equal(t, "acme/app", Scope{Repo: "acme/app"}.String())
	assert.Equal(t, "acme/app#3", Scope{Repo: "acme/app", PullNumber: 3}.String())
	assert.False(t, errors.Is(ErrScope, ErrDuplicateUnit))
}
