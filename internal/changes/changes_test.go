package changes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxon/internal/git"
	"taxon/internal/storage"
)

const export = `{
  "12": {
    "is_pr": true, "is_merged": true, "title": "Add\nretry",
    "created_at": "2024-03-01T10:00:00Z",
    "commits": {
      "0": {"sha": "old", "date": "2024-03-01T11:00:00Z", "files": {"file_list": ["src/A.java"]}},
      "1": {"sha": "new", "date": "2024-03-02T09:00:00Z", "files": {"file_list": ["src/B.java", "src/A.java", ""]}},
      "2": {"sha": "undated", "date": "", "files": {"file_list": ["src/C.java"]}}
    }
  },
  "3": {"is_pr": true, "is_merged": false, "title": "WIP", "commits": {}},
  "5": {"is_pr": false, "title": "an issue"}
}`

func TestParsePullRequests(t *testing.T) {
	prs, err := ParsePullRequests([]byte(export))
	require.NoError(t, err)
	require.Len(t, prs, 3)

	assert.Equal(t, 3, prs[0].Number)
	assert.Equal(t, 5, prs[1].Number)

	merged := prs[2]
	assert.Equal(t, 12, merged.Number)
	assert.Equal(t, "Add retry", merged.Title)
	assert.Equal(t, "new", merged.NewestCommit)
	assert.Equal(t, []string{"src/A.java", "src/B.java", "src/C.java"}, merged.Files)
}

func TestPullRequestUnits(t *testing.T) {
	prs, err := ParsePullRequests([]byte(export))
	require.NoError(t, err)

	repo := storage.Repository{ID: 4, Owner: "acme", Name: "app"}
	meta, units := PullRequestUnits(prs, repo)

	require.Len(t, meta, 2, "issues are dropped")
	assert.False(t, meta[0].Merged)
	assert.Empty(t, meta[0].MergeCommit)
	assert.Equal(t, "new", meta[1].MergeCommit)

	require.Len(t, units, 3)
	for _, u := range units {
		assert.Equal(t, "new", u.Commit)
		assert.Equal(t, 12, u.PullNumber)
		assert.Equal(t, repo, u.Repo)
	}
}

func TestLoadPullRequests_BadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"x": {"is_pr": true}}`), 0o644))
	_, err := LoadPullRequests(path)
	require.ErrorIs(t, err, ErrInvalidExport)

	_, err = LoadPullRequests(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestParsePullRequests_SchemaViolations(t *testing.T) {
	for name, doc := range map[string]string{
		"not an object":   `[1, 2]`,
		"missing is_pr":   `{"1": {"title": "x"}}`,
		"flag as string":  `{"1": {"is_pr": "yes"}}`,
		"file list entry": `{"1": {"is_pr": true, "commits": {"0": {"files": {"file_list": [7]}}}}}`,
		"broken json":     `{"1": `,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePullRequests([]byte(doc))
			require.ErrorIs(t, err, ErrInvalidExport)
		})
	}
}

func TestCommitUnits(t *testing.T) {
	repo := storage.Repository{ID: 1, Owner: "acme", Name: "app"}
	units := CommitUnits([]git.CommitFile{{Commit: "c1", Path: "A.java"}}, repo)
	assert.Equal(t, []storage.FileChange{{Filename: "A.java", Commit: "c1", Repo: repo}}, units)
}
