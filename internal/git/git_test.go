package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLog(t *testing.T) {
	output := []byte(`commit 1111111111111111111111111111111111111111

src/main/java/App.java
README.md
commit 2222222222222222222222222222222222222222

src/main/java/Util.java
`)
	files, err := parseLog(output)
	require.NoError(t, err)
	assert.Equal(t, []CommitFile{
		{Commit: "1111111111111111111111111111111111111111", Path: "src/main/java/App.java"},
		{Commit: "1111111111111111111111111111111111111111", Path: "README.md"},
		{Commit: "2222222222222222222222222222222222222222", Path: "src/main/java/Util.java"},
	}, files)
}

func TestParseLog_RejectsOrphanPath(t *testing.T) {
	_, err := parseLog([]byte("src/App.java\n"))
	require.Error(t, err)
}

func gitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "dev@example.com"},
		{"config", "user.name", "dev"},
	} {
		require.NoError(t, exec.Command("git", append([]string{"-C", dir}, args...)...).Run())
	}
	return dir
}

func commitFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	require.NoError(t, exec.Command("git", "-C", dir, "add", path).Run())
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "-q", "-m", "add "+path).Run())
}

func TestCommitChangesAndShowFile(t *testing.T) {
	dir := gitRepo(t)
	commitFile(t, dir, "src/A.java", "class A {}\n")
	commitFile(t, dir, "src/B.java", "class B {}\n")

	ctx := context.Background()
	files, err := CommitChanges(ctx, dir, "")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "src/A.java", files[0].Path)
	assert.Equal(t, "src/B.java", files[1].Path)

	content, err := ShowFile(ctx, dir, files[0].Commit, "src/A.java")
	require.NoError(t, err)
	assert.Equal(t, "class A {}\n", string(content))

	_, err = ShowFile(ctx, dir, files[0].Commit, "src/B.java")
	require.ErrorIs(t, err, ErrMissingPath)
}
