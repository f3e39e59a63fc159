package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// ErrMissingPath is returned by ShowFile when the path does not exist at the commit.
var ErrMissingPath = errors.New("git: path not present at commit")

// CommitFile is one file touched by one commit.
type CommitFile struct {
	Commit string
	Path   string
}

const commitMarker = "commit "

// CommitChanges lists the files added or modified by each commit in revRange
// (for example "v1.0..HEAD"; empty means the whole history), oldest commit first.
func CommitChanges(ctx context.Context, repoDir, revRange string) ([]CommitFile, error) {
	args := []string{"-C", repoDir, "log", "--reverse", "--no-merges", "--diff-filter=AM", "--name-only", "--format=" + commitMarker + "%H"}
	if strings.TrimSpace(revRange) != "" {
		args = append(args, revRange)
	}
	output, err := run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}
	return parseLog(output)
}

var commitHeader = regexp.MustCompile(`^commit ([0-9a-f]{7,64})$`)

func parseLog(output []byte) ([]CommitFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var (
		out     []CommitFile
		current string
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if m := commitHeader.FindStringSubmatch(line); m != nil {
			current = m[1]
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("unexpected git log line before any commit: %q", line)
		}
		out = append(out, CommitFile{Commit: current, Path: line})
	}
	return out, scanner.Err()
}

// ShowFile returns the content of path as of commit.
func ShowFile(ctx context.Context, repoDir, commit, path string) ([]byte, error) {
	out, err := run(ctx, "-C", repoDir, "show", commit+":"+path)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "does not exist") || strings.Contains(msg, "exists on disk, but not in") {
			return nil, fmt.Errorf("%w: %s@%s", ErrMissingPath, path, commit)
		}
		return nil, fmt.Errorf("git show failed: %w", err)
	}
	return out, nil
}

func run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, fmt.Errorf("%w: %s", err, s)
		}
		return nil, err
	}
	return out, nil
}
