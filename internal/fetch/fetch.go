// Package fetch retrieves file snapshots at a given commit.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taxon/internal/git"
)

var (
	// ErrDownload wraps every failure to obtain a snapshot.
	ErrDownload = errors.New("fetch: download failed")
	// ErrNotFound is a download failure caused by a missing file or commit.
	ErrNotFound = errors.New("fetch: snapshot not found")
)

// Snapshot names one file at one commit.
type Snapshot struct {
	Owner  string
	Repo   string
	Commit string
	Path   string
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s/%s@%s:%s", s.Owner, s.Repo, s.Commit, s.Path)
}

// Fetcher returns raw file bytes for a snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, s Snapshot) ([]byte, error)
}

const defaultRawBase = "https://raw.githubusercontent.com"

// GitHubFetcher downloads snapshots from the raw content host.
type GitHubFetcher struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewGitHubFetcher(baseURL, token string, timeout time.Duration) *GitHubFetcher {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultRawBase
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GitHubFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: base,
		token:   token,
	}
}

func (f *GitHubFetcher) Fetch(ctx context.Context, s Snapshot) ([]byte, error) {
	u := f.baseURL + "/" + url.PathEscape(s.Owner) + "/" + url.PathEscape(s.Repo) + "/" + url.PathEscape(s.Commit) + "/" + escapePath(s.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownload, s, err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "token "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownload, s, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w: %s", ErrDownload, ErrNotFound, s)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrDownload, s, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownload, s, err)
	}
	return body, nil
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// GitFetcher reads snapshots from a local clone.
type GitFetcher struct {
	repoDir string
}

func NewGitFetcher(repoDir string) *GitFetcher {
	return &GitFetcher{repoDir: repoDir}
}

func (f *GitFetcher) Fetch(ctx context.Context, s Snapshot) ([]byte, error) {
	body, err := git.ShowFile(ctx, f.repoDir, s.Commit, s.Path)
	if errors.Is(err, git.ErrMissingPath) {
		return nil, fmt.Errorf("%w: %w: %s", ErrDownload, ErrNotFound, s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownload, s, err)
	}
	return body, nil
}
