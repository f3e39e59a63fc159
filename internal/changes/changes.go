// Package changes turns change sources (pull request exports, git history)
// into queue entries.
package changes

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"taxon/internal/git"
	"taxon/internal/storage"
)

const commitDateLayout = "2006-01-02T15:04:05Z"

// PullRequest is one entry of a pull request export.
type PullRequest struct {
	Number    int
	Title     string
	IsPR      bool
	Merged    bool
	CreatedAt time.Time
	// NewestCommit is the latest dated commit; empty when none were exported.
	NewestCommit string
	Files        []string
}

type exportEntry struct {
	IsPR      bool                    `json:"is_pr"`
	IsMerged  bool                    `json:"is_merged"`
	Title     string                  `json:"title"`
	CreatedAt string                  `json:"created_at"`
	Commits   map[string]exportCommit `json:"commits"`
}

type exportCommit struct {
	SHA   string `json:"sha"`
	Date  string `json:"date"`
	Files struct {
		FileList []string `json:"file_list"`
	} `json:"files"`
}

// LoadPullRequests reads an export keyed by pull request number.
func LoadPullRequests(path string) ([]PullRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pull request export: %w", err)
	}
	return ParsePullRequests(data)
}

// ParsePullRequests decodes an export. Entries are returned in number order.
func ParsePullRequests(data []byte) ([]PullRequest, error) {
	if err := validateExport(data); err != nil {
		return nil, err
	}

	var raw map[string]exportEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pull request export: %w", err)
	}

	out := make([]PullRequest, 0, len(raw))
	for key, e := range raw {
		num, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("invalid pull request number %q", key)
		}
		pr := PullRequest{Number: num, Title: cleanText(e.Title), IsPR: e.IsPR, Merged: e.IsMerged}
		if t, err := time.Parse(commitDateLayout, e.CreatedAt); err == nil {
			pr.CreatedAt = t
		}
		pr.NewestCommit, pr.Files = newestCommit(e.Commits)
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// newestCommit picks the latest dated commit and gathers files across all commits.
// Commits with unparseable dates still contribute files but are never chosen.
func newestCommit(commits map[string]exportCommit) (string, []string) {
	var (
		newest   string
		newestAt time.Time
		files    = map[string]struct{}{}
	)
	for _, c := range commits {
		for _, f := range c.Files.FileList {
			if f != "" {
				files[f] = struct{}{}
			}
		}
		at, err := time.Parse(commitDateLayout, c.Date)
		if err != nil || c.SHA == "" {
			continue
		}
		if newest == "" || at.After(newestAt) {
			newest, newestAt = c.SHA, at
		}
	}

	list := make([]string, 0, len(files))
	for f := range files {
		list = append(list, f)
	}
	sort.Strings(list)
	return newest, list
}

func cleanText(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

// PullRequestUnits converts an export into rows for the queue. Non-PR entries are
// dropped. Unmerged PRs and PRs without dated commits are kept as metadata only;
// merged PRs contribute each changed file at their newest commit.
func PullRequestUnits(prs []PullRequest, repo storage.Repository) ([]storage.PullRequest, []storage.FileChange) {
	var (
		meta  []storage.PullRequest
		units []storage.FileChange
	)
	for _, pr := range prs {
		if !pr.IsPR {
			continue
		}
		row := storage.PullRequest{
			RepoID:    repo.ID,
			Number:    pr.Number,
			Title:     pr.Title,
			Merged:    pr.Merged,
			CreatedAt: pr.CreatedAt,
		}
		if pr.Merged {
			row.MergeCommit = pr.NewestCommit
		}
		meta = append(meta, row)

		if !pr.Merged || pr.NewestCommit == "" {
			continue
		}
		for _, f := range pr.Files {
			units = append(units, storage.FileChange{
				Filename:   f,
				Commit:     pr.NewestCommit,
				Repo:       repo,
				PullNumber: pr.Number,
			})
		}
	}
	return meta, units
}

// CommitUnits converts git history into queue rows.
func CommitUnits(files []git.CommitFile, repo storage.Repository) []storage.FileChange {
	out := make([]storage.FileChange, 0, len(files))
	for _, f := range files {
		out = append(out, storage.FileChange{Filename: f.Path, Commit: f.Commit, Repo: repo})
	}
	return out
}
