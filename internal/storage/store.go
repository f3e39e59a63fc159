package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAlreadyProcessed is returned when a terminal status is written twice.
	ErrAlreadyProcessed = errors.New("storage: unit already has a terminal status")
	// ErrNotFound is returned for lookups of unknown rows.
	ErrNotFound = errors.New("storage: not found")
)

// Status is the processing outcome of a queued unit. The zero value means unprocessed.
type Status string

const (
	StatusPending             Status = ""
	StatusSuccess             Status = "success"
	StatusDownloadError       Status = "download-error"
	StatusUnsupportedLanguage Status = "unsupported-language"
	StatusParseError          Status = "parse-error"
	StatusExcluded            Status = "excluded"
)

// Statuses lists every terminal status.
var Statuses = []Status{StatusSuccess, StatusDownloadError, StatusUnsupportedLanguage, StatusParseError, StatusExcluded}

// ParseStatus validates an operator supplied status name.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == strings.TrimSpace(s) {
			return st, nil
		}
	}
	return StatusPending, fmt.Errorf("unknown status %q", s)
}

// ClassEdgeFunction is stored as the function of class-level usage edges.
const ClassEdgeFunction = "N/A"

type Repository struct {
	ID    int64
	Owner string
	Name  string
}

func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// SplitRepository parses "owner/name".
func SplitRepository(full string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(full), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q, want owner/name", full)
	}
	return owner, name, nil
}

type PullRequest struct {
	RepoID      int64
	Number      int
	Title       string
	Merged      bool
	MergeCommit string
	CreatedAt   time.Time
}

// FileChange is one (file, commit, repository) unit of work.
type FileChange struct {
	ID         int64
	Filename   string
	Commit     string
	Repo       Repository
	PullNumber int
	Status     Status
}

// Key identifies the unit independent of its row id.
func (f FileChange) Key() string {
	return fmt.Sprintf("%s@%s#%d", f.Filename, f.Commit, f.Repo.ID)
}

// Download records a fetched snapshot.
type Download struct {
	Path        string
	Commit      string
	Ending      string
	RepoID      int64
	ContentHash string
	Size        int
}

// Edge links a unit to a class or function it uses.
type Edge struct {
	Filename string
	Commit   string
	RepoID   int64
	Class    string
	Function string
	Lines    []int
}

// Scope narrows the queue to a repository and optionally one pull request.
type Scope struct {
	RepoID     int64
	PullNumber int
}

// Run is one pipeline invocation in the run ledger.
type Run struct {
	ID         string
	Scope      string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     map[Status]int
	Deferred   int
	Failed     int
	CacheHits  int64
	Calls      int64
}
