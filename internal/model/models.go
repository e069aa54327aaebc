// internal/model/models.go
package model

import "time"

// ImpactLevel is a coarse significance classification for a change.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "LOW"
	ImpactMedium ImpactLevel = "MEDIUM"
	ImpactHigh   ImpactLevel = "HIGH"
)

// ParseImpactLevel normalizes a free-form impact string from the generator.
// The second return value is false when the string is not one of the three
// recognized levels.
func ParseImpactLevel(s string) (ImpactLevel, bool) {
	switch ImpactLevel(s) {
	case ImpactLow, ImpactMedium, ImpactHigh:
		return ImpactLevel(s), true
	}
	return "", false
}

// SummarySource records whether a summary came from the text-generation
// capability or from the deterministic fallback.
type SummarySource string

const (
	SourceGenerated SummarySource = "generated"
	SourceFallback  SummarySource = "fallback"
)

// Repository is a tracked GitHub repository.
type Repository struct {
	ID          int64
	Owner       string
	Name        string
	URL         string
	DBCreatedAt time.Time
	DBUpdatedAt time.Time
}

// FullName returns the canonical "owner/name" form.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// ChangedFile is one file touched by a commit or pull request, with the
// unified diff hunk for that file when available.
type ChangedFile struct {
	Path      string
	Additions int
	Deletions int
	Patch     string
}

// Commit is a single commit observed during a weekend window. Identity is
// (repository, SHA); once stored it is only ever mutated by attaching a
// summary.
type Commit struct {
	ID             int64
	RepositoryID   int64
	SHA            string
	AuthorName     string
	AuthorEmail    string
	AuthorUsername string
	Message        string
	URL            string
	CommittedAt    time.Time
	Additions      int
	Deletions      int
	FilesChanged   int
	Summary        *Summary
	DBCreatedAt    time.Time
}

// PullRequest is a pull request created during a weekend window. Identity is
// (repository, number).
type PullRequest struct {
	ID             int64
	RepositoryID   int64
	Number         int
	Title          string
	Body           string
	AuthorUsername string
	URL            string
	State          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	MergedAt       *time.Time
	Summary        *Summary
	DBCreatedAt    time.Time
}

// Summary is the 1:1, write-once summary attached to a commit or pull
// request.
type Summary struct {
	ID          int64
	Text        string
	Impact      ImpactLevel
	Source      SummarySource
	DBCreatedAt time.Time
}

// Activity is the deduplicated window activity read back from the store,
// repositories keyed by ID so renderers can resolve full names.
type Activity struct {
	Repositories map[int64]Repository
	Commits      []Commit
	PullRequests []PullRequest
}

// Empty reports whether the window had no activity at all.
func (a Activity) Empty() bool {
	return len(a.Commits) == 0 && len(a.PullRequests) == 0
}
