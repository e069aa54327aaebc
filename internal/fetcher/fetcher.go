// internal/fetcher/fetcher.go
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"weekend-activity/internal/config"
	custom_errors "weekend-activity/internal/errors"
	"weekend-activity/internal/model"
	"weekend-activity/internal/retry"
	"weekend-activity/internal/window"
)

// HostClient is the slice of the source-hosting capability the fetcher needs.
type HostClient interface {
	GetRepository(ctx context.Context, owner, name string) (*model.Repository, error)
	ListCommits(ctx context.Context, owner, name string, since, until time.Time) ([]model.Commit, error)
	ListPullRequests(ctx context.Context, owner, name string, since, until time.Time) ([]model.PullRequest, error)
}

// Store is the slice of the activity store the fetcher writes through.
type Store interface {
	UpsertRepository(ctx context.Context, repo model.Repository) (model.Repository, error)
	UpsertCommit(ctx context.Context, c model.Commit) (model.Commit, bool, error)
	UpsertPullRequest(ctx context.Context, pr model.PullRequest) (model.PullRequest, bool, error)
}

// Fetcher pulls window activity for the configured repositories into the
// store, one repository at a time.
type Fetcher struct {
	client HostClient
	store  Store
	logger *slog.Logger
	retry  retry.Policy
}

// Result reports what one fetch pass did. Failures is keyed by "owner/name"
// and holds the per-repository errors the run survived.
type Result struct {
	NewCommits      int
	NewPullRequests int
	Failures        map[string]error
}

// NewFetcher creates a Fetcher.
func NewFetcher(client HostClient, store Store, logger *slog.Logger, policy retry.Policy) *Fetcher {
	return &Fetcher{client: client, store: store, logger: logger, retry: policy}
}

// FetchWindow ingests commits and pull requests for every configured
// repository. Authentication and storage errors abort the run; anything else
// is contained to its repository so the report can still cover the rest.
func (f *Fetcher) FetchWindow(ctx context.Context, repos []config.RepoSpec, w window.Window) (*Result, error) {
	result := &Result{Failures: make(map[string]error)}

	for _, spec := range repos {
		logger := f.logger.With("owner", spec.Owner, "repo", spec.Repo)
		logger.Info("Fetching weekend activity", "window", w.String())

		newCommits, newPRs, err := f.fetchRepo(ctx, spec, w)
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			logger.Warn("Skipping repository after fetch failure", "error", err)
			result.Failures[spec.Owner+"/"+spec.Repo] = err
			continue
		}

		logger.Info("Repository fetched", "new_commits", newCommits, "new_prs", newPRs)
		result.NewCommits += newCommits
		result.NewPullRequests += newPRs
	}

	return result, nil
}

func (f *Fetcher) fetchRepo(ctx context.Context, spec config.RepoSpec, w window.Window) (int, int, error) {
	var repo *model.Repository
	err := f.retry.Do(ctx, retryable, func(ctx context.Context) error {
		var err error
		repo, err = f.client.GetRepository(ctx, spec.Owner, spec.Repo)
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	stored, err := f.store.UpsertRepository(ctx, *repo)
	if err != nil {
		return 0, 0, err
	}

	var commits []model.Commit
	err = f.retry.Do(ctx, retryable, func(ctx context.Context) error {
		var err error
		commits, err = f.client.ListCommits(ctx, spec.Owner, spec.Repo, w.Start, w.End)
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	newCommits := 0
	for _, c := range commits {
		// The hosting API's date filter is approximate; trust only the
		// window itself.
		if !w.Contains(c.CommittedAt) {
			continue
		}
		// Commits without a resolvable account cannot be attributed to a
		// contributor.
		if c.AuthorUsername == "" {
			continue
		}
		c.RepositoryID = stored.ID
		if _, created, err := f.store.UpsertCommit(ctx, c); err != nil {
			return 0, 0, err
		} else if created {
			newCommits++
		}
	}

	var prs []model.PullRequest
	err = f.retry.Do(ctx, retryable, func(ctx context.Context) error {
		var err error
		prs, err = f.client.ListPullRequests(ctx, spec.Owner, spec.Repo, w.Start, w.End)
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	newPRs := 0
	for _, pr := range prs {
		if !w.Contains(pr.CreatedAt) {
			continue
		}
		pr.RepositoryID = stored.ID
		if _, created, err := f.store.UpsertPullRequest(ctx, pr); err != nil {
			return 0, 0, err
		} else if created {
			newPRs++
		}
	}

	return newCommits, newPRs, nil
}

// retryable marks rate limiting and transport failures as transient.
func retryable(err error) bool {
	var limited *custom_errors.RateLimitedError
	if errors.As(err, &limited) {
		return true
	}
	var network *custom_errors.NetworkError
	return errors.As(err, &network)
}

// fatal errors abort the whole run rather than one repository.
func fatal(err error) bool {
	if errors.Is(err, custom_errors.ErrAuthentication) {
		return true
	}
	var storage *custom_errors.StorageError
	return errors.As(err, &storage)
}
