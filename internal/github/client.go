// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "weekend-activity/internal/errors"
	"weekend-activity/internal/model"
)

const perPage = 100

// Client is a wrapper around the go-github client that speaks this
// application's model types and error taxonomy.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return &Client{
		gh:     github.NewClient(httpClient),
		logger: logger,
	}
}

// NewEnterpriseClient creates a Client against a GitHub Enterprise base URL
// instead of github.com.
func NewEnterpriseClient(token, baseURL string, logger *slog.Logger) (*Client, error) {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	gh, err := github.NewClient(httpClient).WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{gh: gh, logger: logger}, nil
}

// GetRepository fetches repository details and translates them to our internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, c.translateError(owner, name, err)
	}
	return &model.Repository{
		Owner: repo.GetOwner().GetLogin(),
		Name:  repo.GetName(),
		URL:   repo.GetHTMLURL(),
	}, nil
}

// ListCommits fetches all commits authored in [since, until) for a
// repository. It drains API pagination before returning. The hosting API's
// date filter is approximate, so callers still re-filter precisely.
func (c *Client) ListCommits(ctx context.Context, owner, name string, since, until time.Time) ([]model.Commit, error) {
	var all []model.Commit

	opts := &github.CommitsListOptions{
		Since:       since,
		Until:       until,
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", opts.Page)

		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, c.translateError(owner, name, err)
		}

		for _, commit := range commits {
			all = append(all, toInternalCommit(commit))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListPullRequests fetches pull requests created in [since, until). The API
// has no date filter for pull requests, so it walks the created-descending
// listing and stops once it passes below the window start.
func (c *Client) ListPullRequests(ctx context.Context, owner, name string, since, until time.Time) ([]model.PullRequest, error) {
	var all []model.PullRequest

	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		c.logger.Debug("Fetching pull requests page", "owner", owner, "repo", name, "page", opts.Page)

		prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, c.translateError(owner, name, err)
		}

		for _, pr := range prs {
			created := pr.GetCreatedAt().Time
			if created.Before(since) {
				return all, nil
			}
			if !created.Before(until) {
				continue
			}
			all = append(all, toInternalPullRequest(pr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// CommitFiles fetches the changed files with patches for a single commit.
func (c *Client) CommitFiles(ctx context.Context, owner, name, sha string) ([]model.ChangedFile, error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, sha, &github.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, c.translateError(owner, name, err)
	}

	files := make([]model.ChangedFile, 0, len(commit.Files))
	for _, f := range commit.Files {
		files = append(files, toInternalFile(f))
	}
	return files, nil
}

// PullRequestFiles fetches the changed files with patches for a pull
// request, draining pagination.
func (c *Client) PullRequestFiles(ctx context.Context, owner, name string, number int) ([]model.ChangedFile, error) {
	var all []model.ChangedFile

	opts := &github.ListOptions{PerPage: perPage}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, c.translateError(owner, name, err)
		}
		for _, f := range files {
			all = append(all, toInternalFile(f))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// translateError maps go-github failures onto the application error taxonomy.
func (c *Client) translateError(owner, name string, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &custom_errors.RateLimitedError{ResetAt: rateErr.Rate.Reset.Time}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &custom_errors.RateLimitedError{}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return &custom_errors.RepositoryNotFoundError{Owner: owner, Name: name}
		case http.StatusUnauthorized, http.StatusForbidden:
			return custom_errors.ErrAuthentication
		}
	}

	return &custom_errors.NetworkError{Err: err}
}

// toInternalCommit translates a github.RepositoryCommit object to our internal model.Commit.
func toInternalCommit(c *github.RepositoryCommit) model.Commit {
	return model.Commit{
		SHA:            c.GetSHA(),
		AuthorName:     c.GetCommit().GetAuthor().GetName(),
		AuthorEmail:    c.GetCommit().GetAuthor().GetEmail(),
		AuthorUsername: c.GetAuthor().GetLogin(),
		Message:        c.GetCommit().GetMessage(),
		URL:            c.GetHTMLURL(),
		CommittedAt:    c.GetCommit().GetAuthor().GetDate().Time,
	}
}

func toInternalPullRequest(pr *github.PullRequest) model.PullRequest {
	p := model.PullRequest{
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		AuthorUsername: pr.GetUser().GetLogin(),
		URL:            pr.GetHTMLURL(),
		State:          pr.GetState(),
		CreatedAt:      pr.GetCreatedAt().Time,
		UpdatedAt:      pr.GetUpdatedAt().Time,
	}
	if pr.MergedAt != nil {
		merged := pr.GetMergedAt().Time
		p.MergedAt = &merged
	}
	return p
}

func toInternalFile(f *github.CommitFile) model.ChangedFile {
	return model.ChangedFile{
		Path:      f.GetFilename(),
		Additions: f.GetAdditions(),
		Deletions: f.GetDeletions(),
		Patch:     f.GetPatch(),
	}
}
