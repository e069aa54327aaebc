// internal/tracker/tracker.go
package tracker

import (
	"context"
	"log/slog"
	"time"

	"weekend-activity/internal/config"
	"weekend-activity/internal/fetcher"
	"weekend-activity/internal/model"
	"weekend-activity/internal/report"
	"weekend-activity/internal/window"
)

// Fetcher ingests window activity into the store.
type Fetcher interface {
	FetchWindow(ctx context.Context, repos []config.RepoSpec, w window.Window) (*fetcher.Result, error)
}

// Summarizer attaches exactly one summary per record.
type Summarizer interface {
	SummarizeCommit(ctx context.Context, repo model.Repository, c model.Commit) (model.Summary, error)
	SummarizePullRequest(ctx context.Context, repo model.Repository, pr model.PullRequest) (model.Summary, error)
}

// Store is the read-and-report slice of the activity store. The read methods
// take the configured "owner/name" set so cached activity of repositories no
// longer tracked stays out of the run.
type Store interface {
	ActivityInWindow(ctx context.Context, w window.Window, repos []string) (model.Activity, error)
	UnsummarizedCommits(ctx context.Context, w window.Window, repos []string) ([]model.Commit, error)
	UnsummarizedPullRequests(ctx context.Context, w window.Window, repos []string) ([]model.PullRequest, error)
	SaveReport(ctx context.Context, w window.Window, format, text string) (int64, error)
	MarkReportNotified(ctx context.Context, reportID int64) error
}

// Notifier delivers a rendered report. Delivery failure never fails the run.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Tracker sequences one report run: window, fetch, summarize, render,
// persist, optionally notify.
type Tracker struct {
	fetcher    Fetcher
	summarizer Summarizer
	store      Store
	builder    *report.Builder
	notifier   Notifier
	repos      []config.RepoSpec
	timezone   string
	logger     *slog.Logger
}

// Options controls a single run.
type Options struct {
	// Date anchors the weekend window; the zero value means "now".
	Date   time.Time
	Format report.Format
	Notify bool
}

// New creates a Tracker. notifier may be nil when no webhook is configured.
func New(f Fetcher, s Summarizer, st Store, b *report.Builder, n Notifier, cfg *config.File, logger *slog.Logger) *Tracker {
	return &Tracker{
		fetcher:    f,
		summarizer: s,
		store:      st,
		builder:    b,
		notifier:   n,
		repos:      cfg.Repositories,
		timezone:   cfg.Timezone,
		logger:     logger,
	}
}

// Run executes one report run and returns the rendered report text.
// Per-repository fetch failures and notification failures are logged and
// survived; authentication and storage errors abort the run.
func (t *Tracker) Run(ctx context.Context, opts Options) (string, error) {
	var w window.Window
	var err error
	if opts.Date.IsZero() {
		w, err = window.Now(t.timezone)
	} else {
		w, err = window.ForDate(opts.Date, t.timezone)
	}
	if err != nil {
		return "", err
	}
	t.logger.Info("Starting weekend report run", "window", w.String(), "repos", len(t.repos))

	fetchResult, err := t.fetcher.FetchWindow(ctx, t.repos, w)
	if err != nil {
		return "", err
	}
	for repo, ferr := range fetchResult.Failures {
		t.logger.Warn("Repository missing from report", "repo", repo, "error", ferr)
	}

	if err := t.summarizeWindow(ctx, w); err != nil {
		return "", err
	}

	activity, err := t.store.ActivityInWindow(ctx, w, t.repoNames())
	if err != nil {
		return "", err
	}

	text, err := t.builder.Build(w, activity, opts.Format)
	if err != nil {
		return "", err
	}

	reportID, err := t.store.SaveReport(ctx, w, string(opts.Format), text)
	if err != nil {
		return "", err
	}

	if opts.Notify && t.notifier != nil {
		if err := t.notifier.Send(ctx, text); err != nil {
			t.logger.Warn("Notification failed, report still generated", "error", err)
		} else if err := t.store.MarkReportNotified(ctx, reportID); err != nil {
			t.logger.Warn("Could not mark report as notified", "report_id", reportID, "error", err)
		}
	}

	t.logger.Info("Report run finished",
		"new_commits", fetchResult.NewCommits,
		"new_prs", fetchResult.NewPullRequests,
		"failed_repos", len(fetchResult.Failures))
	return text, nil
}

// summarizeWindow summarizes every record in the window that does not yet
// have a summary. Previously summarized records are never touched, which is
// what makes repeat runs idempotent.
func (t *Tracker) summarizeWindow(ctx context.Context, w window.Window) error {
	names := t.repoNames()

	activity, err := t.store.ActivityInWindow(ctx, w, names)
	if err != nil {
		return err
	}

	commits, err := t.store.UnsummarizedCommits(ctx, w, names)
	if err != nil {
		return err
	}
	for _, c := range commits {
		repo := activity.Repositories[c.RepositoryID]
		if _, err := t.summarizer.SummarizeCommit(ctx, repo, c); err != nil {
			return err
		}
	}

	prs, err := t.store.UnsummarizedPullRequests(ctx, w, names)
	if err != nil {
		return err
	}
	for _, pr := range prs {
		repo := activity.Repositories[pr.RepositoryID]
		if _, err := t.summarizer.SummarizePullRequest(ctx, repo, pr); err != nil {
			return err
		}
	}

	if len(commits) > 0 || len(prs) > 0 {
		t.logger.Info("Summarized new records", "commits", len(commits), "prs", len(prs))
	}
	return nil
}

// repoNames returns the configured repositories as "owner/name" strings, the
// filter key the store's read path expects.
func (t *Tracker) repoNames() []string {
	names := make([]string, 0, len(t.repos))
	for _, r := range t.repos {
		names = append(names, r.Owner+"/"+r.Repo)
	}
	return names
}
