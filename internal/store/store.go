// internal/store/store.go
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	custom_errors "weekend-activity/internal/errors"
	"weekend-activity/internal/model"
	"weekend-activity/internal/window"
)

// Store is the persistent activity cache and the single source of truth for
// idempotency: a record upserted twice stays one row, and a summary is
// attached at most once. Every method is one statement, so a partially
// completed run never leaves a half-written record behind.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store over an established connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

func storageErr(op string, err error) error {
	return &custom_errors.StorageError{Op: op, Err: err}
}

// UpsertRepository creates or refreshes a repository row keyed on
// (owner, name) and returns the stored row.
func (s *Store) UpsertRepository(ctx context.Context, repo model.Repository) (model.Repository, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO repositories (owner, name, url)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, name) DO UPDATE
			SET url = EXCLUDED.url, updated_at = now()
		RETURNING id, owner, name, url, created_at, updated_at`,
		repo.Owner, repo.Name, repo.URL)

	var out model.Repository
	if err := row.Scan(&out.ID, &out.Owner, &out.Name, &out.URL, &out.DBCreatedAt, &out.DBUpdatedAt); err != nil {
		return model.Repository{}, storageErr("upsert repository", err)
	}
	return out, nil
}

// UpsertCommit inserts a commit keyed on (repository_id, sha). Duplicate
// ingestion is a no-op merge: the existing row is returned unchanged and the
// second return value reports whether a new row was created.
func (s *Store) UpsertCommit(ctx context.Context, c model.Commit) (model.Commit, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO commits
			(repository_id, sha, author_name, author_email, author_username,
			 message, url, committed_at, additions, deletions, files_changed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (repository_id, sha) DO NOTHING
		RETURNING id, created_at`,
		c.RepositoryID, c.SHA, c.AuthorName, c.AuthorEmail, c.AuthorUsername,
		c.Message, c.URL, c.CommittedAt, c.Additions, c.Deletions, c.FilesChanged)

	err := row.Scan(&c.ID, &c.DBCreatedAt)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Commit{}, false, storageErr("upsert commit", err)
	}

	existing := s.pool.QueryRow(ctx, `
		SELECT id, created_at FROM commits
		WHERE repository_id = $1 AND sha = $2`,
		c.RepositoryID, c.SHA)
	if err := existing.Scan(&c.ID, &c.DBCreatedAt); err != nil {
		return model.Commit{}, false, storageErr("lookup commit after conflict", err)
	}
	return c, false, nil
}

// UpsertPullRequest inserts a pull request keyed on (repository_id, number)
// with the same no-op merge semantics as UpsertCommit.
func (s *Store) UpsertPullRequest(ctx context.Context, pr model.PullRequest) (model.PullRequest, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO pull_requests
			(repository_id, number, title, body, author_username,
			 url, state, pr_created_at, pr_updated_at, merged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (repository_id, number) DO NOTHING
		RETURNING id, created_at`,
		pr.RepositoryID, pr.Number, pr.Title, pr.Body, pr.AuthorUsername,
		pr.URL, pr.State, pr.CreatedAt, pr.UpdatedAt, pr.MergedAt)

	err := row.Scan(&pr.ID, &pr.DBCreatedAt)
	if err == nil {
		return pr, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.PullRequest{}, false, storageErr("upsert pull request", err)
	}

	existing := s.pool.QueryRow(ctx, `
		SELECT id, created_at FROM pull_requests
		WHERE repository_id = $1 AND number = $2`,
		pr.RepositoryID, pr.Number)
	if err := existing.Scan(&pr.ID, &pr.DBCreatedAt); err != nil {
		return model.PullRequest{}, false, storageErr("lookup pull request after conflict", err)
	}
	return pr, false, nil
}

// AttachCommitSummary persists a summary for a commit exactly once. If the
// commit already has one, the existing summary is left untouched and a
// DuplicateSummaryError is returned.
func (s *Store) AttachCommitSummary(ctx context.Context, commitID int64, sum model.Summary) (model.Summary, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO commit_summaries (commit_id, summary, impact_level, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (commit_id) DO NOTHING
		RETURNING id, created_at`,
		commitID, sum.Text, string(sum.Impact), string(sum.Source))

	err := row.Scan(&sum.ID, &sum.DBCreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Summary{}, &custom_errors.DuplicateSummaryError{Kind: "commit", ID: commitID}
	}
	if err != nil {
		return model.Summary{}, storageErr("attach commit summary", err)
	}
	return sum, nil
}

// AttachPullRequestSummary persists a summary for a pull request exactly
// once, with the same duplicate semantics as AttachCommitSummary.
func (s *Store) AttachPullRequestSummary(ctx context.Context, prID int64, sum model.Summary) (model.Summary, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO pr_summaries (pull_request_id, summary, impact_level, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pull_request_id) DO NOTHING
		RETURNING id, created_at`,
		prID, sum.Text, string(sum.Impact), string(sum.Source))

	err := row.Scan(&sum.ID, &sum.DBCreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Summary{}, &custom_errors.DuplicateSummaryError{Kind: "pull request", ID: prID}
	}
	if err != nil {
		return model.Summary{}, storageErr("attach pull request summary", err)
	}
	return sum, nil
}

// ActivityInWindow reads all commits and pull requests whose authored/created
// timestamp falls inside the window, with summaries attached where present.
// Only repositories named in repos ("owner/name") are read; the store caches
// activity across runs, so records of repositories dropped from the
// configuration stay cached but never resurface.
func (s *Store) ActivityInWindow(ctx context.Context, w window.Window, repos []string) (model.Activity, error) {
	activity := model.Activity{Repositories: make(map[int64]model.Repository)}

	repoRows, err := s.pool.Query(ctx, `
		SELECT id, owner, name, url, created_at, updated_at
		FROM repositories
		WHERE owner || '/' || name = ANY($1)`, repos)
	if err != nil {
		return model.Activity{}, storageErr("query repositories", err)
	}
	defer repoRows.Close()
	for repoRows.Next() {
		var r model.Repository
		if err := repoRows.Scan(&r.ID, &r.Owner, &r.Name, &r.URL, &r.DBCreatedAt, &r.DBUpdatedAt); err != nil {
			return model.Activity{}, storageErr("scan repository", err)
		}
		activity.Repositories[r.ID] = r
	}
	if err := repoRows.Err(); err != nil {
		return model.Activity{}, storageErr("iterate repositories", err)
	}

	commits, err := s.queryCommits(ctx, `
		SELECT c.id, c.repository_id, c.sha, c.author_name, c.author_email,
		       c.author_username, c.message, c.url, c.committed_at,
		       c.additions, c.deletions, c.files_changed, c.created_at,
		       s.id, s.summary, s.impact_level, s.source, s.created_at
		FROM commits c
		JOIN repositories r ON r.id = c.repository_id
		LEFT JOIN commit_summaries s ON s.commit_id = c.id
		WHERE c.committed_at >= $1 AND c.committed_at < $2
		  AND r.owner || '/' || r.name = ANY($3)
		ORDER BY c.committed_at ASC`, w.Start, w.End, repos)
	if err != nil {
		return model.Activity{}, err
	}
	activity.Commits = commits

	prs, err := s.queryPullRequests(ctx, `
		SELECT p.id, p.repository_id, p.number, p.title, p.body,
		       p.author_username, p.url, p.state, p.pr_created_at,
		       p.pr_updated_at, p.merged_at, p.created_at,
		       s.id, s.summary, s.impact_level, s.source, s.created_at
		FROM pull_requests p
		JOIN repositories r ON r.id = p.repository_id
		LEFT JOIN pr_summaries s ON s.pull_request_id = p.id
		WHERE p.pr_created_at >= $1 AND p.pr_created_at < $2
		  AND r.owner || '/' || r.name = ANY($3)
		ORDER BY p.pr_created_at ASC`, w.Start, w.End, repos)
	if err != nil {
		return model.Activity{}, err
	}
	activity.PullRequests = prs

	return activity, nil
}

// UnsummarizedCommits returns window commits of the named repositories that
// do not have a summary yet.
func (s *Store) UnsummarizedCommits(ctx context.Context, w window.Window, repos []string) ([]model.Commit, error) {
	return s.queryCommits(ctx, `
		SELECT c.id, c.repository_id, c.sha, c.author_name, c.author_email,
		       c.author_username, c.message, c.url, c.committed_at,
		       c.additions, c.deletions, c.files_changed, c.created_at,
		       NULL::bigint, NULL::text, NULL::text, NULL::text, NULL::timestamptz
		FROM commits c
		JOIN repositories r ON r.id = c.repository_id
		LEFT JOIN commit_summaries s ON s.commit_id = c.id
		WHERE s.id IS NULL AND c.committed_at >= $1 AND c.committed_at < $2
		  AND r.owner || '/' || r.name = ANY($3)
		ORDER BY c.committed_at ASC`, w.Start, w.End, repos)
}

// UnsummarizedPullRequests returns window pull requests of the named
// repositories lacking a summary.
func (s *Store) UnsummarizedPullRequests(ctx context.Context, w window.Window, repos []string) ([]model.PullRequest, error) {
	return s.queryPullRequests(ctx, `
		SELECT p.id, p.repository_id, p.number, p.title, p.body,
		       p.author_username, p.url, p.state, p.pr_created_at,
		       p.pr_updated_at, p.merged_at, p.created_at,
		       NULL::bigint, NULL::text, NULL::text, NULL::text, NULL::timestamptz
		FROM pull_requests p
		JOIN repositories r ON r.id = p.repository_id
		LEFT JOIN pr_summaries s ON s.pull_request_id = p.id
		WHERE s.id IS NULL AND p.pr_created_at >= $1 AND p.pr_created_at < $2
		  AND r.owner || '/' || r.name = ANY($3)
		ORDER BY p.pr_created_at ASC`, w.Start, w.End, repos)
}

// SaveReport persists a rendered report for the window and returns its ID.
// Reports are views over cached records, so re-running a window inserts a
// fresh row rather than overwriting.
func (s *Store) SaveReport(ctx context.Context, w window.Window, format, text string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO weekend_reports (starts_at, ends_at, format, report_text)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		w.Start, w.End, format, text).Scan(&id)
	if err != nil {
		return 0, storageErr("save report", err)
	}
	return id, nil
}

// MarkReportNotified records a successful notification delivery.
func (s *Store) MarkReportNotified(ctx context.Context, reportID int64) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE weekend_reports SET notified = true WHERE id = $1`, reportID); err != nil {
		return storageErr("mark report notified", err)
	}
	return nil
}

func (s *Store) queryCommits(ctx context.Context, sql string, args ...any) ([]model.Commit, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageErr("query commits", err)
	}
	defer rows.Close()

	var out []model.Commit
	for rows.Next() {
		var c model.Commit
		var sumID *int64
		var sumText, sumImpact, sumSource *string
		var sumCreated *time.Time
		err := rows.Scan(&c.ID, &c.RepositoryID, &c.SHA, &c.AuthorName, &c.AuthorEmail,
			&c.AuthorUsername, &c.Message, &c.URL, &c.CommittedAt,
			&c.Additions, &c.Deletions, &c.FilesChanged, &c.DBCreatedAt,
			&sumID, &sumText, &sumImpact, &sumSource, &sumCreated)
		if err != nil {
			return nil, storageErr("scan commit", err)
		}
		c.Summary = buildSummary(sumID, sumText, sumImpact, sumSource, sumCreated)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate commits", err)
	}
	return out, nil
}

func (s *Store) queryPullRequests(ctx context.Context, sql string, args ...any) ([]model.PullRequest, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageErr("query pull requests", err)
	}
	defer rows.Close()

	var out []model.PullRequest
	for rows.Next() {
		var p model.PullRequest
		var sumID *int64
		var sumText, sumImpact, sumSource *string
		var sumCreated *time.Time
		err := rows.Scan(&p.ID, &p.RepositoryID, &p.Number, &p.Title, &p.Body,
			&p.AuthorUsername, &p.URL, &p.State, &p.CreatedAt,
			&p.UpdatedAt, &p.MergedAt, &p.DBCreatedAt,
			&sumID, &sumText, &sumImpact, &sumSource, &sumCreated)
		if err != nil {
			return nil, storageErr("scan pull request", err)
		}
		p.Summary = buildSummary(sumID, sumText, sumImpact, sumSource, sumCreated)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate pull requests", err)
	}
	return out, nil
}

func buildSummary(id *int64, text, impact, source *string, created *time.Time) *model.Summary {
	if id == nil {
		return nil
	}
	sum := &model.Summary{ID: *id}
	if text != nil {
		sum.Text = *text
	}
	if impact != nil {
		sum.Impact = model.ImpactLevel(*impact)
	}
	if source != nil {
		sum.Source = model.SummarySource(*source)
	}
	if created != nil {
		sum.DBCreatedAt = *created
	}
	return sum
}
