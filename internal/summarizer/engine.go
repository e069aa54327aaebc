// internal/summarizer/engine.go
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"weekend-activity/internal/diff"
	custom_errors "weekend-activity/internal/errors"
	"weekend-activity/internal/model"
	"weekend-activity/internal/retry"
)

// Generator is the text-generation capability. A nil Generator disables AI
// summaries entirely; every record then gets the deterministic fallback.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// DiffSource lazily fetches the changed files for a record.
type DiffSource interface {
	CommitFiles(ctx context.Context, owner, name, sha string) ([]model.ChangedFile, error)
	PullRequestFiles(ctx context.Context, owner, name string, number int) ([]model.ChangedFile, error)
}

// Store is the attach-summary slice of the activity store.
type Store interface {
	AttachCommitSummary(ctx context.Context, commitID int64, sum model.Summary) (model.Summary, error)
	AttachPullRequestSummary(ctx context.Context, prID int64, sum model.Summary) (model.Summary, error)
}

const defaultMaxTokens = 512

// Engine produces exactly one summary per record: filtered diff in, a
// generated or fallback summary out, persisted through the store. The
// fallback path is fully deterministic so reports never depend on the
// generation capability being up.
type Engine struct {
	gen       Generator
	diffs     DiffSource
	store     Store
	filter    *diff.Filter
	retry     retry.Policy
	logger    *slog.Logger
	maxTokens int
}

// NewEngine creates an Engine. gen may be nil to force fallback summaries.
func NewEngine(gen Generator, diffs DiffSource, store Store, filter *diff.Filter, policy retry.Policy, logger *slog.Logger) *Engine {
	return &Engine{
		gen:       gen,
		diffs:     diffs,
		store:     store,
		filter:    filter,
		retry:     policy,
		logger:    logger,
		maxTokens: defaultMaxTokens,
	}
}

// SummarizeCommit generates and persists the summary for one commit. Records
// that already have a summary are skipped, never re-summarized.
func (e *Engine) SummarizeCommit(ctx context.Context, repo model.Repository, c model.Commit) (model.Summary, error) {
	logger := e.logger.With("repo", repo.FullName(), "sha", shortSHA(c.SHA))

	var sum model.Summary
	files, err := e.diffs.CommitFiles(ctx, repo.Owner, repo.Name, c.SHA)
	if err != nil {
		// Without a diff there is nothing to prompt the generator with.
		logger.Warn("Diff unavailable, using fallback summary", "error", err)
		sum = Fallback(nil)
	} else {
		filtered := e.filter.Apply(files)
		sum = e.summarize(ctx, logger, commitPrompt(c, filtered), filtered, files)
	}

	stored, err := e.store.AttachCommitSummary(ctx, c.ID, sum)
	var dup *custom_errors.DuplicateSummaryError
	if errors.As(err, &dup) {
		logger.Info("Commit already summarized, skipping")
		return sum, nil
	}
	if err != nil {
		return model.Summary{}, err
	}
	return stored, nil
}

// SummarizePullRequest generates and persists the summary for one pull
// request with the same idempotency rules as SummarizeCommit.
func (e *Engine) SummarizePullRequest(ctx context.Context, repo model.Repository, pr model.PullRequest) (model.Summary, error) {
	logger := e.logger.With("repo", repo.FullName(), "pr", pr.Number)

	var sum model.Summary
	files, err := e.diffs.PullRequestFiles(ctx, repo.Owner, repo.Name, pr.Number)
	if err != nil {
		logger.Warn("Diff unavailable, using fallback summary", "error", err)
		sum = Fallback(nil)
	} else {
		filtered := e.filter.Apply(files)
		sum = e.summarize(ctx, logger, prPrompt(pr, filtered), filtered, files)
	}

	stored, err := e.store.AttachPullRequestSummary(ctx, pr.ID, sum)
	var dup *custom_errors.DuplicateSummaryError
	if errors.As(err, &dup) {
		logger.Info("Pull request already summarized, skipping")
		return sum, nil
	}
	if err != nil {
		return model.Summary{}, err
	}
	return stored, nil
}

// summarize attempts generation and resolves every failure class to the
// deterministic fallback, so the result is always usable.
func (e *Engine) summarize(ctx context.Context, logger *slog.Logger, prompt string, filtered diff.Result, files []model.ChangedFile) model.Summary {
	if filtered.AllExcluded {
		return model.Summary{
			Text:   "No significant changes (only excluded or generated files)",
			Impact: model.ImpactLow,
			Source: model.SourceFallback,
		}
	}

	if e.gen == nil {
		return Fallback(files)
	}

	var raw string
	err := e.retry.Do(ctx, generationRetryable, func(ctx context.Context) error {
		var err error
		raw, err = e.gen.Generate(ctx, prompt, e.maxTokens)
		return err
	})
	if err != nil {
		logger.Warn("Generation failed, using fallback summary", "error", err)
		return Fallback(files)
	}

	text, impact, ok := parseResponse(raw)
	if !ok {
		logger.Warn("Could not parse generation response, using fallback summary")
		return Fallback(files)
	}

	return model.Summary{Text: text, Impact: impact, Source: model.SourceGenerated}
}

// Fallback derives a summary from file and line counts alone. Same input,
// same output; no I/O.
func Fallback(files []model.ChangedFile) model.Summary {
	additions, deletions := 0, 0
	touchesSource := false
	for _, f := range files {
		additions += f.Additions
		deletions += f.Deletions
		if diff.IsSource(f.Path) {
			touchesSource = true
		}
	}

	impact := model.ImpactLow
	switch {
	case touchesSource && additions+deletions > 100:
		impact = model.ImpactHigh
	case touchesSource:
		impact = model.ImpactMedium
	}

	return model.Summary{
		Text:   fmt.Sprintf("%d files changed, +%d/-%d lines", len(files), additions, deletions),
		Impact: impact,
		Source: model.SourceFallback,
	}
}

// parseResponse extracts the SUMMARY:/IMPACT: pair the prompt demands. A
// missing summary line or unrecognized impact level fails the parse.
func parseResponse(raw string) (string, model.ImpactLevel, bool) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	var text string
	var impact model.ImpactLevel
	impactOK := false

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if after, found := strings.CutPrefix(line, "SUMMARY:"); found {
			text = strings.TrimSpace(after)
		} else if after, found := strings.CutPrefix(line, "IMPACT:"); found {
			impact, impactOK = model.ParseImpactLevel(strings.ToUpper(strings.TrimSpace(after)))
		}
	}

	if text == "" || !impactOK {
		return "", "", false
	}
	return text, impact, true
}

// generationRetryable retries every generation failure; the policy bounds
// the attempts and the fallback catches whatever survives.
func generationRetryable(err error) bool {
	var gen *custom_errors.GenerationError
	return errors.As(err, &gen)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func commitPrompt(c model.Commit, filtered diff.Result) string {
	var b strings.Builder
	b.WriteString("Analyze this git commit and provide a concise summary.\n\n")
	fmt.Fprintf(&b, "Author: %s\n", c.AuthorUsername)
	fmt.Fprintf(&b, "Commit message:\n%s\n\n", c.Message)
	writeDiffSection(&b, filtered)
	b.WriteString(responseContract)
	return b.String()
}

func prPrompt(pr model.PullRequest, filtered diff.Result) string {
	var b strings.Builder
	b.WriteString("Analyze this pull request and provide a concise summary.\n\n")
	fmt.Fprintf(&b, "Author: %s\n", pr.AuthorUsername)
	fmt.Fprintf(&b, "Title: %s\n", pr.Title)
	body := pr.Body
	if body == "" {
		body = "No description provided"
	}
	fmt.Fprintf(&b, "Description:\n%s\n\n", body)
	writeDiffSection(&b, filtered)
	b.WriteString(responseContract)
	return b.String()
}

func writeDiffSection(b *strings.Builder, filtered diff.Result) {
	fmt.Fprintf(b, "Changes (%d files shown, %d omitted):\n", filtered.IncludedFiles, filtered.OmittedFiles)
	if filtered.Text == "" {
		b.WriteString("No changes available\n")
	} else {
		b.WriteString(filtered.Text)
	}
	b.WriteString("\n")
}

const responseContract = `Provide:
1. A brief (1-2 sentences) summary of the changes
2. Impact level (LOW/MEDIUM/HIGH) based on the scope and complexity of changes

Format the response exactly as:
SUMMARY: <your summary>
IMPACT: <impact level>
`
