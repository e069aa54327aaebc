// internal/summarizer/engine_test.go
package summarizer

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"weekend-activity/internal/diff"
	custom_errors "weekend-activity/internal/errors"
	"weekend-activity/internal/model"
	"weekend-activity/internal/retry"
)

// MockGenerator is a mock of the Generator interface.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	args := m.Called(ctx, prompt, maxTokens)
	return args.String(0), args.Error(1)
}

// MockDiffSource is a mock of the DiffSource interface.
type MockDiffSource struct {
	mock.Mock
}

func (m *MockDiffSource) CommitFiles(ctx context.Context, owner, name, sha string) ([]model.ChangedFile, error) {
	args := m.Called(ctx, owner, name, sha)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChangedFile), args.Error(1)
}

func (m *MockDiffSource) PullRequestFiles(ctx context.Context, owner, name string, number int) ([]model.ChangedFile, error) {
	args := m.Called(ctx, owner, name, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChangedFile), args.Error(1)
}

// MockStore is a mock of the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) AttachCommitSummary(ctx context.Context, commitID int64, sum model.Summary) (model.Summary, error) {
	args := m.Called(ctx, commitID, sum)
	return args.Get(0).(model.Summary), args.Error(1)
}

func (m *MockStore) AttachPullRequestSummary(ctx context.Context, prID int64, sum model.Summary) (model.Summary, error) {
	args := m.Called(ctx, prID, sum)
	return args.Get(0).(model.Summary), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine(gen Generator, diffs DiffSource, store Store) *Engine {
	return NewEngine(gen, diffs, store, diff.NewFilter(nil, 0),
		retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}, testLogger())
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantText   string
		wantImpact model.ImpactLevel
		wantOK     bool
	}{
		{
			name:       "well formed",
			raw:        "SUMMARY: Refactored the auth layer.\nIMPACT: HIGH",
			wantText:   "Refactored the auth layer.",
			wantImpact: model.ImpactHigh,
			wantOK:     true,
		},
		{
			name:       "fenced and padded",
			raw:        "```\n  SUMMARY: Small doc fix.\n  IMPACT: low\n```",
			wantText:   "Small doc fix.",
			wantImpact: model.ImpactLow,
			wantOK:     true,
		},
		{
			name:   "missing summary line",
			raw:    "IMPACT: MEDIUM",
			wantOK: false,
		},
		{
			name:   "unrecognized impact",
			raw:    "SUMMARY: Something.\nIMPACT: CATASTROPHIC",
			wantOK: false,
		},
		{
			name:   "empty response",
			raw:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, impact, ok := parseResponse(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantText, text)
				assert.Equal(t, tt.wantImpact, impact)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	t.Run("large source change is high impact", func(t *testing.T) {
		sum := Fallback([]model.ChangedFile{
			{Path: "internal/server/server.go", Additions: 120, Deletions: 30},
		})

		assert.Equal(t, model.ImpactHigh, sum.Impact)
		assert.Equal(t, model.SourceFallback, sum.Source)
		assert.Equal(t, "1 files changed, +120/-30 lines", sum.Text)
	})

	t.Run("spec scenario: one source file with 150 changed lines", func(t *testing.T) {
		sum := Fallback([]model.ChangedFile{
			{Path: "src/app.py", Additions: 100, Deletions: 50},
		})
		assert.Equal(t, model.ImpactHigh, sum.Impact)
	})

	t.Run("small source change is medium impact", func(t *testing.T) {
		sum := Fallback([]model.ChangedFile{
			{Path: "src/app.py", Additions: 3, Deletions: 2},
		})
		assert.Equal(t, model.ImpactMedium, sum.Impact)
	})

	t.Run("docs only is low impact", func(t *testing.T) {
		sum := Fallback([]model.ChangedFile{
			{Path: "README.md", Additions: 200, Deletions: 10},
		})
		assert.Equal(t, model.ImpactLow, sum.Impact)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		files := []model.ChangedFile{{Path: "a.go", Additions: 60, Deletions: 50}}
		assert.Equal(t, Fallback(files), Fallback(files))
	})
}

func TestSummarizeCommit_DisabledGeneratorUsesFallback(t *testing.T) {
	ctx := context.Background()
	repo := model.Repository{ID: 1, Owner: "acme", Name: "widgets"}
	commit := model.Commit{ID: 42, SHA: "abc1234def"}

	diffs := new(MockDiffSource)
	diffs.On("CommitFiles", ctx, "acme", "widgets", "abc1234def").
		Return([]model.ChangedFile{{Path: "src/app.py", Additions: 100, Deletions: 50, Patch: "@@"}}, nil).Once()

	st := new(MockStore)
	st.On("AttachCommitSummary", ctx, int64(42), mock.MatchedBy(func(s model.Summary) bool {
		return s.Source == model.SourceFallback && s.Impact == model.ImpactHigh && s.Text != ""
	})).Return(model.Summary{ID: 1, Impact: model.ImpactHigh, Source: model.SourceFallback}, nil).Once()

	engine := newTestEngine(nil, diffs, st)
	sum, err := engine.SummarizeCommit(ctx, repo, commit)

	require.NoError(t, err)
	assert.Equal(t, model.ImpactHigh, sum.Impact)
	st.AssertExpectations(t)
}

func TestSummarizeCommit_AllExcludedShortCircuits(t *testing.T) {
	ctx := context.Background()
	repo := model.Repository{ID: 1, Owner: "acme", Name: "widgets"}
	commit := model.Commit{ID: 7, SHA: "lockonly"}

	gen := new(MockGenerator)

	diffs := new(MockDiffSource)
	diffs.On("CommitFiles", ctx, "acme", "widgets", "lockonly").
		Return([]model.ChangedFile{{Path: "package-lock.json", Additions: 900}}, nil).Once()

	st := new(MockStore)
	st.On("AttachCommitSummary", ctx, int64(7), mock.MatchedBy(func(s model.Summary) bool {
		return s.Impact == model.ImpactLow && s.Source == model.SourceFallback
	})).Return(model.Summary{ID: 2, Impact: model.ImpactLow}, nil).Once()

	engine := newTestEngine(gen, diffs, st)
	_, err := engine.SummarizeCommit(ctx, repo, commit)

	require.NoError(t, err)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSummarizeCommit_GenerationFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	repo := model.Repository{ID: 1, Owner: "acme", Name: "widgets"}
	commit := model.Commit{ID: 9, SHA: "deadbeef"}

	gen := new(MockGenerator)
	gen.On("Generate", ctx, mock.Anything, defaultMaxTokens).
		Return("", &custom_errors.GenerationError{Err: assert.AnError}).Times(2)

	diffs := new(MockDiffSource)
	diffs.On("CommitFiles", ctx, "acme", "widgets", "deadbeef").
		Return([]model.ChangedFile{{Path: "main.go", Additions: 4, Deletions: 1, Patch: "@@"}}, nil).Once()

	st := new(MockStore)
	st.On("AttachCommitSummary", ctx, int64(9), mock.MatchedBy(func(s model.Summary) bool {
		return s.Source == model.SourceFallback && s.Impact == model.ImpactMedium
	})).Return(model.Summary{ID: 3}, nil).Once()

	engine := newTestEngine(gen, diffs, st)
	_, err := engine.SummarizeCommit(ctx, repo, commit)

	require.NoError(t, err, "summarization errors are never fatal")
	gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestSummarizeCommit_GeneratedSummaryPersisted(t *testing.T) {
	ctx := context.Background()
	repo := model.Repository{ID: 1, Owner: "acme", Name: "widgets"}
	commit := model.Commit{ID: 11, SHA: "cafef00d", Message: "tighten validation"}

	gen := new(MockGenerator)
	gen.On("Generate", ctx, mock.MatchedBy(func(prompt string) bool {
		return len(prompt) > 0
	}), defaultMaxTokens).Return("SUMMARY: Tightened input validation.\nIMPACT: MEDIUM", nil).Once()

	diffs := new(MockDiffSource)
	diffs.On("CommitFiles", ctx, "acme", "widgets", "cafef00d").
		Return([]model.ChangedFile{{Path: "validate.go", Additions: 12, Deletions: 3, Patch: "@@"}}, nil).Once()

	st := new(MockStore)
	st.On("AttachCommitSummary", ctx, int64(11), mock.MatchedBy(func(s model.Summary) bool {
		return s.Source == model.SourceGenerated &&
			s.Text == "Tightened input validation." &&
			s.Impact == model.ImpactMedium
	})).Return(model.Summary{ID: 4, Source: model.SourceGenerated}, nil).Once()

	engine := newTestEngine(gen, diffs, st)
	sum, err := engine.SummarizeCommit(ctx, repo, commit)

	require.NoError(t, err)
	assert.Equal(t, model.SourceGenerated, sum.Source)
	st.AssertExpectations(t)
}

func TestSummarizeCommit_DuplicateSummaryIsSkipped(t *testing.T) {
	ctx := context.Background()
	repo := model.Repository{ID: 1, Owner: "acme", Name: "widgets"}
	commit := model.Commit{ID: 13, SHA: "aaa"}

	diffs := new(MockDiffSource)
	diffs.On("CommitFiles", ctx, "acme", "widgets", "aaa").
		Return([]model.ChangedFile{{Path: "x.go", Additions: 1}}, nil).Once()

	st := new(MockStore)
	st.On("AttachCommitSummary", ctx, int64(13), mock.Anything).
		Return(model.Summary{}, &custom_errors.DuplicateSummaryError{Kind: "commit", ID: 13}).Once()

	engine := newTestEngine(nil, diffs, st)
	_, err := engine.SummarizeCommit(ctx, repo, commit)

	assert.NoError(t, err, "an already-summarized record is a skip, not a failure")
}

func TestSummarizePullRequest_DiffUnavailableFallsBack(t *testing.T) {
	ctx := context.Background()
	repo := model.Repository{ID: 1, Owner: "acme", Name: "widgets"}
	pr := model.PullRequest{ID: 21, Number: 8, Title: "weekend work"}

	// A configured generator is never consulted when there is no diff to
	// prompt it with.
	gen := new(MockGenerator)

	diffs := new(MockDiffSource)
	diffs.On("PullRequestFiles", ctx, "acme", "widgets", 8).
		Return(nil, &custom_errors.NetworkError{Err: assert.AnError}).Once()

	st := new(MockStore)
	st.On("AttachPullRequestSummary", ctx, int64(21), mock.MatchedBy(func(s model.Summary) bool {
		return s.Source == model.SourceFallback && s.Impact == model.ImpactLow
	})).Return(model.Summary{ID: 5}, nil).Once()

	engine := newTestEngine(gen, diffs, st)
	_, err := engine.SummarizePullRequest(ctx, repo, pr)

	require.NoError(t, err)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	st.AssertExpectations(t)
}
