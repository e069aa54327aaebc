// internal/report/report.go
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"weekend-activity/internal/model"
	"weekend-activity/internal/window"
)

// Format selects the report rendering.
type Format string

const (
	FormatText  Format = "text"
	FormatSlack Format = "slack"
)

// ParseFormat validates a format string from the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatSlack:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown report format %q, expected text or slack", s)
}

const (
	defaultMaxCommitsPerUser = 5
	defaultMaxPRsPerUser     = 5
)

// Builder renders window activity into a report string. It has no side
// effects; persistence and delivery belong to the orchestrator.
type Builder struct {
	maxCommitsPerUser int
	maxPRsPerUser     int
}

// NewBuilder creates a Builder. Non-positive caps fall back to the defaults.
func NewBuilder(maxCommitsPerUser, maxPRsPerUser int) *Builder {
	if maxCommitsPerUser <= 0 {
		maxCommitsPerUser = defaultMaxCommitsPerUser
	}
	if maxPRsPerUser <= 0 {
		maxPRsPerUser = defaultMaxPRsPerUser
	}
	return &Builder{maxCommitsPerUser: maxCommitsPerUser, maxPRsPerUser: maxPRsPerUser}
}

// contributor groups one handle's records within the window.
type contributor struct {
	handle  string
	commits []model.Commit
	prs     []model.PullRequest
}

func (c contributor) total() int { return len(c.commits) + len(c.prs) }

// Build renders the activity for the given window in the requested format.
func (b *Builder) Build(w window.Window, activity model.Activity, format Format) (string, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return "", err
	}

	contributors := groupByContributor(activity)

	var lines []string
	if format == FormatSlack {
		lines = append(lines,
			"🚀 *Weekend Warriors Report*",
			fmt.Sprintf("_Activity from %s to %s_\n", stamp(w.Start), stamp(w.End)))
	} else {
		lines = append(lines,
			"Weekend Warriors Report",
			fmt.Sprintf("Activity from %s to %s\n", stamp(w.Start), stamp(w.End)))
	}

	if len(contributors) == 0 {
		lines = append(lines, "No weekend activity found.")
		return strings.Join(lines, "\n"), nil
	}

	for _, c := range contributors {
		if format == FormatSlack {
			lines = append(lines, fmt.Sprintf("\n👤 *@%s*", c.handle))
		} else {
			lines = append(lines, fmt.Sprintf("\n👤 @%s", c.handle))
		}

		if len(c.commits) > 0 {
			lines = append(lines, fmt.Sprintf("  • %d commits:", len(c.commits)))
			shown := c.commits
			if len(shown) > b.maxCommitsPerUser {
				shown = shown[:b.maxCommitsPerUser]
			}
			for _, commit := range shown {
				lines = append(lines, formatCommit(commit, format)...)
			}
			if omitted := len(c.commits) - len(shown); omitted > 0 {
				lines = append(lines, fmt.Sprintf("    ... and %d more", omitted))
			}
		}

		if len(c.prs) > 0 {
			lines = append(lines, fmt.Sprintf("  • %d pull requests:", len(c.prs)))
			shown := c.prs
			if len(shown) > b.maxPRsPerUser {
				shown = shown[:b.maxPRsPerUser]
			}
			for _, pr := range shown {
				lines = append(lines, formatPR(pr, format)...)
			}
			if omitted := len(c.prs) - len(shown); omitted > 0 {
				lines = append(lines, fmt.Sprintf("    ... and %d more", omitted))
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}

// groupByContributor buckets records per handle and orders the result: total
// records descending, handle ascending on ties. Within a contributor, items
// stay in timestamp order.
func groupByContributor(activity model.Activity) []contributor {
	byHandle := make(map[string]*contributor)

	bucket := func(handle string) *contributor {
		c, ok := byHandle[handle]
		if !ok {
			c = &contributor{handle: handle}
			byHandle[handle] = c
		}
		return c
	}

	for _, commit := range activity.Commits {
		c := bucket(commit.AuthorUsername)
		c.commits = append(c.commits, commit)
	}
	for _, pr := range activity.PullRequests {
		c := bucket(pr.AuthorUsername)
		c.prs = append(c.prs, pr)
	}

	contributors := make([]contributor, 0, len(byHandle))
	for _, c := range byHandle {
		sort.SliceStable(c.commits, func(i, j int) bool {
			return c.commits[i].CommittedAt.Before(c.commits[j].CommittedAt)
		})
		sort.SliceStable(c.prs, func(i, j int) bool {
			return c.prs[i].CreatedAt.Before(c.prs[j].CreatedAt)
		})
		contributors = append(contributors, *c)
	}

	sort.SliceStable(contributors, func(i, j int) bool {
		if contributors[i].total() != contributors[j].total() {
			return contributors[i].total() > contributors[j].total()
		}
		return contributors[i].handle < contributors[j].handle
	})

	return contributors
}

func formatCommit(c model.Commit, format Format) []string {
	title := firstLine(c.Message)
	var lines []string
	if format == FormatSlack {
		lines = append(lines, fmt.Sprintf("    - <%s|%s>", c.URL, title))
	} else {
		lines = append(lines, fmt.Sprintf("    - %s", title), fmt.Sprintf("      %s", c.URL))
	}
	return append(lines, formatSummary(c.Summary, format)...)
}

func formatPR(pr model.PullRequest, format Format) []string {
	var lines []string
	if format == FormatSlack {
		lines = append(lines, fmt.Sprintf("    - <%s|%s>", pr.URL, pr.Title))
	} else {
		lines = append(lines, fmt.Sprintf("    - %s", pr.Title), fmt.Sprintf("      %s", pr.URL))
	}
	return append(lines, formatSummary(pr.Summary, format)...)
}

func formatSummary(sum *model.Summary, format Format) []string {
	if sum == nil {
		return nil
	}
	if format == FormatSlack {
		return []string{
			fmt.Sprintf("      _%s_", sum.Text),
			fmt.Sprintf("      Impact: %s", sum.Impact),
		}
	}
	return []string{
		fmt.Sprintf("      Summary: %s", sum.Text),
		fmt.Sprintf("      Impact: %s", sum.Impact),
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func stamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
