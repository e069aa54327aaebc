// internal/diff/filter.go
package diff

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"weekend-activity/internal/model"
)

// DefaultBudget is the total character budget for filtered diff text.
const DefaultBudget = 4000

// DefaultExcludes removes files that add noise without signal: lock files,
// build artifacts, vendored trees, minified assets, editor junk. Entries
// ending in "/" match directory prefixes; entries starting with "*." match
// extensions; everything else matches the base name exactly.
var DefaultExcludes = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"poetry.lock",
	"Gemfile.lock",
	"composer.lock",
	"go.sum",
	"dist/",
	"build/",
	".next/",
	"node_modules/",
	"vendor/",
	"*.min.js",
	"*.min.css",
	".idea/",
	".vscode/",
	".DS_Store",
	"Thumbs.db",
}

var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".rs": true, ".java": true, ".rb": true, ".c": true,
	".h": true, ".cpp": true, ".cs": true, ".kt": true, ".swift": true,
	".sql": true, ".sh": true,
}

var configExtensions = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".env": true,
}

var docExtensions = map[string]bool{
	".md": true, ".txt": true, ".rst": true, ".adoc": true,
}

// Filter turns a set of changed files into one bounded text blob for
// summarization. Pure; safe for concurrent use.
type Filter struct {
	excludes []string
	budget   int
}

// Result is the outcome of filtering one change set.
type Result struct {
	Text          string
	IncludedFiles int
	OmittedFiles  int
	OmittedLines  int
	// AllExcluded is set when every changed file matched the exclusion set,
	// so the caller can short-circuit to a trivial summary.
	AllExcluded bool
}

// NewFilter builds a filter with the given exclusion patterns and character
// budget. Zero values fall back to the defaults.
func NewFilter(excludes []string, budget int) *Filter {
	if len(excludes) == 0 {
		excludes = DefaultExcludes
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Filter{excludes: excludes, budget: budget}
}

// Apply runs the three fixed steps in order: drop excluded files, rank the
// remainder (source, then config, then docs/other, path tiebreak), then
// concatenate per-file diffs until the budget is spent.
func (f *Filter) Apply(files []model.ChangedFile) Result {
	kept := make([]model.ChangedFile, 0, len(files))
	for _, file := range files {
		if !f.excluded(file.Path) {
			kept = append(kept, file)
		}
	}

	if len(kept) == 0 {
		return Result{AllExcluded: len(files) > 0}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		ri, rj := rank(kept[i].Path), rank(kept[j].Path)
		if ri != rj {
			return ri < rj
		}
		return kept[i].Path < kept[j].Path
	})

	var b strings.Builder
	res := Result{}
	exhausted := false
	for _, file := range kept {
		block := formatFile(file)
		if exhausted || (res.IncludedFiles > 0 && b.Len()+len(block) > f.budget) {
			exhausted = true
			res.OmittedFiles++
			res.OmittedLines += file.Additions + file.Deletions
			continue
		}
		if res.IncludedFiles == 0 && len(block) > f.budget {
			block = block[:f.budget]
		}
		b.WriteString(block)
		res.IncludedFiles++
	}

	if res.OmittedFiles > 0 {
		fmt.Fprintf(&b, "\n... %d files (%d lines) omitted to stay within the diff budget ...\n",
			res.OmittedFiles, res.OmittedLines)
	}

	res.Text = b.String()
	return res
}

func (f *Filter) excluded(p string) bool {
	base := path.Base(p)
	for _, pat := range f.excludes {
		switch {
		case strings.HasSuffix(pat, "/"):
			if strings.HasPrefix(p, pat) || strings.Contains(p, "/"+pat) {
				return true
			}
		case strings.HasPrefix(pat, "*."):
			if strings.HasSuffix(base, pat[1:]) {
				return true
			}
		default:
			if base == pat || p == pat {
				return true
			}
		}
	}
	return false
}

// rank orders files for inclusion: source code carries the signal, config
// explains it, documentation rarely changes the verdict.
func rank(p string) int {
	ext := strings.ToLower(path.Ext(p))
	switch {
	case sourceExtensions[ext]:
		return 0
	case configExtensions[ext]:
		return 1
	case docExtensions[ext]:
		return 2
	default:
		return 3
	}
}

// IsSource reports whether a path looks like source code, used by the
// fallback impact heuristic.
func IsSource(p string) bool {
	return rank(p) == 0
}

func formatFile(file model.ChangedFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", file.Path)
	fmt.Fprintf(&b, "Changes: +%d -%d\n", file.Additions, file.Deletions)
	if file.Patch != "" {
		b.WriteString(file.Patch)
		if !strings.HasSuffix(file.Patch, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteByte('\n')
	return b.String()
}
