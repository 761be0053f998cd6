package repository

import (
	"strings"

	"github.com/git-lfs/wildmatch/v2"
)

// GitAttributes holds the .gitattributes patterns that select or unselect
// one filter driver.
type GitAttributes struct {
	filter   string
	patterns []gitAttributePattern
}

type gitAttributePattern struct {
	// base is the directory of the .gitattributes file, "" for the root.
	base    string
	pattern *wildmatch.Wildmatch
	tracked bool
}

// ParseGitAttributes parses the root .gitattributes content and extracts the
// patterns for the filter driver named filter.
func ParseGitAttributes(content, filter string) *GitAttributes {
	g := &GitAttributes{filter: filter}
	g.add("", content)
	return g
}

// add appends the patterns of the .gitattributes file in directory base.
// Files added later take precedence, so deeper files must come last.
func (g *GitAttributes) add(base, content string) {
	set := "filter=" + g.filter
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		pattern, ok := compilePattern(fields[0])
		if !ok {
			continue
		}

		tracked := false
		unset := false
		for _, attr := range fields[1:] {
			switch {
			case attr == set:
				tracked = true
				unset = false
			case attr == "-filter", attr == "!filter", attr == "filter",
				strings.HasPrefix(attr, "filter="):
				tracked = false
				unset = true
			}
		}

		if tracked || unset {
			g.patterns = append(g.patterns, gitAttributePattern{
				base:    base,
				pattern: pattern,
				tracked: tracked,
			})
		}
	}
}

// Tracked reports whether filePath, relative to the working tree root,
// is routed through the filter.
func (g *GitAttributes) Tracked(filePath string) bool {
	if g == nil || len(g.patterns) == 0 {
		return false
	}
	tracked := false
	for _, p := range g.patterns {
		rel := filePath
		if p.base != "" {
			var ok bool
			rel, ok = strings.CutPrefix(filePath, p.base+"/")
			if !ok {
				continue
			}
		}
		if p.pattern.Match(rel) {
			tracked = p.tracked
		}
	}
	return tracked
}

// compilePattern compiles a .gitattributes pattern the way git-lfs does
// for its own attribute lookups. Patterns without '/' match the basename,
// patterns with '/' match the full path and '**' spans directories.
// Malformed patterns are skipped, as git does.
func compilePattern(pattern string) (w *wildmatch.Wildmatch, ok bool) {
	defer func() {
		if recover() != nil {
			w, ok = nil, false
		}
	}()
	return wildmatch.NewWildmatch(pattern, wildmatch.Basename, wildmatch.GitAttributes), true
}
