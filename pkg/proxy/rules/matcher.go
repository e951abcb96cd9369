package rules

import (
	"strings"

	"github.com/gobwas/glob"
)

// Matcher is an interface for path matching
type Matcher interface {
	// Match returns true if the path matches
	Match(path string) bool
}

// PrefixMatcher matches path prefixes
type PrefixMatcher struct {
	prefix string
}

func NewPrefixMatcher(prefix string) *PrefixMatcher {
	return &PrefixMatcher{prefix: prefix}
}

func (m *PrefixMatcher) Match(path string) bool {
	return strings.HasPrefix(path, m.prefix)
}

// GlobMatcher matches paths using glob patterns with "/" as separator
type GlobMatcher struct {
	glob glob.Glob
}

func NewGlobMatcher(pattern string) (*GlobMatcher, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	return &GlobMatcher{glob: g}, nil
}

func (m *GlobMatcher) Match(path string) bool {
	return m.glob.Match(path)
}
