// Package rules holds the proxy rule table: which request paths are
// forwarded, and to which backend origin.
package rules

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Rule forwards requests whose path matches Prefix (or Glob) to Target.
type Rule struct {
	// Prefix is a literal path prefix matched against the start of the request path.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`

	// Glob is a path pattern ("/" separated, "**" crosses segments).
	// Only one of Prefix and Glob may be set.
	Glob string `yaml:"glob,omitempty" json:"glob,omitempty"`

	// Target is the backend origin, e.g. "http://localhost:8000".
	Target string `yaml:"target" json:"target"`

	// ChangeOrigin rewrites the outbound Host header to the target host.
	ChangeOrigin bool `yaml:"change_origin" json:"change_origin"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Key identifies the rule within a table: the prefix, or "glob:" plus the pattern.
func (r Rule) Key() string {
	if r.Glob != "" {
		return "glob:" + r.Glob
	}
	return r.Prefix
}

// Validate checks the matcher and the target origin.
func (r Rule) Validate() error {
	switch {
	case r.Prefix == "" && r.Glob == "":
		return errors.New("no matcher specified (must specify one of: prefix, glob)")
	case r.Prefix != "" && r.Glob != "":
		return errors.New("multiple matchers specified (only one of prefix, glob is allowed)")
	case r.Prefix != "" && !strings.HasPrefix(r.Prefix, "/"):
		return fmt.Errorf("prefix %q must start with /", r.Prefix)
	}

	if r.Glob != "" {
		if _, err := glob.Compile(r.Glob, '/'); err != nil {
			return fmt.Errorf("invalid glob pattern %q: %w", r.Glob, err)
		}
	}

	if _, err := r.TargetURL(); err != nil {
		return err
	}
	return nil
}

// TargetURL parses and checks Target.
func (r Rule) TargetURL() (*url.URL, error) {
	if r.Target == "" {
		return nil, errors.New("target is required")
	}

	u, err := url.Parse(r.Target)
	if err != nil {
		return nil, fmt.Errorf("target %q is not a valid URL: %w", r.Target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("target %q must use http or https", r.Target)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("target %q has no host", r.Target)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("target %q must not contain a query or fragment", r.Target)
	}
	return u, nil
}

func (r Rule) String() string {
	return fmt.Sprintf("%s -> %s (change_origin=%t)", r.Key(), r.Target, r.ChangeOrigin)
}
