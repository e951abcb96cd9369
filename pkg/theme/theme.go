// Package theme applies Less variable overrides (modifyVars) to style sheets.
//
// Overrides are appended to a Less source the same way the Less compiler's
// modifyVars option does it, so the last definition wins. Compile goes one
// step further for flat style sheets: it resolves variable references and
// emits plain CSS.
package theme

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrInlineJavascript is returned for style sheets with backtick
	// expressions when JavascriptEnabled is false.
	ErrInlineJavascript = errors.New("theme: inline javascript is not enabled")

	// ErrUndefinedVariable is returned when a variable value or a property
	// value references a variable that is never declared.
	ErrUndefinedVariable = errors.New("theme: undefined variable")

	// ErrRecursiveVariable is returned for self-referencing variable chains.
	ErrRecursiveVariable = errors.New("theme: recursive variable definition")
)

var variableName = regexp.MustCompile(`^@[A-Za-z_][A-Za-z0-9_-]*$`)

// Overrides is the theme variable override set.
type Overrides struct {
	// ModifyVars maps "@name" to a literal Less value.
	ModifyVars map[string]string `yaml:"modify_vars,omitempty" json:"modify_vars,omitempty"`

	// JavascriptEnabled permits inline backtick expressions in style sheets.
	JavascriptEnabled bool `yaml:"javascript_enabled" json:"javascript_enabled"`
}

// Validate checks variable names and values.
func (o Overrides) Validate() error {
	var errs []error
	for _, name := range o.names() {
		if !variableName.MatchString(name) {
			errs = append(errs, fmt.Errorf("theme.modify_vars: invalid variable name %q (must look like @primary-color)", name))
		}
		if strings.TrimSpace(o.ModifyVars[name]) == "" {
			errs = append(errs, fmt.Errorf("theme.modify_vars: value for %s is empty", name))
		}
	}
	return errors.Join(errs...)
}

func (o Overrides) names() []string {
	names := make([]string, 0, len(o.ModifyVars))
	for name := range o.ModifyVars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preamble renders the overrides as Less declarations, one per line, sorted by name.
func (o Overrides) Preamble() string {
	var sb strings.Builder
	for _, name := range o.names() {
		fmt.Fprintf(&sb, "%s: %s;\n", name, strings.TrimSpace(o.ModifyVars[name]))
	}
	return sb.String()
}

// Apply returns src with the overrides appended.
func (o Overrides) Apply(src string) (string, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return "", err
	}
	if err := o.checkJavascript(tokens); err != nil {
		return "", err
	}
	if len(o.ModifyVars) == 0 {
		return src, nil
	}

	out := src
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + o.Preamble(), nil
}

// Compile resolves the variables of a flat Less style sheet with the
// overrides merged on top and returns the resulting CSS.
func (o Overrides) Compile(src string) (string, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return "", err
	}
	if err := o.checkJavascript(tokens); err != nil {
		return "", err
	}

	body, defs := splitDeclarations(tokens)
	for name, value := range o.ModifyVars {
		defs[name] = strings.TrimSpace(value)
	}

	r := &resolver{defs: defs, resolved: make(map[string]string)}

	var sb strings.Builder
	depth, inValue := 0, false
	for i, tok := range body {
		switch {
		case tok.isChar("{"):
			depth++
			inValue = false
		case tok.isChar("}"):
			if depth > 0 {
				depth--
			}
			inValue = false
		case tok.isChar(";"):
			inValue = false
		case tok.isChar(":") && depth > 0:
			inValue = true
		}

		if tok.isAtKeyword() {
			if _, ok := defs[tok.value]; ok {
				value, err := r.resolve(tok.value, nil)
				if err != nil {
					return "", err
				}
				sb.WriteString(value)
				continue
			}
			// at-rules pass through; a bare name inside a property value is a reference
			if inValue && endsReference(body, i+1) {
				return "", fmt.Errorf("%w: %s (line %d, column %d)", ErrUndefinedVariable, tok.value, tok.line, tok.column)
			}
		}
		sb.WriteString(tok.value)
	}
	return sb.String(), nil
}

func endsReference(tokens []token, i int) bool {
	if i >= len(tokens) {
		return true
	}
	next := tokens[i]
	return next.isSpace() || next.isChar(";") || next.isChar(",") || next.isChar(")") || next.isChar("}")
}

func (o Overrides) checkJavascript(tokens []token) error {
	if o.JavascriptEnabled {
		return nil
	}
	for _, tok := range tokens {
		if tok.isChar("`") {
			return fmt.Errorf("%w (line %d, column %d)", ErrInlineJavascript, tok.line, tok.column)
		}
	}
	return nil
}

type resolver struct {
	defs     map[string]string
	resolved map[string]string
}

func (r *resolver) resolve(name string, stack []string) (string, error) {
	if value, ok := r.resolved[name]; ok {
		return value, nil
	}
	for _, seen := range stack {
		if seen == name {
			return "", fmt.Errorf("%w: %s", ErrRecursiveVariable, strings.Join(append(stack, name), " -> "))
		}
	}

	raw, ok := r.defs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUndefinedVariable, name)
	}

	tokens, err := tokenize(raw)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, tok := range tokens {
		if tok.isAtKeyword() {
			value, err := r.resolve(tok.value, append(stack, name))
			if err != nil {
				return "", err
			}
			sb.WriteString(value)
			continue
		}
		sb.WriteString(tok.value)
	}

	value := strings.TrimSpace(sb.String())
	r.resolved[name] = value
	return value, nil
}
