package theme

import (
	"fmt"
	"strings"

	"github.com/gorilla/css/scanner"
)

type tokenKind int

const (
	kindOther tokenKind = iota
	kindAtKeyword
	kindChar
	kindSpace
	kindFunction
)

type token struct {
	kind   tokenKind
	value  string
	line   int
	column int
}

func (t token) isAtKeyword() bool {
	return t.kind == kindAtKeyword
}

func (t token) isChar(c string) bool {
	return t.kind == kindChar && t.value == c
}

func (t token) isSpace() bool {
	return t.kind == kindSpace
}

func kindOf(tok *scanner.Token) tokenKind {
	switch tok.Type {
	case scanner.TokenAtKeyword:
		return kindAtKeyword
	case scanner.TokenChar:
		return kindChar
	case scanner.TokenS:
		return kindSpace
	case scanner.TokenFunction:
		return kindFunction
	default:
		return kindOther
	}
}

// tokenize runs the CSS scanner over src with Less line comments removed.
// Less syntax is a superset of CSS at the token level for everything
// Compile handles.
func tokenize(src string) ([]token, error) {
	s := scanner.New(stripLineComments(src))
	var tokens []token
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			return tokens, nil
		case scanner.TokenError:
			return nil, fmt.Errorf("theme: syntax error at line %d, column %d: %q", tok.Line, tok.Column, tok.Value)
		}
		tokens = append(tokens, token{kind: kindOf(tok), value: tok.Value, line: tok.Line, column: tok.Column})
	}
}

// splitDeclarations removes top-level "@name: value;" declarations from
// tokens and returns the remaining tokens plus the declared values
// (last declaration wins).
func splitDeclarations(tokens []token) ([]token, map[string]string) {
	defs := make(map[string]string)
	body := make([]token, 0, len(tokens))

	depth := 0
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok.isChar("{"):
			depth++
		case tok.isChar("}"):
			if depth > 0 {
				depth--
			}
		}

		if depth == 0 && tok.isAtKeyword() {
			if colon := nextNonSpace(tokens, i+1); colon < len(tokens) && tokens[colon].isChar(":") {
				end := declarationEnd(tokens, colon+1)
				defs[tok.value] = strings.TrimSpace(joinTokens(tokens[colon+1 : end]))

				i = end
				// drop the whitespace that followed the declaration
				if i+1 < len(tokens) && tokens[i+1].isSpace() {
					i++
				}
				continue
			}
		}

		body = append(body, tok)
	}
	return body, defs
}

func nextNonSpace(tokens []token, i int) int {
	for i < len(tokens) && tokens[i].isSpace() {
		i++
	}
	return i
}

// declarationEnd returns the index of the ";" terminating a declaration
// value starting at i, ignoring semicolons nested in parentheses.
// It returns len(tokens) if the value runs to the end of input.
func declarationEnd(tokens []token, i int) int {
	parens := 0
	for ; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok.kind == kindFunction, tok.isChar("("):
			parens++
		case tok.isChar(")"):
			if parens > 0 {
				parens--
			}
		case tok.isChar(";") && parens == 0:
			return i
		}
	}
	return len(tokens)
}

func joinTokens(tokens []token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.value)
	}
	return sb.String()
}

// stripLineComments removes Less "//" comments up to the end of the line.
// Quoted strings, block comments and url(...) arguments are left alone.
func stripLineComments(src string) string {
	if !strings.Contains(src, "//") {
		return src
	}

	var sb strings.Builder
	sb.Grow(len(src))

	var quote byte
	inBlock, inURL := false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		next := byte(0)
		if i+1 < len(src) {
			next = src[i+1]
		}

		switch {
		case inBlock:
			if c == '*' && next == '/' {
				inBlock = false
				sb.WriteString("*/")
				i++
				continue
			}
		case quote != 0:
			if c == '\\' && next != 0 {
				sb.WriteByte(c)
				sb.WriteByte(next)
				i++
				continue
			}
			if c == quote || c == '\n' {
				quote = 0
			}
		case inURL:
			if c == ')' {
				inURL = false
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '/' && next == '*':
			inBlock = true
			sb.WriteString("/*")
			i++
			continue
		case c == '/' && next == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				sb.WriteByte('\n')
			}
			continue
		case c == '(' && i >= 3 && strings.EqualFold(src[i-3:i], "url"):
			inURL = true
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
