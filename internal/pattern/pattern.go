// Package pattern validates and compiles policy match patterns.
//
// Patterns use regular expression syntax with substring-search semantics:
// a pattern matches anywhere in the input unless the author anchors it
// with ^ and $. Validation runs once at configuration load and rejects
// both syntactically invalid patterns and patterns with nested
// repetition, so a bad pattern can never silently disable a control.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"regexp/syntax"
)

var (
	// ErrInvalidPattern marks a pattern that does not parse.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrUnsafePattern marks a pattern with a quantified group that
	// directly contains another quantified sub-expression.
	ErrUnsafePattern = errors.New("unsafe pattern: nested repetition")
)

// Matcher is a compiled pattern, immutable and safe for concurrent use.
type Matcher struct {
	re  *regexp.Regexp
	src string
}

// Compile validates and compiles a pattern.
func Compile(p string) (*Matcher, error) {
	return compile(p, p)
}

// CompileFold compiles a pattern with case folding, used for recipient
// allow-lists where matching is always case-insensitive.
func CompileFold(p string) (*Matcher, error) {
	return compile(p, "(?i)"+p)
}

func compile(src, expr string) (*Matcher, error) {
	parsed, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, src, err)
	}
	if hasNestedRepeat(parsed) {
		return nil, fmt.Errorf("%w: %q", ErrUnsafePattern, src)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, src, err)
	}
	return &Matcher{re: re, src: src}, nil
}

// MatchString reports whether the pattern matches anywhere in s.
func (m *Matcher) MatchString(s string) bool {
	return m.re.MatchString(s)
}

// String returns the pattern source as the author wrote it.
func (m *Matcher) String() string {
	return m.src
}

func isRepeat(op syntax.Op) bool {
	switch op {
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		return true
	}
	return false
}

// hasNestedRepeat walks the parse tree looking for a quantifier whose
// body contains another quantifier.
func hasNestedRepeat(re *syntax.Regexp) bool {
	if isRepeat(re.Op) {
		for _, sub := range re.Sub {
			if containsRepeat(sub) {
				return true
			}
		}
	}
	for _, sub := range re.Sub {
		if hasNestedRepeat(sub) {
			return true
		}
	}
	return false
}

func containsRepeat(re *syntax.Regexp) bool {
	if isRepeat(re.Op) {
		return true
	}
	for _, sub := range re.Sub {
		if containsRepeat(sub) {
			return true
		}
	}
	return false
}
