// Package rules resolves access levels and scan-skip outcomes from
// sender and subject policy rules.
package rules

import (
	"fmt"

	"github.com/mailward/mailward/internal/model"
	"github.com/mailward/mailward/internal/pattern"
)

// Spec is one rule as configured: which field it matches, the pattern,
// the resulting access level, and whether a unanimous match may skip
// protection scanning.
type Spec struct {
	Field          model.RuleField
	Pattern        string
	Access         model.AccessLevel
	SkipProtection bool
}

// rule is a compiled Spec.
type rule struct {
	field   model.RuleField
	matcher *pattern.Matcher
	access  model.AccessLevel
	skip    bool
}

// Set is a compiled, immutable rule set. A Set is safe for
// unsynchronized concurrent use; evaluation has no side effects.
type Set struct {
	rules []rule
}

// Compile validates and compiles every rule. Any invalid or unsafe
// pattern fails compilation; a Set is never built from a partial list.
func Compile(specs []Spec) (*Set, error) {
	compiled := make([]rule, 0, len(specs))
	for _, s := range specs {
		switch s.Field {
		case model.FieldSender, model.FieldSubject:
		default:
			return nil, fmt.Errorf("rule %q: unknown field %q", s.Pattern, s.Field)
		}
		m, err := pattern.Compile(s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%s rule: %w", s.Field, err)
		}
		access := s.Access
		if access == "" {
			access = model.AccessShow
		}
		compiled = append(compiled, rule{
			field:   s.Field,
			matcher: m,
			access:  access,
			skip:    s.SkipProtection,
		})
	}
	return &Set{rules: compiled}, nil
}

// Len returns the number of compiled rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Evaluate matches sender and subject against every rule and resolves
// the outcome:
//
//   - no rule matches → (show, false)
//   - access level: the most restrictive level among matched rules
//     (hide > ask_before_read > show > trusted)
//   - skip: true only if every matched rule sets skip_protection;
//     one rule requiring a scan overrides any number requesting a skip
func (s *Set) Evaluate(sender, subject string) (model.AccessLevel, bool) {
	if s == nil || len(s.rules) == 0 {
		return model.AccessShow, false
	}

	matched := false
	level := model.AccessTrusted
	skip := true

	for _, r := range s.rules {
		var input string
		switch r.field {
		case model.FieldSender:
			input = sender
		case model.FieldSubject:
			input = subject
		}
		if !r.matcher.MatchString(input) {
			continue
		}
		matched = true
		level = model.MoreRestrictive(level, r.access)
		if !r.skip {
			skip = false
		}
	}

	if !matched {
		return model.AccessShow, false
	}
	return level, skip
}

// IsHidden reports whether the resolved access level is hide.
func (s *Set) IsHidden(sender, subject string) bool {
	level, _ := s.Evaluate(sender, subject)
	return level == model.AccessHide
}
