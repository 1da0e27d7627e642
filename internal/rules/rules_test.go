package rules

import (
	"testing"

	"github.com/mailward/mailward/internal/model"
)

func mustCompile(t *testing.T, specs []Spec) *Set {
	t.Helper()
	s, err := Compile(specs)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNoMatchDefaultsToShow(t *testing.T) {
	s := mustCompile(t, []Spec{
		{Field: model.FieldSender, Pattern: `@corp\.net$`, Access: model.AccessTrusted},
	})

	level, skip := s.Evaluate("stranger@elsewhere.org", "hello")
	if level != model.AccessShow {
		t.Errorf("expected show for unmatched sender, got %s", level)
	}
	if skip {
		t.Error("unmatched email must not skip scanning")
	}
}

func TestEmptySetDefaultsToShow(t *testing.T) {
	s := mustCompile(t, nil)
	level, skip := s.Evaluate("anyone@anywhere", "")
	if level != model.AccessShow || skip {
		t.Errorf("expected (show, false), got (%s, %v)", level, skip)
	}

	var nilSet *Set
	level, skip = nilSet.Evaluate("anyone@anywhere", "")
	if level != model.AccessShow || skip {
		t.Errorf("nil set: expected (show, false), got (%s, %v)", level, skip)
	}
}

func TestMostRestrictiveWins(t *testing.T) {
	s := mustCompile(t, []Spec{
		{Field: model.FieldSender, Pattern: `@corp\.net$`, Access: model.AccessTrusted},
		{Field: model.FieldSubject, Pattern: `invoice`, Access: model.AccessAskBeforeRead},
	})

	// Both rules match; ask_before_read outranks trusted.
	level, _ := s.Evaluate("boss@corp.net", "invoice attached")
	if level != model.AccessAskBeforeRead {
		t.Errorf("expected ask_before_read, got %s", level)
	}

	// Only the sender rule matches.
	level, _ = s.Evaluate("boss@corp.net", "meeting notes")
	if level != model.AccessTrusted {
		t.Errorf("expected trusted, got %s", level)
	}
}

func TestHideOutranksEverything(t *testing.T) {
	s := mustCompile(t, []Spec{
		{Field: model.FieldSender, Pattern: `@corp\.net$`, Access: model.AccessTrusted},
		{Field: model.FieldSender, Pattern: `noreply@`, Access: model.AccessHide},
	})

	level, _ := s.Evaluate("noreply@corp.net", "")
	if level != model.AccessHide {
		t.Errorf("expected hide, got %s", level)
	}
	if !s.IsHidden("noreply@corp.net", "") {
		t.Error("IsHidden should report true")
	}
	if s.IsHidden("boss@corp.net", "") {
		t.Error("IsHidden should report false for trusted sender")
	}
}

func TestSkipRequiresUnanimity(t *testing.T) {
	s := mustCompile(t, []Spec{
		{Field: model.FieldSender, Pattern: `@corp\.net$`, Access: model.AccessTrusted, SkipProtection: true},
		{Field: model.FieldSubject, Pattern: `invoice`, Access: model.AccessShow},
	})

	// Only the skip rule matches.
	_, skip := s.Evaluate("boss@corp.net", "meeting")
	if !skip {
		t.Error("expected skip when every matched rule allows it")
	}

	// A second matched rule without skip_protection forces the scan.
	_, skip = s.Evaluate("boss@corp.net", "invoice attached")
	if skip {
		t.Error("one rule requiring a scan must override the skip")
	}
}

func TestEmptyAccessDefaultsToShow(t *testing.T) {
	s := mustCompile(t, []Spec{
		{Field: model.FieldSubject, Pattern: `newsletter`},
	})
	level, _ := s.Evaluate("x@y.z", "weekly newsletter")
	if level != model.AccessShow {
		t.Errorf("expected show for empty access, got %s", level)
	}
}

func TestCompileRejectsBadRule(t *testing.T) {
	if _, err := Compile([]Spec{{Field: model.FieldSender, Pattern: `[unclosed`}}); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if _, err := Compile([]Spec{{Field: model.FieldSender, Pattern: `(a+)+$`}}); err == nil {
		t.Error("expected error for unsafe pattern")
	}
	if _, err := Compile([]Spec{{Field: "body", Pattern: `x`}}); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLen(t *testing.T) {
	s := mustCompile(t, []Spec{
		{Field: model.FieldSender, Pattern: `a`},
		{Field: model.FieldSubject, Pattern: `b`},
	})
	if s.Len() != 2 {
		t.Errorf("expected 2, got %d", s.Len())
	}
	var nilSet *Set
	if nilSet.Len() != 0 {
		t.Errorf("nil set should report 0, got %d", nilSet.Len())
	}
}
