package model

import "fmt"

// AccessLevel is the visibility tier policy rules assign to an email.
type AccessLevel string

const (
	AccessTrusted       AccessLevel = "trusted"
	AccessShow          AccessLevel = "show"
	AccessAskBeforeRead AccessLevel = "ask_before_read"
	AccessHide          AccessLevel = "hide"
)

// restrictiveness orders levels for conflict resolution.
// hide > ask_before_read > show > trusted.
var restrictiveness = map[AccessLevel]int{
	AccessTrusted:       0,
	AccessShow:          1,
	AccessAskBeforeRead: 2,
	AccessHide:          3,
}

// Restrictiveness returns the conflict-resolution rank of the level.
// Unknown levels rank as hide (fail closed).
func (l AccessLevel) Restrictiveness() int {
	if r, ok := restrictiveness[l]; ok {
		return r
	}
	return restrictiveness[AccessHide]
}

// MoreRestrictive returns the more restrictive of two levels.
func MoreRestrictive(a, b AccessLevel) AccessLevel {
	if b.Restrictiveness() > a.Restrictiveness() {
		return b
	}
	return a
}

// ParseAccessLevel validates a configured access level string.
// Unknown values are a configuration error, not a silent default.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch AccessLevel(s) {
	case AccessTrusted, AccessShow, AccessAskBeforeRead, AccessHide:
		return AccessLevel(s), nil
	}
	return "", fmt.Errorf("unknown access level %q (want trusted, show, ask_before_read, or hide)", s)
}

// RuleField selects which email field a rule matches against.
type RuleField string

const (
	FieldSender  RuleField = "sender"
	FieldSubject RuleField = "subject"
)

// Marker is the presentation marker attached to listing entries.
type Marker string

const (
	MarkerTrusted   Marker = "TRUSTED"
	MarkerAsk       Marker = "ASK"
	MarkerUnscanned Marker = "UNSCANNED"
)

// ListingMarker maps an access level to its listing marker.
// show carries no marker; hide never appears in listings.
func ListingMarker(l AccessLevel) (Marker, bool) {
	switch l {
	case AccessTrusted:
		return MarkerTrusted, true
	case AccessAskBeforeRead:
		return MarkerAsk, true
	}
	return "", false
}
