// Package decision composes rule matching, capability checks, and
// protection gating into the authoritative per-email decision.
//
// Access-level resolution and protection gating are independent
// functions: a trust label can never suppress a scan, and a scan
// outcome can never change an access level. The composer is the only
// place the two meet.
package decision

import (
	"context"

	"github.com/mailward/mailward/internal/model"
	"github.com/mailward/mailward/internal/protection"
	"github.com/mailward/mailward/internal/rules"
)

// Config assembles one account's decision inputs. All fields are
// immutable after construction; a Composer is safe for concurrent use.
type Config struct {
	Rules     *rules.Set
	Threshold float64
	Scanner   protection.Scanner
	Prompts   Prompts
}

// Composer produces decisions for one account's emails.
type Composer struct {
	cfg Config
}

// New creates a Composer. The threshold must already be validated by
// the configuration loader.
func New(cfg Config) *Composer {
	return &Composer{cfg: cfg}
}

// ListDecision is the outcome for one email in a listing view.
// Decisions are computed fresh per request and never cached.
type ListDecision struct {
	// Visible is false for hidden emails: the entry is omitted from
	// the listing and counted in the filtered tally.
	Visible bool

	Access    model.AccessLevel
	Unscanned bool
	Markers   []model.Marker
	Prompts   []string
}

// ReadDecision is the outcome for one email in a full-content view.
type ReadDecision struct {
	// Hidden short-circuits everything: the caller renders a not-found
	// sentinel indistinguishable from a truly absent identifier.
	Hidden bool

	// Blocked is a hard stop: content is not returned.
	Blocked bool

	Access  model.AccessLevel
	Scanned bool
	Score   float64
	Prompts []string
}

// ForListing resolves the listing decision for one email summary.
// Listings never scan body content; the unscanned state reported here
// is the rule-derived skip that a full read would apply.
func (c *Composer) ForListing(sum *model.EmailSummary) ListDecision {
	level, skip := c.cfg.Rules.Evaluate(sum.From.Address, sum.Subject)

	if level == model.AccessHide {
		return ListDecision{Visible: false, Access: level}
	}

	d := ListDecision{Visible: true, Access: level, Unscanned: skip}
	if m, ok := model.ListingMarker(level); ok {
		d.Markers = append(d.Markers, m)
	}
	if skip {
		d.Markers = append(d.Markers, model.MarkerUnscanned)
	}

	if text := c.cfg.Prompts.listPrompt(level); text != "" {
		d.Prompts = append(d.Prompts, text)
	}
	if skip {
		if text := c.cfg.Prompts.unscannedListPrompt(); text != "" {
			d.Prompts = append(d.Prompts, text)
		}
	}
	return d
}

// ForRead resolves the full-content decision for one email.
//
// Order: rules first; hide short-circuits without invoking the
// protection gate; otherwise the gate runs and a blocked outcome is
// terminal. A gate error (protection.ErrScanUnavailable) fails the
// request and is never treated as a safe pass.
func (c *Composer) ForRead(ctx context.Context, email *model.Email) (ReadDecision, error) {
	level, skip := c.cfg.Rules.Evaluate(email.From.Address, email.Subject)

	if level == model.AccessHide {
		return ReadDecision{Hidden: true, Access: level}, nil
	}

	out, err := protection.Gate(ctx, c.cfg.Scanner, email.ScannableContent(), c.cfg.Threshold, skip)
	if err != nil {
		return ReadDecision{}, err
	}

	d := ReadDecision{
		Access:  level,
		Scanned: out.Scanned,
		Score:   out.Score,
	}
	if out.Blocked {
		d.Blocked = true
		return d, nil
	}

	if text := c.cfg.Prompts.readPrompt(level); text != "" {
		d.Prompts = append(d.Prompts, text)
	}
	if !out.Scanned {
		if text := c.cfg.Prompts.unscannedReadPrompt(); text != "" {
			d.Prompts = append(d.Prompts, text)
		}
	}
	return d, nil
}

// Threshold exposes the configured threshold for audit entries.
func (c *Composer) Threshold() float64 {
	return c.cfg.Threshold
}
