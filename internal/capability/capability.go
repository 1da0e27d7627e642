// Package capability enforces coarse per-account permissions: action
// flags, folder allow-lists, and recipient allow-lists for send.
package capability

import (
	"fmt"

	"github.com/mailward/mailward/internal/pattern"
)

// Action is one mailbox-affecting operation class.
type Action string

const (
	ActionRead   Action = "read"
	ActionDelete Action = "delete"
	ActionSend   Action = "send"
	ActionMove   Action = "move"
)

// Reason classifies why an action was denied. Callers render the
// user-facing message; the gate never formats prose beyond Error().
type Reason string

const (
	CapabilityMissing   Reason = "capability-missing"
	FolderRestricted    Reason = "folder-restricted"
	RecipientNotAllowed Reason = "recipient-not-allowed"
)

// Denial is the structured deny result. Extract with errors.As.
type Denial struct {
	Reason    Reason
	Action    Action
	Folder    string
	Recipient string
}

func (d *Denial) Error() string {
	switch d.Reason {
	case FolderRestricted:
		return fmt.Sprintf("%s denied: folder %q is not allowed for this account", d.Action, d.Folder)
	case RecipientNotAllowed:
		return fmt.Sprintf("send denied: recipient %q is not allowed for this account", d.Recipient)
	default:
		return fmt.Sprintf("%s denied for this account", d.Action)
	}
}

// Capabilities are the per-account action flags. Read defaults true,
// everything else defaults false when loaded from configuration.
type Capabilities struct {
	Read   bool
	Delete bool
	Send   bool
	Move   bool
}

func (c Capabilities) allows(action Action) bool {
	switch action {
	case ActionRead:
		return c.Read
	case ActionDelete:
		return c.Delete
	case ActionSend:
		return c.Send
	case ActionMove:
		return c.Move
	}
	return false
}

// Gate checks requested actions against one account's capabilities.
// Immutable after construction, safe for concurrent use.
type Gate struct {
	caps       Capabilities
	folders    map[string]bool
	recipients []*pattern.Matcher
	// recipientsSet distinguishes an empty allow-list (deny all) from
	// an absent one (allow all).
	recipientsSet bool
}

// New builds a gate. folders nil means all folders are allowed.
// recipients nil means any recipient is allowed; a non-nil empty slice
// denies every recipient. Recipient patterns match case-insensitively.
func New(caps Capabilities, folders []string, recipients []string) (*Gate, error) {
	g := &Gate{caps: caps}

	if folders != nil {
		g.folders = make(map[string]bool, len(folders))
		for _, f := range folders {
			g.folders[f] = true
		}
	}

	if recipients != nil {
		g.recipientsSet = true
		g.recipients = make([]*pattern.Matcher, 0, len(recipients))
		for _, p := range recipients {
			m, err := pattern.CompileFold(p)
			if err != nil {
				return nil, fmt.Errorf("recipient allow-list: %w", err)
			}
			g.recipients = append(g.recipients, m)
		}
	}

	return g, nil
}

// Authorize checks the capability flag for the action and, when the
// action references folders, the folder allow-list. A folder outside
// the allow-list is denied regardless of the capability flag.
func (g *Gate) Authorize(action Action, folders ...string) error {
	for _, f := range folders {
		if g.folders != nil && !g.folders[f] {
			return &Denial{Reason: FolderRestricted, Action: action, Folder: f}
		}
	}
	if !g.caps.allows(action) {
		return &Denial{Reason: CapabilityMissing, Action: action}
	}
	return nil
}

// AuthorizeSend checks the send capability and the recipient
// allow-list. Every recipient (primary and carbon-copy) must match at
// least one allow pattern.
func (g *Gate) AuthorizeSend(recipients []string) error {
	if !g.caps.Send {
		return &Denial{Reason: CapabilityMissing, Action: ActionSend}
	}
	if !g.recipientsSet {
		return nil
	}
	for _, rcpt := range recipients {
		if !g.recipientAllowed(rcpt) {
			return &Denial{Reason: RecipientNotAllowed, Action: ActionSend, Recipient: rcpt}
		}
	}
	return nil
}

func (g *Gate) recipientAllowed(rcpt string) bool {
	for _, m := range g.recipients {
		if m.MatchString(rcpt) {
			return true
		}
	}
	return false
}
