// Package mailbox mediates every mailbox operation through the
// capability gate and the decision composer. Nothing reaches the
// underlying mail store except through this package.
package mailbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mailward/mailward/internal/account"
	"github.com/mailward/mailward/internal/alert"
	"github.com/mailward/mailward/internal/audit"
	"github.com/mailward/mailward/internal/capability"
	"github.com/mailward/mailward/internal/model"
	"github.com/mailward/mailward/internal/protection"
)

// DefaultSpamFolder is the destination for MarkSpam when the
// configuration does not name one.
const DefaultSpamFolder = "Spam"

// Connector is the boundary to an actual mail store. Implementations
// fetch and transmit mail; they make no policy decisions.
type Connector interface {
	ListFolders(ctx context.Context) ([]model.Folder, error)
	ListEmails(ctx context.Context, folder string, limit int) ([]model.EmailSummary, error)
	GetEmail(ctx context.Context, folder string, uid uint32) (*model.Email, error)
	DeleteEmail(ctx context.Context, folder string, uid uint32) error
	MoveEmail(ctx context.Context, folder string, uid uint32, dest string) error
	SendEmail(ctx context.Context, msg *model.Outgoing) error
}

// Options carries the shared collaborators. Audit and Alerts may be
// nil; a nil logger is replaced with a no-op one.
type Options struct {
	Audit      *audit.Log
	Alerts     *alert.Dispatcher
	ConfigHash string
	SpamFolder string
	Log        *zap.Logger
}

// Mailbox is the guarded view of one account's mail store.
type Mailbox struct {
	acct       *account.Account
	conn       Connector
	auditLog   *audit.Log
	alerts     *alert.Dispatcher
	configHash string
	spamFolder string
	log        *zap.Logger
}

// New wraps a connector with one account's policy.
func New(acct *account.Account, conn Connector, opts Options) *Mailbox {
	spam := opts.SpamFolder
	if spam == "" {
		spam = DefaultSpamFolder
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailbox{
		acct:       acct,
		conn:       conn,
		auditLog:   opts.Audit,
		alerts:     opts.Alerts,
		configHash: opts.ConfigHash,
		spamFolder: spam,
		log:        log,
	}
}

// ListedEmail is one visible listing entry with its markers and
// guidance.
type ListedEmail struct {
	model.EmailSummary
	Markers []model.Marker
	Prompts []string
}

// Listing is the result of ListEmails. Filtered counts hidden emails
// without identifying them.
type Listing struct {
	Emails   []ListedEmail
	Filtered int
}

// Opened is the result of a successful GetEmail.
type Opened struct {
	Email   *model.Email
	Access  model.AccessLevel
	Scanned bool
	Score   float64
	Prompts []string
}

// ListFolders returns the connector's folders filtered to those the
// account may read.
func (m *Mailbox) ListFolders(ctx context.Context) ([]model.Folder, error) {
	if err := m.acct.Gate.Authorize(capability.ActionRead); err != nil {
		m.recordDenied("list_folders", "", 0, "", err)
		return nil, err
	}

	folders, err := m.conn.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	allowed := folders[:0]
	for _, f := range folders {
		if m.acct.Gate.Authorize(capability.ActionRead, f.Name) == nil {
			allowed = append(allowed, f)
		}
	}
	m.record(audit.Entry{
		Action:  "list_folders",
		Outcome: audit.OutcomeAllowed,
	})
	return allowed, nil
}

// ListEmails lists a folder. Hidden emails are omitted and tallied;
// visible entries carry their markers and guidance. Listing never
// scans content.
func (m *Mailbox) ListEmails(ctx context.Context, folder string, limit int) (*Listing, error) {
	if err := m.acct.Gate.Authorize(capability.ActionRead, folder); err != nil {
		m.recordDenied("list_emails", folder, 0, "", err)
		return nil, err
	}

	summaries, err := m.conn.ListEmails(ctx, folder, limit)
	if err != nil {
		return nil, err
	}

	listing := &Listing{}
	for i := range summaries {
		d := m.acct.Decisions.ForListing(&summaries[i])
		if !d.Visible {
			listing.Filtered++
			continue
		}
		listing.Emails = append(listing.Emails, ListedEmail{
			EmailSummary: summaries[i],
			Markers:      d.Markers,
			Prompts:      d.Prompts,
		})
	}

	m.record(audit.Entry{
		Action:  "list_emails",
		Folder:  folder,
		Outcome: audit.OutcomeAllowed,
	})
	return listing, nil
}

// GetEmail fetches one email and runs the full read decision.
// Hidden emails return ErrEmailNotFound, blocked content returns a
// BlockedError, and a scan failure propagates rather than passing
// content through unchecked.
func (m *Mailbox) GetEmail(ctx context.Context, folder string, uid uint32) (*Opened, error) {
	if err := m.acct.Gate.Authorize(capability.ActionRead, folder); err != nil {
		m.recordDenied("get_email", folder, uid, "", err)
		return nil, err
	}

	email, err := m.conn.GetEmail(ctx, folder, uid)
	if err != nil {
		return nil, err
	}

	d, err := m.acct.Decisions.ForRead(ctx, email)
	if err != nil {
		if errors.Is(err, protection.ErrScanUnavailable) {
			m.record(audit.Entry{
				Action:  "get_email",
				Folder:  folder,
				UID:     uid,
				Sender:  email.From.Address,
				Outcome: audit.OutcomeScanUnavailable,
				Reason:  err.Error(),
			})
			m.dispatch(alert.Event{
				Account: m.acct.ID,
				Action:  "get_email",
				Folder:  folder,
				UID:     uid,
				Sender:  email.From.Address,
				Outcome: alert.OutcomeScanUnavailable,
				Reason:  err.Error(),
			})
		}
		return nil, err
	}

	if d.Hidden {
		m.record(audit.Entry{
			Action:  "get_email",
			Folder:  folder,
			UID:     uid,
			Sender:  email.From.Address,
			Access:  string(d.Access),
			Outcome: audit.OutcomeHidden,
		})
		return nil, ErrEmailNotFound
	}

	if d.Blocked {
		blockErr := &BlockedError{
			Folder:    folder,
			UID:       uid,
			Score:     d.Score,
			Threshold: m.acct.Decisions.Threshold(),
		}
		m.record(audit.Entry{
			Action:  "get_email",
			Folder:  folder,
			UID:     uid,
			Sender:  email.From.Address,
			Access:  string(d.Access),
			Outcome: audit.OutcomeBlocked,
			Scanned: true,
			Score:   d.Score,
			Reason:  blockErr.Error(),
		})
		m.dispatch(alert.Event{
			Account: m.acct.ID,
			Action:  "get_email",
			Folder:  folder,
			UID:     uid,
			Sender:  email.From.Address,
			Outcome: alert.OutcomeBlocked,
			Reason:  blockErr.Error(),
			Score:   d.Score,
		})
		return nil, blockErr
	}

	m.record(audit.Entry{
		Action:  "get_email",
		Folder:  folder,
		UID:     uid,
		Sender:  email.From.Address,
		Access:  string(d.Access),
		Outcome: audit.OutcomeAllowed,
		Scanned: d.Scanned,
		Score:   d.Score,
	})
	return &Opened{
		Email:   email,
		Access:  d.Access,
		Scanned: d.Scanned,
		Score:   d.Score,
		Prompts: d.Prompts,
	}, nil
}

// SendEmail authorizes the send capability and the recipient
// allow-list before handing the message to the connector.
func (m *Mailbox) SendEmail(ctx context.Context, msg *model.Outgoing) error {
	if err := m.acct.Gate.Authorize(capability.ActionSend); err != nil {
		m.recordDenied("send_email", "", 0, "", err)
		return err
	}
	if err := m.acct.Gate.AuthorizeSend(msg.Recipients()); err != nil {
		m.recordDenied("send_email", "", 0, "", err)
		return err
	}

	if err := m.conn.SendEmail(ctx, msg); err != nil {
		return err
	}
	m.record(audit.Entry{
		Action:  "send_email",
		Outcome: audit.OutcomeAllowed,
	})
	return nil
}

// DeleteEmail removes one email after the capability and folder check.
func (m *Mailbox) DeleteEmail(ctx context.Context, folder string, uid uint32) error {
	if err := m.acct.Gate.Authorize(capability.ActionDelete, folder); err != nil {
		m.recordDenied("delete_email", folder, uid, "", err)
		return err
	}
	if err := m.conn.DeleteEmail(ctx, folder, uid); err != nil {
		return err
	}
	m.record(audit.Entry{
		Action:  "delete_email",
		Folder:  folder,
		UID:     uid,
		Outcome: audit.OutcomeAllowed,
	})
	return nil
}

// MoveEmail moves one email. Both source and destination folders must
// be allowed for the account.
func (m *Mailbox) MoveEmail(ctx context.Context, folder string, uid uint32, dest string) error {
	if err := m.acct.Gate.Authorize(capability.ActionMove, folder, dest); err != nil {
		m.recordDenied("move_email", folder, uid, "", err)
		return err
	}
	if err := m.conn.MoveEmail(ctx, folder, uid, dest); err != nil {
		return err
	}
	m.record(audit.Entry{
		Action:  "move_email",
		Folder:  folder,
		UID:     uid,
		Outcome: audit.OutcomeAllowed,
	})
	return nil
}

// MarkSpam moves one email to the spam folder. It requires the move
// capability; the spam folder itself need not be on the account's
// folder allow-list.
func (m *Mailbox) MarkSpam(ctx context.Context, folder string, uid uint32) error {
	if err := m.acct.Gate.Authorize(capability.ActionMove, folder); err != nil {
		m.recordDenied("mark_spam", folder, uid, "", err)
		return err
	}
	if err := m.conn.MoveEmail(ctx, folder, uid, m.spamFolder); err != nil {
		return err
	}
	m.record(audit.Entry{
		Action:  "mark_spam",
		Folder:  folder,
		UID:     uid,
		Outcome: audit.OutcomeAllowed,
	})
	return nil
}

// Account returns the account ID this mailbox serves.
func (m *Mailbox) Account() string {
	return m.acct.ID
}

func (m *Mailbox) recordDenied(action, folder string, uid uint32, sender string, denial error) {
	m.record(audit.Entry{
		Action:  action,
		Folder:  folder,
		UID:     uid,
		Sender:  sender,
		Outcome: audit.OutcomeDenied,
		Reason:  denial.Error(),
	})
	m.dispatch(alert.Event{
		Account: m.acct.ID,
		Action:  action,
		Folder:  folder,
		UID:     uid,
		Sender:  sender,
		Outcome: alert.OutcomeDenied,
		Reason:  denial.Error(),
	})
}

func (m *Mailbox) record(entry audit.Entry) {
	if m.auditLog == nil {
		return
	}
	entry.Account = m.acct.ID
	entry.ConfigHash = m.configHash
	if err := m.auditLog.Record(entry); err != nil {
		m.log.Warn("audit record failed",
			zap.String("account", m.acct.ID),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

func (m *Mailbox) dispatch(event alert.Event) {
	if m.alerts == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(audit.TimestampFormat)
	}
	event.ConfigHash = m.configHash
	m.alerts.Dispatch(event)
}
