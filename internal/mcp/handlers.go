package mcp

import (
	"context"
	"errors"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mailward/mailward/internal/capability"
	"github.com/mailward/mailward/internal/mailbox"
	"github.com/mailward/mailward/internal/model"
	"github.com/mailward/mailward/internal/protection"
)

// --- Input/Output types ---

// ListAccountsInput is empty, no parameters needed.
type ListAccountsInput struct{}

// ListAccountsOutput lists configured account IDs.
type ListAccountsOutput struct {
	Accounts []string `json:"accounts"`
}

// ListFoldersInput defines parameters for the list_folders tool.
type ListFoldersInput struct {
	Account string `json:"account" jsonschema:"account ID"`
}

// FolderItem is one folder with its message tallies.
type FolderItem struct {
	Name     string `json:"name"`
	Messages int    `json:"messages"`
	Unseen   int    `json:"unseen"`
}

// ListFoldersOutput lists an account's readable folders.
type ListFoldersOutput struct {
	Folders []FolderItem `json:"folders,omitempty"`
	Denied  bool         `json:"denied,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}

// ListEmailsInput defines parameters for the list_emails tool.
type ListEmailsInput struct {
	Account string `json:"account" jsonschema:"account ID"`
	Folder  string `json:"folder" jsonschema:"folder name"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of emails, 0 for all"`
}

// EmailItem is one listing entry with its trust markers and guidance.
type EmailItem struct {
	UID            uint32   `json:"uid"`
	Date           string   `json:"date,omitempty"`
	From           string   `json:"from"`
	Subject        string   `json:"subject"`
	Seen           bool     `json:"seen"`
	HasAttachments bool     `json:"has_attachments,omitempty"`
	Markers        []string `json:"markers,omitempty"`
	Guidance       []string `json:"guidance,omitempty"`
}

// ListEmailsOutput lists visible emails and the hidden tally.
type ListEmailsOutput struct {
	Emails   []EmailItem `json:"emails"`
	Filtered int         `json:"filtered,omitempty"`
	Denied   bool        `json:"denied,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// GetEmailInput defines parameters for the get_email tool.
type GetEmailInput struct {
	Account string `json:"account" jsonschema:"account ID"`
	Folder  string `json:"folder" jsonschema:"folder name"`
	UID     uint32 `json:"uid" jsonschema:"email UID from list_emails"`
}

// AttachmentItem describes one attachment without its content.
type AttachmentItem struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// GetEmailOutput contains the email content or the block details.
type GetEmailOutput struct {
	UID         uint32           `json:"uid,omitempty"`
	From        string           `json:"from,omitempty"`
	To          []string         `json:"to,omitempty"`
	CC          []string         `json:"cc,omitempty"`
	Date        string           `json:"date,omitempty"`
	Subject     string           `json:"subject,omitempty"`
	BodyPlain   string           `json:"body_plain,omitempty"`
	BodyHTML    string           `json:"body_html,omitempty"`
	Attachments []AttachmentItem `json:"attachments,omitempty"`
	Access      string           `json:"access,omitempty"`
	Scanned     bool             `json:"scanned,omitempty"`
	Score       float64          `json:"score,omitempty"`
	Guidance    []string         `json:"guidance,omitempty"`

	Blocked bool   `json:"blocked,omitempty"`
	Denied  bool   `json:"denied,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// SendEmailInput defines parameters for the send_email tool.
type SendEmailInput struct {
	Account string   `json:"account" jsonschema:"account ID"`
	To      []string `json:"to" jsonschema:"recipient addresses"`
	CC      []string `json:"cc,omitempty" jsonschema:"carbon-copy addresses"`
	Subject string   `json:"subject,omitempty" jsonschema:"subject line"`
	Body    string   `json:"body" jsonschema:"plain text body"`
}

// ActionOutput confirms a mailbox action or carries the denial.
type ActionOutput struct {
	Status string `json:"status,omitempty"`
	Denied bool   `json:"denied,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// EmailActionInput identifies one email for delete_email and
// mark_spam.
type EmailActionInput struct {
	Account string `json:"account" jsonschema:"account ID"`
	Folder  string `json:"folder" jsonschema:"folder name"`
	UID     uint32 `json:"uid" jsonschema:"email UID from list_emails"`
}

// MoveEmailInput defines parameters for the move_email tool.
type MoveEmailInput struct {
	Account string `json:"account" jsonschema:"account ID"`
	Folder  string `json:"folder" jsonschema:"source folder"`
	UID     uint32 `json:"uid" jsonschema:"email UID from list_emails"`
	Dest    string `json:"dest" jsonschema:"destination folder"`
}

// CheckAccessInput defines parameters for the check_access tool.
type CheckAccessInput struct {
	Account string `json:"account" jsonschema:"account ID"`
	Sender  string `json:"sender" jsonschema:"hypothetical sender address"`
	Subject string `json:"subject,omitempty" jsonschema:"hypothetical subject line"`
}

// CheckAccessOutput contains the dry-run decision.
type CheckAccessOutput struct {
	Access        string   `json:"access"`
	Hidden        bool     `json:"hidden"`
	WouldSkipScan bool     `json:"would_skip_scan"`
	Markers       []string `json:"markers,omitempty"`
	Guidance      []string `json:"guidance,omitempty"`
}

// --- Handlers ---

func (s *Server) handleListAccounts(ctx context.Context, req *mcpsdk.CallToolRequest, input ListAccountsInput) (*mcpsdk.CallToolResult, ListAccountsOutput, error) {
	return nil, ListAccountsOutput{Accounts: s.snap.AccountIDs()}, nil
}

func (s *Server) handleListFolders(ctx context.Context, req *mcpsdk.CallToolRequest, input ListFoldersInput) (*mcpsdk.CallToolResult, ListFoldersOutput, error) {
	mb, ok := s.mailbox(input.Account)
	if !ok {
		return &mcpsdk.CallToolResult{IsError: true},
			ListFoldersOutput{Denied: true, Reason: "unknown account"}, nil
	}

	folders, err := mb.ListFolders(ctx)
	if err != nil {
		var denial *capability.Denial
		if errors.As(err, &denial) {
			return &mcpsdk.CallToolResult{IsError: true},
				ListFoldersOutput{Denied: true, Reason: denial.Error()}, nil
		}
		return nil, ListFoldersOutput{}, err
	}

	out := ListFoldersOutput{Folders: make([]FolderItem, 0, len(folders))}
	for _, f := range folders {
		out.Folders = append(out.Folders, FolderItem{Name: f.Name, Messages: f.Messages, Unseen: f.Unseen})
	}
	return nil, out, nil
}

func (s *Server) handleListEmails(ctx context.Context, req *mcpsdk.CallToolRequest, input ListEmailsInput) (*mcpsdk.CallToolResult, ListEmailsOutput, error) {
	mb, ok := s.mailbox(input.Account)
	if !ok {
		return &mcpsdk.CallToolResult{IsError: true},
			ListEmailsOutput{Denied: true, Reason: "unknown account"}, nil
	}

	listing, err := mb.ListEmails(ctx, input.Folder, input.Limit)
	if err != nil {
		var denial *capability.Denial
		if errors.As(err, &denial) {
			return &mcpsdk.CallToolResult{IsError: true},
				ListEmailsOutput{Denied: true, Reason: denial.Error()}, nil
		}
		return nil, ListEmailsOutput{}, err
	}

	out := ListEmailsOutput{
		Emails:   make([]EmailItem, 0, len(listing.Emails)),
		Filtered: listing.Filtered,
	}
	for _, e := range listing.Emails {
		out.Emails = append(out.Emails, EmailItem{
			UID:            e.UID,
			Date:           formatDate(e.Date),
			From:           e.From.String(),
			Subject:        e.Subject,
			Seen:           e.Seen,
			HasAttachments: e.HasAttachments,
			Markers:        markerStrings(e.Markers),
			Guidance:       e.Prompts,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetEmail(ctx context.Context, req *mcpsdk.CallToolRequest, input GetEmailInput) (*mcpsdk.CallToolResult, GetEmailOutput, error) {
	mb, ok := s.mailbox(input.Account)
	if !ok {
		return &mcpsdk.CallToolResult{IsError: true},
			GetEmailOutput{Denied: true, Reason: "unknown account"}, nil
	}

	opened, err := mb.GetEmail(ctx, input.Folder, input.UID)
	if err != nil {
		switch {
		case errors.Is(err, mailbox.ErrEmailNotFound):
			return &mcpsdk.CallToolResult{IsError: true},
				GetEmailOutput{Reason: "email not found"}, nil
		case errors.Is(err, protection.ErrScanUnavailable):
			return &mcpsdk.CallToolResult{IsError: true},
				GetEmailOutput{Reason: err.Error()}, nil
		}
		var blocked *mailbox.BlockedError
		if errors.As(err, &blocked) {
			return &mcpsdk.CallToolResult{IsError: true}, GetEmailOutput{
				Blocked: true,
				Score:   blocked.Score,
				Reason:  blocked.Error(),
			}, nil
		}
		var denial *capability.Denial
		if errors.As(err, &denial) {
			return &mcpsdk.CallToolResult{IsError: true},
				GetEmailOutput{Denied: true, Reason: denial.Error()}, nil
		}
		return nil, GetEmailOutput{}, err
	}

	email := opened.Email
	out := GetEmailOutput{
		UID:       email.UID,
		From:      email.From.String(),
		To:        addressStrings(email.To),
		CC:        addressStrings(email.CC),
		Date:      formatDate(email.Date),
		Subject:   email.Subject,
		BodyPlain: email.BodyPlain,
		BodyHTML:  email.BodyHTML,
		Access:    string(opened.Access),
		Scanned:   opened.Scanned,
		Score:     opened.Score,
		Guidance:  opened.Prompts,
	}
	for _, a := range email.Attachments {
		out.Attachments = append(out.Attachments, AttachmentItem{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return nil, out, nil
}

func (s *Server) handleSendEmail(ctx context.Context, req *mcpsdk.CallToolRequest, input SendEmailInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	mb, ok := s.mailbox(input.Account)
	if !ok {
		return &mcpsdk.CallToolResult{IsError: true},
			ActionOutput{Denied: true, Reason: "unknown account"}, nil
	}

	err := mb.SendEmail(ctx, &model.Outgoing{
		To:      input.To,
		CC:      input.CC,
		Subject: input.Subject,
		Body:    input.Body,
	})
	return actionResult(err, "sent")
}

func (s *Server) handleDeleteEmail(ctx context.Context, req *mcpsdk.CallToolRequest, input EmailActionInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	mb, ok := s.mailbox(input.Account)
	if !ok {
		return &mcpsdk.CallToolResult{IsError: true},
			ActionOutput{Denied: true, Reason: "unknown account"}, nil
	}
	return actionResult(mb.DeleteEmail(ctx, input.Folder, input.UID), "deleted")
}

func (s *Server) handleMoveEmail(ctx context.Context, req *mcpsdk.CallToolRequest, input MoveEmailInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	mb, ok := s.mailbox(input.Account)
	if !ok {
		return &mcpsdk.CallToolResult{IsError: true},
			ActionOutput{Denied: true, Reason: "unknown account"}, nil
	}
	return actionResult(mb.MoveEmail(ctx, input.Folder, input.UID, input.Dest), "moved")
}

func (s *Server) handleMarkSpam(ctx context.Context, req *mcpsdk.CallToolRequest, input EmailActionInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	mb, ok := s.mailbox(input.Account)
	if !ok {
		return &mcpsdk.CallToolResult{IsError: true},
			ActionOutput{Denied: true, Reason: "unknown account"}, nil
	}
	return actionResult(mb.MarkSpam(ctx, input.Folder, input.UID), "marked as spam")
}

func (s *Server) handleCheckAccess(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckAccessInput) (*mcpsdk.CallToolResult, CheckAccessOutput, error) {
	acct := s.snap.Account(input.Account)
	if acct == nil {
		return &mcpsdk.CallToolResult{IsError: true}, CheckAccessOutput{}, nil
	}

	sum := &model.EmailSummary{
		From:    model.Address{Address: input.Sender},
		Subject: input.Subject,
	}
	d := acct.Decisions.ForListing(sum)

	return nil, CheckAccessOutput{
		Access:        string(d.Access),
		Hidden:        !d.Visible,
		WouldSkipScan: d.Unscanned,
		Markers:       markerStrings(d.Markers),
		Guidance:      d.Prompts,
	}, nil
}

// --- Helpers ---

func actionResult(err error, status string) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if err != nil {
		var denial *capability.Denial
		if errors.As(err, &denial) {
			return &mcpsdk.CallToolResult{IsError: true},
				ActionOutput{Denied: true, Reason: denial.Error()}, nil
		}
		if errors.Is(err, mailbox.ErrEmailNotFound) {
			return &mcpsdk.CallToolResult{IsError: true},
				ActionOutput{Reason: "email not found"}, nil
		}
		return nil, ActionOutput{}, err
	}
	return nil, ActionOutput{Status: status}, nil
}

func markerStrings(markers []model.Marker) []string {
	if len(markers) == 0 {
		return nil
	}
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		out = append(out, string(m))
	}
	return out
}

func addressStrings(addrs []model.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
