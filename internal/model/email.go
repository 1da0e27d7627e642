package model

import (
	"strings"
	"time"
)

// Address is one email address with an optional display name.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return a.Name + " <" + a.Address + ">"
}

// EmailSummary is the listing view of one email. Summaries carry no body
// content and are safe to show without scanning.
type EmailSummary struct {
	UID            uint32    `json:"uid"`
	Folder         string    `json:"folder"`
	Date           time.Time `json:"date"`
	From           Address   `json:"from"`
	Subject        string    `json:"subject"`
	Seen           bool      `json:"seen"`
	HasAttachments bool      `json:"has_attachments"`
}

// Attachment describes one attachment without its content.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Email is the full view of one email as presented to the engine.
// The engine treats it as an input value and never mutates mailbox state.
type Email struct {
	EmailSummary

	To          []Address    `json:"to"`
	CC          []Address    `json:"cc,omitempty"`
	MessageID   string       `json:"message_id,omitempty"`
	BodyPlain   string       `json:"body_plain,omitempty"`
	BodyHTML    string       `json:"body_html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ScannableContent joins the fields submitted to the risk classifier:
// subject, plain body, and HTML body (tags included, scanned as-is).
func (e *Email) ScannableContent() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Subject, e.BodyPlain, e.BodyHTML} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// Folder is one mailbox folder.
type Folder struct {
	Name     string `json:"name"`
	Messages int    `json:"messages"`
	Unseen   int    `json:"unseen"`
}

// Outgoing is a message the agent asks to send.
type Outgoing struct {
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Recipients returns primary and carbon-copy addresses in one slice.
func (o *Outgoing) Recipients() []string {
	out := make([]string, 0, len(o.To)+len(o.CC))
	out = append(out, o.To...)
	out = append(out, o.CC...)
	return out
}
