// Package maildrop is the local mail store: RFC 5322 files in a spool
// directory tree, indexed in SQLite, with outbound messages written to
// an outbox directory. It fetches and writes mail; policy lives
// elsewhere.
package maildrop

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/mailward/mailward/internal/model"
)

// Parse extracts the engine's view of one raw RFC 5322 message.
// Unknown charsets degrade to the raw bytes instead of failing; a
// message the parser cannot read at all is an error.
func Parse(r io.Reader) (*model.Email, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	h := mail.Header{Header: entity.Header}

	email := &model.Email{}
	email.Subject, _ = h.Subject()
	email.MessageID, _ = h.MessageID()
	email.Date, _ = h.Date()

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.From = model.Address{Name: from[0].Name, Address: from[0].Address}
	}
	email.To = addressList(h, "To")
	email.CC = addressList(h, "Cc")

	if err := extractContent(entity, email); err != nil {
		return nil, err
	}
	email.BodyPlain = strings.TrimSpace(stripSignature(email.BodyPlain))
	email.HasAttachments = len(email.Attachments) > 0

	return email, nil
}

func addressList(h mail.Header, key string) []model.Address {
	list, err := h.AddressList(key)
	if err != nil || len(list) == 0 {
		return nil
	}
	out := make([]model.Address, 0, len(list))
	for _, a := range list {
		out = append(out, model.Address{Name: a.Name, Address: a.Address})
	}
	return out
}

// extractContent walks the MIME tree collecting the first text/plain
// and text/html bodies and the attachment inventory.
func extractContent(entity *message.Entity, email *model.Email) error {
	mediaType, _, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		if mr == nil {
			return fmt.Errorf("nil multipart reader for %s", mediaType)
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return fmt.Errorf("read part: %w", err)
			}
			if err := extractContent(part, email); err != nil {
				return err
			}
		}
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	disposition, dispParams, _ := entity.Header.ContentDisposition()
	if disposition == "attachment" {
		filename := dispParams["filename"]
		if filename == "" {
			filename = "unnamed"
		}
		email.Attachments = append(email.Attachments, model.Attachment{
			Filename:    filename,
			ContentType: mediaType,
			Size:        int64(len(content)),
		})
		return nil
	}

	switch mediaType {
	case "", "text/plain":
		if email.BodyPlain == "" {
			email.BodyPlain = string(content)
		}
	case "text/html":
		if email.BodyHTML == "" {
			email.BodyHTML = string(content)
		}
	}
	return nil
}

// stripSignature removes the signature block after the standard
// "-- \n" delimiter.
func stripSignature(body string) string {
	if strings.HasPrefix(body, "-- \n") {
		return ""
	}
	if idx := strings.Index(body, "\n-- \n"); idx >= 0 {
		return body[:idx]
	}
	return body
}
