package maildrop

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"go.uber.org/zap"

	"github.com/mailward/mailward/internal/mailbox"
	"github.com/mailward/mailward/internal/model"
)

// DefaultFolder is created on open so a fresh spool always has an
// inbox.
const DefaultFolder = "INBOX"

// Connector serves mail from a spool directory tree. Each immediate
// subdirectory is a folder; each .eml file inside is one message.
type Connector struct {
	spool    string
	outbox   string
	from     string
	hostname string
	index    *Index
	log      *zap.Logger
}

// Options configures a spool connector.
type Options struct {
	// From is the address written on outbound messages.
	From string
	// Hostname seeds generated Message-IDs. Defaults to os.Hostname.
	Hostname string
	Log      *zap.Logger
}

// NewConnector opens the spool, creating the directory layout and the
// index as needed.
func NewConnector(spool, outbox string, opts Options) (*Connector, error) {
	if err := os.MkdirAll(filepath.Join(spool, DefaultFolder), 0700); err != nil {
		return nil, fmt.Errorf("create spool: %w", err)
	}
	if err := os.MkdirAll(outbox, 0700); err != nil {
		return nil, fmt.Errorf("create outbox: %w", err)
	}

	index, err := OpenIndex(spool)
	if err != nil {
		return nil, err
	}

	hostname := opts.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
		if hostname == "" {
			hostname = "localhost"
		}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	c := &Connector{
		spool:    spool,
		outbox:   outbox,
		from:     opts.From,
		hostname: hostname,
		index:    index,
		log:      log,
	}
	if err := c.SyncAll(); err != nil {
		index.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the spool index.
func (c *Connector) Close() error {
	return c.index.Close()
}

// SyncAll indexes every unindexed spool file across all folders.
func (c *Connector) SyncAll() error {
	entries, err := os.ReadDir(c.spool)
	if err != nil {
		return fmt.Errorf("read spool: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := c.syncFolder(e.Name()); err != nil {
			return err
		}
	}
	return nil
}

// syncFolder indexes new .eml files in one folder directory. Files
// that fail to parse are logged and skipped; one bad message must not
// take the folder down.
func (c *Connector) syncFolder(folder string) error {
	dir := filepath.Join(c.spool, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read folder %s: %w", folder, err)
	}

	for _, e := range entries {
		if e.IsDir() || !isSpoolFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := c.indexFile(folder, path); err != nil {
			c.log.Warn("skipping unparseable spool file",
				zap.String("path", path),
				zap.Error(err))
		}
	}
	return nil
}

// IndexFile parses and indexes one spool file. Used by the watcher for
// files that appear while serving.
func (c *Connector) IndexFile(path string) error {
	rel, err := filepath.Rel(c.spool, path)
	if err != nil {
		return fmt.Errorf("spool-relative path: %w", err)
	}
	folder := filepath.Dir(rel)
	if folder == "." || strings.Contains(folder, string(filepath.Separator)) {
		return fmt.Errorf("spool file %s is not inside a folder directory", path)
	}
	return c.indexFile(folder, path)
}

func (c *Connector) indexFile(folder, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	email, err := Parse(f)
	if err != nil {
		return err
	}

	date := email.Date
	if date.IsZero() {
		if info, err := os.Stat(path); err == nil {
			date = info.ModTime().UTC()
		} else {
			date = time.Now().UTC()
		}
	}

	_, err = c.index.Add(indexRow{
		Folder:         folder,
		Path:           path,
		Sender:         email.From.Address,
		SenderName:     email.From.Name,
		Subject:        email.Subject,
		Date:           date,
		HasAttachments: email.HasAttachments,
	})
	return err
}

// ListFolders reports folders with message tallies.
func (c *Connector) ListFolders(ctx context.Context) ([]model.Folder, error) {
	stats, err := c.index.Folders()
	if err != nil {
		return nil, err
	}

	out := make([]model.Folder, 0, len(stats)+1)
	seenInbox := false
	for _, s := range stats {
		if s.Name == DefaultFolder {
			seenInbox = true
		}
		out = append(out, model.Folder{Name: s.Name, Messages: s.Messages, Unseen: s.Unseen})
	}
	if !seenInbox {
		out = append([]model.Folder{{Name: DefaultFolder}}, out...)
	}
	return out, nil
}

// ListEmails returns newest-first summaries for one folder.
func (c *Connector) ListEmails(ctx context.Context, folder string, limit int) ([]model.EmailSummary, error) {
	if err := c.syncFolder(folder); err != nil {
		return nil, err
	}
	rows, err := c.index.List(folder, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		if _, err := os.Stat(filepath.Join(c.spool, folder)); os.IsNotExist(err) {
			return nil, mailbox.ErrUnknownFolder
		}
	}

	out := make([]model.EmailSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, summaryFromRow(r))
	}
	return out, nil
}

// GetEmail parses the full message for one UID and marks it seen.
func (c *Connector) GetEmail(ctx context.Context, folder string, uid uint32) (*model.Email, error) {
	row, err := c.index.Get(folder, uid)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, mailbox.ErrEmailNotFound
	}

	f, err := os.Open(row.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// File vanished under the index.
			_ = c.index.Remove(uid)
			return nil, mailbox.ErrEmailNotFound
		}
		return nil, err
	}
	defer f.Close()

	email, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", row.Path, err)
	}
	email.UID = row.UID
	email.Folder = row.Folder
	email.Seen = true
	if email.Date.IsZero() {
		email.Date = row.Date
	}

	if err := c.index.MarkSeen(uid); err != nil {
		c.log.Warn("mark seen failed", zap.Uint32("uid", uid), zap.Error(err))
	}
	return email, nil
}

// DeleteEmail removes the spool file and its index row.
func (c *Connector) DeleteEmail(ctx context.Context, folder string, uid uint32) error {
	row, err := c.index.Get(folder, uid)
	if err != nil {
		return err
	}
	if row == nil {
		return mailbox.ErrEmailNotFound
	}
	if err := os.Remove(row.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove spool file: %w", err)
	}
	return c.index.Remove(uid)
}

// MoveEmail relocates the spool file into the destination folder
// directory, creating it on first use.
func (c *Connector) MoveEmail(ctx context.Context, folder string, uid uint32, dest string) error {
	row, err := c.index.Get(folder, uid)
	if err != nil {
		return err
	}
	if row == nil {
		return mailbox.ErrEmailNotFound
	}

	destDir := filepath.Join(c.spool, dest)
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return fmt.Errorf("create folder %s: %w", dest, err)
	}
	destPath := filepath.Join(destDir, filepath.Base(row.Path))
	if err := os.Rename(row.Path, destPath); err != nil {
		return fmt.Errorf("move spool file: %w", err)
	}
	return c.index.Move(uid, dest, destPath)
}

// SendEmail writes an RFC 5322 file into the outbox. The write is
// atomic: tmp file then rename, so outbox consumers never see a
// partial message.
func (c *Connector) SendEmail(ctx context.Context, msg *model.Outgoing) error {
	id, err := generateMessageName()
	if err != nil {
		return fmt.Errorf("generate message name: %w", err)
	}

	var buf bytes.Buffer
	var header message.Header
	header.Set("From", c.from)
	header.Set("To", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		header.Set("Cc", strings.Join(msg.CC, ", "))
	}
	header.Set("Subject", msg.Subject)
	header.Set("Date", time.Now().UTC().Format(time.RFC1123Z))
	header.Set("Message-ID", fmt.Sprintf("<%s@%s>", id, c.hostname))
	header.Set("Content-Type", "text/plain; charset=utf-8")

	w, err := message.CreateWriter(&buf, header)
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	filename := id + ".eml"
	tmpPath := filepath.Join(c.outbox, filename+".tmp")
	finalPath := filepath.Join(c.outbox, filename)
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write outbox temp: %w", err)
	}
	return os.Rename(tmpPath, finalPath)
}

func summaryFromRow(r indexRow) model.EmailSummary {
	return model.EmailSummary{
		UID:            r.UID,
		Folder:         r.Folder,
		Date:           r.Date,
		From:           model.Address{Name: r.SenderName, Address: r.Sender},
		Subject:        r.Subject,
		Seen:           r.Seen,
		HasAttachments: r.HasAttachments,
	}
}

// generateMessageName creates a random name like "mail-a1b2c3d4e5f6".
func generateMessageName() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "mail-" + hex.EncodeToString(b), nil
}

// isSpoolFile reports whether a file is a complete .eml message
// (not a .tmp partial write).
func isSpoolFile(name string) bool {
	return strings.HasSuffix(name, ".eml") && !strings.HasSuffix(name, ".tmp")
}
