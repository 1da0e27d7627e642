package maildrop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mailward/mailward/internal/mailbox"
	"github.com/mailward/mailward/internal/model"
)

func writeSpoolFile(t *testing.T, spool, folder, name, content string) string {
	t.Helper()
	dir := filepath.Join(spool, folder)
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testSpool(t *testing.T) (*Connector, string, string) {
	t.Helper()
	base := t.TempDir()
	spool := filepath.Join(base, "spool")
	outbox := filepath.Join(base, "outbox")

	writeSpoolFile(t, spool, "INBOX", "one.eml", plainEmail)
	writeSpoolFile(t, spool, "INBOX", "two.eml", signedEmail)
	writeSpoolFile(t, spool, "Archive", "old.eml", multipartEmail)

	conn, err := NewConnector(spool, outbox, Options{From: "me@example.com", Hostname: "test"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, spool, outbox
}

func TestConnectorListFolders(t *testing.T) {
	conn, _, _ := testSpool(t)

	folders, err := conn.ListFolders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]model.Folder{}
	for _, f := range folders {
		byName[f.Name] = f
	}
	if byName["INBOX"].Messages != 2 {
		t.Errorf("expected 2 messages in INBOX, got %d", byName["INBOX"].Messages)
	}
	if byName["INBOX"].Unseen != 2 {
		t.Errorf("expected 2 unseen in INBOX, got %d", byName["INBOX"].Unseen)
	}
	if byName["Archive"].Messages != 1 {
		t.Errorf("expected 1 message in Archive, got %d", byName["Archive"].Messages)
	}
}

func TestConnectorListAndGet(t *testing.T) {
	conn, _, _ := testSpool(t)
	ctx := context.Background()

	summaries, err := conn.ListEmails(ctx, "INBOX", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	var lunch model.EmailSummary
	for _, s := range summaries {
		if s.Subject == "lunch plans" {
			lunch = s
		}
	}
	if lunch.UID == 0 {
		t.Fatal("expected lunch plans email indexed")
	}
	if lunch.From.Address != "alice@example.com" {
		t.Errorf("unexpected sender: %s", lunch.From.Address)
	}
	if lunch.Seen {
		t.Error("expected unseen before read")
	}

	email, err := conn.GetEmail(ctx, "INBOX", lunch.UID)
	if err != nil {
		t.Fatal(err)
	}
	if email.BodyPlain != "How about noon?" {
		t.Errorf("unexpected body: %q", email.BodyPlain)
	}
	if email.UID != lunch.UID || email.Folder != "INBOX" {
		t.Errorf("expected identity filled in, got uid=%d folder=%s", email.UID, email.Folder)
	}

	// Read marks seen.
	summaries, _ = conn.ListEmails(ctx, "INBOX", 0)
	for _, s := range summaries {
		if s.UID == lunch.UID && !s.Seen {
			t.Error("expected email marked seen after read")
		}
	}
}

func TestConnectorStableUIDsAcrossReopen(t *testing.T) {
	conn, spool, outbox := testSpool(t)
	ctx := context.Background()

	before, err := conn.ListEmails(ctx, "INBOX", 0)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	conn2, err := NewConnector(spool, outbox, Options{From: "me@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	defer conn2.Close()

	after, err := conn2.ListEmails(ctx, "INBOX", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("expected same count, got %d then %d", len(before), len(after))
	}
	for i := range before {
		if before[i].UID != after[i].UID {
			t.Errorf("UID changed across reopen: %d -> %d", before[i].UID, after[i].UID)
		}
	}
}

func TestConnectorGetMissing(t *testing.T) {
	conn, _, _ := testSpool(t)

	_, err := conn.GetEmail(context.Background(), "INBOX", 9999)
	if !errors.Is(err, mailbox.ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound, got %v", err)
	}
}

func TestConnectorDelete(t *testing.T) {
	conn, spool, _ := testSpool(t)
	ctx := context.Background()

	summaries, _ := conn.ListEmails(ctx, "INBOX", 0)
	uid := summaries[0].UID

	if err := conn.DeleteEmail(ctx, "INBOX", uid); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.GetEmail(ctx, "INBOX", uid); !errors.Is(err, mailbox.ErrEmailNotFound) {
		t.Fatalf("expected deleted email gone, got %v", err)
	}

	remaining, _ := os.ReadDir(filepath.Join(spool, "INBOX"))
	count := 0
	for _, e := range remaining {
		if isSpoolFile(e.Name()) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 1 spool file left, got %d", count)
	}
}

func TestConnectorMove(t *testing.T) {
	conn, spool, _ := testSpool(t)
	ctx := context.Background()

	summaries, _ := conn.ListEmails(ctx, "INBOX", 0)
	uid := summaries[0].UID

	if err := conn.MoveEmail(ctx, "INBOX", uid, "Spam"); err != nil {
		t.Fatal(err)
	}

	if _, err := conn.GetEmail(ctx, "INBOX", uid); !errors.Is(err, mailbox.ErrEmailNotFound) {
		t.Fatal("expected email gone from source folder")
	}
	moved, err := conn.GetEmail(ctx, "Spam", uid)
	if err != nil {
		t.Fatalf("expected email in destination folder: %v", err)
	}
	if moved.Folder != "Spam" {
		t.Errorf("expected folder Spam, got %s", moved.Folder)
	}
	if _, err := os.Stat(filepath.Join(spool, "Spam")); err != nil {
		t.Errorf("expected destination directory created: %v", err)
	}
}

func TestConnectorSendWritesOutbox(t *testing.T) {
	conn, _, outbox := testSpool(t)

	msg := &model.Outgoing{
		To:      []string{"bob@example.com"},
		CC:      []string{"carol@example.com"},
		Subject: "status",
		Body:    "all good",
	}
	if err := conn.SendEmail(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(outbox)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 outbox file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(outbox, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	parsed, err := Parse(f)
	if err != nil {
		t.Fatalf("outbox file must parse as RFC 5322: %v", err)
	}
	if parsed.From.Address != "me@example.com" {
		t.Errorf("unexpected from: %s", parsed.From.Address)
	}
	if len(parsed.To) != 1 || parsed.To[0].Address != "bob@example.com" {
		t.Errorf("unexpected to: %v", parsed.To)
	}
	if parsed.Subject != "status" {
		t.Errorf("unexpected subject: %q", parsed.Subject)
	}
	if parsed.BodyPlain != "all good" {
		t.Errorf("unexpected body: %q", parsed.BodyPlain)
	}
	if parsed.MessageID == "" {
		t.Error("expected generated message id")
	}
}

func TestConnectorSkipsUnparseableFiles(t *testing.T) {
	conn, spool, _ := testSpool(t)
	writeSpoolFile(t, spool, "INBOX", "junk.eml", "\xff\xfe not mail at all")

	summaries, err := conn.ListEmails(context.Background(), "INBOX", 0)
	if err != nil {
		t.Fatalf("one bad file must not fail the folder: %v", err)
	}
	if len(summaries) < 2 {
		t.Errorf("expected parseable emails still listed, got %d", len(summaries))
	}
}

func TestPollWatcherSeesNewFiles(t *testing.T) {
	base := t.TempDir()
	spool := filepath.Join(base, "spool")
	if err := os.MkdirAll(filepath.Join(spool, "INBOX"), 0700); err != nil {
		t.Fatal(err)
	}

	got := make(chan string, 4)
	w := NewPollWatcher(spool, func(path string) { got <- path }, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	path := writeSpoolFile(t, spool, "INBOX", "new.eml", plainEmail)
	// .tmp partial writes must be ignored.
	writeSpoolFile(t, spool, "INBOX", "partial.eml.tmp", "half written")

	select {
	case p := <-got:
		if p != path {
			t.Errorf("expected %s, got %s", path, p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never reported the new file")
	}

	select {
	case p := <-got:
		t.Errorf("unexpected extra path: %s", p)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	<-done
}
