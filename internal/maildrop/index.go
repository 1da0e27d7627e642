package maildrop

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// IndexDB is the SQLite file holding the spool index, kept next to the
// spool's folder directories.
const IndexDB = "spool_index.db"

// indexRow is one indexed spool file.
type indexRow struct {
	UID            uint32
	Folder         string
	Path           string
	Sender         string
	SenderName     string
	Subject        string
	Date           time.Time
	Seen           bool
	HasAttachments bool
}

// Index assigns stable UIDs to spool files and answers folder queries
// without reparsing every message.
type Index struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenIndex opens (or creates) the spool index inside dir.
func OpenIndex(dir string) (*Index, error) {
	dbPath := filepath.Join(dir, IndexDB)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open spool index: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS emails (
		uid INTEGER PRIMARY KEY AUTOINCREMENT,
		folder TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		sender TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		date TIMESTAMP NOT NULL,
		seen INTEGER NOT NULL DEFAULT 0,
		has_attachments INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_emails_folder ON emails(folder, uid);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create spool schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("spool index ping: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the index database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Add indexes one spool file, returning its UID. Re-adding a known
// path returns the existing UID unchanged.
func (ix *Index) Add(row indexRow) (uint32, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var uid uint32
	err := ix.db.QueryRow(`SELECT uid FROM emails WHERE path = ?`, row.Path).Scan(&uid)
	if err == nil {
		return uid, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup path: %w", err)
	}

	res, err := ix.db.Exec(
		`INSERT INTO emails (folder, path, sender, sender_name, subject, date, seen, has_attachments)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		row.Folder, row.Path, row.Sender, row.SenderName, row.Subject, row.Date, row.HasAttachments)
	if err != nil {
		return 0, fmt.Errorf("index email: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("index email id: %w", err)
	}
	return uint32(id), nil
}

// List returns the newest-first rows of one folder. A limit of 0
// means no limit.
func (ix *Index) List(folder string, limit int) ([]indexRow, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	query := `SELECT uid, folder, path, sender, sender_name, subject, date, seen, has_attachments
	          FROM emails WHERE folder = ? ORDER BY uid DESC`
	args := []any{folder}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := ix.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list folder: %w", err)
	}
	defer rows.Close()

	var out []indexRow
	for rows.Next() {
		var r indexRow
		if err := rows.Scan(&r.UID, &r.Folder, &r.Path, &r.Sender, &r.SenderName,
			&r.Subject, &r.Date, &r.Seen, &r.HasAttachments); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one row by folder and UID.
func (ix *Index) Get(folder string, uid uint32) (*indexRow, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var r indexRow
	err := ix.db.QueryRow(
		`SELECT uid, folder, path, sender, sender_name, subject, date, seen, has_attachments
		 FROM emails WHERE folder = ? AND uid = ?`, folder, uid).
		Scan(&r.UID, &r.Folder, &r.Path, &r.Sender, &r.SenderName,
			&r.Subject, &r.Date, &r.Seen, &r.HasAttachments)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get email: %w", err)
	}
	return &r, nil
}

// MarkSeen flags one email as read.
func (ix *Index) MarkSeen(uid uint32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, err := ix.db.Exec(`UPDATE emails SET seen = 1 WHERE uid = ?`, uid)
	return err
}

// Remove drops one email from the index.
func (ix *Index) Remove(uid uint32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, err := ix.db.Exec(`DELETE FROM emails WHERE uid = ?`, uid)
	return err
}

// Move updates an email's folder and file path.
func (ix *Index) Move(uid uint32, folder, path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, err := ix.db.Exec(`UPDATE emails SET folder = ?, path = ? WHERE uid = ?`, folder, path, uid)
	return err
}

// folderStat is one folder's message tallies.
type folderStat struct {
	Name     string
	Messages int
	Unseen   int
}

// Folders returns per-folder message counts, ordered by name.
func (ix *Index) Folders() ([]folderStat, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.Query(
		`SELECT folder, COUNT(*), SUM(CASE WHEN seen = 0 THEN 1 ELSE 0 END)
		 FROM emails GROUP BY folder ORDER BY folder`)
	if err != nil {
		return nil, fmt.Errorf("folder stats: %w", err)
	}
	defer rows.Close()

	var out []folderStat
	for rows.Next() {
		var s folderStat
		if err := rows.Scan(&s.Name, &s.Messages, &s.Unseen); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
