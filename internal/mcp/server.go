// Package mcp exposes the guarded mailbox as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mailward/mailward/internal/account"
	"github.com/mailward/mailward/internal/alert"
	"github.com/mailward/mailward/internal/audit"
	"github.com/mailward/mailward/internal/mailbox"
	"github.com/mailward/mailward/internal/maildrop"
)

// Config holds MCP server configuration.
type Config struct {
	ConfigPath string
}

// Server wraps the MCP SDK server around the guarded mailboxes.
type Server struct {
	mcpServer  *mcpsdk.Server
	snap       *account.Snapshot
	conn       *maildrop.Connector
	mailboxes  map[string]*mailbox.Mailbox
	auditLog   *audit.Log
	log        *zap.Logger
	configHash string
}

// New loads configuration, opens the spool, and builds one guarded
// mailbox per account.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	fileCfg, hash, err := account.LoadWithHash(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	scanner, err := account.NewScanner(ctx, fileCfg.Protection, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build scanner: %w", err)
	}

	snap, err := account.Compile(fileCfg, scanner, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to compile config: %w", err)
	}

	conn, err := maildrop.NewConnector(
		account.ExpandPath(snap.Maildrop.Spool),
		account.ExpandPath(snap.Maildrop.Outbox),
		maildrop.Options{From: snap.Maildrop.From, Log: log},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool: %w", err)
	}

	var auditLog *audit.Log
	if snap.AuditLog != "" {
		auditLog, err = audit.Open(account.ExpandPath(snap.AuditLog))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	dispatcher := alert.NewDispatcher(snap.Alerts)

	s := &Server{
		snap:       snap,
		conn:       conn,
		mailboxes:  make(map[string]*mailbox.Mailbox, len(snap.Accounts)),
		auditLog:   auditLog,
		log:        log,
		configHash: hash,
	}
	for _, acct := range snap.Accounts {
		s.mailboxes[acct.ID] = mailbox.New(acct, conn, mailbox.Options{
			Audit:      auditLog,
			Alerts:     dispatcher,
			ConfigHash: hash,
			Log:        log,
		})
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "mailward",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Watch indexes spool files as they arrive. Blocks until ctx is
// cancelled; call in its own goroutine alongside Run.
func (s *Server) Watch(ctx context.Context) error {
	spool := account.ExpandPath(s.snap.Maildrop.Spool)
	w := maildrop.NewSpoolWatcher(spool, func(path string) {
		if err := s.conn.IndexFile(path); err != nil {
			s.log.Warn("failed to index incoming file",
				zap.String("path", path),
				zap.Error(err))
		}
	})
	return w.Run(ctx)
}

// Close releases the spool and the audit log.
func (s *Server) Close() error {
	err := s.conn.Close()
	if s.auditLog != nil {
		if cerr := s.auditLog.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) mailbox(accountID string) (*mailbox.Mailbox, bool) {
	mb, ok := s.mailboxes[accountID]
	return mb, ok
}

// registerTools adds all mailward tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_accounts",
		Description: "List configured email accounts.",
	}, s.handleListAccounts)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_folders",
		Description: "List an account's folders with message counts. Restricted folders are omitted.",
	}, s.handleListFolders)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_emails",
		Description: "List emails in a folder. Entries carry trust markers and handling guidance; emails hidden by policy are omitted and tallied.",
	}, s.handleListEmails)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_email",
		Description: "Read one email. Content is scanned for manipulation attempts before it is returned; blocked content returns an error with the score.",
	}, s.handleGetEmail)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "send_email",
		Description: "Send an email. The recipient allow-list applies; denied sends return an error with the reason.",
	}, s.handleSendEmail)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "delete_email",
		Description: "Delete one email. Requires the delete capability.",
	}, s.handleDeleteEmail)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_email",
		Description: "Move one email to another folder. Requires the move capability; both folders must be allowed.",
	}, s.handleMoveEmail)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mark_spam",
		Description: "Move one email to the spam folder. Requires the move capability.",
	}, s.handleMarkSpam)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "check_access",
		Description: "Check what access level a hypothetical sender and subject would resolve to, without touching any email (dry-run).",
	}, s.handleCheckAccess)
}
