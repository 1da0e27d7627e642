package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mailward/mailward/internal/logging"
	"github.com/mailward/mailward/internal/mcp"
)

var serveNoWatch bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable spool watching; index new mail only on listing")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP mailbox server for agent integration",
	Long: "Runs mailward as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes policy-enforced tools: list_accounts, list_folders, list_emails,\n" +
		"get_email, send_email, delete_email, move_email, mark_spam, check_access.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logging.New(verbose, jsonLogs)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := mcp.New(ctx, mcp.Config{ConfigPath: resolveConfigPath()}, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	if !serveNoWatch {
		go func() {
			if err := srv.Watch(ctx); err != nil && ctx.Err() == nil {
				log.Warn("spool watcher stopped", zap.Error(err))
			}
		}()
	}

	fmt.Fprintln(os.Stderr, "mailward MCP server running on stdio")
	return srv.Run(ctx)
}
