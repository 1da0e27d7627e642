package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailward/mailward/internal/account"
	"github.com/mailward/mailward/internal/audit"
)

var (
	historyLog    string
	historyFrom   string
	historyTo     string
	historyFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historyLog, "log", "l", "", "Path to audit log (default from config)")
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "Start time filter (RFC3339)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "End time filter (RFC3339)")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text|json)")
}

var historyCmd = &cobra.Command{
	Use:   "history <account>",
	Short: "Show an account's decision history from the audit log",
	Long:  "Reads the audit log, filters by account and optional time range,\nand renders a human-readable decision timeline with summary.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	logPath := historyLog
	if logPath == "" {
		cfg, err := account.Load(resolveConfigPath())
		if err != nil {
			return err
		}
		if cfg.AuditLog == "" {
			return fmt.Errorf("no audit log configured; pass --log")
		}
		logPath = account.ExpandPath(cfg.AuditLog)
	}

	filter := audit.HistoryFilter{Account: args[0]}

	if historyFrom != "" {
		from, err := time.Parse(time.RFC3339, historyFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", historyFrom, err)
		}
		filter.From = from
	}

	if historyTo != "" {
		to, err := time.Parse(time.RFC3339, historyTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", historyTo, err)
		}
		filter.To = to
	}

	result, err := audit.History(logPath, filter)
	if err != nil {
		return err
	}

	switch historyFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(audit.FormatTimeline(result))
	}

	return nil
}
