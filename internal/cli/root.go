package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mailward/mailward/internal/account"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "mailward",
	Short: "Policy-enforced mailbox access for AI agents",
	Long:  "Mediates an agent's mailbox access through per-sender trust rules,\ncapability gates, and prompt-injection scanning. Enforcement, not advice.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config YAML (default ~/.mailward/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return account.DefaultPath()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
