package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mailward/mailward/internal/account"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: "Creates the config directory and writes a commented starter config.\n" +
		"The default location is ~/.mailward/config.yaml; use --config to\n" +
		"write elsewhere. Existing files are left alone unless --force is set.",
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(account.DefaultConfigYAML()), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Edit the accounts section, then set MAILWARD_ACCOUNT_<ID>_PASSWORD")
	fmt.Println("for each account and run: mailward serve")
	return nil
}
