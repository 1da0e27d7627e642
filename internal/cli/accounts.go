package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mailward/mailward/internal/account"
)

func init() {
	rootCmd.AddCommand(accountsCmd)
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts and their credential status",
	Long: "Prints each account's capabilities, folder allow-list, rule counts,\n" +
		"and whether its password environment variable is set.",
	RunE: runAccounts,
}

func runAccounts(cmd *cobra.Command, args []string) error {
	cfg, err := account.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	if len(cfg.Accounts) == 0 {
		fmt.Println("No accounts configured. Run: mailward init")
		return nil
	}

	creds := account.EnvCredentials{}
	for i := range cfg.Accounts {
		ac := &cfg.Accounts[i]
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s\n", ac.ID)
		fmt.Printf("  capabilities: %s\n", capSummary(ac))
		if len(ac.Folders) > 0 {
			fmt.Printf("  folders:      %s\n", strings.Join(ac.Folders, ", "))
		} else {
			fmt.Printf("  folders:      all\n")
		}
		fmt.Printf("  rules:        %d sender, %d subject\n", len(ac.SenderRules), len(ac.SubjectRules))
		if ac.Recipients != nil {
			fmt.Printf("  recipients:   %d allow-list pattern(s)\n", len(ac.Recipients))
		}

		key := account.CredentialKey(ac.ID)
		if _, err := creds.Password(ac.ID); err != nil {
			fmt.Printf("  credential:   MISSING (%s not set)\n", key)
		} else {
			fmt.Printf("  credential:   set (%s)\n", key)
		}
	}
	return nil
}

func capSummary(ac *account.AccountConfig) string {
	var caps []string
	if ac.Capabilities.Read == nil || *ac.Capabilities.Read {
		caps = append(caps, "read")
	}
	if ac.Capabilities.Send {
		caps = append(caps, "send")
	}
	if ac.Capabilities.Move {
		caps = append(caps, "move")
	}
	if ac.Capabilities.Delete {
		caps = append(caps, "delete")
	}
	if len(caps) == 0 {
		return "none"
	}
	return strings.Join(caps, ", ")
}
