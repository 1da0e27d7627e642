package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mailward/mailward/internal/account"
	"github.com/mailward/mailward/internal/maildrop"
	"github.com/mailward/mailward/internal/model"
)

var (
	checkAccount string
	checkSender  string
	checkSubject string
	checkFile    string
	checkFormat  string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkAccount, "account", "a", "", "Account ID to evaluate against (required)")
	checkCmd.Flags().StringVar(&checkSender, "sender", "", "Hypothetical sender address")
	checkCmd.Flags().StringVar(&checkSubject, "subject", "", "Hypothetical subject line")
	checkCmd.Flags().StringVar(&checkFile, "file", "", "Path to a raw RFC 5322 message to run the full read decision on")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	checkCmd.MarkFlagRequired("account")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run the decision pipeline for a sender or message",
	Long: "Evaluates an account's rules without touching any mailbox.\n\n" +
		"With --sender (and optionally --subject), resolves the access level\n" +
		"the way a listing would: no content is scanned.\n\n" +
		"With --file, parses the message and runs the full read decision,\n" +
		"including the protection scan. Exit code 0 if the message would be\n" +
		"shown, 1 if it would be hidden or blocked.",
	RunE: runCheck,
}

// checkResult is the flat report for both dry-run modes.
type checkResult struct {
	Account   string   `json:"account"`
	Access    string   `json:"access"`
	Hidden    bool     `json:"hidden"`
	Blocked   bool     `json:"blocked,omitempty"`
	Scanned   bool     `json:"scanned"`
	SkipScan  bool     `json:"skip_scan,omitempty"`
	Score     float64  `json:"score,omitempty"`
	Threshold float64  `json:"threshold"`
	Guidance  []string `json:"guidance,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkSender == "" && checkFile == "" {
		return fmt.Errorf("either --sender or --file is required")
	}

	ctx := context.Background()

	cfg, hash, err := account.LoadWithHash(resolveConfigPath())
	if err != nil {
		return err
	}
	scanner, err := account.NewScanner(ctx, cfg.Protection, zap.NewNop())
	if err != nil {
		return err
	}
	snap, err := account.Compile(cfg, scanner, hash)
	if err != nil {
		return err
	}

	acct := snap.Account(checkAccount)
	if acct == nil {
		return fmt.Errorf("unknown account: %s", checkAccount)
	}

	var result checkResult
	if checkFile != "" {
		result, err = checkMessageFile(ctx, acct)
		if err != nil {
			return err
		}
	} else {
		result = checkSenderOnly(acct)
	}
	result.Account = acct.ID
	result.Threshold = acct.Decisions.Threshold()

	switch checkFormat {
	case "json":
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		printCheckText(result)
	}

	if result.Hidden || result.Blocked {
		os.Exit(1)
	}
	return nil
}

func checkSenderOnly(acct *account.Account) checkResult {
	d := acct.Decisions.ForListing(&model.EmailSummary{
		From:    model.Address{Address: checkSender},
		Subject: checkSubject,
	})
	return checkResult{
		Access:   string(d.Access),
		Hidden:   !d.Visible,
		SkipScan: d.Unscanned,
		Guidance: d.Prompts,
	}
}

func checkMessageFile(ctx context.Context, acct *account.Account) (checkResult, error) {
	f, err := os.Open(checkFile)
	if err != nil {
		return checkResult{}, fmt.Errorf("open message: %w", err)
	}
	defer f.Close()

	email, err := maildrop.Parse(f)
	if err != nil {
		return checkResult{}, fmt.Errorf("parse message: %w", err)
	}

	d, err := acct.Decisions.ForRead(ctx, email)
	if err != nil {
		return checkResult{}, err
	}
	return checkResult{
		Access:   string(d.Access),
		Hidden:   d.Hidden,
		Blocked:  d.Blocked,
		Scanned:  d.Scanned,
		Score:    d.Score,
		Guidance: d.Prompts,
	}, nil
}

func printCheckText(r checkResult) {
	fmt.Printf("Account:   %s\n", r.Account)
	fmt.Printf("Access:    %s\n", r.Access)
	switch {
	case r.Hidden:
		fmt.Println("Verdict:   HIDDEN (not visible to the agent)")
	case r.Blocked:
		fmt.Printf("Verdict:   BLOCKED (score %.2f at or above threshold %.2f)\n", r.Score, r.Threshold)
	default:
		fmt.Println("Verdict:   SHOWN")
	}
	if r.Scanned {
		fmt.Printf("Scan:      score %.2f (threshold %.2f)\n", r.Score, r.Threshold)
	} else if r.SkipScan {
		fmt.Println("Scan:      would be skipped by policy rule")
	}
	for _, g := range r.Guidance {
		fmt.Printf("Guidance:  %s\n", g)
	}
}
