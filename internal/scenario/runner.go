package scenario

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mailward/mailward/internal/account"
	"github.com/mailward/mailward/internal/model"
	"github.com/mailward/mailward/internal/protection"
)

// Verdicts a case can expect.
const (
	VerdictShown   = "shown"
	VerdictHidden  = "hidden"
	VerdictBlocked = "blocked"
)

// Run evaluates all cases in a scenario against a compiled snapshot.
// Cases are independent; a case with a body goes through the full
// read decision, one without resolves the listing decision only.
func Run(ctx context.Context, s *Scenario, snap *account.Snapshot) (*RunResult, error) {
	acct := snap.Account(s.Account)
	if acct == nil {
		return nil, fmt.Errorf("scenario %q: unknown account %q", s.Name, s.Account)
	}

	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	for i, c := range s.Cases {
		actual, access, err := evaluate(ctx, acct, c.Email)
		if err != nil {
			return nil, fmt.Errorf("scenario %q case %d: %w", s.Name, i+1, err)
		}

		cr := CaseResult{
			Index:    i + 1,
			Sender:   c.Email.Sender,
			Subject:  c.Email.Subject,
			Expected: strings.ToLower(c.Expect),
			Actual:   actual,
			Access:   access,
		}

		cr.Passed = actual == cr.Expected
		if cr.Passed && c.Access != "" {
			cr.Passed = access == c.Access
		}

		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result, nil
}

func evaluate(ctx context.Context, acct *account.Account, e SampleEmail) (verdict, access string, err error) {
	sum := model.EmailSummary{
		From:    model.Address{Address: e.Sender},
		Subject: e.Subject,
	}

	if e.Body == "" {
		d := acct.Decisions.ForListing(&sum)
		if !d.Visible {
			return VerdictHidden, string(d.Access), nil
		}
		return VerdictShown, string(d.Access), nil
	}

	d, err := acct.Decisions.ForRead(ctx, &model.Email{
		EmailSummary: sum,
		BodyPlain:    e.Body,
	})
	if err != nil {
		return "", "", err
	}
	switch {
	case d.Hidden:
		return VerdictHidden, string(d.Access), nil
	case d.Blocked:
		return VerdictBlocked, string(d.Access), nil
	default:
		return VerdictShown, string(d.Access), nil
	}
}

// LoadAndRun loads a scenario YAML file, compiles the configuration,
// and runs. Scenarios always scan with the wordlist backend so that
// results stay deterministic and offline.
func LoadAndRun(ctx context.Context, path, configPath string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	cfg, hash, err := account.LoadWithHash(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	snap, err := account.Compile(cfg, protection.NewWordlistScanner(), hash)
	if err != nil {
		return nil, fmt.Errorf("compile config: %w", err)
	}

	result, err := Run(ctx, &s, snap)
	if err != nil {
		return nil, err
	}
	result.File = path

	return result, nil
}
