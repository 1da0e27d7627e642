// Package account loads gateway configuration and compiles it into
// immutable per-account policy snapshots.
package account

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mailward/mailward/internal/alert"
	"github.com/mailward/mailward/internal/capability"
	"github.com/mailward/mailward/internal/decision"
	"github.com/mailward/mailward/internal/model"
	"github.com/mailward/mailward/internal/pattern"
	"github.com/mailward/mailward/internal/protection"
	"github.com/mailward/mailward/internal/rules"
)

// Scanner backend names accepted in the protection section.
const (
	ScannerWordlist = "wordlist"
	ScannerHTTP     = "http"
	ScannerBedrock  = "bedrock"
)

var accountIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// HTTPConfig configures the HTTP classifier backend.
type HTTPConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// BedrockConfig configures the AWS Bedrock classifier backend.
type BedrockConfig struct {
	Region    string `yaml:"region"`
	ModelID   string `yaml:"model_id"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ProtectionConfig holds global scanning parameters.
type ProtectionConfig struct {
	Threshold float64       `yaml:"threshold"`
	Scanner   string        `yaml:"scanner"`
	HTTP      HTTPConfig    `yaml:"http"`
	Bedrock   BedrockConfig `yaml:"bedrock"`
}

// RuleConfig is one sender or subject rule as written in YAML.
type RuleConfig struct {
	Pattern        string `yaml:"pattern"`
	Access         string `yaml:"access"`
	SkipProtection bool   `yaml:"skip_protection"`
}

// CapabilitiesConfig holds per-account action flags. Read defaults to
// true when omitted; everything else defaults to false.
type CapabilitiesConfig struct {
	Read   *bool `yaml:"read"`
	Delete bool  `yaml:"delete"`
	Send   bool  `yaml:"send"`
	Move   bool  `yaml:"move"`
}

func (c CapabilitiesConfig) capabilities() capability.Capabilities {
	read := true
	if c.Read != nil {
		read = *c.Read
	}
	return capability.Capabilities{
		Read:   read,
		Delete: c.Delete,
		Send:   c.Send,
		Move:   c.Move,
	}
}

// UnscannedPromptsConfig overrides the unscanned-content guidance.
// A key present with an empty value suppresses the built-in text.
type UnscannedPromptsConfig struct {
	List *string `yaml:"list"`
	Read *string `yaml:"read"`
}

// AccountConfig is one account as written in YAML.
//
// Recipients distinguishes absent from empty: a missing key allows any
// recipient, an explicit empty list denies all sends.
type AccountConfig struct {
	ID               string                 `yaml:"id"`
	Folders          []string               `yaml:"folders"`
	Capabilities     CapabilitiesConfig     `yaml:"capabilities"`
	Recipients       []string               `yaml:"recipients"`
	Threshold        *float64               `yaml:"threshold"`
	SenderRules      []RuleConfig           `yaml:"sender_rules"`
	SubjectRules     []RuleConfig           `yaml:"subject_rules"`
	ListPrompts      map[string]string      `yaml:"list_prompts"`
	ReadPrompts      map[string]string      `yaml:"read_prompts"`
	UnscannedPrompts UnscannedPromptsConfig `yaml:"unscanned_prompts"`
}

// MaildropConfig points at the local mail spool directories.
type MaildropConfig struct {
	Spool  string `yaml:"spool"`
	Outbox string `yaml:"outbox"`
	From   string `yaml:"from"`
}

// ExpandPath resolves a leading ~/ against the home directory.
func ExpandPath(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// FileConfig is the full YAML configuration file.
type FileConfig struct {
	Protection ProtectionConfig `yaml:"protection"`
	Accounts   []AccountConfig  `yaml:"accounts"`
	Alerts     []alert.Config   `yaml:"alerts"`
	AuditLog   string           `yaml:"audit_log"`
	Maildrop   MaildropConfig   `yaml:"maildrop"`
}

// DefaultConfig returns the built-in configuration: wordlist scanner,
// default threshold, no accounts.
func DefaultConfig() *FileConfig {
	return &FileConfig{
		Protection: ProtectionConfig{
			Threshold: protection.DefaultThreshold,
			Scanner:   ScannerWordlist,
		},
		Maildrop: MaildropConfig{
			Spool:  "~/.mailward/spool",
			Outbox: "~/.mailward/outbox",
		},
	}
}

// DefaultPath returns ~/.mailward/config.yaml, or empty when the home
// directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mailward", "config.yaml")
}

// Load loads configuration from a YAML file. Empty path falls back to
// ~/.mailward/config.yaml. Missing file returns defaults. Invalid YAML
// or invalid policy content returns an error; a bad pattern is never
// ignored.
func Load(path string) (*FileConfig, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk. When no file
// exists (defaults used), the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*FileConfig, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, "", err
	}

	return cfg, hash, nil
}

// Validate checks every pattern, threshold, access level, and account
// ID in the configuration. Any failure is fatal to startup.
func Validate(cfg *FileConfig) error {
	if err := protection.ValidateThreshold(cfg.Protection.Threshold); err != nil {
		return fmt.Errorf("protection.threshold: %w", err)
	}
	switch cfg.Protection.Scanner {
	case "", ScannerWordlist, ScannerHTTP, ScannerBedrock:
	default:
		return fmt.Errorf("protection.scanner: unknown backend %q", cfg.Protection.Scanner)
	}

	seen := make(map[string]bool, len(cfg.Accounts))
	for i, acct := range cfg.Accounts {
		if !accountIDPattern.MatchString(acct.ID) {
			return fmt.Errorf("accounts[%d]: invalid account ID %q", i, acct.ID)
		}
		if seen[acct.ID] {
			return fmt.Errorf("accounts[%d]: duplicate account ID %q", i, acct.ID)
		}
		seen[acct.ID] = true

		if err := validateAccount(&acct); err != nil {
			return fmt.Errorf("account %q: %w", acct.ID, err)
		}
	}

	for i, a := range cfg.Alerts {
		if a.URL == "" {
			return fmt.Errorf("alerts[%d]: missing url", i)
		}
		switch a.Format {
		case "", "generic", "slack", "pagerduty":
		default:
			return fmt.Errorf("alerts[%d]: unknown format %q", i, a.Format)
		}
	}

	return nil
}

func validateAccount(acct *AccountConfig) error {
	if acct.Threshold != nil {
		if err := protection.ValidateThreshold(*acct.Threshold); err != nil {
			return fmt.Errorf("threshold: %w", err)
		}
	}

	for i, r := range acct.SenderRules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("sender_rules[%d]: %w", i, err)
		}
	}
	for i, r := range acct.SubjectRules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("subject_rules[%d]: %w", i, err)
		}
	}

	for i, p := range acct.Recipients {
		if _, err := pattern.CompileFold(p); err != nil {
			return fmt.Errorf("recipients[%d]: %w", i, err)
		}
	}

	for key := range acct.ListPrompts {
		if err := validatePromptLevel(key); err != nil {
			return fmt.Errorf("list_prompts: %w", err)
		}
	}
	for key := range acct.ReadPrompts {
		if err := validatePromptLevel(key); err != nil {
			return fmt.Errorf("read_prompts: %w", err)
		}
	}

	return nil
}

func validateRule(r RuleConfig) error {
	if _, err := pattern.Compile(r.Pattern); err != nil {
		return err
	}
	if r.Access != "" {
		if _, err := model.ParseAccessLevel(r.Access); err != nil {
			return err
		}
	}
	return nil
}

func validatePromptLevel(key string) error {
	level, err := model.ParseAccessLevel(key)
	if err != nil {
		return err
	}
	// Hidden emails are never rendered, so a prompt for them is a
	// configuration mistake.
	if level == model.AccessHide {
		return fmt.Errorf("no guidance is rendered for level %q", key)
	}
	return nil
}

// Account is one compiled account: its capability gate and its
// decision composer, ready for concurrent use.
type Account struct {
	ID        string
	Gate      *capability.Gate
	Decisions *decision.Composer
}

// Snapshot is a compiled, immutable view of one configuration load.
// Reload builds a new Snapshot; nothing mutates an existing one.
type Snapshot struct {
	Hash     string
	Accounts []*Account
	Alerts   []alert.Config
	AuditLog string
	Maildrop MaildropConfig

	byID map[string]*Account
}

// Compile builds a Snapshot from a validated configuration. The
// scanner is shared across accounts; per-account thresholds override
// the global one.
func Compile(cfg *FileConfig, scanner protection.Scanner, hash string) (*Snapshot, error) {
	snap := &Snapshot{
		Hash:     hash,
		Alerts:   cfg.Alerts,
		AuditLog: cfg.AuditLog,
		Maildrop: cfg.Maildrop,
		byID:     make(map[string]*Account, len(cfg.Accounts)),
	}

	for _, ac := range cfg.Accounts {
		acct, err := compileAccount(&ac, cfg.Protection.Threshold, scanner)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", ac.ID, err)
		}
		snap.Accounts = append(snap.Accounts, acct)
		snap.byID[acct.ID] = acct
	}

	return snap, nil
}

func compileAccount(ac *AccountConfig, globalThreshold float64, scanner protection.Scanner) (*Account, error) {
	gate, err := capability.New(ac.Capabilities.capabilities(), ac.Folders, ac.Recipients)
	if err != nil {
		return nil, err
	}

	specs := make([]rules.Spec, 0, len(ac.SenderRules)+len(ac.SubjectRules))
	for _, r := range ac.SenderRules {
		specs = append(specs, ruleSpec(r, model.FieldSender))
	}
	for _, r := range ac.SubjectRules {
		specs = append(specs, ruleSpec(r, model.FieldSubject))
	}
	set, err := rules.Compile(specs)
	if err != nil {
		return nil, err
	}

	threshold := globalThreshold
	if ac.Threshold != nil {
		threshold = *ac.Threshold
	}

	return &Account{
		ID:   ac.ID,
		Gate: gate,
		Decisions: decision.New(decision.Config{
			Rules:     set,
			Threshold: threshold,
			Scanner:   scanner,
			Prompts:   compilePrompts(ac),
		}),
	}, nil
}

func ruleSpec(r RuleConfig, field model.RuleField) rules.Spec {
	access := model.AccessShow
	if r.Access != "" {
		// Validated at load time; fail closed on the impossible path.
		level, err := model.ParseAccessLevel(r.Access)
		if err != nil {
			level = model.AccessHide
		}
		access = level
	}
	return rules.Spec{
		Field:          field,
		Pattern:        r.Pattern,
		Access:         access,
		SkipProtection: r.SkipProtection,
	}
}

func compilePrompts(ac *AccountConfig) decision.Prompts {
	p := decision.Prompts{
		List: promptMap(ac.ListPrompts),
		Read: promptMap(ac.ReadPrompts),
	}
	if ac.UnscannedPrompts.List != nil {
		p.UnscannedList = *ac.UnscannedPrompts.List
		p.UnscannedListSet = true
	}
	if ac.UnscannedPrompts.Read != nil {
		p.UnscannedRead = *ac.UnscannedPrompts.Read
		p.UnscannedReadSet = true
	}
	return p
}

func promptMap(src map[string]string) map[model.AccessLevel]string {
	if src == nil {
		return nil
	}
	out := make(map[model.AccessLevel]string, len(src))
	for key, text := range src {
		level, err := model.ParseAccessLevel(key)
		if err != nil {
			continue // validated at load time
		}
		out[level] = text
	}
	return out
}

// Account returns the compiled account for an ID, or nil.
func (s *Snapshot) Account(id string) *Account {
	return s.byID[id]
}

// AccountIDs returns configured account IDs in file order.
func (s *Snapshot) AccountIDs() []string {
	ids := make([]string, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		ids = append(ids, a.ID)
	}
	return ids
}

// DefaultConfigYAML returns a commented YAML string for init-config.
func DefaultConfigYAML() string {
	return `# mailward configuration
# Generated by: mailward init-config
#
# Every email is judged twice, independently:
#   1. Rules resolve an access level (trusted | show | ask_before_read | hide).
#      Most restrictive match wins across sender and subject rules.
#   2. Protection scanning scores full content on read. Scanning is
#      skipped only when every matching rule opts out.
# A trust label never suppresses a scan.

protection:
  # Content at or above the threshold is blocked. Range [0, 1].
  threshold: 0.5
  # wordlist: built-in phrase heuristics, no network.
  # http: OpenAI-compatible chat completions endpoint.
  # bedrock: AWS Bedrock Anthropic messages API.
  scanner: wordlist
  # http:
  #   url: https://api.openai.com/v1/chat/completions
  #   api_key: sk-...
  #   model: gpt-4o-mini
  #   timeout: 30s
  # bedrock:
  #   region: us-east-1
  #   model_id: anthropic.claude-3-haiku-20240307-v1:0
  #   max_tokens: 256

accounts:
  - id: work
    # Omit folders to allow all. Folder names are matched exactly.
    folders: [INBOX, Archive]
    # read defaults to true; everything else defaults to false.
    capabilities:
      read: true
      delete: false
      send: true
      move: false
    # Recipient allow-list for send. Omit to allow any recipient;
    # an explicit empty list denies all sends.
    recipients:
      - "@mycompany\\.com$"
    # Per-account threshold override.
    # threshold: 0.8
    sender_rules:
      - pattern: "@mycompany\\.com$"
        access: trusted
      - pattern: "newsletter@"
        access: hide
    subject_rules:
      - pattern: "\\[URGENT\\]"
        access: ask_before_read

# Webhook alerting for blocked and denied outcomes.
# alerts:
#   - url: https://hooks.slack.com/services/...
#     format: slack
#     events: [blocked, denied]

# Hash-chained decision log. Omit to disable.
# audit_log: ~/.mailward/decisions.jsonl

# Local mail spool. RFC 5322 files dropped into the spool appear as
# incoming mail; outbound messages are written to the outbox.
maildrop:
  spool: ~/.mailward/spool
  outbox: ~/.mailward/outbox
`
}
