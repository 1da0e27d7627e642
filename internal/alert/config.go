package alert

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["blocked", "denied", "scan_unavailable"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event outcome values. Blocked content and denied actions are the
// signals worth waking someone for; hidden emails are routine policy.
const (
	OutcomeBlocked         = "blocked"
	OutcomeDenied          = "denied"
	OutcomeScanUnavailable = "scan_unavailable"
)

// Event is the payload sent to webhook endpoints when the gateway
// blocks email content or denies a requested action.
type Event struct {
	Timestamp  string  `json:"timestamp"`
	Account    string  `json:"account"`
	Action     string  `json:"action"`
	Folder     string  `json:"folder,omitempty"`
	UID        uint32  `json:"uid,omitempty"`
	Sender     string  `json:"sender,omitempty"`
	Outcome    string  `json:"outcome"`
	Reason     string  `json:"reason"`
	Score      float64 `json:"score,omitempty"`
	ConfigHash string  `json:"config_hash"`
}
