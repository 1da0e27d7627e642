package audit

// Outcome values recorded in audit entries.
const (
	OutcomeAllowed         = "allowed"
	OutcomeDenied          = "denied"
	OutcomeBlocked         = "blocked"
	OutcomeHidden          = "hidden"
	OutcomeScanUnavailable = "scan_unavailable"
)

// Entry is one line in the hash-chained JSONL audit log.
// All fields are scalars (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp  string  `json:"ts"`
	Account    string  `json:"account"`
	Action     string  `json:"action"`
	Folder     string  `json:"folder,omitempty"`
	UID        uint32  `json:"uid,omitempty"`
	Sender     string  `json:"sender,omitempty"`
	Access     string  `json:"access,omitempty"`
	Outcome    string  `json:"outcome"`
	Scanned    bool    `json:"scanned,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	ConfigHash string  `json:"config_hash"`
	PrevHash   string  `json:"prev_hash"`
}
