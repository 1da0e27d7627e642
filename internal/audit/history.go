package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// HistoryFilter holds filtering criteria for an account history query.
type HistoryFilter struct {
	Account string
	From    time.Time // zero value = no lower bound
	To      time.Time // zero value = no upper bound
}

// HistorySummary holds outcome counts and metadata for a queried history.
type HistorySummary struct {
	Total          int     `json:"total"`
	AllowedCount   int     `json:"allowed_count"`
	DeniedCount    int     `json:"denied_count"`
	BlockedCount   int     `json:"blocked_count"`
	HiddenCount    int     `json:"hidden_count"`
	ScanFailCount  int     `json:"scan_fail_count"`
	FirstTimestamp string  `json:"first_timestamp"`
	LastTimestamp  string  `json:"last_timestamp"`
	MaxScore       float64 `json:"max_score"`
}

// HistoryResult holds filtered entries and summary for an account.
type HistoryResult struct {
	Account string         `json:"account"`
	Entries []Entry        `json:"entries"`
	Summary HistorySummary `json:"summary"`
}

// History reads the audit log and returns entries matching the filter.
func History(path string, filter HistoryFilter) (*HistoryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &HistoryResult{
		Account: filter.Account,
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if entry.Account != filter.Account {
			continue
		}

		// Time range filtering
		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue // skip unparseable timestamps
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func updateSummary(s *HistorySummary, entry Entry) {
	s.Total++

	switch entry.Outcome {
	case OutcomeAllowed:
		s.AllowedCount++
	case OutcomeDenied:
		s.DeniedCount++
	case OutcomeBlocked:
		s.BlockedCount++
	case OutcomeHidden:
		s.HiddenCount++
	case OutcomeScanUnavailable:
		s.ScanFailCount++
	}

	if entry.Score > s.MaxScore {
		s.MaxScore = entry.Score
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
