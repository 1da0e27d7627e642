// Package protection decides whether email content may pass to the
// agent: it gates a classifier risk score against a threshold, honoring
// the rule-derived skip flag.
//
// The gate is fail-closed. A classifier failure or timeout is
// ErrScanUnavailable and fails the requested action; it is never
// converted into a fabricated score or an unscanned pass-through.
package protection

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrScanUnavailable marks a classifier call that failed or timed out.
	ErrScanUnavailable = errors.New("protection scan unavailable")

	// ErrInvalidThreshold marks a configured threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("invalid protection threshold")
)

// DefaultThreshold is the global fallback when no threshold is configured.
const DefaultThreshold = 0.5

// DefaultScanTimeout bounds a classifier call when the caller's context
// carries no deadline of its own.
const DefaultScanTimeout = 30 * time.Second

// Scanner produces a risk score in [0, 1] for a piece of content.
// 0.0 is safe, 1.0 is certainly malicious. Implementations must respect
// the context deadline.
type Scanner interface {
	Scan(ctx context.Context, content string) (float64, error)
}

// Outcome is the result of gating one email's content.
type Outcome struct {
	Scanned bool
	Blocked bool
	Score   float64
}

// ValidateThreshold rejects thresholds outside the inclusive [0, 1] range.
// Runs once at configuration load; an invalid threshold is fatal to startup.
func ValidateThreshold(t float64) error {
	if t < 0.0 || t > 1.0 {
		return fmt.Errorf("%w: %v (must be within [0.0, 1.0])", ErrInvalidThreshold, t)
	}
	return nil
}

// Gate applies the protection decision for one piece of content.
//
// skip=true suppresses the scan entirely: no classifier call, not
// blocked, reported as unscanned. Otherwise the scanner is invoked with
// a bounded timeout and the content is blocked iff score >= threshold
// (inclusive: a score exactly at the threshold blocks).
//
// Empty content scores 0.0 without a classifier call.
func Gate(ctx context.Context, scanner Scanner, content string, threshold float64, skip bool) (Outcome, error) {
	if skip {
		return Outcome{Scanned: false, Blocked: false}, nil
	}

	if content == "" {
		return Outcome{Scanned: true, Blocked: false, Score: 0.0}, nil
	}

	if scanner == nil {
		return Outcome{}, fmt.Errorf("%w: no scanner configured", ErrScanUnavailable)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultScanTimeout)
		defer cancel()
	}

	score, err := scanner.Scan(ctx, content)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrScanUnavailable, err)
	}
	if score < 0.0 || score > 1.0 {
		return Outcome{}, fmt.Errorf("%w: classifier returned score %v outside [0.0, 1.0]", ErrScanUnavailable, score)
	}

	return Outcome{
		Scanned: true,
		Blocked: score >= threshold,
		Score:   score,
	}, nil
}
