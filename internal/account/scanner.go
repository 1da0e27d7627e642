package account

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mailward/mailward/internal/protection"
)

// NewScanner builds the configured protection scanner. The wordlist
// backend needs no external service and is the default.
func NewScanner(ctx context.Context, cfg ProtectionConfig, log *zap.Logger) (protection.Scanner, error) {
	switch cfg.Scanner {
	case "", ScannerWordlist:
		return protection.NewWordlistScanner(), nil

	case ScannerHTTP:
		timeout := time.Duration(0)
		if cfg.HTTP.Timeout != "" {
			var err error
			timeout, err = time.ParseDuration(cfg.HTTP.Timeout)
			if err != nil {
				return nil, fmt.Errorf("protection.http.timeout: %w", err)
			}
		}
		return protection.NewHTTPScanner(protection.HTTPScannerConfig{
			APIURL:  cfg.HTTP.URL,
			APIKey:  cfg.HTTP.APIKey,
			Model:   cfg.HTTP.Model,
			Timeout: timeout,
		}, log), nil

	case ScannerBedrock:
		return protection.NewBedrockScanner(ctx, protection.BedrockScannerConfig{
			Region:    cfg.Bedrock.Region,
			ModelID:   cfg.Bedrock.ModelID,
			MaxTokens: cfg.Bedrock.MaxTokens,
		}, log)

	default:
		return nil, fmt.Errorf("unknown scanner backend %q", cfg.Scanner)
	}
}
