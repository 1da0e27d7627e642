package protection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

// BedrockScannerConfig holds parameters for an Amazon Bedrock classifier.
type BedrockScannerConfig struct {
	Region    string
	ModelID   string
	MaxTokens int
}

// BedrockScanner scores content through a Bedrock-hosted model using
// the same JSON contract as the HTTP scanner.
type BedrockScanner struct {
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int
	log       *zap.Logger
}

// NewBedrockScanner loads the default AWS configuration for the region
// and creates a scanner client.
func NewBedrockScanner(ctx context.Context, cfg BedrockScannerConfig, log *zap.Logger) (*BedrockScanner, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("bedrock scanner: model_id is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	if log == nil {
		log = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock scanner: load AWS configuration: %w", err)
	}

	return &BedrockScanner{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		modelID:   cfg.ModelID,
		maxTokens: cfg.MaxTokens,
		log:       log,
	}, nil
}

// bedrockMessagesPayload is the Anthropic messages request body.
type bedrockMessagesPayload struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Scan invokes the model and parses the risk score from its reply.
func (s *BedrockScanner) Scan(ctx context.Context, content string) (float64, error) {
	payload, err := json.Marshal(bedrockMessagesPayload{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        s.maxTokens,
		System:           scanSystemPrompt,
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContentBlock{{Type: "text", Text: content}}},
		},
		Temperature: 0,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal scan payload: %w", err)
	}

	start := time.Now()
	resp, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &s.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return 0, fmt.Errorf("invoke Bedrock model: %w", err)
	}

	var reply struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp.Body, &reply); err != nil || len(reply.Content) == 0 {
		return 0, fmt.Errorf("empty Bedrock response")
	}

	score, err := parseScore(reply.Content[0].Text)
	if err != nil {
		return 0, err
	}

	s.log.Debug("content scanned",
		zap.String("model", s.modelID),
		zap.Float64("score", score),
		zap.Duration("elapsed", time.Since(start)))
	return score, nil
}
