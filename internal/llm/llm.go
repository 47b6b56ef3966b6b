package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// VisionClient abstracts the remote vision service that turns a screenshot
// into structured JSON.
type VisionClient interface {
	AnalyzeImage(ctx context.Context, input ImageInput) (json.RawMessage, Usage, error)
}

// ScoringClient abstracts the remote scoring service that evaluates the
// evidence bundle against the rubric.
type ScoringClient interface {
	ScoreEvidence(ctx context.Context, input ScoreInput) (json.RawMessage, Usage, error)
}

// ImageInput carries one screenshot to analyze.
type ImageInput struct {
	SourceID string
	Data     []byte
	MimeType string
}

// ScoreInput carries the fully built scoring instruction.
type ScoreInput struct {
	System string
	User   string
}

// Usage reports token consumption of a remote call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates another usage record.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// ErrNotConfigured is returned by placeholder clients.
var ErrNotConfigured = errors.New("llm client not configured")

// PlaceholderVision is a stub vision client for wiring without a provider.
type PlaceholderVision struct{}

// AnalyzeImage returns ErrNotConfigured.
func (PlaceholderVision) AnalyzeImage(ctx context.Context, input ImageInput) (json.RawMessage, Usage, error) {
	_ = ctx
	_ = input
	return nil, Usage{}, ErrNotConfigured
}

// PlaceholderScorer is a stub scoring client for wiring without a provider.
type PlaceholderScorer struct{}

// ScoreEvidence returns ErrNotConfigured.
func (PlaceholderScorer) ScoreEvidence(ctx context.Context, input ScoreInput) (json.RawMessage, Usage, error) {
	_ = ctx
	_ = input
	return nil, Usage{}, ErrNotConfigured
}
