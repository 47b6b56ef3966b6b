package transcribe

import (
	"context"
	"errors"
)

// Utterance is one speaker turn in the transcript.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
}

// Transcript is the full output of the transcription service.
type Transcript struct {
	Text            string      `json:"text"`
	Utterances      []Utterance `json:"utterances"`
	DurationSeconds float64     `json:"durationSeconds"`
}

// Transcriber abstracts the remote speech-to-text service.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcript, error)
}

// ErrWaitBudgetExceeded is returned when a transcription job does not finish
// within the configured wait budget.
var ErrWaitBudgetExceeded = errors.New("transcription wait budget exceeded")

// ErrNotConfigured is returned by the placeholder transcriber.
var ErrNotConfigured = errors.New("transcriber not configured")

// Placeholder is a stub transcriber for wiring without a provider.
type Placeholder struct{}

// Transcribe returns ErrNotConfigured.
func (Placeholder) Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcript, error) {
	_ = ctx
	_ = audio
	_ = mimeType
	return Transcript{}, ErrNotConfigured
}
