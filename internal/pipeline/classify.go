package pipeline

import (
	"context"
	"errors"
	"strings"

	"audit-backend/internal/audits"
	"audit-backend/internal/transcribe"
)

// classifyFailure maps a pipeline error to an error code plus a retryable
// hint. Matching is on wrapped sentinels first, message text second.
func classifyFailure(err error) (string, bool) {
	if err == nil {
		return audits.ErrorCodeInternal, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return audits.ErrorCodeVisionTimeout, true
	}
	if errors.Is(err, transcribe.ErrWaitBudgetExceeded) {
		return audits.ErrorCodeTranscription, true
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "transcription"):
		return audits.ErrorCodeTranscription, true
	case strings.Contains(msg, "scorer response") || strings.Contains(msg, "scoring failed"):
		return audits.ErrorCodeScoringInvalid, false
	case strings.Contains(msg, "vision") || strings.Contains(msg, "visual extraction"):
		return audits.ErrorCodeVisionTimeout, true
	case strings.Contains(msg, "validation"):
		return audits.ErrorCodeValidation, false
	case strings.Contains(msg, "load audio") || strings.Contains(msg, "load image") ||
		strings.Contains(msg, "save artifact") || strings.Contains(msg, "persist result") ||
		strings.Contains(msg, "set stage"):
		return audits.ErrorCodeStorage, true
	default:
		return audits.ErrorCodeInternal, false
	}
}

const maxReasonLength = 500

// sanitizeError flattens an error into a persistable reason: single line,
// bounded length, no key material.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	for _, marker := range []string{"bearer ", "api_key=", "apikey=", "authorization:"} {
		if idx := strings.Index(strings.ToLower(msg), marker); idx >= 0 {
			msg = msg[:idx] + "[redacted]"
		}
	}
	if len(msg) > maxReasonLength {
		msg = msg[:maxReasonLength] + "..."
	}
	return msg
}
