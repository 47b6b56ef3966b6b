package audits

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrArtifactNotReady = errors.New("artifact not ready")
)

const (
	ErrorCodeValidation     = "VALIDATION_ERROR"
	ErrorCodeTranscription  = "TRANSCRIPTION_ERROR"
	ErrorCodeVisionTimeout  = "VISION_TIMEOUT"
	ErrorCodeScoringInvalid = "SCORING_OUTPUT_INVALID"
	ErrorCodeStorage        = "STORAGE_ERROR"
	ErrorCodeInternal       = "INTERNAL_ERROR"
)
