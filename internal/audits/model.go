package audits

import (
	"time"

	"audit-backend/internal/scoring"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Audit represents one interaction-audit job: uploaded media, pipeline
// progress, and the final evaluation once scoring completes.
type Audit struct {
	ID                 string                    `json:"id"`
	AgentName          string                    `json:"agentName"`
	InteractionType    string                    `json:"interactionType"`
	CatalogVersion     string                    `json:"catalogVersion"`
	ResolvedViaDefault bool                      `json:"resolvedViaDefault"`
	Status             string                    `json:"status"`
	Stage              string                    `json:"stage"`
	FailureReason      string                    `json:"failureReason,omitempty"`
	AudioKey           string                    `json:"-"`
	ImageKeys          []string                  `json:"-"`
	ArtifactKey        string                    `json:"-"`
	Result             *scoring.EvaluationResult `json:"result,omitempty"`
	TotalScore         float64                   `json:"totalScore"`
	MaxPossibleScore   float64                   `json:"maxPossibleScore"`
	Percentage         float64                   `json:"percentage"`
	InputTokens        int                       `json:"inputTokens"`
	OutputTokens       int                       `json:"outputTokens"`
	CostUSD            float64                   `json:"costUsd"`
	CacheHit           bool                      `json:"cacheHit"`
	CreatedAt          time.Time                 `json:"createdAt"`
	StartedAt          *time.Time                `json:"startedAt,omitempty"`
	CompletedAt        *time.Time                `json:"completedAt,omitempty"`
}

// Activity is one audit activity log line.
type Activity struct {
	AuditID   string    `json:"auditId"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
