package scoring

import (
	"audit-backend/internal/llm"
)

// UnevaluatedCountsAgainstMax pins the aggregation policy: an applicable
// topic the scorer failed to address still counts toward the denominator,
// silently penalizing the percentage. Deliberate, not an accident of summing.
const UnevaluatedCountsAgainstMax = true

// ScoredTopic is the canonical per-topic verdict after reconciliation.
type ScoredTopic struct {
	BlockName     string  `json:"blockName"`
	TopicLabel    string  `json:"topicLabel"`
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"maxScore"`
	Justification string  `json:"justification"`
	// Evaluated distinguishes a real verdict from a topic the scorer never
	// addressed. An unevaluated topic is not a zero score.
	Evaluated bool `json:"evaluated"`
	Critical  bool `json:"critical"`
	Applies   bool `json:"applies"`
	// NotApplicable marks rubric lines that carry no points for this
	// interaction type. They render as N/A and never touch the totals.
	NotApplicable bool   `json:"notApplicable"`
	Note          string `json:"note,omitempty"`
}

// KeyMoment is a notable timestamped event surfaced by the scorer.
type KeyMoment struct {
	TimestampMs int64  `json:"timestampMs"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// EvaluationResult is the aggregate verdict for one audit.
type EvaluationResult struct {
	TotalScore       float64 `json:"totalScore"`
	MaxPossibleScore float64 `json:"maxPossibleScore"`
	// Percentage is TotalScore/MaxPossibleScore*100, defined as 0 when
	// MaxPossibleScore is 0.
	Percentage      float64       `json:"percentage"`
	ScoredTopics    []ScoredTopic `json:"scoredTopics"`
	Narrative       string        `json:"narrative"`
	Recommendations []string      `json:"recommendations"`
	KeyMoments      []KeyMoment   `json:"keyMoments"`
	TokenUsage      llm.Usage     `json:"tokenUsage"`
	CatalogName     string        `json:"catalogName"`
	CatalogVersion  string        `json:"catalogVersion"`
}

// Context carries audit metadata the scorer and serializer surface verbatim.
type Context struct {
	AuditID         string
	AgentName       string
	InteractionType string
}
