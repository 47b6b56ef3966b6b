package audits

import "time"

// auditResponse is the wire shape for one audit.
type auditResponse struct {
	ID                 string     `json:"id"`
	AgentName          string     `json:"agentName"`
	InteractionType    string     `json:"interactionType"`
	CatalogVersion     string     `json:"catalogVersion,omitempty"`
	ResolvedViaDefault bool       `json:"resolvedViaDefault"`
	Status             string     `json:"status"`
	Stage              string     `json:"stage"`
	FailureReason      string     `json:"failureReason,omitempty"`
	TotalScore         float64    `json:"totalScore"`
	MaxPossibleScore   float64    `json:"maxPossibleScore"`
	Percentage         float64    `json:"percentage"`
	InputTokens        int        `json:"inputTokens"`
	OutputTokens       int        `json:"outputTokens"`
	CostUSD            float64    `json:"costUsd"`
	CacheHit           bool       `json:"cacheHit"`
	CreatedAt          time.Time  `json:"createdAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

func toResponse(a Audit) auditResponse {
	return auditResponse{
		ID:                 a.ID,
		AgentName:          a.AgentName,
		InteractionType:    a.InteractionType,
		CatalogVersion:     a.CatalogVersion,
		ResolvedViaDefault: a.ResolvedViaDefault,
		Status:             a.Status,
		Stage:              a.Stage,
		FailureReason:      a.FailureReason,
		TotalScore:         a.TotalScore,
		MaxPossibleScore:   a.MaxPossibleScore,
		Percentage:         a.Percentage,
		InputTokens:        a.InputTokens,
		OutputTokens:       a.OutputTokens,
		CostUSD:            a.CostUSD,
		CacheHit:           a.CacheHit,
		CreatedAt:          a.CreatedAt,
		CompletedAt:        a.CompletedAt,
	}
}

func toResponses(list []Audit) []auditResponse {
	out := make([]auditResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	return out
}
