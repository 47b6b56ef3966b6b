package costs

import "audit-backend/internal/llm"

// Rates prices one audit run. Token rates are per million tokens,
// transcription is per audio minute.
type Rates struct {
	InputPerMTok           float64
	OutputPerMTok          float64
	TranscriptionPerMinute float64
}

// DefaultRates matches the current provider price sheet.
var DefaultRates = Rates{
	InputPerMTok:           2.50,
	OutputPerMTok:          10.00,
	TranscriptionPerMinute: 0.0062,
}

// Breakdown itemizes the cost of one audit in USD.
type Breakdown struct {
	LLMUSD           float64 `json:"llmUsd"`
	TranscriptionUSD float64 `json:"transcriptionUsd"`
	TotalUSD         float64 `json:"totalUsd"`
}

// Compute prices the run. Zero usage and zero duration price to zero; a cache
// hit costs nothing.
func Compute(rates Rates, usage llm.Usage, audioSeconds float64) Breakdown {
	llmCost := float64(usage.InputTokens)/1e6*rates.InputPerMTok +
		float64(usage.OutputTokens)/1e6*rates.OutputPerMTok
	transcription := audioSeconds / 60 * rates.TranscriptionPerMinute

	return Breakdown{
		LLMUSD:           llmCost,
		TranscriptionUSD: transcription,
		TotalUSD:         llmCost + transcription,
	}
}
