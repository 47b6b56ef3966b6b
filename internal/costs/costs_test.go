package costs

import (
	"math"
	"testing"

	"audit-backend/internal/llm"
)

func TestComputeItemizes(t *testing.T) {
	rates := Rates{InputPerMTok: 2, OutputPerMTok: 10, TranscriptionPerMinute: 0.01}
	got := Compute(rates, llm.Usage{InputTokens: 500_000, OutputTokens: 100_000}, 300)

	if !almostEqual(got.LLMUSD, 2.0) {
		t.Fatalf("llm cost = %g, want 2.0", got.LLMUSD)
	}
	if !almostEqual(got.TranscriptionUSD, 0.05) {
		t.Fatalf("transcription cost = %g, want 0.05", got.TranscriptionUSD)
	}
	if !almostEqual(got.TotalUSD, 2.05) {
		t.Fatalf("total = %g, want 2.05", got.TotalUSD)
	}
}

func TestComputeZeroUsageIsFree(t *testing.T) {
	got := Compute(DefaultRates, llm.Usage{}, 0)
	if got.TotalUSD != 0 {
		t.Fatalf("expected zero cost, got %+v", got)
	}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
