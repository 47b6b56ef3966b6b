package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"audit-backend/internal/catalog"
	"audit-backend/internal/evidence"
	"audit-backend/internal/llm"
	"audit-backend/internal/shared/telemetry"
)

const (
	scoreMaxAttempts    = 3
	scoreRetryBaseDelay = 500 * time.Millisecond
)

// scorerResponse is the raw shape returned by the scoring service before
// reconciliation against the catalog.
type scorerResponse struct {
	Topics          []scorerEntry `json:"topics"`
	Narrative       string        `json:"narrative"`
	Recommendations []string      `json:"recommendations"`
	KeyMoments      []KeyMoment   `json:"keyMoments"`
}

// Scorer turns an evidence bundle into a canonical EvaluationResult. The
// remote scorer is called once per evaluation; its free-text verdicts are
// reconciled back onto catalog topics locally.
type Scorer struct {
	Client llm.ScoringClient

	// sleep is injected in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScorer builds a Scorer over the given client.
func NewScorer(client llm.ScoringClient) *Scorer {
	return &Scorer{Client: client}
}

// Score runs one evaluation. Malformed scorer output is treated as transient
// and retried with the rest of the request unchanged; a scorer that cannot
// produce parseable JSON after the attempt budget fails the evaluation.
func (s *Scorer) Score(ctx context.Context, sel catalog.Selection, bundle evidence.Bundle, auditCtx Context) (EvaluationResult, error) {
	input := llm.ScoreInput{
		System: scoringSystemPrompt,
		User:   BuildRequest(sel, bundle, auditCtx),
	}

	var (
		resp    scorerResponse
		usage   llm.Usage
		lastErr error
	)
	for attempt := 1; attempt <= scoreMaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.doSleep(ctx, time.Duration(attempt-1)*scoreRetryBaseDelay); err != nil {
				return EvaluationResult{}, err
			}
		}

		raw, callUsage, err := s.Client.ScoreEvidence(ctx, input)
		usage = usage.Add(callUsage)
		if err != nil {
			if ctx.Err() != nil {
				return EvaluationResult{}, ctx.Err()
			}
			lastErr = err
			telemetry.Warn("scoring.attempt_failed", map[string]any{
				"audit_id": auditCtx.AuditID,
				"attempt":  attempt,
				"error":    err.Error(),
			})
			continue
		}

		parsed, perr := parseScorerResponse(raw)
		if perr != nil {
			lastErr = perr
			telemetry.Warn("scoring.malformed_response", map[string]any{
				"audit_id": auditCtx.AuditID,
				"attempt":  attempt,
				"error":    perr.Error(),
			})
			continue
		}

		resp = parsed
		lastErr = nil
		break
	}
	if lastErr != nil {
		return EvaluationResult{}, fmt.Errorf("scoring failed after %d attempts: %w", scoreMaxAttempts, lastErr)
	}

	result := reconcile(sel.Catalog, resp)
	result.TokenUsage = usage
	result.CatalogName = sel.Catalog.Name
	result.CatalogVersion = sel.Catalog.Version
	return result, nil
}

func (s *Scorer) doSleep(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseScorerResponse(raw json.RawMessage) (scorerResponse, error) {
	clean, err := evidence.SanitizeJSON(string(raw))
	if err != nil {
		return scorerResponse{}, fmt.Errorf("scorer response unparseable: %w", err)
	}
	var resp scorerResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return scorerResponse{}, fmt.Errorf("scorer response shape: %w", err)
	}
	return resp, nil
}

// reconcile maps free-text scorer entries onto catalog topics via the ordered
// matcher chain and aggregates the totals. Catalog order is preserved; every
// catalog topic appears exactly once in the output.
func reconcile(cat catalog.Catalog, resp scorerResponse) EvaluationResult {
	used := make([]bool, len(resp.Topics))
	var topics []ScoredTopic
	var total float64

	for _, block := range cat.Blocks {
		for _, topic := range block.Topics {
			st := ScoredTopic{
				BlockName:  block.Name,
				TopicLabel: topic.Label,
				Critical:   topic.Critical,
				Applies:    topic.Applies,
			}
			if topic.HasPoints {
				st.MaxScore = topic.MaxPoints
			}

			if !topic.Applies || !topic.HasPoints {
				st.NotApplicable = true
				st.Note = "not applicable"
				topics = append(topics, st)
				continue
			}

			res, ok := matchEntry(block.Name, topic.Label, resp.Topics, used)
			if !ok {
				if blockHasEntries(block.Name, resp.Topics, used) {
					st.Note = fmt.Sprintf("not addressed by the evaluation (block %q had other verdicts)", block.Name)
				} else {
					st.Note = "not addressed by the evaluation"
				}
				topics = append(topics, st)
				continue
			}

			entry := resp.Topics[res.index]
			used[res.index] = true
			st.Evaluated = true
			st.Score = clampScore(entry.Score, topic.MaxPoints)
			st.Justification = entry.Justification
			if res.strategy != "exact-pair" {
				st.Note = "matched via " + res.strategy
			}
			total += st.Score
			topics = append(topics, st)
		}
	}

	max := cat.MaxPossibleScore()
	var pct float64
	if max > 0 {
		pct = total / max * 100
	}

	return EvaluationResult{
		TotalScore:       total,
		MaxPossibleScore: max,
		Percentage:       pct,
		ScoredTopics:     topics,
		Narrative:        resp.Narrative,
		Recommendations:  resp.Recommendations,
		KeyMoments:       resp.KeyMoments,
	}
}

func matchEntry(block, topic string, entries []scorerEntry, used []bool) (matchResult, bool) {
	for _, m := range matchers {
		if res, ok := m(block, topic, entries, used); ok {
			return res, true
		}
	}
	return matchResult{}, false
}

// clampScore bounds a scorer verdict to the topic weight. Negative or
// over-weight scores are scorer noise, not rubric semantics.
func clampScore(score, max float64) float64 {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}
