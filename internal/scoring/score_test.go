package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"audit-backend/internal/catalog"
	"audit-backend/internal/evidence"
	"audit-backend/internal/llm"
)

type fakeScorer struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeScorer) ScoreEvidence(ctx context.Context, input llm.ScoreInput) (json.RawMessage, llm.Usage, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, llm.Usage{InputTokens: 100}, f.errs[idx]
	}
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return json.RawMessage(f.responses[idx]), llm.Usage{InputTokens: 100, OutputTokens: 50}, nil
}

func noDelay(ctx context.Context, d time.Duration) error { return ctx.Err() }

func closureCatalog() catalog.Selection {
	return catalog.Selection{Catalog: catalog.Catalog{
		Name:    "support",
		Version: "test",
		Layout:  catalog.LayoutVertical,
		Blocks: []catalog.Block{{
			Name: "Closure",
			Topics: []catalog.Topic{{
				Label:     "Correct case closure",
				MaxPoints: 5,
				HasPoints: true,
				Applies:   true,
			}},
		}},
	}}
}

func TestScoreExactMatch(t *testing.T) {
	client := &fakeScorer{responses: []string{
		`{"topics":[{"block":"Closure","topic":"Correct case closure","score":5,"justification":"ticket closed with resolution code"}],"narrative":"solid call"}`,
	}}
	s := &Scorer{Client: client, sleep: noDelay}

	got, err := s.Score(context.Background(), closureCatalog(), evidence.Bundle{}, Context{AuditID: "a1"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got.TotalScore != 5 || got.MaxPossibleScore != 5 || got.Percentage != 100 {
		t.Fatalf("unexpected aggregate: total=%g max=%g pct=%g", got.TotalScore, got.MaxPossibleScore, got.Percentage)
	}
	want := ScoredTopic{
		BlockName:     "Closure",
		TopicLabel:    "Correct case closure",
		Score:         5,
		MaxScore:      5,
		Justification: "ticket closed with resolution code",
		Evaluated:     true,
		Applies:       true,
	}
	if diff := cmp.Diff(want, got.ScoredTopics[0]); diff != "" {
		t.Fatalf("scored topic mismatch (-want +got):\n%s", diff)
	}
	if got.CatalogName != "support" || got.CatalogVersion != "test" {
		t.Fatalf("catalog identity not carried: %+v", got)
	}
}

func TestScoreUnaddressedTopicIsUnevaluatedNotZero(t *testing.T) {
	client := &fakeScorer{responses: []string{`{"topics":[],"narrative":"n"}`}}
	s := &Scorer{Client: client, sleep: noDelay}

	got, err := s.Score(context.Background(), closureCatalog(), evidence.Bundle{}, Context{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	topic := got.ScoredTopics[0]
	if topic.Evaluated {
		t.Fatalf("expected unevaluated topic, got %+v", topic)
	}
	if topic.Note == "" {
		t.Fatal("unevaluated topic needs an explanatory note")
	}
	// The denominator still counts the topic.
	if got.TotalScore != 0 || got.MaxPossibleScore != 5 || got.Percentage != 0 {
		t.Fatalf("unexpected aggregate: total=%g max=%g pct=%g", got.TotalScore, got.MaxPossibleScore, got.Percentage)
	}
}

func TestScoreAccentAndCaseVariantsReconcile(t *testing.T) {
	sel := catalog.Selection{Catalog: catalog.Catalog{
		Name: "collections", Version: "test", Layout: catalog.LayoutVertical,
		Blocks: []catalog.Block{{
			Name: "Gestión",
			Topics: []catalog.Topic{{
				Label: "Verificación de identidad", MaxPoints: 10, HasPoints: true, Applies: true,
			}},
		}},
	}}
	client := &fakeScorer{responses: []string{
		`{"topics":[{"block":"gestion","topic":"VERIFICACION DE IDENTIDAD","score":8,"justification":"j"}]}`,
	}}
	s := &Scorer{Client: client, sleep: noDelay}

	got, err := s.Score(context.Background(), sel, evidence.Bundle{}, Context{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	topic := got.ScoredTopics[0]
	if !topic.Evaluated || topic.Score != 8 {
		t.Fatalf("accent variant not reconciled: %+v", topic)
	}
	if topic.Note != "matched via normalized-pair" {
		t.Fatalf("expected strategy note, got %q", topic.Note)
	}
}

func TestScoreUnrelatedEntryStaysUnclaimed(t *testing.T) {
	client := &fakeScorer{responses: []string{
		`{"topics":[{"block":"Greeting","topic":"Warm welcome","score":3}]}`,
	}}
	s := &Scorer{Client: client, sleep: noDelay}

	got, err := s.Score(context.Background(), closureCatalog(), evidence.Bundle{}, Context{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got.ScoredTopics[0].Evaluated {
		t.Fatalf("unrelated entry must not be claimed: %+v", got.ScoredTopics[0])
	}
	if got.TotalScore != 0 {
		t.Fatalf("unclaimed entry leaked into total: %g", got.TotalScore)
	}
}

func TestScoreRetriesMalformedResponse(t *testing.T) {
	client := &fakeScorer{responses: []string{
		"sorry, here is the evaluation: {{{",
		"```json\n{\"topics\":[{\"block\":\"Closure\",\"topic\":\"Correct case closure\",\"score\":4,\"justification\":\"j\"}]}\n```",
	}}
	s := &Scorer{Client: client, sleep: noDelay}

	got, err := s.Score(context.Background(), closureCatalog(), evidence.Bundle{}, Context{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", client.calls)
	}
	if got.TotalScore != 4 {
		t.Fatalf("expected recovered score 4, got %g", got.TotalScore)
	}
	// Token usage from the failed attempt still counts.
	if got.TokenUsage.InputTokens != 200 {
		t.Fatalf("usage not accumulated across attempts: %+v", got.TokenUsage)
	}
}

func TestScoreFailsAfterAttemptBudget(t *testing.T) {
	client := &fakeScorer{
		errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")},
	}
	s := &Scorer{Client: client, sleep: noDelay}

	_, err := s.Score(context.Background(), closureCatalog(), evidence.Bundle{}, Context{})
	if err == nil {
		t.Fatal("expected failure after attempt budget")
	}
	if client.calls != scoreMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", scoreMaxAttempts, client.calls)
	}
}

func TestScoreClampsOutOfRangeVerdicts(t *testing.T) {
	client := &fakeScorer{responses: []string{
		`{"topics":[{"block":"Closure","topic":"Correct case closure","score":99,"justification":"j"}]}`,
	}}
	s := &Scorer{Client: client, sleep: noDelay}

	got, err := s.Score(context.Background(), closureCatalog(), evidence.Bundle{}, Context{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got.TotalScore != 5 || got.Percentage != 100 {
		t.Fatalf("expected clamp to max, got total=%g pct=%g", got.TotalScore, got.Percentage)
	}
}

func TestScoreNotApplicableTopicSurvivesWithNote(t *testing.T) {
	sel := closureCatalog()
	sel.Catalog.Blocks[0].Topics = append(sel.Catalog.Blocks[0].Topics, catalog.Topic{
		Label: "Upsell attempted", Applies: true, HasPoints: false,
	})
	client := &fakeScorer{responses: []string{
		`{"topics":[{"block":"Closure","topic":"Correct case closure","score":5,"justification":"j"}]}`,
	}}
	s := &Scorer{Client: client, sleep: noDelay}

	got, err := s.Score(context.Background(), sel, evidence.Bundle{}, Context{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(got.ScoredTopics) != 2 {
		t.Fatalf("expected both topics in output, got %d", len(got.ScoredTopics))
	}
	na := got.ScoredTopics[1]
	if na.Evaluated || !na.NotApplicable || na.MaxScore != 0 {
		t.Fatalf("unexpected NA topic: %+v", na)
	}
	// NA topic does not change the denominator.
	if got.MaxPossibleScore != 5 {
		t.Fatalf("NA topic leaked into max: %g", got.MaxPossibleScore)
	}
}

func TestScorePercentageZeroWhenNoPointsApply(t *testing.T) {
	sel := catalog.Selection{Catalog: catalog.Catalog{
		Name: "empty", Version: "test",
		Blocks: []catalog.Block{{Name: "B", Topics: []catalog.Topic{{Label: "T", Applies: true}}}},
	}}
	client := &fakeScorer{responses: []string{`{"topics":[]}`}}
	s := &Scorer{Client: client, sleep: noDelay}

	got, err := s.Score(context.Background(), sel, evidence.Bundle{}, Context{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got.MaxPossibleScore != 0 || got.Percentage != 0 {
		t.Fatalf("expected zero aggregate, got max=%g pct=%g", got.MaxPossibleScore, got.Percentage)
	}
}

func TestScoreRequestListsOnlyApplicableTopics(t *testing.T) {
	sel := closureCatalog()
	sel.Catalog.Blocks[0].Topics = append(sel.Catalog.Blocks[0].Topics,
		catalog.Topic{Label: "Hidden topic", MaxPoints: 3, HasPoints: true, Applies: false},
		catalog.Topic{Label: "Upsell attempted", Applies: true},
	)

	req := BuildRequest(sel, evidence.Bundle{}, Context{InteractionType: "support"})
	if !strings.Contains(req, "Correct case closure") {
		t.Fatalf("applicable topic missing from request:\n%s", req)
	}
	if strings.Contains(req, "Hidden topic") {
		t.Fatalf("non-applicable topic leaked into request:\n%s", req)
	}
	// Pointless topics render as N/A; the scorer never sees them.
	if strings.Contains(req, "Upsell attempted") {
		t.Fatalf("pointless topic leaked into request:\n%s", req)
	}
}
