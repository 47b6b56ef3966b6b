package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"audit-backend/internal/llm"
)

type fakeVision struct {
	responses map[string][]string
	errs      map[string]error
	calls     map[string]int
}

func (f *fakeVision) AnalyzeImage(ctx context.Context, input llm.ImageInput) (json.RawMessage, llm.Usage, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[input.SourceID]++
	if err, ok := f.errs[input.SourceID]; ok {
		return nil, llm.Usage{InputTokens: 10}, err
	}
	seq := f.responses[input.SourceID]
	idx := f.calls[input.SourceID] - 1
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return json.RawMessage(seq[idx]), llm.Usage{InputTokens: 10, OutputTokens: 5}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestExtractGroupsBySystem(t *testing.T) {
	vision := &fakeVision{responses: map[string][]string{
		"img-1": {`{"system":"crm","data":{"customer":"Ana"},"findings":["order tab open"]}`},
		"img-2": {`{"system":"ticketing","data":{"ticket":"T-99"}}`},
		"img-3": {`{"system":"crm","data":{"order":"O-12"}}`},
	}}
	extractor := &VisualExtractor{Vision: vision, sleep: noSleep}

	grouped, usage, err := extractor.Extract(context.Background(), []Image{
		{SourceID: "img-1"}, {SourceID: "img-2"}, {SourceID: "img-3"},
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(grouped["crm"]) != 2 || len(grouped["ticketing"]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
	if grouped["crm"][0].SourceID != "img-1" || grouped["crm"][1].SourceID != "img-3" {
		t.Fatalf("input order not preserved within group: %+v", grouped["crm"])
	}
	if usage.InputTokens != 30 {
		t.Fatalf("usage not accumulated, got %+v", usage)
	}
}

func TestExtractRetriesMalformedThenSucceeds(t *testing.T) {
	vision := &fakeVision{responses: map[string][]string{
		"img-1": {
			"this is not json at all {{{",
			"```json\n{\"system\":\"crm\",\"data\":{\"customer\":\"Luis\"}}\n```",
		},
	}}
	extractor := &VisualExtractor{Vision: vision, sleep: noSleep}

	grouped, _, err := extractor.Extract(context.Background(), []Image{{SourceID: "img-1"}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(grouped["crm"]) != 1 {
		t.Fatalf("expected recovered record, got %+v", grouped)
	}
	if vision.calls["img-1"] < 2 {
		t.Fatalf("expected a retry, got %d calls", vision.calls["img-1"])
	}
}

func TestExtractSkipsBadImageWithoutAbortingBatch(t *testing.T) {
	vision := &fakeVision{
		responses: map[string][]string{
			"good": {`{"system":"crm","data":{"customer":"Eva"}}`},
		},
		errs: map[string]error{"bad": errors.New("http status 500")},
	}
	extractor := &VisualExtractor{Vision: vision, sleep: noSleep}

	grouped, _, err := extractor.Extract(context.Background(), []Image{
		{SourceID: "bad"}, {SourceID: "good"},
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(grouped["crm"]) != 1 {
		t.Fatalf("good image should survive bad one: %+v", grouped)
	}
	if vision.calls["bad"] != 3 {
		t.Fatalf("expected 3 attempts on bad image, got %d", vision.calls["bad"])
	}
}

func TestExtractMissingSystemTagIsMalformed(t *testing.T) {
	vision := &fakeVision{responses: map[string][]string{
		"img-1": {`{"data":{"customer":"Ana"}}`},
	}}
	extractor := &VisualExtractor{Vision: vision, sleep: noSleep}

	grouped, _, err := extractor.Extract(context.Background(), []Image{{SourceID: "img-1"}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(grouped) != 0 {
		t.Fatalf("expected image dropped, got %+v", grouped)
	}
}

func TestExtractHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vision := &fakeVision{errs: map[string]error{"img-1": errors.New("boom")}}
	extractor := &VisualExtractor{Vision: vision, sleep: noSleep}

	_, _, err := extractor.Extract(ctx, []Image{{SourceID: "img-1"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
