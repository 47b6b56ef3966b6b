package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"audit-backend/internal/audits"
	"audit-backend/internal/catalog"
	"audit-backend/internal/costs"
	"audit-backend/internal/evidence"
	"audit-backend/internal/llm"
	"audit-backend/internal/progress"
	"audit-backend/internal/resultcache"
	"audit-backend/internal/scoring"
	"audit-backend/internal/shared/util"
	"audit-backend/internal/transcribe"
)

type memStore struct {
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Save(ctx context.Context, namespace, fileName string, r io.Reader) (string, int64, string, error) {
	data, _ := io.ReadAll(r)
	key := namespace + "/" + fileName
	m.objects[key] = data
	return key, int64(len(data)), "application/octet-stream", nil
}

func (m *memStore) SaveWithKey(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.objects[key] = data
	return int64(len(data)), nil
}

func (m *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type fakeTranscriber struct {
	calls int
	err   error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (transcribe.Transcript, error) {
	f.calls++
	if f.err != nil {
		return transcribe.Transcript{}, f.err
	}
	return transcribe.Transcript{
		Text: "Good morning, thank you for calling support",
		Utterances: []transcribe.Utterance{
			{Speaker: "A", Text: "Good morning, thank you for calling support", StartMs: 0, EndMs: 2500},
		},
		DurationSeconds: 120,
	}, nil
}

type fakeVisual struct {
	calls    int
	panicMsg string
}

func (f *fakeVisual) Extract(ctx context.Context, images []evidence.Image) (map[string][]evidence.VisualRecord, llm.Usage, error) {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	grouped := map[string][]evidence.VisualRecord{}
	for _, img := range images {
		grouped["crm"] = append(grouped["crm"], evidence.VisualRecord{
			SourceID: img.SourceID,
			System:   "crm",
			Fields:   map[string]any{"case": "C-1"},
		})
	}
	return grouped, llm.Usage{InputTokens: 50}, nil
}

type fakePipelineScorer struct {
	calls int
	err   error
}

func (f *fakePipelineScorer) Score(ctx context.Context, sel catalog.Selection, bundle evidence.Bundle, auditCtx scoring.Context) (scoring.EvaluationResult, error) {
	f.calls++
	if f.err != nil {
		return scoring.EvaluationResult{}, f.err
	}
	return scoring.EvaluationResult{
		TotalScore:       5,
		MaxPossibleScore: 5,
		Percentage:       100,
		ScoredTopics: []scoring.ScoredTopic{
			{BlockName: "Closure", TopicLabel: "Correct case closure", Score: 5, MaxScore: 5, Evaluated: true, Applies: true},
		},
		TokenUsage:     llm.Usage{InputTokens: 200, OutputTokens: 80},
		CatalogName:    sel.Catalog.Name,
		CatalogVersion: sel.Catalog.Version,
	}, nil
}

type fixture struct {
	runner      *Runner
	repo        *audits.MemoryRepo
	store       *memStore
	transcriber *fakeTranscriber
	visual      *fakeVisual
	scorer      *fakePipelineScorer
	cache       *resultcache.Cache
	hub         *progress.Hub
	audit       audits.Audit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	store.objects["media/a1/audio.mp3"] = []byte("audio-bytes")
	store.objects["media/a1/img1.png"] = []byte("image-one")
	store.objects["media/a1/img2.png"] = []byte("image-two")

	cache, err := resultcache.New(filepath.Join(t.TempDir(), "index.json"), time.Hour, store)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}

	repo := audits.NewMemoryRepo()
	audit := audits.Audit{
		ID:              "a1",
		AgentName:       "Ana",
		InteractionType: "support",
		Status:          audits.StatusQueued,
		Stage:           StageUploaded,
		AudioKey:        "media/a1/audio.mp3",
		ImageKeys:       []string{"media/a1/img1.png", "media/a1/img2.png"},
		CreatedAt:       time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), audit); err != nil {
		t.Fatalf("seed audit: %v", err)
	}

	f := &fixture{
		repo:        repo,
		store:       store,
		transcriber: &fakeTranscriber{},
		visual:      &fakeVisual{},
		scorer:      &fakePipelineScorer{},
		cache:       cache,
		hub:         progress.NewHub(),
		audit:       audit,
	}
	f.runner = &Runner{
		Repo:        repo,
		Store:       store,
		Transcriber: f.transcriber,
		Visual:      f.visual,
		Scorer:      f.scorer,
		Cache:       cache,
		Hub:         f.hub,
		Rates:       costs.DefaultRates,
		Render: func(cat catalog.Catalog, auditCtx scoring.Context, result scoring.EvaluationResult, generatedAt time.Time) ([]byte, error) {
			return []byte("artifact-bytes"), nil
		},
	}
	return f
}

func drainEvents(ch <-chan progress.Event) []progress.Event {
	var out []progress.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRunCompletesAudit(t *testing.T) {
	f := newFixture(t)
	events, cancel := f.hub.Subscribe("a1")
	defer cancel()

	f.runner.Run(context.Background(), "a1")

	got, err := f.repo.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != audits.StatusCompleted {
		t.Fatalf("status = %s, reason = %s", got.Status, got.FailureReason)
	}
	if got.TotalScore != 5 || got.Percentage != 100 || got.CacheHit {
		t.Fatalf("unexpected result fields: %+v", got)
	}
	if got.ArtifactKey != "artifacts/a1.xlsx" {
		t.Fatalf("artifact key = %q", got.ArtifactKey)
	}
	if _, ok := f.store.objects["artifacts/a1.xlsx"]; !ok {
		t.Fatal("artifact not saved")
	}
	// Vision usage folded into the persisted totals.
	if got.InputTokens != 250 || got.OutputTokens != 80 {
		t.Fatalf("token usage = %d/%d", got.InputTokens, got.OutputTokens)
	}
	if got.CostUSD <= 0 {
		t.Fatal("cost not computed")
	}

	// Temp media removed, artifact kept.
	for _, key := range []string{"media/a1/audio.mp3", "media/a1/img1.png", "media/a1/img2.png"} {
		if _, ok := f.store.objects[key]; ok {
			t.Fatalf("media %s not cleaned up", key)
		}
	}

	evs := drainEvents(events)
	if len(evs) == 0 || evs[len(evs)-1].Stage != StageCompleted {
		t.Fatalf("unexpected events: %+v", evs)
	}
	if evs[0].Stage != StageTranscribe {
		t.Fatalf("expected first event %s, got %s", StageTranscribe, evs[0].Stage)
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Percentage < evs[i-1].Percentage {
			t.Fatalf("progress went backwards: %+v", evs)
		}
	}

	activity, err := f.repo.ListActivity(context.Background(), "a1")
	if err != nil || len(activity) == 0 {
		t.Fatalf("activity log empty: %v", err)
	}
}

func TestRunCacheHitSkipsRemoteCalls(t *testing.T) {
	f := newFixture(t)
	events, cancel := f.hub.Subscribe("a1")
	defer cancel()

	audioHash := util.HashBytes([]byte("audio-bytes"))
	imageHashes := []string{util.HashBytes([]byte("image-one")), util.HashBytes([]byte("image-two"))}
	key := resultcache.ComputeKey(audioHash, imageHashes)

	f.store.objects["artifacts/cached.xlsx"] = []byte("cached-artifact")
	if err := f.cache.Put(resultcache.Entry{
		Key:         key,
		Result:      scoring.EvaluationResult{TotalScore: 4, MaxPossibleScore: 5, Percentage: 80, CatalogVersion: "2024.3"},
		ArtifactKey: "artifacts/cached.xlsx",
		CostUSD:     0.10,
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	f.runner.Run(context.Background(), "a1")

	if f.transcriber.calls != 0 || f.visual.calls != 0 || f.scorer.calls != 0 {
		t.Fatalf("cache hit still made remote calls: transcribe=%d visual=%d score=%d",
			f.transcriber.calls, f.visual.calls, f.scorer.calls)
	}

	got, err := f.repo.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != audits.StatusCompleted || !got.CacheHit {
		t.Fatalf("expected completed cache hit, got %+v", got)
	}
	if got.TotalScore != 4 || got.ArtifactKey != "artifacts/cached.xlsx" {
		t.Fatalf("cached result not applied: %+v", got)
	}
	// A replayed result costs nothing.
	if got.CostUSD != 0 {
		t.Fatalf("cache hit charged cost %g", got.CostUSD)
	}

	// No stage that never ran gets announced; the only event is completion.
	evs := drainEvents(events)
	for _, ev := range evs {
		if ev.Stage != StageCompleted {
			t.Fatalf("cache hit announced stage %q: %+v", ev.Stage, evs)
		}
	}
	if len(evs) != 1 {
		t.Fatalf("expected single completion event, got %+v", evs)
	}
}

func TestRunPanicRecordsFailingStage(t *testing.T) {
	f := newFixture(t)
	f.visual.panicMsg = "nil map write"

	f.runner.Run(context.Background(), "a1")

	got, err := f.repo.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != audits.StatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Stage != StageVisuals {
		t.Fatalf("stage = %q, want %q", got.Stage, StageVisuals)
	}
	if got.FailureReason == "" {
		t.Fatal("failure reason not recorded")
	}
}

func TestRunTranscriptionFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.transcriber.err = errors.New("upstream 503")
	events, cancel := f.hub.Subscribe("a1")
	defer cancel()

	f.runner.Run(context.Background(), "a1")

	got, err := f.repo.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != audits.StatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.FailureReason == "" || got.CompletedAt == nil {
		t.Fatalf("failure not recorded: %+v", got)
	}
	if f.scorer.calls != 0 {
		t.Fatal("scorer called after transcription failure")
	}

	// Media cleaned up on the failure path too.
	if _, ok := f.store.objects["media/a1/audio.mp3"]; ok {
		t.Fatal("audio not cleaned up after failure")
	}

	evs := drainEvents(events)
	if len(evs) == 0 || evs[len(evs)-1].Stage != StageFailed {
		t.Fatalf("expected terminal failed event, got %+v", evs)
	}
}

func TestRunScoringFailureRecordsStage(t *testing.T) {
	f := newFixture(t)
	f.scorer.err = errors.New("scoring failed after 3 attempts: bad json")

	f.runner.Run(context.Background(), "a1")

	got, err := f.repo.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != audits.StatusFailed || got.Stage != StageScoring {
		t.Fatalf("expected failure at scoring stage, got status=%s stage=%s", got.Status, got.Stage)
	}
	if !bytes.Contains([]byte(got.FailureReason), []byte(audits.ErrorCodeScoringInvalid)) {
		t.Fatalf("failure reason missing code: %q", got.FailureReason)
	}
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"nil", nil, audits.ErrorCodeInternal, false},
		{"deadline", context.DeadlineExceeded, audits.ErrorCodeVisionTimeout, true},
		{"wait budget", transcribe.ErrWaitBudgetExceeded, audits.ErrorCodeTranscription, true},
		{"transcription wrap", errors.New("transcription: 503"), audits.ErrorCodeTranscription, true},
		{"scorer output", errors.New("scoring failed after 3 attempts: x"), audits.ErrorCodeScoringInvalid, false},
		{"storage", errors.New("save artifact: disk full"), audits.ErrorCodeStorage, true},
		{"unknown", errors.New("weird"), audits.ErrorCodeInternal, false},
	}
	for _, tc := range cases {
		code, retryable := classifyFailure(tc.err)
		if code != tc.code || retryable != tc.retryable {
			t.Fatalf("%s: got (%s, %v), want (%s, %v)", tc.name, code, retryable, tc.code, tc.retryable)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	err := errors.New("call failed\n  with Bearer sk-secret-token and more")
	got := sanitizeError(err)
	if bytes.Contains([]byte(got), []byte("sk-secret-token")) {
		t.Fatalf("token leaked: %q", got)
	}
	if bytes.Contains([]byte(got), []byte("\n")) {
		t.Fatalf("newline survived: %q", got)
	}
}
