package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"audit-backend/internal/audits"
	"audit-backend/internal/catalog"
	"audit-backend/internal/costs"
	"audit-backend/internal/evidence"
	"audit-backend/internal/llm"
	"audit-backend/internal/progress"
	"audit-backend/internal/report"
	"audit-backend/internal/resultcache"
	"audit-backend/internal/scoring"
	"audit-backend/internal/shared/metrics"
	"audit-backend/internal/shared/storage/object"
	"audit-backend/internal/shared/telemetry"
	"audit-backend/internal/shared/util"
	"audit-backend/internal/transcribe"
)

// Pipeline stages in order. Failed is terminal and reachable from any of
// them.
const (
	StageUploaded   = "uploaded"
	StageTranscribe = "transcribing"
	StageVisuals    = "analyzing-visuals"
	StageScoring    = "scoring"
	StageRendering  = "rendering-artifact"
	StagePersisting = "persisting"
	StageCompleted  = "completed"
	StageFailed     = "failed"
)

var stagePercentage = map[string]int{
	StageUploaded:   0,
	StageTranscribe: 10,
	StageVisuals:    35,
	StageScoring:    60,
	StageRendering:  80,
	StagePersisting: 90,
	StageCompleted:  100,
	StageFailed:     100,
}

// visualExtractor is the slice of evidence.VisualExtractor the pipeline
// needs; an interface so tests can count calls.
type visualExtractor interface {
	Extract(ctx context.Context, images []evidence.Image) (map[string][]evidence.VisualRecord, llm.Usage, error)
}

type evidenceScorer interface {
	Score(ctx context.Context, sel catalog.Selection, bundle evidence.Bundle, auditCtx scoring.Context) (scoring.EvaluationResult, error)
}

type renderFunc func(catalog.Catalog, scoring.Context, scoring.EvaluationResult, time.Time) ([]byte, error)

// Runner drives one audit from uploaded media to a scored artifact. Remote
// call retries live in the individual components; the runner only sequences
// stages, persists outcomes, and emits progress.
type Runner struct {
	Repo        audits.Repo
	Store       object.ObjectStore
	Transcriber transcribe.Transcriber
	Visual      visualExtractor
	Scorer      evidenceScorer
	Cache       *resultcache.Cache
	Hub         *progress.Hub
	Rates       costs.Rates

	// Render is swappable in tests; defaults to report.Render.
	Render renderFunc
	now    func() time.Time
}

// Run executes the pipeline for one audit record. It is intended to run in
// its own goroutine; all failure paths are absorbed into the audit record.
func (r *Runner) Run(ctx context.Context, auditID string) {
	stage := StageUploaded
	startedAt := r.clock()
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(ctx, auditID, stage, fmt.Errorf("panic: %v", rec), &startedAt)
		}
	}()

	metrics.IncAuditStarted()

	audit, err := r.Repo.GetByID(ctx, auditID)
	if err != nil {
		r.fail(ctx, auditID, stage, fmt.Errorf("audit lookup: %w", err), &startedAt)
		return
	}

	// Content hashes before any stage transition: a cache hit skips every
	// remote call and never announces stages that will not run.
	audioData, err := r.loadObject(ctx, audit.AudioKey)
	if err != nil {
		r.fail(ctx, auditID, stage, fmt.Errorf("load audio: %w", err), &startedAt)
		return
	}
	imageData := make([][]byte, len(audit.ImageKeys))
	imageHashes := make([]string, len(audit.ImageKeys))
	for i, key := range audit.ImageKeys {
		data, err := r.loadObject(ctx, key)
		if err != nil {
			r.fail(ctx, auditID, stage, fmt.Errorf("load image %s: %w", key, err), &startedAt)
			return
		}
		imageData[i] = data
		imageHashes[i] = util.HashBytes(data)
	}
	cacheKey := resultcache.ComputeKey(util.HashBytes(audioData), imageHashes)

	if r.Cache != nil {
		if entry, ok := r.Cache.Get(ctx, cacheKey); ok {
			telemetry.Info("pipeline.cache_hit", map[string]any{
				"audit_id":  auditID,
				"cache_key": cacheKey,
			})
			r.complete(ctx, auditID, audit, entry.Result, entry.ArtifactKey, 0, true, startedAt)
			return
		}
	}

	stage = StageTranscribe
	if err := r.advance(ctx, auditID, stage, "transcribing audio", &startedAt); err != nil {
		r.fail(ctx, auditID, stage, err, &startedAt)
		return
	}
	transcript, err := r.Transcriber.Transcribe(ctx, audioData, http.DetectContentType(audioData))
	if err != nil {
		r.fail(ctx, auditID, stage, fmt.Errorf("transcription: %w", err), &startedAt)
		return
	}

	stage = StageVisuals
	if err := r.advance(ctx, auditID, stage, "analyzing screenshots", nil); err != nil {
		r.fail(ctx, auditID, stage, err, &startedAt)
		return
	}
	images := make([]evidence.Image, len(audit.ImageKeys))
	for i, key := range audit.ImageKeys {
		images[i] = evidence.Image{
			SourceID: key,
			Data:     imageData[i],
			MimeType: http.DetectContentType(imageData[i]),
		}
	}
	visual, visionUsage, err := r.Visual.Extract(ctx, images)
	if err != nil {
		r.fail(ctx, auditID, stage, fmt.Errorf("visual extraction: %w", err), &startedAt)
		return
	}

	stage = StageScoring
	if err := r.advance(ctx, auditID, stage, "scoring evidence", nil); err != nil {
		r.fail(ctx, auditID, stage, err, &startedAt)
		return
	}
	bundle := evidence.Bundle{
		Visual: visual,
		Verbal: evidence.ExtractVerbal(transcript.Utterances),
	}
	sel := catalog.Select(audit.InteractionType)
	result, err := r.Scorer.Score(ctx, sel, bundle, scoring.Context{
		AuditID:         auditID,
		AgentName:       audit.AgentName,
		InteractionType: audit.InteractionType,
	})
	if err != nil {
		r.fail(ctx, auditID, stage, fmt.Errorf("scoring: %w", err), &startedAt)
		return
	}
	result.TokenUsage = result.TokenUsage.Add(visionUsage)

	stage = StageRendering
	if err := r.advance(ctx, auditID, stage, "rendering spreadsheet", nil); err != nil {
		r.fail(ctx, auditID, stage, err, &startedAt)
		return
	}
	render := r.Render
	if render == nil {
		render = report.Render
	}
	artifact, err := render(sel.Catalog, scoring.Context{
		AuditID:         auditID,
		AgentName:       audit.AgentName,
		InteractionType: audit.InteractionType,
	}, result, r.clock())
	if err != nil {
		r.fail(ctx, auditID, stage, fmt.Errorf("render artifact: %w", err), &startedAt)
		return
	}

	stage = StagePersisting
	if err := r.advance(ctx, auditID, stage, "saving results", nil); err != nil {
		r.fail(ctx, auditID, stage, err, &startedAt)
		return
	}
	artifactKey := fmt.Sprintf("artifacts/%s.xlsx", auditID)
	if _, err := r.Store.SaveWithKey(ctx, artifactKey,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		bytes.NewReader(artifact)); err != nil {
		r.fail(ctx, auditID, stage, fmt.Errorf("save artifact: %w", err), &startedAt)
		return
	}

	cost := costs.Compute(r.Rates, result.TokenUsage, transcript.DurationSeconds)
	if r.Cache != nil {
		if err := r.Cache.Put(resultcache.Entry{
			Key:         cacheKey,
			Result:      result,
			ArtifactKey: artifactKey,
			CostUSD:     cost.TotalUSD,
		}); err != nil {
			telemetry.Warn("pipeline.cache_put_failed", map[string]any{
				"audit_id": auditID,
				"error":    err.Error(),
			})
		}
	}

	r.complete(ctx, auditID, audit, result, artifactKey, cost.TotalUSD, false, startedAt)
}

func (r *Runner) complete(ctx context.Context, auditID string, audit audits.Audit, result scoring.EvaluationResult, artifactKey string, costUSD float64, cacheHit bool, startedAt time.Time) {
	sel := catalog.Select(audit.InteractionType)
	completedAt := r.clock()

	updated := audit
	updated.CatalogVersion = result.CatalogVersion
	if updated.CatalogVersion == "" {
		updated.CatalogVersion = sel.Catalog.Version
	}
	updated.ResolvedViaDefault = sel.ResolvedViaDefault
	updated.ArtifactKey = artifactKey
	updated.Result = &result
	updated.TotalScore = result.TotalScore
	updated.MaxPossibleScore = result.MaxPossibleScore
	updated.Percentage = result.Percentage
	updated.InputTokens = result.TokenUsage.InputTokens
	updated.OutputTokens = result.TokenUsage.OutputTokens
	updated.CostUSD = costUSD
	updated.CacheHit = cacheHit

	if err := r.Repo.CompleteWithResult(ctx, auditID, updated, completedAt); err != nil {
		r.fail(ctx, auditID, StagePersisting, fmt.Errorf("persist result: %w", err), &startedAt)
		return
	}
	r.cleanupMedia(auditID, audit)

	metrics.IncAuditCompleted()
	metrics.ObserveAuditDurationMs(float64(completedAt.Sub(startedAt).Milliseconds()))
	r.logActivity(ctx, auditID, StageCompleted, "audit completed")
	r.publish(auditID, StageCompleted, "audit completed")
	telemetry.Info("audit.status", map[string]any{
		"audit_id":    auditID,
		"status":      audits.StatusCompleted,
		"cache_hit":   cacheHit,
		"total_score": result.TotalScore,
		"percentage":  result.Percentage,
		"duration_ms": completedAt.Sub(startedAt).Milliseconds(),
	})
}

func (r *Runner) fail(ctx context.Context, auditID, stage string, err error, startedAt *time.Time) {
	code, retryable := classifyFailure(err)
	reason := fmt.Sprintf("%s: %s", code, sanitizeError(err))
	completedAt := r.clock()

	// Persist with a fresh context so cancellation cannot lose the record.
	if updateErr := r.Repo.Fail(context.Background(), auditID, stage, reason, completedAt); updateErr != nil {
		telemetry.Error("audit.fail_update_failed", map[string]any{
			"audit_id": auditID,
			"error":    updateErr.Error(),
			"original": err.Error(),
		})
	}
	if audit, getErr := r.Repo.GetByID(context.Background(), auditID); getErr == nil {
		r.cleanupMedia(auditID, audit)
	}

	metrics.IncAuditFailed()
	if startedAt != nil {
		metrics.ObserveAuditDurationMs(float64(completedAt.Sub(*startedAt).Milliseconds()))
	}
	r.logActivity(ctx, auditID, StageFailed, reason)
	r.publish(auditID, StageFailed, reason)
	telemetry.Error("audit.status", map[string]any{
		"audit_id":  auditID,
		"status":    audits.StatusFailed,
		"stage":     stage,
		"code":      code,
		"retryable": retryable,
		"error":     err.Error(),
	})
}

// advance moves the audit to the next stage, logs it, and emits progress.
func (r *Runner) advance(ctx context.Context, auditID, stage, message string, startedAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Repo.UpdateStage(ctx, auditID, audits.StatusProcessing, stage, startedAt); err != nil {
		return fmt.Errorf("set stage %s: %w", stage, err)
	}
	r.logActivity(ctx, auditID, stage, message)
	r.publish(auditID, stage, message)
	return nil
}

// cleanupMedia deletes uploaded media on both success and failure paths. The
// artifact stays; only temp inputs go.
func (r *Runner) cleanupMedia(auditID string, audit audits.Audit) {
	ctx := context.Background()
	keys := append([]string{audit.AudioKey}, audit.ImageKeys...)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := r.Store.Delete(ctx, key); err != nil {
			telemetry.Warn("pipeline.media_cleanup_failed", map[string]any{
				"audit_id": auditID,
				"key":      key,
				"error":    err.Error(),
			})
		}
	}
}

func (r *Runner) publish(auditID, stage, message string) {
	if r.Hub == nil {
		return
	}
	r.Hub.Publish(auditID, progress.Event{
		Stage:      stage,
		Percentage: stagePercentage[stage],
		Message:    message,
	})
}

func (r *Runner) logActivity(ctx context.Context, auditID, stage, message string) {
	err := r.Repo.AppendActivity(ctx, audits.Activity{
		AuditID:   auditID,
		Stage:     stage,
		Message:   message,
		CreatedAt: r.clock(),
	})
	if err != nil {
		telemetry.Warn("pipeline.activity_log_failed", map[string]any{
			"audit_id": auditID,
			"stage":    stage,
			"error":    err.Error(),
		})
	}
}

func (r *Runner) loadObject(ctx context.Context, key string) ([]byte, error) {
	rc, err := r.Store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now().UTC()
	}
	return time.Now().UTC()
}
