package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"audit-backend/internal/llm"
	"audit-backend/internal/shared/metrics"
	"audit-backend/internal/shared/telemetry"
)

const (
	visualMaxAttempts    = 3
	visualRetryBaseDelay = 500 * time.Millisecond
)

// VisualExtractor turns screenshots into structured records via the remote
// vision service. Images that stay unparseable after bounded retries are
// skipped, never fabricated; one bad image never aborts the batch.
type VisualExtractor struct {
	Vision llm.VisionClient
	// Concurrency bounds parallel vision calls. Zero or one processes
	// images sequentially.
	Concurrency int

	sleep func(ctx context.Context, d time.Duration) error
}

// Extract analyzes each image and groups the results by detected system.
func (e *VisualExtractor) Extract(ctx context.Context, images []Image) (map[string][]VisualRecord, llm.Usage, error) {
	limit := e.Concurrency
	if limit <= 0 {
		limit = 1
	}

	type indexed struct {
		idx    int
		record VisualRecord
	}

	var (
		mu      sync.Mutex
		results []indexed
		usage   llm.Usage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			record, callUsage, err := e.extractOne(gctx, img)
			mu.Lock()
			usage = usage.Add(callUsage)
			mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				metrics.IncImageSkipped()
				telemetry.Warn("visual.image_skipped", map[string]any{
					"source_id": img.SourceID,
					"attempts":  visualMaxAttempts,
					"error":     err.Error(),
				})
				return nil
			}
			mu.Lock()
			results = append(results, indexed{idx: i, record: record})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, usage, err
	}

	// Restore input order before grouping so output is deterministic even
	// when images were analyzed in parallel.
	sort.Slice(results, func(a, b int) bool { return results[a].idx < results[b].idx })

	grouped := make(map[string][]VisualRecord)
	for _, r := range results {
		grouped[r.record.System] = append(grouped[r.record.System], r.record)
	}
	return grouped, usage, nil
}

func (e *VisualExtractor) extractOne(ctx context.Context, img Image) (VisualRecord, llm.Usage, error) {
	var usage llm.Usage
	var lastErr error

	for attempt := 1; attempt <= visualMaxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.wait(ctx, time.Duration(attempt-1)*visualRetryBaseDelay); err != nil {
				return VisualRecord{}, usage, err
			}
		}

		raw, callUsage, err := e.Vision.AnalyzeImage(ctx, llm.ImageInput{
			SourceID: img.SourceID,
			Data:     img.Data,
			MimeType: img.MimeType,
		})
		usage = usage.Add(callUsage)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return VisualRecord{}, usage, ctx.Err()
			}
			continue
		}

		record, err := parseVisualResponse(img.SourceID, string(raw))
		if err != nil {
			lastErr = err
			telemetry.Warn("visual.parse_retry", map[string]any{
				"source_id": img.SourceID,
				"attempt":   attempt,
				"error":     err.Error(),
			})
			continue
		}
		return record, usage, nil
	}

	return VisualRecord{}, usage, fmt.Errorf("image %s failed after %d attempts: %w", img.SourceID, visualMaxAttempts, lastErr)
}

func (e *VisualExtractor) wait(ctx context.Context, d time.Duration) error {
	if e.sleep != nil {
		return e.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseVisualResponse(sourceID, raw string) (VisualRecord, error) {
	clean, err := SanitizeJSON(raw)
	if err != nil {
		return VisualRecord{}, fmt.Errorf("sanitize vision output: %w", err)
	}

	var parsed struct {
		System        string          `json:"system"`
		Data          map[string]any  `json:"data"`
		CriticalFlags map[string]bool `json:"criticalFlags"`
		Findings      []string        `json:"findings"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return VisualRecord{}, fmt.Errorf("vision output parse: %w", err)
	}
	if strings.TrimSpace(parsed.System) == "" {
		return VisualRecord{}, fmt.Errorf("vision output missing system tag")
	}
	if parsed.Data == nil {
		return VisualRecord{}, fmt.Errorf("vision output missing data object")
	}

	record := VisualRecord{
		SourceID:      sourceID,
		System:        strings.ToLower(strings.TrimSpace(parsed.System)),
		Fields:        parsed.Data,
		CriticalFlags: parsed.CriticalFlags,
		Findings:      parsed.Findings,
	}
	if record.CriticalFlags == nil {
		record.CriticalFlags = map[string]bool{}
	}
	if record.Findings == nil {
		record.Findings = []string{}
	}
	return record, nil
}
