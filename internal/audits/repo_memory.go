package audits

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores audits in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	byID     map[string]Audit
	activity map[string][]Activity
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:     make(map[string]Audit),
		activity: make(map[string][]Activity),
	}
}

// Create stores the audit.
func (r *MemoryRepo) Create(ctx context.Context, audit Audit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[audit.ID] = audit
	return nil
}

// GetByID returns an audit by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, auditID string) (Audit, error) {
	if err := ctx.Err(); err != nil {
		return Audit{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	audit, ok := r.byID[auditID]
	if !ok {
		return Audit{}, ErrNotFound
	}
	return audit, nil
}

// List returns audits ordered newest-first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Audit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	all := make([]Audit, 0, len(r.byID))
	for _, audit := range r.byID {
		all = append(all, audit)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []Audit{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// UpdateStage moves the audit to a new status/stage.
func (r *MemoryRepo) UpdateStage(ctx context.Context, auditID, status, stage string, startedAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	audit, ok := r.byID[auditID]
	if !ok {
		return ErrNotFound
	}
	audit.Status = status
	audit.Stage = stage
	if startedAt != nil {
		audit.StartedAt = startedAt
	}
	r.byID[auditID] = audit
	return nil
}

// CompleteWithResult records the terminal success state.
func (r *MemoryRepo) CompleteWithResult(ctx context.Context, auditID string, updated Audit, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	audit, ok := r.byID[auditID]
	if !ok {
		return ErrNotFound
	}
	audit.Status = StatusCompleted
	audit.Stage = "completed"
	audit.CatalogVersion = updated.CatalogVersion
	audit.ResolvedViaDefault = updated.ResolvedViaDefault
	audit.ArtifactKey = updated.ArtifactKey
	audit.Result = updated.Result
	audit.TotalScore = updated.TotalScore
	audit.MaxPossibleScore = updated.MaxPossibleScore
	audit.Percentage = updated.Percentage
	audit.InputTokens = updated.InputTokens
	audit.OutputTokens = updated.OutputTokens
	audit.CostUSD = updated.CostUSD
	audit.CacheHit = updated.CacheHit
	audit.CompletedAt = &completedAt
	r.byID[auditID] = audit
	return nil
}

// Fail records the terminal failure state.
func (r *MemoryRepo) Fail(ctx context.Context, auditID, stage, reason string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	audit, ok := r.byID[auditID]
	if !ok {
		return ErrNotFound
	}
	audit.Status = StatusFailed
	audit.Stage = stage
	audit.FailureReason = reason
	audit.CompletedAt = &completedAt
	r.byID[auditID] = audit
	return nil
}

// AppendActivity records one activity log line.
func (r *MemoryRepo) AppendActivity(ctx context.Context, activity Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity[activity.AuditID] = append(r.activity[activity.AuditID], activity)
	return nil
}

// ListActivity returns the activity log for an audit in append order.
func (r *MemoryRepo) ListActivity(ctx context.Context, auditID string) ([]Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Activity, len(r.activity[auditID]))
	copy(out, r.activity[auditID])
	return out, nil
}
