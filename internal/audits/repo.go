package audits

import (
	"context"
	"time"
)

// Repo defines persistence operations for audits.
type Repo interface {
	Create(ctx context.Context, audit Audit) error
	GetByID(ctx context.Context, auditID string) (Audit, error)
	List(ctx context.Context, limit, offset int) ([]Audit, error)
	UpdateStage(ctx context.Context, auditID, status, stage string, startedAt *time.Time) error
	// CompleteWithResult records the terminal success state in one write.
	CompleteWithResult(ctx context.Context, auditID string, audit Audit, completedAt time.Time) error
	Fail(ctx context.Context, auditID, stage, reason string, completedAt time.Time) error
	AppendActivity(ctx context.Context, activity Activity) error
	ListActivity(ctx context.Context, auditID string) ([]Activity, error)
}
