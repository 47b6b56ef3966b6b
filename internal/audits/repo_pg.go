package audits

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"audit-backend/internal/scoring"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const auditColumns = `
	id, agent_name, interaction_type, catalog_version, resolved_via_default,
	status, stage, failure_reason, audio_key, image_keys, artifact_key, result,
	total_score, max_possible_score, percentage,
	input_tokens, output_tokens, cost_usd, cache_hit,
	created_at, started_at, completed_at`

// Create inserts a new audit.
func (r *PGRepo) Create(ctx context.Context, audit Audit) error {
	const query = `
INSERT INTO audits (
	id, agent_name, interaction_type, catalog_version, resolved_via_default,
	status, stage, audio_key, image_keys, cache_hit, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	imageKeys, err := json.Marshal(audit.ImageKeys)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		audit.ID,
		audit.AgentName,
		audit.InteractionType,
		audit.CatalogVersion,
		audit.ResolvedViaDefault,
		audit.Status,
		audit.Stage,
		audit.AudioKey,
		imageKeys,
		audit.CacheHit,
		audit.CreatedAt,
	)
	return err
}

// GetByID returns an audit by its ID.
func (r *PGRepo) GetByID(ctx context.Context, auditID string) (Audit, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = $1`, auditID)
	audit, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Audit{}, ErrNotFound
	}
	return audit, err
}

// List returns audits ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Audit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audits ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Audit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, audit)
	}
	return out, rows.Err()
}

// UpdateStage moves the audit to a new status/stage.
func (r *PGRepo) UpdateStage(ctx context.Context, auditID, status, stage string, startedAt *time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE audits SET status = $2, stage = $3, started_at = COALESCE($4, started_at) WHERE id = $1`,
		auditID, status, stage, startedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CompleteWithResult records the terminal success state in one write.
func (r *PGRepo) CompleteWithResult(ctx context.Context, auditID string, audit Audit, completedAt time.Time) error {
	resultPayload, err := marshalNullableJSON(audit.Result)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE audits SET
	status = $2, stage = 'completed',
	catalog_version = $3, resolved_via_default = $4,
	artifact_key = $5, result = $6,
	total_score = $7, max_possible_score = $8, percentage = $9,
	input_tokens = $10, output_tokens = $11, cost_usd = $12, cache_hit = $13,
	completed_at = $14
WHERE id = $1`,
		auditID,
		StatusCompleted,
		audit.CatalogVersion,
		audit.ResolvedViaDefault,
		audit.ArtifactKey,
		resultPayload,
		audit.TotalScore,
		audit.MaxPossibleScore,
		audit.Percentage,
		audit.InputTokens,
		audit.OutputTokens,
		audit.CostUSD,
		audit.CacheHit,
		completedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Fail records the terminal failure state.
func (r *PGRepo) Fail(ctx context.Context, auditID, stage, reason string, completedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE audits SET status = $2, stage = $3, failure_reason = $4, completed_at = $5 WHERE id = $1`,
		auditID, StatusFailed, stage, reason, completedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AppendActivity records one activity log line.
func (r *PGRepo) AppendActivity(ctx context.Context, activity Activity) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO audit_activity (audit_id, stage, message, created_at) VALUES ($1, $2, $3, $4)`,
		activity.AuditID, activity.Stage, activity.Message, activity.CreatedAt)
	return err
}

// ListActivity returns the activity log for an audit in append order.
func (r *PGRepo) ListActivity(ctx context.Context, auditID string) ([]Activity, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT audit_id, stage, message, created_at FROM audit_activity WHERE audit_id = $1 ORDER BY id`,
		auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.AuditID, &a.Stage, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (Audit, error) {
	var (
		audit         Audit
		failureReason sql.NullString
		artifactKey   sql.NullString
		imageKeys     []byte
		resultRaw     []byte
		totalScore    sql.NullFloat64
		maxScore      sql.NullFloat64
		percentage    sql.NullFloat64
		startedAt     sql.NullTime
		completedAt   sql.NullTime
	)
	err := row.Scan(
		&audit.ID, &audit.AgentName, &audit.InteractionType, &audit.CatalogVersion, &audit.ResolvedViaDefault,
		&audit.Status, &audit.Stage, &failureReason, &audit.AudioKey, &imageKeys, &artifactKey, &resultRaw,
		&totalScore, &maxScore, &percentage,
		&audit.InputTokens, &audit.OutputTokens, &audit.CostUSD, &audit.CacheHit,
		&audit.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return Audit{}, err
	}

	audit.FailureReason = failureReason.String
	audit.ArtifactKey = artifactKey.String
	audit.TotalScore = totalScore.Float64
	audit.MaxPossibleScore = maxScore.Float64
	audit.Percentage = percentage.Float64
	if startedAt.Valid {
		audit.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		audit.CompletedAt = &completedAt.Time
	}
	if len(imageKeys) > 0 {
		if err := json.Unmarshal(imageKeys, &audit.ImageKeys); err != nil {
			return Audit{}, err
		}
	}
	if len(resultRaw) > 0 && string(resultRaw) != "null" {
		var result scoring.EvaluationResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return Audit{}, err
		}
		audit.Result = &result
	}
	return audit, nil
}

func marshalNullableJSON(result *scoring.EvaluationResult) (any, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
