package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nadacare/bip-api/internal/models"
)

// SessionRepository persists session records with document-store semantics:
// rows are keyed by a caller-supplied id and writes merge into the stored
// JSONB document instead of replacing it. Writing the same (id, patch) twice
// is safe and leaves exactly one row.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// UpsertSessionParams carries one merge write.
type UpsertSessionParams struct {
	ID        string
	Patch     models.SessionPatch
	SchoolID  string
	TeacherID string
}

// Upsert writes the patch into the record at id, creating it in pending
// status if absent. The jsonb || merge keeps existing top-level fields not
// named in the patch and replaces nested objects wholesale; it never deep
// merges. Failures surface as-is, retrying is the caller's decision.
func (r *SessionRepository) Upsert(ctx context.Context, params UpsertSessionParams) error {
	const query = `INSERT INTO session_records (id, doc, status, school_id, teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id) DO UPDATE
SET doc = session_records.doc || EXCLUDED.doc,
    updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, params.ID, params.Patch, models.SessionStatusPending, params.SchoolID, params.TeacherID, now); err != nil {
		return fmt.Errorf("upsert session %s: %w", params.ID, err)
	}
	return nil
}

// UpsertWithStatus performs the same merge write and additionally sets the
// record status, used when a checklist save recomputes it.
func (r *SessionRepository) UpsertWithStatus(ctx context.Context, params UpsertSessionParams, status models.SessionStatus) error {
	const query = `INSERT INTO session_records (id, doc, status, school_id, teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id) DO UPDATE
SET doc = session_records.doc || EXCLUDED.doc,
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, params.ID, params.Patch, status, params.SchoolID, params.TeacherID, now); err != nil {
		return fmt.Errorf("upsert session %s with status: %w", params.ID, err)
	}
	return nil
}

// SetStatus changes only the record status. Guarding which transitions are
// legal is the service's job.
func (r *SessionRepository) SetStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE session_records SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("set session status: no record %s", id)
	}
	return nil
}

// GetByID returns one session record.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	const query = `SELECT id, doc, status, school_id, teacher_id, created_at, updated_at
FROM session_records WHERE id = $1`
	var record models.SessionRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &record, nil
}

// List returns session records per provided filter.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionRecord, int, error) {
	base := "FROM session_records"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SchoolID != "" {
		where = append(where, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Type != nil {
		where = append(where, fmt.Sprintf("doc->>'type' = $%d", len(args)+1))
		args = append(args, string(*filter.Type))
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size
	query := fmt.Sprintf(`SELECT id, doc, status, school_id, teacher_id, created_at, updated_at
%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var records []models.SessionRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return records, total, nil
}
