package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nadacare/bip-api/internal/models"
)

// AssessmentRepository persists intake assessments. Records are written once
// at submission time; there is deliberately no update method.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts a new assessment row with a store-assigned id.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assessments (id, data, decision, rationale, scale_a_total, scale_b_total, scale_l_total, evaluator_id, school_id, metadata, created_at)
VALUES (:id, :data, :decision, :rationale, :scale_a_total, :scale_b_total, :scale_l_total, :evaluator_id, :school_id, :metadata, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// GetByID returns one assessment.
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*models.Assessment, error) {
	const query = `SELECT id, data, decision, rationale, scale_a_total, scale_b_total, scale_l_total, evaluator_id, school_id, metadata, created_at
FROM assessments WHERE id = $1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return &assessment, nil
}

// List returns assessments per provided filter with a total count.
func (r *AssessmentRepository) List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, int, error) {
	base := "FROM assessments"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Decision != nil {
		where = append(where, fmt.Sprintf("decision = $%d", len(args)+1))
		args = append(args, *filter.Decision)
	}
	if filter.SchoolID != "" {
		where = append(where, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.EvaluatorID != "" {
		where = append(where, fmt.Sprintf("evaluator_id = $%d", len(args)+1))
		args = append(args, filter.EvaluatorID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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
	query := fmt.Sprintf(`SELECT id, data, decision, rationale, scale_a_total, scale_b_total, scale_l_total, evaluator_id, school_id, metadata, created_at
%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assessments: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assessments: %w", err)
	}
	return assessments, total, nil
}

// ListAll streams every assessment matching the filter without pagination,
// used by exports.
func (r *AssessmentRepository) ListAll(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	filter.Page = 1
	filter.PageSize = 200
	all := make([]models.Assessment, 0)
	for {
		batch, total, err := r.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(all) >= total || len(batch) == 0 {
			return all, nil
		}
		filter.Page++
	}
}

// DecisionCounts aggregates assessment decisions for a school. An empty
// schoolID aggregates across all schools.
func (r *AssessmentRepository) DecisionCounts(ctx context.Context, schoolID string) (map[models.Decision]int, error) {
	query := "SELECT decision, COUNT(*) AS count FROM assessments"
	args := []interface{}{}
	if schoolID != "" {
		query += " WHERE school_id = $1"
		args = append(args, schoolID)
	}
	query += " GROUP BY decision"

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("decision counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[models.Decision]int)
	for rows.Next() {
		var decision models.Decision
		var count int
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, fmt.Errorf("scan decision count: %w", err)
		}
		counts[decision] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("decision counts rows: %w", err)
	}
	return counts, nil
}
