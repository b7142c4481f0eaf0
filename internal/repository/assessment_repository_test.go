package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/nadacare/bip-api/internal/models"
)

func newAssessmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAssessmentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessments")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "eligible", sqlmock.AnyArg(), 25, 5, 4, "specialist-1", "school-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assessment := &models.Assessment{
		Decision:    models.DecisionEligible,
		Rationale:   "within thresholds",
		ScaleATotal: 25,
		ScaleBTotal: 5,
		ScaleLTotal: 4,
		EvaluatorID: "specialist-1",
		SchoolID:    "school-1",
		Data: models.AssessmentData{
			BasicInfo: map[string]string{"childName": "Lina"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), assessment))
	require.NotEmpty(t, assessment.ID)
	require.False(t, assessment.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "data", "decision", "rationale", "scale_a_total", "scale_b_total", "scale_l_total", "evaluator_id", "school_id", "metadata", "created_at"}).
		AddRow("a-1", `{"basicInfo":{"childName":"Lina"},"scaleA":{"communication":{"requests":2}}}`, "boundary", "team review", 20, 9, 4, "specialist-1", "school-1", `{}`, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM assessments WHERE id = $1")).
		WithArgs("a-1").
		WillReturnRows(rows)

	assessment, err := repo.GetByID(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, "Lina", assessment.Data.ChildName())
	require.Equal(t, 2, assessment.Data.ScaleA["communication"]["requests"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "data", "decision", "rationale", "scale_a_total", "scale_b_total", "scale_l_total", "evaluator_id", "school_id", "metadata", "created_at"}).
		AddRow("a-1", `{}`, "eligible", "", 25, 5, 4, "specialist-1", "school-1", `{}`, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("decision = $1 AND school_id = $2")).
		WithArgs("eligible", "school-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assessments")).
		WithArgs("eligible", "school-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	decision := models.DecisionEligible
	assessments, total, err := repo.List(context.Background(), models.AssessmentFilter{Decision: &decision, SchoolID: "school-1"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, assessments, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryDecisionCounts(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	rows := sqlmock.NewRows([]string{"decision", "count"}).
		AddRow("eligible", 3).
		AddRow("boundary", 1)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY decision")).
		WithArgs("school-1").
		WillReturnRows(rows)

	counts, err := repo.DecisionCounts(context.Background(), "school-1")
	require.NoError(t, err)
	require.Equal(t, 3, counts[models.DecisionEligible])
	require.Equal(t, 1, counts[models.DecisionBoundary])
	require.NoError(t, mock.ExpectationsWereMet())
}
