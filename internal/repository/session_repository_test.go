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

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSessionRepositoryUpsertMerges(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	params := UpsertSessionParams{
		ID:        "behavior_school-1_teacher-9_lina_hand_flapping",
		Patch:     models.SessionPatch{"type": "behavior", "child": "Lina"},
		SchoolID:  "school-1",
		TeacherID: "teacher-9",
	}

	expected := regexp.QuoteMeta("SET doc = session_records.doc || EXCLUDED.doc")
	// writing the same patch twice must issue the same merge upsert both
	// times instead of a second insert
	for i := 0; i < 2; i++ {
		mock.ExpectExec(expected).
			WithArgs(params.ID, sqlmock.AnyArg(), models.SessionStatusPending, "school-1", "teacher-9", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.Upsert(context.Background(), params))
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpsertWithStatus(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("status = EXCLUDED.status")).
		WithArgs("session-1", sqlmock.AnyArg(), models.SessionStatusApplied, "school-1", "teacher-9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	params := UpsertSessionParams{
		ID:        "session-1",
		Patch:     models.SessionPatch{"checklist": map[string]interface{}{"fidelityScore": 100}},
		SchoolID:  "school-1",
		TeacherID: "teacher-9",
	}
	require.NoError(t, repo.UpsertWithStatus(context.Background(), params, models.SessionStatusApplied))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySetStatusMissingRecord(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE session_records SET status = $1")).
		WithArgs(models.SessionStatusRejected, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), "missing", models.SessionStatusRejected)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "doc", "status", "school_id", "teacher_id", "created_at", "updated_at"}).
		AddRow("session-1", `{"type":"behavior","child":"Lina"}`, "pending", "school-1", "teacher-9", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM session_records WHERE id = $1")).
		WithArgs("session-1").
		WillReturnRows(rows)

	record, err := repo.GetByID(context.Background(), "session-1")
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusPending, record.Status)
	require.Equal(t, "Lina", record.Doc.Child)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListFiltersByType(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "doc", "status", "school_id", "teacher_id", "created_at", "updated_at"}).
		AddRow("session-1", `{"type":"behavior"}`, "pending", "school-1", "teacher-9", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("doc->>'type' = $2")).
		WithArgs("school-1", "behavior").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM session_records")).
		WithArgs("school-1", "behavior").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sessionType := models.SessionTypeBehavior
	records, total, err := repo.List(context.Background(), models.SessionFilter{SchoolID: "school-1", Type: &sessionType})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, records, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
