package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadacare/bip-api/internal/dto"
	"github.com/nadacare/bip-api/internal/models"
	"github.com/nadacare/bip-api/internal/repository"
	appErrors "github.com/nadacare/bip-api/pkg/errors"
	"github.com/nadacare/bip-api/pkg/jobs"
	"github.com/nadacare/bip-api/pkg/storage"
)

type exportJobStoreStub struct {
	jobs map[string]*models.ExportJob
}

func newExportJobStoreStub() *exportJobStoreStub {
	return &exportJobStoreStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportJobStoreStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportJobStoreStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *exportJobStoreStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportJobStoreStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

type assessmentSourceStub struct {
	assessments []models.Assessment
	err         error
}

func (s *assessmentSourceStub) ListAll(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	return s.assessments, s.err
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newExportTestService(t *testing.T, repo exportJobStore, source assessmentSource, queue jobDispatcher) *ExportService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(repo, source, queue, files, signer, nil, nil, nil, ExportServiceConfig{
		DownloadPath: "/api/v1/exports/download",
	})
}

func sampleAssessments() []models.Assessment {
	return []models.Assessment{
		{
			ID:          "a-1",
			EvaluatorID: "specialist-1",
			SchoolID:    "school-1",
			CreatedAt:   time.Now(),
			Data: models.AssessmentData{
				BasicInfo: map[string]string{"childName": "Lina M"},
				ScaleA:    models.ScaleA{"communication": {"requests": 2}},
			},
		},
	}
}

func TestCreateJobEnqueues(t *testing.T) {
	repo := newExportJobStoreStub()
	queue := &queueStub{}
	svc := newExportTestService(t, repo, &assessmentSourceStub{}, queue)

	result, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: "csv"}, "specialist-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, result.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, result.ID, queue.jobs[0].ID)
}

func TestCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	repo := newExportJobStoreStub()
	queue := &queueStub{err: errors.New("queue stopped")}
	svc := newExportTestService(t, repo, &assessmentSourceStub{}, queue)

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: "csv"}, "specialist-1")
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestHandleJobFinishesAndDownloadRoundTrips(t *testing.T) {
	repo := newExportJobStoreStub()
	queue := &queueStub{}
	svc := newExportTestService(t, repo, &assessmentSourceStub{assessments: sampleAssessments()}, queue)

	created, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: "csv"}, "specialist-1")
	require.NoError(t, err)

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: created.ID}))

	job := repo.jobs[created.ID]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)

	token := extractQueryToken(t, *job.ResultURL)
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"Lina M"`)
	assert.Contains(t, string(content), `"not_eligible"`)
}

func TestHandleJobSourceFailureMarksFailed(t *testing.T) {
	repo := newExportJobStoreStub()
	queue := &queueStub{}
	svc := newExportTestService(t, repo, &assessmentSourceStub{err: errors.New("db down")}, queue)

	created, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: "csv"}, "specialist-1")
	require.NoError(t, err)

	require.Error(t, svc.HandleJob(context.Background(), jobs.Job{ID: created.ID}))
	assert.Equal(t, models.ExportStatusFailed, repo.jobs[created.ID].Status)
}

func TestHandleJobFinishedIsIdempotent(t *testing.T) {
	repo := newExportJobStoreStub()
	status := models.ExportStatusFinished
	repo.jobs["done-1"] = &models.ExportJob{ID: "done-1", Status: status}
	svc := newExportTestService(t, repo, &assessmentSourceStub{}, &queueStub{})

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "done-1"}))
	assert.Equal(t, status, repo.jobs["done-1"].Status)
}

func TestGetStatusOwnership(t *testing.T) {
	repo := newExportJobStoreStub()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued, CreatedBy: "specialist-1"}
	svc := newExportTestService(t, repo, &assessmentSourceStub{}, &queueStub{})

	_, err := svc.GetStatus(context.Background(), "job-1", "someone-else", models.RoleTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	owner, err := svc.GetStatus(context.Background(), "job-1", "specialist-1", models.RoleSpecialist)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, owner.Status)

	admin, err := svc.GetStatus(context.Background(), "job-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "job-1", admin.ID)
}

func extractQueryToken(t *testing.T, resultURL string) string {
	t.Helper()
	parsed, err := url.Parse(resultURL)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	require.NotEmpty(t, token, "result url should carry a token")
	return token
}
