package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nadacare/bip-api/internal/dto"
	"github.com/nadacare/bip-api/internal/models"
	"github.com/nadacare/bip-api/internal/repository"
	appErrors "github.com/nadacare/bip-api/pkg/errors"
	"github.com/nadacare/bip-api/pkg/export"
	"github.com/nadacare/bip-api/pkg/jobs"
	"github.com/nadacare/bip-api/pkg/storage"
)

// assessmentExportColumns is the fixed CSV column order. Consumers key on
// position, so this list must not be reordered.
var assessmentExportColumns = []string{
	"id",
	"createdAt",
	"evaluatorId",
	"childName",
	"dob",
	"gender",
	"phoneNumber",
	"whatsappNumber",
	"schoolId",
	"teacherId",
	"decision",
	"scaleA_Total",
	"scaleB_Total",
	"scaleL_Total",
}

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
}

type assessmentSource interface {
	ListAll(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportServiceConfig governs result retention and download URLs.
type ExportServiceConfig struct {
	DownloadPath    string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportService runs assessment exports as background jobs and serves the
// results through signed download URLs.
type ExportService struct {
	repo        exportJobStore
	assessments assessmentSource
	queue       jobDispatcher
	storage     fileStorage
	signer      *storage.SignedURLSigner
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ExportServiceConfig
}

// NewExportService constructs the export service.
func NewExportService(repo exportJobStore, assessments assessmentSource, queue jobDispatcher, files fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/exports/download"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		repo:        repo,
		assessments: assessments,
		queue:       queue,
		storage:     files,
		signer:      signer,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// CreateJob persists a job row and enqueues processing.
func (s *ExportService) CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	params := models.ExportJobParams{
		Format:      models.ExportFormat(req.Format),
		SchoolID:    req.SchoolID,
		EvaluatorID: req.EvaluatorID,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
	}
	if req.Decision != "" {
		decision := models.Decision(req.Decision)
		params.Decision = &decision
	}
	job := &models.ExportJob{
		Params:    params,
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(params.Format)}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata, enforcing ownership for non-admins.
func (s *ExportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	return &dto.ExportStatusResponse{
		ID:           job.ID,
		Status:       job.Status,
		Progress:     job.Progress,
		ResultURL:    job.ResultURL,
		ErrorMessage: job.ErrorMessage,
		FinishedAt:   job.FinishedAt,
	}, nil
}

// HandleJob is the queue handler. It renders the export, stores the file and
// finishes the job row. Re-delivery of a finished job is a no-op.
func (s *ExportService) HandleJob(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", queued.ID, err)
	}
	if job.Status == models.ExportStatusFinished {
		return nil
	}

	s.setProgress(ctx, job.ID, models.ExportStatusProcessing, 10)

	assessments, err := s.assessments.ListAll(ctx, job.Params.Filter())
	if err != nil {
		s.markFailed(ctx, job.ID, "failed to load assessments")
		return fmt.Errorf("load assessments for job %s: %w", job.ID, err)
	}
	s.setProgress(ctx, job.ID, models.ExportStatusProcessing, 60)

	table := assessmentTable(assessments)
	var data []byte
	switch job.Params.Format {
	case models.ExportFormatPDF:
		data, err = s.pdf.Render(table, "Assessment Export")
	default:
		data, err = s.csv.Render(table)
	}
	if err != nil {
		s.markFailed(ctx, job.ID, "failed to render export")
		return fmt.Errorf("render export %s: %w", job.ID, err)
	}

	filename := fmt.Sprintf("assessments_%s.%s", job.ID, job.Params.Format)
	relPath, err := s.storage.Save(filename, data)
	if err != nil {
		s.markFailed(ctx, job.ID, "failed to store export file")
		return fmt.Errorf("store export %s: %w", job.ID, err)
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.markFailed(ctx, job.ID, "failed to sign download url")
		return fmt.Errorf("sign export %s: %w", job.ID, err)
	}
	resultURL := s.cfg.DownloadPath + "?token=" + url.QueryEscape(token)

	status := models.ExportStatusFinished
	progress := 100
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &status,
		Progress:   &progress,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finish export job %s: %w", job.ID, err)
	}
	s.metrics.RecordExportJob("finished")
	s.logger.Info("export job finished",
		zap.String("job_id", job.ID),
		zap.Int("rows", len(assessments)))
	return nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Params.Format)}); err != nil {
			s.logger.Warn("failed to requeue export job",
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine purging expired export files periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
				} else if len(removed) > 0 {
					s.logger.Info("export cleanup removed files", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func (s *ExportService) setProgress(ctx context.Context, id string, status models.ExportStatus, progress int) {
	if err := s.repo.Update(ctx, id, repository.UpdateExportJobParams{Status: &status, Progress: &progress}); err != nil {
		s.logger.Warn("failed to update export progress",
			zap.String("job_id", id),
			zap.Error(err))
	}
}

func (s *ExportService) markFailed(ctx context.Context, id, msg string) {
	status := models.ExportStatusFailed
	progress := 100
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.UpdateExportJobParams{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark export job failed",
			zap.String("job_id", id),
			zap.Error(err))
	}
	s.metrics.RecordExportJob("failed")
}

// assessmentTable flattens assessments into the fixed export column order.
// Decision and totals are recomputed from the raw scales, matching what the
// serving path returns.
func assessmentTable(assessments []models.Assessment) export.Table {
	rows := make([][]string, 0, len(assessments))
	for i := range assessments {
		a := &assessments[i]
		scores := ScoreScales(a.Data.ScaleA, a.Data.ScaleB, a.Data.ScaleL)
		decision, _ := Classify(scores, ExclusionTriggered(a.Data.ExclusionCriteria))
		info := a.Data.BasicInfo
		rows = append(rows, []string{
			a.ID,
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.EvaluatorID,
			info["childName"],
			info["dob"],
			info["gender"],
			info["phoneNumber"],
			info["whatsappNumber"],
			a.SchoolID,
			info["teacherId"],
			string(decision),
			strconv.Itoa(scores.ScaleATotal),
			strconv.Itoa(scores.ScaleBTotal),
			strconv.Itoa(scores.ScaleLTotal),
		})
	}
	return export.Table{Columns: assessmentExportColumns, Rows: rows}
}
