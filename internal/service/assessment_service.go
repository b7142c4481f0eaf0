package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nadacare/bip-api/internal/dto"
	"github.com/nadacare/bip-api/internal/models"
	appErrors "github.com/nadacare/bip-api/pkg/errors"
	"github.com/nadacare/bip-api/pkg/export"
)

type assessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	GetByID(ctx context.Context, id string) (*models.Assessment, error)
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, int, error)
	ListAll(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error)
	DecisionCounts(ctx context.Context, schoolID string) (map[models.Decision]int, error)
}

// kvCache is the small cache surface services need.
type kvCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// AssessmentService scores intake evaluations and serves them back with the
// decision recomputed from the raw scales on every read.
type AssessmentService struct {
	repo      assessmentRepository
	cache     kvCache
	csv       csvRenderer
	metrics   *MetricsService
	statsTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

// NewAssessmentService constructs the service. The cache and metrics
// dependencies are optional.
func NewAssessmentService(repo assessmentRepository, cache kvCache, csv csvRenderer, metrics *MetricsService, statsTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if statsTTL <= 0 {
		statsTTL = 5 * time.Minute
	}
	return &AssessmentService{
		repo:      repo,
		cache:     cache,
		csv:       csv,
		metrics:   metrics,
		statsTTL:  statsTTL,
		validator: validate,
		logger:    logger,
	}
}

// Submit scores and persists one evaluation. Assessments are immutable after
// submission; there is no update path.
func (s *AssessmentService) Submit(ctx context.Context, req dto.SubmitAssessmentRequest, claims *models.JWTClaims) (*dto.AssessmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if strings.TrimSpace(req.BasicInfo["childName"]) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "child name is required")
	}

	scores := ScoreScales(req.ScaleA, req.ScaleB, req.ScaleL)
	decision, rationale := Classify(scores, ExclusionTriggered(req.ExclusionCriteria))

	assessment := &models.Assessment{
		ID: uuid.NewString(),
		Data: models.AssessmentData{
			BasicInfo:         req.BasicInfo,
			ScaleA:            req.ScaleA,
			ScaleB:            req.ScaleB,
			ScaleL:            req.ScaleL,
			ExclusionCriteria: req.ExclusionCriteria,
			TeamMembers:       req.TeamMembers,
			Reinforcers:       req.Reinforcers,
		},
		Decision:    decision,
		Rationale:   rationale,
		ScaleATotal: scores.ScaleATotal,
		ScaleBTotal: scores.ScaleBTotal,
		ScaleLTotal: scores.ScaleLTotal,
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if claims != nil {
		assessment.EvaluatorID = claims.UserID
		assessment.SchoolID = claims.SchoolID
	}
	if schoolID := strings.TrimSpace(req.BasicInfo["schoolId"]); schoolID != "" && assessment.SchoolID == "" {
		assessment.SchoolID = schoolID
	}

	if err := s.repo.Create(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store assessment")
	}

	s.logger.Info("assessment submitted",
		zap.String("assessment_id", assessment.ID),
		zap.String("decision", string(decision)))

	response := s.toResponse(assessment)
	return &response, nil
}

// Get returns one assessment by id.
func (s *AssessmentService) Get(ctx context.Context, id string) (*dto.AssessmentResponse, error) {
	assessment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	response := s.toResponse(assessment)
	return &response, nil
}

// List returns assessments matching the query with pagination.
func (s *AssessmentService) List(ctx context.Context, query dto.AssessmentListQuery) ([]dto.AssessmentResponse, *models.Pagination, error) {
	filter := models.AssessmentFilter{
		SchoolID:    query.SchoolID,
		EvaluatorID: query.EvaluatorID,
		DateFrom:    query.DateFrom,
		DateTo:      query.DateTo,
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if query.Decision != "" {
		decision := models.Decision(query.Decision)
		filter.Decision = &decision
	}
	assessments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	responses := make([]dto.AssessmentResponse, len(assessments))
	for i := range assessments {
		responses[i] = s.toResponse(&assessments[i])
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.PageSize <= 0 {
		pagination.PageSize = 50
	}
	return responses, pagination, nil
}

// Summary aggregates decision counts for a school, served from cache when
// fresh.
func (s *AssessmentService) Summary(ctx context.Context, schoolID string) (*dto.DecisionSummary, error) {
	cacheKey := "bip:stats:decisions:" + schoolID
	if s.cache != nil {
		raw, hit, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger.Warn("decision summary cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheLookup(hit)
		if hit {
			var summary dto.DecisionSummary
			if err := json.Unmarshal([]byte(raw), &summary); err == nil {
				return &summary, nil
			}
			s.logger.Warn("decision summary cache entry malformed", zap.String("key", cacheKey))
		}
	}

	counts, err := s.repo.DecisionCounts(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate decisions")
	}
	summary := &dto.DecisionSummary{SchoolID: schoolID, Counts: counts}
	for _, n := range counts {
		summary.Total += n
	}

	if s.cache != nil {
		if raw, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(raw), s.statsTTL); err != nil {
				s.logger.Warn("decision summary cache write failed", zap.Error(err))
			}
		}
	}
	return summary, nil
}

// ExportCSV renders all matching assessments as a CSV document inline.
// Large exports should go through the job queue instead.
func (s *AssessmentService) ExportCSV(ctx context.Context, query dto.AssessmentListQuery) ([]byte, error) {
	filter := models.AssessmentFilter{
		SchoolID:    query.SchoolID,
		EvaluatorID: query.EvaluatorID,
		DateFrom:    query.DateFrom,
		DateTo:      query.DateTo,
	}
	if query.Decision != "" {
		decision := models.Decision(query.Decision)
		filter.Decision = &decision
	}
	assessments, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessments for export")
	}
	data, err := s.csv.Render(assessmentTable(assessments))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return data, nil
}

// toResponse recomputes decision, rationale and totals from the raw scales so
// a served assessment always reflects the current classification rules.
func (s *AssessmentService) toResponse(a *models.Assessment) dto.AssessmentResponse {
	scores := ScoreScales(a.Data.ScaleA, a.Data.ScaleB, a.Data.ScaleL)
	decision, rationale := Classify(scores, ExclusionTriggered(a.Data.ExclusionCriteria))
	return dto.AssessmentResponse{
		ID:             a.ID,
		AssessmentData: a.Data,
		Decision:       decision,
		Rationale:      rationale,
		Scores:         scores,
		EvaluatorID:    a.EvaluatorID,
		SchoolID:       a.SchoolID,
		Metadata:       a.Metadata,
		CreatedAt:      a.CreatedAt,
	}
}
