package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nadacare/bip-api/internal/dto"
	"github.com/nadacare/bip-api/internal/models"
	"github.com/nadacare/bip-api/internal/planner"
	"github.com/nadacare/bip-api/internal/repository"
	appErrors "github.com/nadacare/bip-api/pkg/errors"
)

const (
	planCachePrefix = "bip:plan:"

	warnPlanFallback = "plan service unavailable; a locally generated draft plan is attached"
	warnRemoteSave   = "document store unreachable; the session is kept locally and will not be lost"
)

type sessionRepository interface {
	Upsert(ctx context.Context, params repository.UpsertSessionParams) error
	UpsertWithStatus(ctx context.Context, params repository.UpsertSessionParams, status models.SessionStatus) error
	SetStatus(ctx context.Context, id string, status models.SessionStatus) error
	GetByID(ctx context.Context, id string) (*models.SessionRecord, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionRecord, int, error)
}

type planGenerator interface {
	Generate(ctx context.Context, req planner.Request, info planner.CaseInfo) (models.Plan, bool, error)
}

type assessmentLookup interface {
	GetByID(ctx context.Context, id string) (*models.Assessment, error)
}

// SessionService manages plan generation and the two-phase session save: a
// local write that always succeeds followed by a remote write that may fail
// without invalidating the local copy.
type SessionService struct {
	repo        sessionRepository
	planner     planGenerator
	assessments assessmentLookup
	cache       kvCache
	drafts      *draftBoard
	metrics     *MetricsService
	planTTL     time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionService constructs the service. Cache, assessment lookup and
// metrics are optional.
func NewSessionService(repo sessionRepository, plan planGenerator, assessments assessmentLookup, cache kvCache, metrics *MetricsService, planTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if planTTL <= 0 {
		planTTL = 15 * time.Minute
	}
	return &SessionService{
		repo:        repo,
		planner:     plan,
		assessments: assessments,
		cache:       cache,
		drafts:      newDraftBoard(),
		metrics:     metrics,
		planTTL:     planTTL,
		validator:   validate,
		logger:      logger,
	}
}

// GeneratePlan asks the AI backend for an intervention plan. Repeated
// requests for the same case within the cache TTL are served from cache.
// A backend failure degrades to a locally generated draft plan and is
// reported through the warning field, never as an error. Caller cancellation
// is returned as a cancelled error so the handler can drop the response.
func (s *SessionService) GeneratePlan(ctx context.Context, req dto.PlanRequest, claims *models.JWTClaims) (*dto.PlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.AnalysisType == "" {
		req.AnalysisType = "behavior"
	}

	var teacherID, schoolID string
	if claims != nil {
		teacherID = claims.UserID
		schoolID = claims.SchoolID
	}
	sessionKey := SessionKey(string(models.SessionTypeBehavior), schoolID, teacherID, req.ChildName, req.TargetBehavior)

	cacheKey := planCachePrefix + sessionKey
	if s.cache != nil {
		raw, hit, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger.Warn("plan cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheLookup(hit)
		if hit {
			var plan models.Plan
			if err := json.Unmarshal([]byte(raw), &plan); err == nil {
				return &dto.PlanResponse{Plan: plan, SessionKey: sessionKey, Cached: true}, nil
			}
			s.logger.Warn("plan cache entry malformed", zap.String("key", cacheKey))
		}
	}

	plannerReq := planner.Request{
		TextNote:        req.TextNote,
		CurrentActivity: req.CurrentActivity,
		EnergyLevel:     req.EnergyLevel,
		Tags:            req.Tags,
		SessionDuration: req.SessionDuration,
		CurriculumQuery: req.CurriculumQuery,
		AnalysisType:    req.AnalysisType,
		Meta: planner.RequestMeta{
			RequestedByTeacherID: teacherID,
			RequestedBySchoolID:  schoolID,
			LocalTimestamp:       time.Now().Format(time.RFC3339),
			FormDataSummary:      formDataSummary(req),
		},
	}
	if req.AssessmentID != "" && s.assessments != nil {
		if data, err := s.assessmentContext(ctx, req.AssessmentID); err != nil {
			s.logger.Warn("plan request assessment lookup failed",
				zap.String("assessment_id", req.AssessmentID),
				zap.Error(err))
		} else {
			plannerReq.AssessmentData = data
		}
	}

	info := planner.CaseInfo{
		ChildName:      req.ChildName,
		TargetBehavior: req.TargetBehavior,
		Severity:       req.Severity,
	}

	started := time.Now()
	plan, degraded, err := s.planner.Generate(ctx, plannerReq, info)
	if err != nil {
		if errors.Is(err, planner.ErrCancelled) {
			return nil, appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "plan request cancelled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate plan")
	}
	s.metrics.ObservePlanGeneration(time.Since(started), degraded)

	response := &dto.PlanResponse{Plan: plan, SessionKey: sessionKey}
	if degraded {
		response.Warning = warnPlanFallback
		return response, nil
	}

	if s.cache != nil {
		if raw, err := json.Marshal(plan); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(raw), s.planTTL); err != nil {
				s.logger.Warn("plan cache write failed", zap.Error(err))
			}
		}
	}
	return response, nil
}

// SaveSession persists a session in two phases. Phase one writes to the local
// draft board and cannot fail. Phase two upserts the remote document; a
// failure there surfaces as a warning on the result and the local copy stays
// intact. Caller cancellation of phase two is swallowed silently.
func (s *SessionService) SaveSession(ctx context.Context, req dto.SaveSessionRequest, claims *models.JWTClaims) (*dto.SaveSessionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	var teacherID, schoolID string
	if claims != nil {
		teacherID = claims.UserID
		schoolID = claims.SchoolID
	}

	sessionType := models.SessionType(req.Type)
	var id string
	if sessionType == models.SessionTypeBehavior {
		id = SessionKey(req.Type, schoolID, teacherID, req.Child, req.TargetBehavior)
	} else {
		id = uuid.NewString()
	}

	doc := models.SessionDoc{
		Type:           sessionType,
		Child:          req.Child,
		TargetBehavior: req.TargetBehavior,
		Text:           req.Text,
		GeneratedPlan:  req.GeneratedPlan,
		FormData:       req.FormData,
		Meta: &models.SessionMeta{
			Source:       docSource(req.GeneratedPlan),
			SavedAtLocal: time.Now().Format(time.RFC3339),
		},
	}

	s.drafts.put(id, doc)
	result := &dto.SaveSessionResult{
		ID:         id,
		Status:     string(models.SessionStatusPending),
		LocalSaved: true,
	}

	params := repository.UpsertSessionParams{
		ID:        id,
		Patch:     sessionPatch(doc),
		SchoolID:  schoolID,
		TeacherID: teacherID,
	}
	if err := s.repo.Upsert(ctx, params); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			s.logger.Debug("remote session save cancelled", zap.String("session_id", id))
			return result, nil
		}
		s.logger.Error("remote session save failed",
			zap.String("session_id", id),
			zap.Error(err))
		result.Warning = warnRemoteSave
		return result, nil
	}
	result.RemoteSaved = true

	if record, err := s.repo.GetByID(ctx, id); err == nil {
		result.Status = string(record.Status)
	}
	return result, nil
}

// AttachChecklist saves fidelity checklist answers against a session. The
// session status is recomputed from completeness: all items checked moves it
// to applied, anything less keeps or returns it to pending. Rejected sessions
// can no longer change.
func (s *SessionService) AttachChecklist(ctx context.Context, id string, req dto.ChecklistRequest, claims *models.JWTClaims) (*dto.ChecklistResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if record != nil && record.Status == models.SessionStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrTerminal, "session was rejected and can no longer change")
	}

	summary := Fidelity(req.CheckedItems, models.ChecklistTemplateSize())
	status := models.SessionStatusPending
	if summary.AllComplete {
		status = models.SessionStatusApplied
	}

	var actorID string
	if claims != nil {
		actorID = claims.UserID
	}
	checklist := &models.Checklist{
		CheckedItems:   req.CheckedItems,
		FidelityScore:  summary.FidelityScore,
		CompletedItems: summary.Completed,
		TotalItems:     summary.Total,
		SavedBy:        actorID,
		SavedAt:        time.Now().UTC(),
	}

	if draft, ok := s.drafts.get(id); ok {
		draft.Checklist = checklist
		s.drafts.put(id, draft)
	}

	response := &dto.ChecklistResponse{
		SessionID:      id,
		CompletedItems: summary.Completed,
		TotalItems:     summary.Total,
		FidelityScore:  summary.FidelityScore,
		AllComplete:    summary.AllComplete,
		Status:         status,
	}

	var schoolID, teacherID string
	if claims != nil {
		schoolID = claims.SchoolID
		teacherID = claims.UserID
	}
	params := repository.UpsertSessionParams{
		ID:        id,
		Patch:     models.SessionPatch{"checklist": checklist},
		SchoolID:  schoolID,
		TeacherID: teacherID,
	}
	if err := s.repo.UpsertWithStatus(ctx, params, status); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			s.logger.Debug("remote checklist save cancelled", zap.String("session_id", id))
			return response, nil
		}
		s.logger.Error("remote checklist save failed",
			zap.String("session_id", id),
			zap.Error(err))
		response.Warning = warnRemoteSave
		return response, nil
	}
	response.RemoteSaved = true
	return response, nil
}

// Reject moves a pending session to rejected. Applied and rejected sessions
// cannot be rejected.
func (s *SessionService) Reject(ctx context.Context, id string) error {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if record.Status != models.SessionStatusPending {
		return appErrors.Clone(appErrors.ErrTerminal, "only pending sessions can be rejected")
	}
	// Rejection has no local phase, so a store failure is a hard error
	// rather than a warning.
	if err := s.repo.SetStatus(ctx, id, models.SessionStatusRejected); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to reject session")
	}
	return nil
}

// Get returns one session. The embedded checklist is exposed only to the
// user who saved it.
func (s *SessionService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*dto.SessionResponse, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	response := s.toResponse(record, claims)
	return &response, nil
}

// List returns sessions matching the query with pagination.
func (s *SessionService) List(ctx context.Context, query dto.SessionListQuery, claims *models.JWTClaims) ([]dto.SessionResponse, *models.Pagination, error) {
	filter := models.SessionFilter{
		SchoolID:  query.SchoolID,
		TeacherID: query.TeacherID,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if query.Status != "" {
		status := models.SessionStatus(query.Status)
		filter.Status = &status
	}
	if query.Type != "" {
		sessionType := models.SessionType(query.Type)
		filter.Type = &sessionType
	}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	responses := make([]dto.SessionResponse, len(records))
	for i := range records {
		responses[i] = s.toResponse(&records[i], claims)
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

func (s *SessionService) toResponse(record *models.SessionRecord, claims *models.JWTClaims) dto.SessionResponse {
	var actorID string
	if claims != nil {
		actorID = claims.UserID
	}
	doc := record.Doc
	doc.Checklist = nil
	return dto.SessionResponse{
		ID:        record.ID,
		Doc:       doc,
		Status:    record.Status,
		SchoolID:  record.SchoolID,
		TeacherID: record.TeacherID,
		Checklist: record.ChecklistFor(actorID),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func (s *SessionService) assessmentContext(ctx context.Context, id string) (map[string]interface{}, error) {
	assessment, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	scores := ScoreScales(assessment.Data.ScaleA, assessment.Data.ScaleB, assessment.Data.ScaleL)
	decision, _ := Classify(scores, ExclusionTriggered(assessment.Data.ExclusionCriteria))
	return map[string]interface{}{
		"basicInfo": assessment.Data.BasicInfo,
		"scores":    scores,
		"decision":  string(decision),
	}, nil
}

// sessionPatch builds a partial document from the fields actually set, so an
// upsert on an existing record never blanks fields the caller did not send.
func sessionPatch(doc models.SessionDoc) models.SessionPatch {
	patch := models.SessionPatch{
		"type":  doc.Type,
		"child": doc.Child,
	}
	if doc.TargetBehavior != "" {
		patch["targetBehavior"] = doc.TargetBehavior
	}
	if doc.Text != "" {
		patch["text"] = doc.Text
	}
	if doc.GeneratedPlan != nil {
		patch["generatedPlan"] = doc.GeneratedPlan
	}
	if len(doc.FormData) > 0 {
		patch["formData"] = doc.FormData
	}
	if doc.Meta != nil {
		patch["meta"] = doc.Meta
	}
	return patch
}

func docSource(plan *models.Plan) string {
	if plan == nil {
		return "form"
	}
	return string(plan.Source)
}

func formDataSummary(req dto.PlanRequest) string {
	parts := []string{req.ChildName}
	if req.TargetBehavior != "" {
		parts = append(parts, req.TargetBehavior)
	}
	if req.Severity != "" {
		parts = append(parts, "severity="+req.Severity)
	}
	return strings.Join(parts, " | ")
}

// draftBoard is the in-process local phase of the two-phase save. Writes here
// always succeed and survive remote outages for the lifetime of the process.
type draftBoard struct {
	mu   sync.RWMutex
	docs map[string]models.SessionDoc
}

func newDraftBoard() *draftBoard {
	return &draftBoard{docs: make(map[string]models.SessionDoc)}
}

func (b *draftBoard) put(id string, doc models.SessionDoc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[id] = doc
}

func (b *draftBoard) get(id string) (models.SessionDoc, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	doc, ok := b.docs[id]
	return doc, ok
}
