package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadacare/bip-api/internal/dto"
	"github.com/nadacare/bip-api/internal/models"
	"github.com/nadacare/bip-api/internal/planner"
	"github.com/nadacare/bip-api/internal/repository"
	appErrors "github.com/nadacare/bip-api/pkg/errors"
)

type sessionRepoStub struct {
	mu         sync.Mutex
	records    map[string]*models.SessionRecord
	upsertErr  error
	statusErr  error
	upserts    int
	lastStatus models.SessionStatus
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{records: map[string]*models.SessionRecord{}}
}

func (r *sessionRepoStub) apply(params repository.UpsertSessionParams, status *models.SessionStatus) {
	record, ok := r.records[params.ID]
	if !ok {
		record = &models.SessionRecord{
			ID:        params.ID,
			Status:    models.SessionStatusPending,
			SchoolID:  params.SchoolID,
			TeacherID: params.TeacherID,
			CreatedAt: time.Now(),
		}
		r.records[params.ID] = record
	}
	if status != nil {
		record.Status = *status
	}
	if checklist, ok := params.Patch["checklist"].(*models.Checklist); ok {
		record.Doc.Checklist = checklist
	}
	if child, ok := params.Patch["child"].(string); ok {
		record.Doc.Child = child
	}
	record.UpdatedAt = time.Now()
}

func (r *sessionRepoStub) Upsert(ctx context.Context, params repository.UpsertSessionParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	r.apply(params, nil)
	return nil
}

func (r *sessionRepoStub) UpsertWithStatus(ctx context.Context, params repository.UpsertSessionParams, status models.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	r.lastStatus = status
	r.apply(params, &status)
	return nil
}

func (r *sessionRepoStub) SetStatus(ctx context.Context, id string, status models.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusErr != nil {
		return r.statusErr
	}
	record, ok := r.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	record.Status = status
	return nil
}

func (r *sessionRepoStub) GetByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *record
	return &copy, nil
}

func (r *sessionRepoStub) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SessionRecord
	for _, record := range r.records {
		out = append(out, *record)
	}
	return out, len(out), nil
}

type plannerStub struct {
	calls    int
	degraded bool
	err      error
}

func (p *plannerStub) Generate(ctx context.Context, req planner.Request, info planner.CaseInfo) (models.Plan, bool, error) {
	p.calls++
	if p.err != nil {
		return models.Plan{}, false, p.err
	}
	plan := models.Plan{BehaviorGoal: "reduce target behavior", Source: models.PlanSourceAI, ReviewAfterDays: 14}
	if p.degraded {
		plan.Source = models.PlanSourceMock
		return plan, true, nil
	}
	return plan, false, nil
}

type kvStub struct {
	mu    sync.Mutex
	items map[string]string
}

func newKVStub() *kvStub {
	return &kvStub{items: map[string]string{}}
}

func (k *kvStub) Get(ctx context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	value, ok := k.items[key]
	return value, ok, nil
}

func (k *kvStub) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.items[key] = value
	return nil
}

func testClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "teacher-9", SchoolID: "school-1", Role: models.RoleTeacher}
}

func TestGeneratePlanCachesBySessionKey(t *testing.T) {
	repo := newSessionRepoStub()
	plans := &plannerStub{}
	kv := newKVStub()
	svc := NewSessionService(repo, plans, nil, kv, nil, time.Minute, nil, nil)

	req := dto.PlanRequest{ChildName: "Lina M", TargetBehavior: "hand flapping"}
	first, err := svc.GeneratePlan(context.Background(), req, testClaims())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, plans.calls)

	second, err := svc.GeneratePlan(context.Background(), req, testClaims())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, plans.calls)
	assert.Equal(t, first.SessionKey, second.SessionKey)
	assert.Equal(t, first.Plan.BehaviorGoal, second.Plan.BehaviorGoal)
}

func TestGeneratePlanDegradedIsNotCached(t *testing.T) {
	repo := newSessionRepoStub()
	plans := &plannerStub{degraded: true}
	kv := newKVStub()
	svc := NewSessionService(repo, plans, nil, kv, nil, time.Minute, nil, nil)

	req := dto.PlanRequest{ChildName: "Lina M", TargetBehavior: "hand flapping"}
	result, err := svc.GeneratePlan(context.Background(), req, testClaims())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, models.PlanSourceMock, result.Plan.Source)
	assert.Empty(t, kv.items)

	// next request hits the backend again
	_, err = svc.GeneratePlan(context.Background(), req, testClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, plans.calls)
}

func TestGeneratePlanCancelled(t *testing.T) {
	repo := newSessionRepoStub()
	plans := &plannerStub{err: planner.ErrCancelled}
	svc := NewSessionService(repo, plans, nil, nil, nil, time.Minute, nil, nil)

	_, err := svc.GeneratePlan(context.Background(), dto.PlanRequest{ChildName: "Lina"}, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCancelled.Code, appErrors.FromError(err).Code)
}

func TestSaveSessionBehaviorIsIdempotent(t *testing.T) {
	repo := newSessionRepoStub()
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	req := dto.SaveSessionRequest{Type: "behavior", Child: "Lina M", TargetBehavior: "hand flapping"}
	first, err := svc.SaveSession(context.Background(), req, testClaims())
	require.NoError(t, err)
	second, err := svc.SaveSession(context.Background(), req, testClaims())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "behavior_school-1_teacher-9_lina_m_hand_flapping", first.ID)
	assert.Len(t, repo.records, 1)
	assert.Equal(t, 2, repo.upserts)
}

func TestSaveSessionNoteGetsFreshID(t *testing.T) {
	repo := newSessionRepoStub()
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	req := dto.SaveSessionRequest{Type: "note", Child: "Lina M", Text: "observed during recess"}
	first, err := svc.SaveSession(context.Background(), req, testClaims())
	require.NoError(t, err)
	second, err := svc.SaveSession(context.Background(), req, testClaims())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, repo.records, 2)
}

func TestSaveSessionRemoteFailureKeepsLocal(t *testing.T) {
	repo := newSessionRepoStub()
	repo.upsertErr = errors.New("connection refused")
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	req := dto.SaveSessionRequest{Type: "behavior", Child: "Lina M", TargetBehavior: "hand flapping"}
	result, err := svc.SaveSession(context.Background(), req, testClaims())
	require.NoError(t, err)

	assert.True(t, result.LocalSaved)
	assert.False(t, result.RemoteSaved)
	assert.NotEmpty(t, result.Warning)

	doc, ok := svc.drafts.get(result.ID)
	require.True(t, ok)
	assert.Equal(t, "Lina M", doc.Child)
}

func TestSaveSessionCancelledIsSilent(t *testing.T) {
	repo := newSessionRepoStub()
	repo.upsertErr = context.Canceled
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := svc.SaveSession(ctx, dto.SaveSessionRequest{Type: "behavior", Child: "Lina"}, testClaims())
	require.NoError(t, err)

	assert.True(t, result.LocalSaved)
	assert.False(t, result.RemoteSaved)
	assert.Empty(t, result.Warning)
}

func TestAttachChecklistCompleteApplies(t *testing.T) {
	repo := newSessionRepoStub()
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	checked := map[string]bool{}
	for _, item := range models.ChecklistTemplate() {
		checked[item.ID] = true
	}
	result, err := svc.AttachChecklist(context.Background(), "session-1", dto.ChecklistRequest{CheckedItems: checked}, testClaims())
	require.NoError(t, err)

	assert.True(t, result.AllComplete)
	assert.Equal(t, 100, result.FidelityScore)
	assert.Equal(t, models.SessionStatusApplied, result.Status)
	assert.Equal(t, models.SessionStatusApplied, repo.lastStatus)
}

func TestAttachChecklistPartialStaysPending(t *testing.T) {
	repo := newSessionRepoStub()
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	checked := map[string]bool{"env_prepared": true, "data_recorded": true}
	result, err := svc.AttachChecklist(context.Background(), "session-1", dto.ChecklistRequest{CheckedItems: checked}, testClaims())
	require.NoError(t, err)

	assert.False(t, result.AllComplete)
	assert.Equal(t, 25, result.FidelityScore)
	assert.Equal(t, models.SessionStatusPending, result.Status)
}

func TestAttachChecklistRejectedIsTerminal(t *testing.T) {
	repo := newSessionRepoStub()
	repo.records["session-1"] = &models.SessionRecord{ID: "session-1", Status: models.SessionStatusRejected}
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	_, err := svc.AttachChecklist(context.Background(), "session-1", dto.ChecklistRequest{CheckedItems: map[string]bool{"env_prepared": true}}, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminal.Code, appErrors.FromError(err).Code)
}

func TestRejectOnlyPending(t *testing.T) {
	repo := newSessionRepoStub()
	repo.records["pending-1"] = &models.SessionRecord{ID: "pending-1", Status: models.SessionStatusPending}
	repo.records["applied-1"] = &models.SessionRecord{ID: "applied-1", Status: models.SessionStatusApplied}
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	require.NoError(t, svc.Reject(context.Background(), "pending-1"))
	assert.Equal(t, models.SessionStatusRejected, repo.records["pending-1"].Status)

	err := svc.Reject(context.Background(), "applied-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminal.Code, appErrors.FromError(err).Code)

	err = svc.Reject(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRejectStoreFailureIsPersistenceError(t *testing.T) {
	repo := newSessionRepoStub()
	repo.records["pending-1"] = &models.SessionRecord{ID: "pending-1", Status: models.SessionStatusPending}
	repo.statusErr = errors.New("connection refused")
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	err := svc.Reject(context.Background(), "pending-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPersistence.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrPersistence.Status, appErr.Status)
	assert.Equal(t, models.SessionStatusPending, repo.records["pending-1"].Status)
}

func TestGetChecklistOwnership(t *testing.T) {
	repo := newSessionRepoStub()
	repo.records["session-1"] = &models.SessionRecord{
		ID:     "session-1",
		Status: models.SessionStatusPending,
		Doc: models.SessionDoc{
			Type:      models.SessionTypeBehavior,
			Child:     "Lina M",
			Checklist: &models.Checklist{SavedBy: "teacher-9", FidelityScore: 50},
		},
	}
	svc := NewSessionService(repo, &plannerStub{}, nil, nil, nil, time.Minute, nil, nil)

	owner, err := svc.Get(context.Background(), "session-1", testClaims())
	require.NoError(t, err)
	require.NotNil(t, owner.Checklist)
	assert.Equal(t, 50, owner.Checklist.FidelityScore)
	assert.Nil(t, owner.Doc.Checklist)

	other, err := svc.Get(context.Background(), "session-1", &models.JWTClaims{UserID: "teacher-2", SchoolID: "school-1"})
	require.NoError(t, err)
	assert.Nil(t, other.Checklist)
	assert.Nil(t, other.Doc.Checklist)
}
