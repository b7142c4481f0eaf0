package dto

import (
	"time"

	"github.com/nadacare/bip-api/internal/models"
)

// PlanRequest describes the case sent to the AI plan backend.
type PlanRequest struct {
	ChildName       string   `json:"childName" validate:"required"`
	TargetBehavior  string   `json:"targetBehavior"`
	TextNote        string   `json:"textNote"`
	CurrentActivity string   `json:"currentActivity"`
	EnergyLevel     int      `json:"energyLevel"`
	Tags            []string `json:"tags"`
	SessionDuration int      `json:"sessionDuration"`
	CurriculumQuery string   `json:"curriculumQuery"`
	AnalysisType    string   `json:"analysisType" validate:"omitempty,oneof=general behavior"`
	Severity        string   `json:"severity" validate:"omitempty,oneof=low moderate high critical"`
	AssessmentID    string   `json:"assessmentId"`
}

// PlanResponse returns the normalized plan together with the canonical
// session key the caller should use when saving.
type PlanResponse struct {
	Plan       models.Plan `json:"plan"`
	SessionKey string      `json:"sessionKey"`
	Cached     bool        `json:"cached"`
	Warning    string      `json:"warning,omitempty"`
}

// SaveSessionRequest persists a behavior session or a freeform note.
type SaveSessionRequest struct {
	Type           string            `json:"type" validate:"required,oneof=behavior note"`
	Child          string            `json:"child" validate:"required"`
	TargetBehavior string            `json:"targetBehavior"`
	Text           string            `json:"text"`
	GeneratedPlan  *models.Plan      `json:"generatedPlan"`
	FormData       map[string]string `json:"formData"`
}

// SaveSessionResult reports the two write phases separately: the local phase
// always succeeds, the remote phase may fail or be cancelled without
// invalidating the local state.
type SaveSessionResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	LocalSaved  bool   `json:"localSaved"`
	RemoteSaved bool   `json:"remoteSaved"`
	Warning     string `json:"warning,omitempty"`
}

// ChecklistRequest records fidelity checklist answers for a session.
type ChecklistRequest struct {
	CheckedItems map[string]bool `json:"checkedItems" validate:"required"`
}

// ChecklistResponse returns the fidelity outcome and resulting status.
type ChecklistResponse struct {
	SessionID      string               `json:"sessionId"`
	CompletedItems int                  `json:"completedItems"`
	TotalItems     int                  `json:"totalItems"`
	FidelityScore  int                  `json:"fidelityScore"`
	AllComplete    bool                 `json:"allComplete"`
	Status         models.SessionStatus `json:"status"`
	RemoteSaved    bool                 `json:"remoteSaved"`
	Warning        string               `json:"warning,omitempty"`
}

// SessionResponse is the serving shape of one session record. Checklist is
// present only when the acting user owns it.
type SessionResponse struct {
	ID        string               `json:"id"`
	Doc       models.SessionDoc    `json:"doc"`
	Status    models.SessionStatus `json:"status"`
	SchoolID  string               `json:"schoolId"`
	TeacherID string               `json:"teacherId"`
	Checklist *models.Checklist    `json:"checklist,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// SessionListQuery captures list filters from the query string.
type SessionListQuery struct {
	SchoolID  string `json:"schoolId"`
	TeacherID string `json:"teacherId"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
}
