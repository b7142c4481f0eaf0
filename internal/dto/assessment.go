package dto

import (
	"time"

	"github.com/nadacare/bip-api/internal/models"
)

// SubmitAssessmentRequest carries a full intake evaluation. Scale maps may be
// sparse or empty; absent answers score zero.
type SubmitAssessmentRequest struct {
	BasicInfo         map[string]string         `json:"basicInfo" validate:"required"`
	ScaleA            models.ScaleA             `json:"scaleA"`
	ScaleB            models.ScaleB             `json:"scaleB"`
	ScaleL            models.ScaleL             `json:"scaleL"`
	ExclusionCriteria map[string]string         `json:"exclusionCriteria"`
	TeamMembers       []string                  `json:"teamMembers"`
	Reinforcers       []string                  `json:"reinforcers"`
	Metadata          models.AssessmentMetadata `json:"metadata"`
}

// AssessmentResponse is the serving shape of one assessment. Decision,
// rationale and scores are recomputed from the stored scales on every read.
type AssessmentResponse struct {
	ID             string                    `json:"id"`
	AssessmentData models.AssessmentData     `json:"assessmentData"`
	Decision       models.Decision           `json:"decision"`
	Rationale      string                    `json:"rationale"`
	Scores         models.Scores             `json:"scores"`
	EvaluatorID    string                    `json:"evaluatorId"`
	SchoolID       string                    `json:"schoolId"`
	Metadata       models.AssessmentMetadata `json:"metadata"`
	CreatedAt      time.Time                 `json:"createdAt"`
}

// AssessmentListQuery captures list filters from the query string.
type AssessmentListQuery struct {
	Decision    string     `json:"decision"`
	SchoolID    string     `json:"schoolId"`
	EvaluatorID string     `json:"evaluatorId"`
	DateFrom    *time.Time `json:"dateFrom"`
	DateTo      *time.Time `json:"dateTo"`
	Page        int        `json:"page"`
	PageSize    int        `json:"pageSize"`
}

// DecisionSummary aggregates decision counts for a school.
type DecisionSummary struct {
	SchoolID string                  `json:"schoolId"`
	Counts   map[models.Decision]int `json:"counts"`
	Total    int                     `json:"total"`
}
