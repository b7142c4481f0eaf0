package dto

import (
	"time"

	"github.com/nadacare/bip-api/internal/models"
)

// ExportRequest creates an asynchronous assessment export job.
type ExportRequest struct {
	Format      string     `json:"format" validate:"required,oneof=csv pdf"`
	Decision    string     `json:"decision" validate:"omitempty,oneof=eligible not_eligible boundary excluded"`
	SchoolID    string     `json:"schoolId"`
	EvaluatorID string     `json:"evaluatorId"`
	DateFrom    *time.Time `json:"dateFrom"`
	DateTo      *time.Time `json:"dateTo"`
}

// ExportJobResponse acknowledges job creation.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress and the signed download URL once
// the job finishes.
type ExportStatusResponse struct {
	ID           string              `json:"id"`
	Status       models.ExportStatus `json:"status"`
	Progress     int                 `json:"progress"`
	ResultURL    *string             `json:"resultUrl,omitempty"`
	ErrorMessage *string             `json:"errorMessage,omitempty"`
	FinishedAt   *time.Time          `json:"finishedAt,omitempty"`
}
