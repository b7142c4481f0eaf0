package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nadacare/bip-api/internal/dto"
	"github.com/nadacare/bip-api/internal/models"
	appErrors "github.com/nadacare/bip-api/pkg/errors"
	"github.com/nadacare/bip-api/pkg/response"
)

type assessmentService interface {
	Submit(ctx context.Context, req dto.SubmitAssessmentRequest, claims *models.JWTClaims) (*dto.AssessmentResponse, error)
	Get(ctx context.Context, id string) (*dto.AssessmentResponse, error)
	List(ctx context.Context, query dto.AssessmentListQuery) ([]dto.AssessmentResponse, *models.Pagination, error)
	Summary(ctx context.Context, schoolID string) (*dto.DecisionSummary, error)
	ExportCSV(ctx context.Context, query dto.AssessmentListQuery) ([]byte, error)
}

// AssessmentHandler exposes intake assessment endpoints.
type AssessmentHandler struct {
	service assessmentService
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(service assessmentService) *AssessmentHandler {
	return &AssessmentHandler{service: service}
}

// Submit godoc
// @Summary Submit an intake assessment
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body dto.SubmitAssessmentRequest true "Assessment"
// @Success 201 {object} response.Envelope
// @Router /assessments [post]
func (h *AssessmentHandler) Submit(c *gin.Context) {
	var req dto.SubmitAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assessment payload"))
		return
	}
	result, err := h.service.Submit(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Fetch one assessment
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List assessments
// @Tags Assessments
// @Produce json
// @Param decision query string false "Decision filter"
// @Param schoolId query string false "School filter"
// @Param evaluatorId query string false "Evaluator filter"
// @Param dateFrom query string false "RFC3339 lower bound"
// @Param dateTo query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assessments [get]
func (h *AssessmentHandler) List(c *gin.Context) {
	query, err := assessmentQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	results, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, pagination)
}

// Summary godoc
// @Summary Decision counts per school
// @Tags Assessments
// @Produce json
// @Param schoolId query string false "School filter, defaults to the caller's school"
// @Success 200 {object} response.Envelope
// @Router /assessments/summary [get]
func (h *AssessmentHandler) Summary(c *gin.Context) {
	schoolID := c.Query("schoolId")
	if schoolID == "" {
		if claims := claimsFromContext(c); claims != nil {
			schoolID = claims.SchoolID
		}
	}
	summary, err := h.service.Summary(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ExportCSV godoc
// @Summary Download assessments as CSV
// @Tags Assessments
// @Produce text/csv
// @Param decision query string false "Decision filter"
// @Param schoolId query string false "School filter"
// @Success 200 {string} string "CSV document"
// @Router /assessments/export.csv [get]
func (h *AssessmentHandler) ExportCSV(c *gin.Context) {
	query, err := assessmentQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.service.ExportCSV(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("assessments_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func assessmentQuery(c *gin.Context) (dto.AssessmentListQuery, error) {
	query := dto.AssessmentListQuery{
		Decision:    c.Query("decision"),
		SchoolID:    c.Query("schoolId"),
		EvaluatorID: c.Query("evaluatorId"),
	}
	if raw := c.Query("dateFrom"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "dateFrom must be RFC3339")
		}
		query.DateFrom = &t
	}
	if raw := c.Query("dateTo"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "dateTo must be RFC3339")
		}
		query.DateTo = &t
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	return query, nil
}
