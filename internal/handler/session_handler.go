package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nadacare/bip-api/internal/dto"
	"github.com/nadacare/bip-api/internal/models"
	appErrors "github.com/nadacare/bip-api/pkg/errors"
	"github.com/nadacare/bip-api/pkg/response"
)

type sessionService interface {
	GeneratePlan(ctx context.Context, req dto.PlanRequest, claims *models.JWTClaims) (*dto.PlanResponse, error)
	SaveSession(ctx context.Context, req dto.SaveSessionRequest, claims *models.JWTClaims) (*dto.SaveSessionResult, error)
	AttachChecklist(ctx context.Context, id string, req dto.ChecklistRequest, claims *models.JWTClaims) (*dto.ChecklistResponse, error)
	Reject(ctx context.Context, id string) error
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*dto.SessionResponse, error)
	List(ctx context.Context, query dto.SessionListQuery, claims *models.JWTClaims) ([]dto.SessionResponse, *models.Pagination, error)
}

// SessionHandler exposes session and plan endpoints.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// GeneratePlan godoc
// @Summary Generate an intervention plan
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.PlanRequest true "Case description"
// @Success 200 {object} response.Envelope
// @Router /sessions/plan [post]
func (h *SessionHandler) GeneratePlan(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid plan request"))
		return
	}
	result, err := h.service.GeneratePlan(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Warning != "" {
		warning := result.Warning
		result.Warning = ""
		response.JSONWarning(c, http.StatusOK, result, warning)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save godoc
// @Summary Save a session or note
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.SaveSessionRequest true "Session"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Save(c *gin.Context) {
	var req dto.SaveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session payload"))
		return
	}
	result, err := h.service.SaveSession(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Warning != "" {
		warning := result.Warning
		result.Warning = ""
		response.JSONWarning(c, http.StatusCreated, result, warning)
		return
	}
	response.Created(c, result)
}

// AttachChecklist godoc
// @Summary Save a fidelity checklist for a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.ChecklistRequest true "Checklist answers"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/checklist [put]
func (h *SessionHandler) AttachChecklist(c *gin.Context) {
	var req dto.ChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid checklist payload"))
		return
	}
	result, err := h.service.AttachChecklist(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Warning != "" {
		warning := result.Warning
		result.Warning = ""
		response.JSONWarning(c, http.StatusOK, result, warning)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a pending session
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204 {string} string "No content"
// @Router /sessions/{id}/reject [post]
func (h *SessionHandler) Reject(c *gin.Context) {
	if err := h.service.Reject(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Fetch one session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param schoolId query string false "School filter"
// @Param teacherId query string false "Teacher filter"
// @Param status query string false "Status filter"
// @Param type query string false "Type filter"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	query := dto.SessionListQuery{
		SchoolID:  c.Query("schoolId"),
		TeacherID: c.Query("teacherId"),
		Status:    c.Query("status"),
		Type:      c.Query("type"),
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	results, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, pagination)
}
