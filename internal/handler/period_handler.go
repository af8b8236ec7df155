package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/paylog/timecard-api/internal/models"
	"github.com/paylog/timecard-api/internal/service"
	appErrors "github.com/paylog/timecard-api/pkg/errors"
	"github.com/paylog/timecard-api/pkg/response"
)

// PeriodHandler exposes pay period lifecycle endpoints.
type PeriodHandler struct {
	service *service.PeriodService
}

// NewPeriodHandler constructs handler.
func NewPeriodHandler(svc *service.PeriodService) *PeriodHandler {
	return &PeriodHandler{service: svc}
}

// Create godoc
// @Summary Bundle draft entries into a pay period
// @Tags PayPeriods
// @Accept json
// @Produce json
// @Param payload body service.CreatePeriodRequest true "Pay period payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid period payload"))
		return
	}

	period, err := h.service.CreateFromDrafts(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, period)
}

// List godoc
// @Summary List pay periods
// @Tags PayPeriods
// @Produce json
// @Param status query string false "Status filter"
// @Param employeeId query string false "Employee ID (staff only)"
// @Param search query string false "Employee name substring (staff only)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.PayPeriodFilter{
		EmployeeID: c.Query("employeeId"),
		Search:     c.Query("search"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.PeriodStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
			return
		}
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	result, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result.Periods, &result.Pagination)
}

// Get godoc
// @Summary Pay period detail with entries
// @Tags PayPeriods
// @Produce json
// @Param id path string true "Pay period ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /periods/{id} [get]
func (h *PeriodHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	period, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, period, nil)
}

// Submit godoc
// @Summary Submit a pay period for review
// @Tags PayPeriods
// @Produce json
// @Param id path string true "Pay period ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods/{id}/submit [post]
func (h *PeriodHandler) Submit(c *gin.Context) {
	h.transition(c, func(claims *models.JWTClaims) (*models.PayPeriod, error) {
		return h.service.Submit(c.Request.Context(), c.Param("id"), claims)
	})
}

// Approve godoc
// @Summary Approve a submitted pay period
// @Tags PayPeriods
// @Produce json
// @Param id path string true "Pay period ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods/{id}/approve [post]
func (h *PeriodHandler) Approve(c *gin.Context) {
	h.transition(c, func(claims *models.JWTClaims) (*models.PayPeriod, error) {
		return h.service.Approve(c.Request.Context(), c.Param("id"), claims)
	})
}

// Reject godoc
// @Summary Reject a submitted pay period
// @Tags PayPeriods
// @Accept json
// @Produce json
// @Param id path string true "Pay period ID"
// @Param payload body map[string]string true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods/{id}/reject [post]
func (h *PeriodHandler) Reject(c *gin.Context) {
	var payload struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "rejection reason required"))
		return
	}
	h.transition(c, func(claims *models.JWTClaims) (*models.PayPeriod, error) {
		return h.service.Reject(c.Request.Context(), c.Param("id"), payload.Reason, claims)
	})
}

// MarkPaid godoc
// @Summary Mark an approved pay period as paid
// @Tags PayPeriods
// @Produce json
// @Param id path string true "Pay period ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods/{id}/mark-paid [post]
func (h *PeriodHandler) MarkPaid(c *gin.Context) {
	h.transition(c, func(claims *models.JWTClaims) (*models.PayPeriod, error) {
		return h.service.MarkPaid(c.Request.Context(), c.Param("id"), claims)
	})
}

func (h *PeriodHandler) transition(c *gin.Context, fn func(*models.JWTClaims) (*models.PayPeriod, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	period, err := fn(claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, period, nil)
}
