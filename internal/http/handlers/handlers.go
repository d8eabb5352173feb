package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mesflow/backend/internal/db"
	"github.com/mesflow/backend/internal/erp"
	"github.com/mesflow/backend/internal/models"
	"github.com/mesflow/backend/internal/service"
)

type Handler struct {
	Store     *db.Store
	Alerts    *service.AlertService
	Pipeline  *service.Pipeline
	Notifier  *service.Notifier
	Orders    *erp.Cache
	Validator *validator.Validate
	Logger    zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type QCFailureRequest struct {
	TicketNo   string               `json:"ticket_no" validate:"required"`
	SessionID  string               `json:"session_id" validate:"required"`
	Station    string               `json:"station"`
	StationID  *string              `json:"station_id"`
	QCTaskRef  *string              `json:"qc_task_ref"`
	CreatedBy  *string              `json:"created_by"`
	FailedRows []models.QCFailedRow `json:"failed_rows" validate:"required"`
}

// @Summary Report a QC session failure
// @Description Records the defect alert, synthesizes the rework work order, and notifies responders
// @Tags qc
// @Accept json
// @Produce json
// @Success 200 {object} service.ResolutionResult
// @Failure 400 {object} map[string]any
// @Router /api/qc/failures [post]
func (h *Handler) ReportQCFailure(c *gin.Context) {
	var req QCFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	result, err := h.Pipeline.ResolveQCFailure(c.Request.Context(), service.QCFailureEvent{
		TicketNo:   req.TicketNo,
		SessionID:  req.SessionID,
		StationID:  req.StationID,
		Station:    req.Station,
		QCTaskRef:  req.QCTaskRef,
		FailedRows: req.FailedRows,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		respondError(c, h.Logger, err, "Failed to resolve QC failure")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) AlertsList(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	query := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, total, err := h.Alerts.List(c.Request.Context(), status, query, page, pageSize)
	if err != nil {
		respondError(c, h.Logger, err, "Failed to list defect alerts")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"total_count": total,
		"page":        page,
		"page_size":   pageSize,
	})
}

func (h *Handler) AlertDetails(c *gin.Context) {
	alert, err := h.Alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err, "Failed to get defect alert")
		return
	}
	c.JSON(http.StatusOK, alert)
}

type ResolveAlertRequest struct {
	RPDRef     *string `json:"rpd_ref"`
	NCNote     *string `json:"nc_note"`
	ResolvedBy *string `json:"resolved_by"`
}

func (h *Handler) ResolveAlert(c *gin.Context) {
	var req ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}

	alert, err := h.Alerts.Resolve(c.Request.Context(), c.Param("id"), req.RPDRef, req.NCNote, req.ResolvedBy)
	if err != nil {
		respondError(c, h.Logger, err, "Failed to resolve defect alert")
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) WorkOrdersList(c *gin.Context) {
	ticketNo := c.Query("ticket_no")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.Store.ListWorkOrders(c.Request.Context(), ticketNo, limit, offset)
	if err != nil {
		respondError(c, h.Logger, err, "Failed to list work orders")
		return
	}
	if items == nil {
		items = []models.WorkOrder{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) WorkOrderDetails(c *gin.Context) {
	w, err := h.Store.GetWorkOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err, "Failed to get work order")
		return
	}
	c.JSON(http.StatusOK, w)
}

type NotifyAssigneeRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (h *Handler) NotifyWorkOrderAssignee(c *gin.Context) {
	var req NotifyAssigneeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	if err := h.Notifier.NotifyWorkOrderAssigned(c.Request.Context(), c.Param("id"), &req.UserID); err != nil {
		respondError(c, h.Logger, err, "Failed to notify assignee")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) NotificationsList(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	unread := c.Query("unread")

	items, err := h.Notifier.ListForUser(c.Request.Context(), userID, unread == "1" || strings.EqualFold(unread, "true"))
	if err != nil {
		respondError(c, h.Logger, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	n, err := h.Notifier.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err, "Failed to mark notification read")
		return
	}
	c.JSON(http.StatusOK, n)
}

// @Summary List production orders
// @Description Full production-order list from the ERP, served from a 2-minute snapshot cache
// @Tags erp
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/production-orders [get]
func (h *Handler) ProductionOrdersList(c *gin.Context) {
	orders, fromCache, err := h.Orders.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err, "Failed to fetch production orders")
		return
	}
	if orders == nil {
		orders = []models.ProductionOrder{}
	}
	c.JSON(http.StatusOK, gin.H{"items": orders, "from_cache": fromCache})
}

type OrderLookupRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

func (h *Handler) ProductionOrdersLookup(c *gin.Context) {
	var req OrderLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	results := h.Orders.GetMany(c.Request.Context(), req.IDs)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// respondError maps the service error taxonomy onto the HTTP envelope.
func respondError(c *gin.Context, logger zerolog.Logger, err error, message string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", message, err.Error())
	case errors.Is(err, db.ErrNotFound), errors.Is(err, erp.ErrOrderNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", message, err.Error())
	case errors.Is(err, db.ErrConstraint):
		writeError(c, http.StatusConflict, "CONFLICT", message, err.Error())
	case errors.Is(err, erp.ErrUpstream):
		writeError(c, http.StatusBadGateway, "UPSTREAM_ERROR", message, err.Error())
	default:
		logger.Error().Err(err).Msg(message)
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
