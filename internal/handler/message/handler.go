package message

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	messageService "github.com/pharmapointe/ordonnance-api/internal/service/message"
	prescriptionService "github.com/pharmapointe/ordonnance-api/internal/service/prescription"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/httputil"
)

type Handler struct {
	messages      *messageService.Service
	prescriptions *prescriptionService.Service
}

func NewHandler(messages *messageService.Service, prescriptions *prescriptionService.Service) *Handler {
	return &Handler{messages: messages, prescriptions: prescriptions}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	messages := r.Group("/messages")
	{
		messages.GET("", h.List)
		messages.DELETE("/:id", h.Delete)
		messages.POST("/:id/promote", h.Promote)
	}
}

func (h *Handler) List(c *gin.Context) {
	var filter model.MessageFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error(), err))
		return
	}
	filter.Normalize()

	items, total, err := h.messages.List(c.Request.Context(), &filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, items, filter.Page, filter.PageSize, total)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid message ID", err))
		return
	}
	if err := h.messages.Delete(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Promote turns an inbound message into a prescription.
func (h *Handler) Promote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid message ID", err))
		return
	}
	var req model.CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error(), err))
		return
	}

	p, err := h.prescriptions.PromoteFromInboundMessage(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, p)
}
