package note

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/middleware"
	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/service/note"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/httputil"
)

type Handler struct {
	service *note.Service
}

func NewHandler(service *note.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.PUT("/notes/:id", h.Update)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid note ID", err))
		return
	}
	collabID, ok := middleware.CollaboratorID(c)
	if !ok {
		httputil.RespondWithError(c, apperr.Permission("authentication required"))
		return
	}
	var req model.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error(), err))
		return
	}

	n, err := h.service.RecordTreatmentNote(c.Request.Context(), id, collabID, req.Text)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, n)
}
