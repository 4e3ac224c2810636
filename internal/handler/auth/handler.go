package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/pharmapointe/ordonnance-api/internal/middleware"
	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/service/collaborator"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/httputil"
)

type Handler struct {
	service *collaborator.Service
}

func NewHandler(service *collaborator.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}

// RegisterProtectedRoutes adds routes that need an authenticated caller.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/auth/me", h.Me)
	r.GET("/collaborators", h.List)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error(), err))
		return
	}
	collab, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, collab)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error(), err))
		return
	}
	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) List(c *gin.Context) {
	collabs, err := h.service.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, collabs)
}

func (h *Handler) Me(c *gin.Context) {
	id, ok := middleware.CollaboratorID(c)
	if !ok {
		httputil.RespondWithError(c, apperr.Permission("authentication required"))
		return
	}
	collab, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, collab)
}
