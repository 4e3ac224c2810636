package prescription

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/middleware"
	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/service/prescription"
	"github.com/pharmapointe/ordonnance-api/internal/service/report"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/httputil"
)

type Handler struct {
	service *prescription.Service
	reports *report.Service
}

func NewHandler(service *prescription.Service, reports *report.Service) *Handler {
	return &Handler{service: service, reports: reports}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.POST("", h.Create)
		prescriptions.GET("", h.List)
		prescriptions.GET("/counts", h.Counts)
		prescriptions.GET("/:id", h.Get)
		prescriptions.PATCH("/:id", h.Update)
		prescriptions.DELETE("/:id", h.Delete)
		prescriptions.POST("/:id/claim", h.Claim)
		prescriptions.PUT("/:id/status", h.ChangeStatus)
		prescriptions.PUT("/:id/kind", h.ConvertKind)
	}
	r.PUT("/cycles/:id/status", h.ChangeCycleStatus)
}

// Create accepts a multipart form: prescription fields plus the scanned
// document under "document".
func (h *Handler) Create(c *gin.Context) {
	var req model.CreatePrescriptionRequest
	if err := c.ShouldBind(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error(), err))
		return
	}
	if id, ok := middleware.CollaboratorID(c); ok && req.CollaboratorID == nil {
		req.CollaboratorID = &id
	}

	file, err := c.FormFile("document")
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("document file is required", err))
		return
	}
	f, err := file.Open()
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("failed to open document file", err))
		return
	}
	defer f.Close()

	p, err := h.service.CreateFromUpload(c.Request.Context(), &req, file.Filename, file.Header.Get("Content-Type"), f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, p)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid prescription ID", err))
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	views, total, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, views, filter.Page, filter.PageSize, total)
}

func (h *Handler) Counts(c *gin.Context) {
	counts, err := h.reports.Counts(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, counts)
}

func (h *Handler) Update(c *gin.Context) {
	id, collabID, req, ok := bindMutation[model.UpdatePrescriptionRequest](c)
	if !ok {
		return
	}
	p, err := h.service.Update(c.Request.Context(), id, collabID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid prescription ID", err))
		return
	}
	collabID, ok := middleware.CollaboratorID(c)
	if !ok {
		httputil.RespondWithError(c, apperr.Permission("authentication required"))
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, collabID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Claim(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid prescription ID", err))
		return
	}
	collabID, ok := middleware.CollaboratorID(c)
	if !ok {
		httputil.RespondWithError(c, apperr.Permission("authentication required"))
		return
	}
	p, err := h.service.Claim(c.Request.Context(), id, collabID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) ChangeStatus(c *gin.Context) {
	id, collabID, req, ok := bindMutation[model.ChangeStatusRequest](c)
	if !ok {
		return
	}
	p, err := h.service.ChangeStatus(c.Request.Context(), id, collabID, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) ConvertKind(c *gin.Context) {
	id, collabID, req, ok := bindMutation[model.ConvertKindRequest](c)
	if !ok {
		return
	}
	p, err := h.service.ConvertType(c.Request.Context(), id, collabID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) ChangeCycleStatus(c *gin.Context) {
	id, collabID, req, ok := bindMutation[model.ChangeCycleStatusRequest](c)
	if !ok {
		return
	}
	cycle, err := h.service.ChangeCycleStatus(c.Request.Context(), id, collabID, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cycle)
}

// bindMutation parses the shared shape of claim-gated mutations: a resource
// id in the path, the collaborator from the token, and a JSON body.
func bindMutation[T any](c *gin.Context) (uuid.UUID, uuid.UUID, *T, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperr.Validation("invalid ID", err))
		return uuid.Nil, uuid.Nil, nil, false
	}
	collabID, ok := middleware.CollaboratorID(c)
	if !ok {
		httputil.RespondWithError(c, apperr.Permission("authentication required"))
		return uuid.Nil, uuid.Nil, nil, false
	}
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperr.Validation(err.Error(), err))
		return uuid.Nil, uuid.Nil, nil, false
	}
	return id, collabID, &req, true
}

func parseFilter(c *gin.Context) (*model.ViewFilter, error) {
	filter := &model.ViewFilter{
		Search: c.Query("search"),
	}

	if raw := c.Query("statuses"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := model.PrescriptionStatus(s)
			if !status.Valid() {
				return nil, apperr.Validation("invalid status "+s, nil)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := c.Query("kind"); raw != "" {
		kind := model.Kind(raw)
		if !kind.Valid() {
			return nil, apperr.Validation("invalid kind "+raw, nil)
		}
		filter.Kind = &kind
	}
	if raw := c.Query("sequence_number"); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperr.Validation("invalid sequence number", err)
		}
		filter.SequenceNumber = &seq
	}
	if raw := c.Query("received_on"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, apperr.Validation("invalid received_on date", err)
		}
		filter.ReceivedOn = &day
	}
	filter.OnlyToday = c.Query("today") == "true"
	filter.OnlyLate = c.Query("late") == "true"
	filter.ExcludeClosed = c.Query("exclude_closed") == "true"

	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return filter, nil
}
