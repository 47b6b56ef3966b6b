package audits

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"audit-backend/internal/shared/server/respond"
)

const maxUploadSize = 200 << 20 // 200MB for audio plus screenshots

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches audit routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/audits", h.create)
	rg.GET("/audits", h.list)
	rg.GET("/audits/:id", h.get)
	rg.GET("/audits/:id/result", h.result)
	rg.GET("/audits/:id/activity", h.activity)
	rg.GET("/audits/:id/artifact", h.artifact)
}

func (h *Handler) create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}

	in := CreateInput{
		AgentName:       c.PostForm("agentName"),
		InteractionType: c.PostForm("interactionType"),
		Images:          form.File["images"],
	}
	if audio := form.File["audio"]; len(audio) > 0 {
		in.Audio = audio[0]
	}

	audit, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create audit", nil)
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(audit))
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list audits", nil)
		return
	}
	respond.OK(c, gin.H{"audits": toResponses(list)})
}

func (h *Handler) get(c *gin.Context) {
	audit, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err)
		return
	}
	respond.OK(c, toResponse(audit))
}

// result returns the full evaluation payload: per-topic verdicts, narrative,
// recommendations, key moments.
func (h *Handler) result(c *gin.Context) {
	audit, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err)
		return
	}
	if audit.Status != StatusCompleted || audit.Result == nil {
		respond.Error(c, http.StatusConflict, "not_ready", "audit has no result yet", gin.H{
			"status": audit.Status,
			"stage":  audit.Stage,
		})
		return
	}
	respond.OK(c, audit.Result)
}

func (h *Handler) activity(c *gin.Context) {
	activity, err := h.Svc.Activity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err)
		return
	}
	respond.OK(c, gin.H{"activity": activity})
}

func (h *Handler) artifact(c *gin.Context) {
	auditID := c.Param("id")
	reader, err := h.Svc.OpenArtifact(c.Request.Context(), auditID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "audit not found", nil)
		case errors.Is(err, ErrArtifactNotReady):
			respond.Error(c, http.StatusConflict, "not_ready", "artifact not ready", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load artifact", nil)
		}
		return
	}
	defer reader.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="audit_`+auditID+`.xlsx"`)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

func respondLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "audit not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch audit", nil)
	}
}
