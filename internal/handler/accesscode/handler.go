package accesscode

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/accesscode"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/httputil"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

// Service is the part of accesscode.Service the handlers use.
type Service interface {
	Create(ctx context.Context, kind model.SubjectKind, subjectID string) (*model.AccessCode, error)
	Ensure(ctx context.Context, kind model.SubjectKind, subjectID string) (*model.AccessCode, bool, error)
	GetBySubject(ctx context.Context, kind model.SubjectKind, subjectID string) (*model.AccessCode, error)
	Validate(ctx context.Context, kind model.SubjectKind, raw string) (*model.Validation, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type accessCodeResponse struct {
	ID        string            `json:"id"`
	Code      string            `json:"code"`
	Namespace model.SubjectKind `json:"namespace"`
	SubjectID string            `json:"subject_id"`
	CreatedAt time.Time         `json:"created_at"`
}

func toResponse(kind model.SubjectKind, ac *model.AccessCode) accessCodeResponse {
	return accessCodeResponse{
		ID:        ac.ID,
		Code:      ac.Code,
		Namespace: kind,
		SubjectID: ac.SubjectID,
		CreatedAt: ac.CreatedAt,
	}
}

// RegisterAdminRoutes mounts issuance routes. Callers put authentication
// in front of r.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/:kind/:subjectId/access-code", h.EnsureAccessCode)
	r.GET("/:kind/:subjectId/access-code", h.GetAccessCode)
	r.POST("/:kind/access-codes", h.IssueAccessCode)
}

// RegisterPublicRoutes mounts the validation route with any extra
// middleware, typically rate limiting and lockout.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup, middleware ...gin.HandlerFunc) {
	handlers := make([]gin.HandlerFunc, 0, len(middleware)+1)
	handlers = append(handlers, middleware...)
	handlers = append(handlers, h.ValidateAccessCode)
	r.POST("/access-codes/:kind/validate", handlers...)
}

// EnsureAccessCode returns the subject's code, issuing one if it has none.
func (h *Handler) EnsureAccessCode(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	subjectID, ok := parseSubjectID(c)
	if !ok {
		return
	}

	ac, created, err := h.service.Ensure(c.Request.Context(), kind, subjectID)
	if err != nil {
		httputil.RespondWithError(c, mapError(err))
		return
	}

	if created {
		httputil.RespondWithSuccess(c, http.StatusCreated, "access code issued", toResponse(kind, ac))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "access code already exists", toResponse(kind, ac))
}

func (h *Handler) GetAccessCode(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	subjectID, ok := parseSubjectID(c)
	if !ok {
		return
	}

	ac, err := h.service.GetBySubject(c.Request.Context(), kind, subjectID)
	if err != nil {
		httputil.RespondWithError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(toResponse(kind, ac)))
}

// IssueAccessCode always writes a new code, even when the subject has one.
func (h *Handler) IssueAccessCode(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}

	var req model.IssueAccessCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(validator.Describe(err)))
		return
	}

	ac, err := h.service.Create(c.Request.Context(), kind, req.SubjectID)
	if err != nil {
		httputil.RespondWithError(c, mapError(err))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, "access code issued", toResponse(kind, ac))
}

func (h *Handler) ValidateAccessCode(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}

	var req model.ValidateAccessCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(validator.Describe(err)))
		return
	}

	result, err := h.service.Validate(c.Request.Context(), kind, req.Code)
	if err != nil {
		httputil.RespondWithError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func parseSubjectID(c *gin.Context) (string, bool) {
	id := c.Param("subjectId")
	if !validator.IsSubjectID(id) {
		c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid subject id"))
		return "", false
	}
	return id, true
}

func parseKind(c *gin.Context) (model.SubjectKind, bool) {
	kind, err := model.ParseSubjectKind(c.Param("kind"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return "", false
	}
	return kind, true
}

func mapError(err error) error {
	switch {
	case errors.Is(err, accesscode.ErrNotFound):
		return apperrors.NotFound("access code", err)
	case errors.Is(err, accesscode.ErrInvalidSubject), errors.Is(err, accesscode.ErrInvalidKind):
		return apperrors.BadRequest(err.Error(), err)
	case errors.Is(err, accesscode.ErrStoreUnavailable):
		return apperrors.Unavailable("access code store unavailable", err)
	case errors.Is(err, accesscode.ErrGenerationExhausted):
		return apperrors.Unavailable("could not generate a unique access code, try again", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Unavailable("request timed out", err)
	}
	return apperrors.Internal(err)
}
