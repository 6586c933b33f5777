package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EQSP-Task-Manager/backend-draft/internal/apperrors"
	"github.com/EQSP-Task-Manager/backend-draft/internal/middleware"
	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
	"github.com/EQSP-Task-Manager/backend-draft/internal/service"
	"github.com/EQSP-Task-Manager/backend-draft/internal/storage"
)

// userID reads the identity the auth middleware resolved for this request.
func userID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

type Handler struct {
	db      *sql.DB
	service *service.Service
	users   storage.UserDirectory
	jwtKey  string
}

func New(backend *storage.Backend, svc *service.Service, jwtKey string) *Handler {
	return &Handler{
		db:      backend.DB,
		service: svc,
		users:   backend.Users,
		jwtKey:  jwtKey,
	}
}

// respondBindError maps a body-decode failure onto the wire. Field-typed
// violations (a non-text tag, a malformed timestamp) keep their enumerated
// form; anything else is an opaque bad request.
func respondBindError(c *gin.Context, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"validation_error": verr.Fields})
		return
	}
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
}

// respondServiceError maps a service failure onto the wire. Protocol
// failures get specific bodies; anything else is an opaque 500 so storage
// details never leak.
func respondServiceError(c *gin.Context, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"validation_error": verr.Fields})
		return
	}
	var conflict apperrors.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "task id already exists"})
		return
	}
	var outdated apperrors.OutdatedRevisionError
	if errors.As(err, &outdated) {
		c.JSON(http.StatusConflict, gin.H{"revision": outdated.Actual})
		return
	}
	slog.Error("request failed", "err", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
}
