package handlers

import (
	"net/http"

	"github.com/EQSP-Task-Manager/backend-draft/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
