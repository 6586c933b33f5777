package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
)

type deleteTaskRequest struct {
	ID uuid.UUID `json:"id"`
}

type updateTasksRequest struct {
	List     []models.Task `json:"list"`
	Revision int64         `json:"revision"`
}

// GetTasks handles GET /api/tasks.
func (h *Handler) GetTasks(c *gin.Context) {
	tasks, revision, err := h.service.GetTasks(c.Request.Context(), userID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TaskList{List: tasks, Revision: revision})
}

// AddTask handles POST /api/tasks.
func (h *Handler) AddTask(c *gin.Context) {
	task := models.Task{}
	if err := c.ShouldBindBodyWithJSON(&task); err != nil {
		respondBindError(c, err)
		return
	}

	revision, err := h.service.AddTask(c.Request.Context(), userID(c), task)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	task.ApplyDefaults()
	c.JSON(http.StatusCreated, gin.H{"element": task, "revision": revision})
}

// DeleteTask handles DELETE /api/tasks. The id to delete travels in the
// body, matching the sync clients.
func (h *Handler) DeleteTask(c *gin.Context) {
	request := deleteTaskRequest{}
	if err := c.ShouldBindBodyWithJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	revision, err := h.service.DeleteTask(c.Request.Context(), userID(c), request.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revision": revision})
}

// UpdateTask handles PATCH /api/tasks.
func (h *Handler) UpdateTask(c *gin.Context) {
	task := models.Task{}
	if err := c.ShouldBindBodyWithJSON(&task); err != nil {
		respondBindError(c, err)
		return
	}

	revision, err := h.service.UpdateTask(c.Request.Context(), userID(c), task)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revision": revision})
}

// UpdateTasks handles PUT /api/tasks, the bulk replace. A stale revision
// comes back as 409 with the server's actual revision so the client can
// refetch, merge, and retry.
func (h *Handler) UpdateTasks(c *gin.Context) {
	request := updateTasksRequest{}
	if err := c.ShouldBindBodyWithJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	revision, err := h.service.UpdateTasks(c.Request.Context(), userID(c), request.List, request.Revision)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revision": revision})
}
