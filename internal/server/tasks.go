package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"todo/internal/models"
)

type createTaskRequest struct {
	Title    string  `json:"title"`
	Deadline *string `json:"deadline"`
	Priority string  `json:"priority"`
}

type updateTaskRequest struct {
	Title     *string `json:"title"`
	Deadline  *string `json:"deadline"`
	Completed *bool   `json:"completed"`
	Priority  *string `json:"priority"`
}

type reorderRequest struct {
	OrderedIDs []string `json:"orderedIds"`
}

// handleListTasks returns the caller's tasks filtered by status and search
// and sorted by sortBy.
func (s *Server) handleListTasks(c *gin.Context) {
	filter := models.TaskFilter{
		Status: models.StatusFilter(c.DefaultQuery("status", string(models.StatusAny))),
		Search: c.Query("search"),
	}
	sort := models.TaskSort(c.DefaultQuery("sortBy", string(models.SortCustom)))

	tasks, err := s.store.ListTasks(c.Request.Context(), principal(c).UserID, filter, sort)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}

// handleCreateTask appends a new task to the caller's list.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), principal(c).UserID, req.Title, models.Priority(req.Priority), req.Deadline)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, task)
}

// handleReorderTasks stores a new custom order for the caller's tasks.
func (s *Server) handleReorderTasks(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.store.ReorderTasks(c.Request.Context(), principal(c).UserID, req.OrderedIDs); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "Tasks reordered successfully."})
}

// handleUpdateTask changes only the fields present in the payload.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	upd := models.TaskUpdate{
		Title:     req.Title,
		Deadline:  req.Deadline,
		Completed: req.Completed,
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		upd.Priority = &p
	}

	if err := s.store.UpdateTask(c.Request.Context(), principal(c).UserID, id, upd); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "Task updated successfully."})
}

// handleDeleteTask removes a task and its subtasks.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), principal(c).UserID, id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
