package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"todo/internal/models"
)

type subtaskRequest struct {
	Title string `json:"title"`
}

type subtaskUpdateRequest struct {
	Completed *bool `json:"completed"`
}

// handleCreateSubtask adds a subtask under one of the caller's tasks.
func (s *Server) handleCreateSubtask(c *gin.Context) {
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req subtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	subtask, err := s.store.CreateSubtask(c.Request.Context(), principal(c).UserID, taskID, req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, subtask)
}

// handleUpdateSubtask toggles a subtask's completion flag.
func (s *Server) handleUpdateSubtask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req subtaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Completed == nil {
		s.fail(c, fmt.Errorf("%w: completed must be a boolean", models.ErrInvalidInput))
		return
	}

	if err := s.store.UpdateSubtaskCompletion(c.Request.Context(), principal(c).UserID, id, *req.Completed); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "Subtask updated."})
}

// handleDeleteSubtask removes a single subtask.
func (s *Server) handleDeleteSubtask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteSubtask(c.Request.Context(), principal(c).UserID, id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
