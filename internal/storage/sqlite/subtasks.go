package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"todo/internal/models"
)

// Subtask statements reach the row through the parent task so that only the
// owner of the parent can create, change or remove its subtasks.

// CreateSubtask adds a subtask under a task owned by userID.
func (s *Store) CreateSubtask(ctx context.Context, userID, taskID, title string) (models.Subtask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Subtask{}, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}

	st := models.Subtask{
		ID:     uuid.NewString(),
		TaskID: taskID,
		Title:  title,
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO subtasks(id, task_id, title, completed)
        SELECT ?, id, ?, 0 FROM tasks WHERE id = ? AND user_id = ?`,
		st.ID, st.Title, taskID, userID)
	if err != nil {
		return models.Subtask{}, fmt.Errorf("insert subtask: %w", err)
	}
	if err := affectedOrNotFound(res, "task"); err != nil {
		return models.Subtask{}, err
	}
	return st, nil
}

// UpdateSubtaskCompletion sets the completion flag of a subtask.
func (s *Store) UpdateSubtaskCompletion(ctx context.Context, userID, id string, completed bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subtasks SET completed = ?
        WHERE id = ? AND task_id IN (SELECT id FROM tasks WHERE user_id = ?)`,
		completed, id, userID)
	if err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	return affectedOrNotFound(res, "subtask")
}

// DeleteSubtask removes a single subtask.
func (s *Store) DeleteSubtask(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subtasks
        WHERE id = ? AND task_id IN (SELECT id FROM tasks WHERE user_id = ?)`,
		id, userID)
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	return affectedOrNotFound(res, "subtask")
}
