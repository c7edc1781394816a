package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"todo/internal/models"
	"todo/internal/ordering"
)

const taskColumns = `id, user_id, title, priority, deadline, completed, created_at, sort_order`

// orderClauses maps each listing sort to its ORDER BY clause. Custom order is
// the fallback for unknown values.
var orderClauses = map[models.TaskSort]string{
	models.SortPriority:  ` ORDER BY CASE priority WHEN 'High' THEN 1 WHEN 'Medium' THEN 2 WHEN 'Low' THEN 3 ELSE 4 END, sort_order ASC, rowid ASC`,
	models.SortDeadline:  ` ORDER BY CASE WHEN deadline IS NULL THEN 1 ELSE 0 END, deadline ASC, sort_order ASC, rowid ASC`,
	models.SortCreatedAt: ` ORDER BY created_at DESC, rowid DESC`,
	models.SortCustom:    ` ORDER BY sort_order ASC, rowid ASC`,
}

var searchEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListTasks returns the user's tasks with their subtasks embedded.
func (s *Store) ListTasks(ctx context.Context, userID string, filter models.TaskFilter, sort models.TaskSort) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}

	if filter.Search != "" {
		query += ` AND title LIKE ? ESCAPE '\'`
		args = append(args, "%"+searchEscaper.Replace(filter.Search)+"%")
	}
	switch filter.Status {
	case models.StatusActive:
		query += ` AND completed = 0`
	case models.StatusCompleted:
		query += ` AND completed = 1`
	}

	clause, ok := orderClauses[sort]
	if !ok {
		clause = orderClauses[models.SortCustom]
	}
	query += clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	subtasks, err := s.subtasksByTask(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if st, ok := subtasks[tasks[i].ID]; ok {
			tasks[i].Subtasks = st
		}
	}
	return tasks, nil
}

// CreateTask inserts a new task at the end of the user's custom order.
func (s *Store) CreateTask(ctx context.Context, userID, title string, priority models.Priority, deadline *string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	if err := validatePriority(priority); err != nil {
		return models.Task{}, err
	}
	deadline, err := normalizeDeadline(deadline)
	if err != nil {
		return models.Task{}, err
	}

	t := models.Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Priority:  priority,
		Deadline:  deadline,
		CreatedAt: s.now().UTC(),
		SortKey:   s.seq.Next(),
		Subtasks:  []models.Subtask{},
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, string(t.Priority), nullable(t.Deadline), t.Completed, t.CreatedAt, t.SortKey)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// GetTask fetches one of the user's tasks with its subtasks.
func (s *Store) GetTask(ctx context.Context, userID, id string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task: %w", models.ErrNotFound)
	}
	if err != nil {
		return models.Task{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, title, completed FROM subtasks WHERE task_id = ? ORDER BY rowid`, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st models.Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Completed); err != nil {
			return models.Task{}, fmt.Errorf("scan subtask: %w", err)
		}
		t.Subtasks = append(t.Subtasks, st)
	}
	return t, rows.Err()
}

// UpdateTask applies a partial update to a task owned by userID.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, upd models.TaskUpdate) error {
	var title *string
	if upd.Title != nil {
		trimmed := strings.TrimSpace(*upd.Title)
		if trimmed == "" {
			return fmt.Errorf("%w: title must not be empty", models.ErrInvalidInput)
		}
		title = &trimmed
	}
	var priority *string
	if upd.Priority != nil {
		if err := validatePriority(*upd.Priority); err != nil {
			return err
		}
		p := string(*upd.Priority)
		priority = &p
	}
	deadline, err := normalizeDeadline(upd.Deadline)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET
            title = COALESCE(?, title),
            deadline = COALESCE(?, deadline),
            completed = COALESCE(?, completed),
            priority = COALESCE(?, priority)
        WHERE id = ? AND user_id = ?`,
		nullable(title), nullable(deadline), nullable(upd.Completed), nullable(priority), id, userID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return affectedOrNotFound(res, "task")
}

// DeleteTask removes a task owned by userID together with its subtasks.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := affectedOrNotFound(res, "task"); err != nil {
		return err
	}
	// Covers databases opened without foreign key enforcement.
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete subtasks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete task: %w", err)
	}
	return nil
}

// ReorderTasks rewrites the sort keys of the listed tasks to their positions
// in a single transaction. Ids the user does not own are skipped.
func (s *Store) ReorderTasks(ctx context.Context, userID string, orderedIDs []string) error {
	if orderedIDs == nil {
		return fmt.Errorf("%w: orderedIds must be an array", models.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE tasks SET sort_order = ? WHERE id = ? AND user_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare reorder: %w", err)
	}
	defer stmt.Close()

	for _, p := range ordering.Placements(orderedIDs) {
		if _, err := stmt.ExecContext(ctx, p.Key, p.TaskID, userID); err != nil {
			return fmt.Errorf("reorder task %s: %w", p.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	s.logger.Debug("tasks reordered", slog.String("user_id", userID), slog.Int("count", len(orderedIDs)))
	return nil
}

// subtasksByTask loads every subtask of the user's tasks keyed by task id.
func (s *Store) subtasksByTask(ctx context.Context, userID string) (map[string][]models.Subtask, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.task_id, s.title, s.completed
        FROM subtasks s JOIN tasks t ON t.id = s.task_id
        WHERE t.user_id = ? ORDER BY s.rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Subtask)
	for rows.Next() {
		var st models.Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Completed); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		out[st.TaskID] = append(out[st.TaskID], st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t        models.Task
		priority string
		deadline sql.NullString
		sortKey  sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &priority, &deadline, &t.Completed, &t.CreatedAt, &sortKey)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, err
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("scan task: %w", err)
	}
	t.Priority = models.Priority(priority)
	if deadline.Valid {
		t.Deadline = &deadline.String
	}
	t.SortKey = sortKey.Int64
	t.Subtasks = []models.Subtask{}
	return t, nil
}

func validatePriority(p models.Priority) error {
	if _, ok := models.ValidPriorities[p]; !ok {
		return fmt.Errorf("%w: priority must be one of High, Medium, Low", models.ErrInvalidInput)
	}
	return nil
}

// normalizeDeadline trims the deadline and checks it is a calendar date.
// An empty string means no deadline.
func normalizeDeadline(d *string) (*string, error) {
	if d == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*d)
	if v == "" {
		return nil, nil
	}
	if _, err := time.Parse(models.DeadlineLayout, v); err != nil {
		return nil, fmt.Errorf("%w: deadline must be formatted as YYYY-MM-DD", models.ErrInvalidInput)
	}
	return &v, nil
}

// nullable dereferences p for use as a query argument, mapping nil to NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
