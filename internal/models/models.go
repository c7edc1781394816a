package models

import "time"

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Priority ranks a task. Unknown values sort after Low.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ValidPriorities enumerates the priorities accepted on create and update.
var ValidPriorities = map[Priority]struct{}{
	PriorityHigh:   {},
	PriorityMedium: {},
	PriorityLow:    {},
}

// Task represents a single entry in a user's list.
type Task struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Priority  Priority  `json:"priority"`
	Deadline  *string   `json:"deadline"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	SortKey   int64     `json:"sort_order"`
	Subtasks  []Subtask `json:"subtasks"`
}

// Subtask is a checklist item owned by a task.
type Subtask struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// TaskUpdate carries a partial update. Nil fields keep the stored value.
type TaskUpdate struct {
	Title     *string
	Deadline  *string
	Completed *bool
	Priority  *Priority
}

// StatusFilter narrows a listing by completion.
type StatusFilter string

const (
	StatusAny       StatusFilter = "any"
	StatusActive    StatusFilter = "active"
	StatusCompleted StatusFilter = "completed"
)

// TaskFilter combines the status and title search criteria of a listing.
type TaskFilter struct {
	Status StatusFilter
	Search string
}

// TaskSort selects the ordering of a listing.
type TaskSort string

const (
	SortCustom    TaskSort = "custom"
	SortPriority  TaskSort = "priority"
	SortDeadline  TaskSort = "deadline"
	SortCreatedAt TaskSort = "createdAt"
)

// DeadlineLayout is the accepted deadline format.
const DeadlineLayout = "2006-01-02"
