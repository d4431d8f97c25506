package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskPriority is the relative importance of a task.
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// Task validation errors
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyTaskProjectID = errors.New("task project ID cannot be empty")
	ErrEmptyTaskTitle     = errors.New("task title is required")
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrInvalidPriority    = errors.New("invalid task priority")
)

// Task is a unit of work inside a project.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	ProjectID   uuid.UUID    `json:"projectId"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AssignedTo  *uuid.UUID   `json:"assignedTo"`
	DueDate     *time.Time   `json:"dueDate"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`

	// Assignee is populated on reads that join the assigned user.
	Assignee *UserRef `json:"assignee"`
}

// NewTask creates a new Task in projectID. Empty status and priority take
// their defaults, TODO and MEDIUM.
func NewTask(projectID uuid.UUID, title string) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     strings.TrimSpace(title),
		Status:    TaskStatusTodo,
		Priority:  TaskPriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.ProjectID == uuid.Nil {
		return ErrEmptyTaskProjectID
	}
	if t.Title == "" {
		return ErrEmptyTaskTitle
	}
	if !t.Status.Valid() {
		return ErrInvalidTaskStatus
	}
	if !t.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// TaskUpdate carries the optional fields of a partial task update.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	AssignedTo  *uuid.UUID
	DueDate     *time.Time
}

// Apply copies the set fields of u onto t and validates the result.
func (u TaskUpdate) Apply(t *Task) error {
	if u.Title != nil {
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		t.Description = u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.AssignedTo != nil {
		t.AssignedTo = u.AssignedTo
		t.Assignee = nil
	}
	if u.DueDate != nil {
		t.DueDate = u.DueDate
	}
	t.UpdatedAt = time.Now().UTC()
	return t.Validate()
}
