package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// UnassignedName is rendered in place of an assignee name for unassigned tasks.
const UnassignedName = "Unassigned"

// timeLayout matches the ISO-8601 form with millisecond precision that
// existing report consumers parse.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Report is the exported document. Field order is part of the format.
type Report struct {
	Project ReportProject `json:"project"`
	Summary Summary       `json:"summary"`
	Tasks   []ReportTask  `json:"tasks"`
}

// ReportProject describes the exported project.
type ReportProject struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"createdAt"`
}

// Summary aggregates task counts. ByStatus and ByPriority are partitions of
// the task set, so each sums to TotalTasks.
type Summary struct {
	TotalTasks int            `json:"totalTasks"`
	ByStatus   StatusCounts   `json:"byStatus"`
	ByPriority PriorityCounts `json:"byPriority"`
}

// StatusCounts counts tasks per status.
type StatusCounts struct {
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
}

// PriorityCounts counts tasks per priority.
type PriorityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// ReportTask is a single task line of the report.
type ReportTask struct {
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	Status        string  `json:"status"`
	Priority      string  `json:"priority"`
	Assignee      string  `json:"assignee"`
	AssigneeEmail *string `json:"assigneeEmail"`
	DueDate       *string `json:"dueDate"`
	CreatedAt     string  `json:"createdAt"`
}

// Summarize counts tasks by status and priority.
func Summarize(tasks []domain.Task) Summary {
	s := Summary{TotalTasks: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskStatusTodo:
			s.ByStatus.Todo++
		case domain.TaskStatusInProgress:
			s.ByStatus.InProgress++
		case domain.TaskStatusDone:
			s.ByStatus.Done++
		}

		switch t.Priority {
		case domain.TaskPriorityLow:
			s.ByPriority.Low++
		case domain.TaskPriorityMedium:
			s.ByPriority.Medium++
		case domain.TaskPriorityHigh:
			s.ByPriority.High++
		}
	}
	return s
}

// BuildReport assembles the report for project p and its tasks. Tasks are
// emitted in the order given.
func BuildReport(p *domain.Project, tasks []domain.Task) Report {
	r := Report{
		Project: ReportProject{
			Name:        p.Name,
			Description: p.Description,
			CreatedAt:   formatTime(p.CreatedAt),
		},
		Summary: Summarize(tasks),
		Tasks:   make([]ReportTask, 0, len(tasks)),
	}

	for _, t := range tasks {
		line := ReportTask{
			Title:       t.Title,
			Description: t.Description,
			Status:      string(t.Status),
			Priority:    string(t.Priority),
			Assignee:    UnassignedName,
			CreatedAt:   formatTime(t.CreatedAt),
		}
		if t.Assignee != nil {
			line.Assignee = t.Assignee.Name
			email := t.Assignee.Email
			line.AssigneeEmail = &email
		}
		if t.DueDate != nil {
			due := formatTime(*t.DueDate)
			line.DueDate = &due
		}
		r.Tasks = append(r.Tasks, line)
	}

	return r
}

// Marshal serializes r as UTF-8 JSON indented with two spaces.
func Marshal(r Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export report: %w", err)
	}
	return data, nil
}

// ArtifactName returns the artifact file name for an export of projectID
// generated at t, e.g. project-<id>-2026-10-15T09-30-12-345Z.json.
func ArtifactName(projectID uuid.UUID, t time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(formatTime(t))
	return fmt.Sprintf("project-%s-%s.json", projectID, stamp)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
