package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

func strPtr(s string) *string { return &s }

func fixtureProject() (*domain.Project, []domain.Task) {
	projectID := uuid.MustParse("6f1c1f4e-8a7b-4a55-9d0e-3c2b1a000001")
	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	p := &domain.Project{
		ID:          projectID,
		OwnerID:     uuid.New(),
		Name:        "Website Relaunch",
		Description: strPtr("Marketing site rebuild"),
		CreatedAt:   time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	tasks := []domain.Task{
		{
			Title:     "Design mockups",
			Status:    domain.TaskStatusDone,
			Priority:  domain.TaskPriorityHigh,
			DueDate:   &due,
			CreatedAt: time.Date(2026, 1, 6, 9, 15, 30, 250_000_000, time.UTC),
			Assignee:  &domain.UserRef{ID: uuid.New(), Name: "Ada Lovelace", Email: "ada@example.com"},
		},
		{
			Title:       "Write copy",
			Description: strPtr("Landing page text"),
			Status:      domain.TaskStatusInProgress,
			Priority:    domain.TaskPriorityMedium,
			CreatedAt:   time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC),
		},
		{
			Title:     "Set up CI",
			Status:    domain.TaskStatusTodo,
			Priority:  domain.TaskPriorityLow,
			// Non-UTC input; the report renders UTC.
			CreatedAt: time.Date(2026, 1, 8, 9, 0, 0, 0, time.FixedZone("CET", 3600)),
		},
	}
	return p, tasks
}

func TestReportGolden(t *testing.T) {
	t.Parallel()

	p, tasks := fixtureProject()
	data, err := Marshal(BuildReport(p, tasks))
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "report", data)
}

func TestSummarizePartitionsSumToTotal(t *testing.T) {
	t.Parallel()

	statuses := []domain.TaskStatus{domain.TaskStatusTodo, domain.TaskStatusInProgress, domain.TaskStatusDone}
	priorities := []domain.TaskPriority{domain.TaskPriorityLow, domain.TaskPriorityMedium, domain.TaskPriorityHigh}

	var tasks []domain.Task
	for i := 0; i < 17; i++ {
		tasks = append(tasks, domain.Task{
			Status:   statuses[i%len(statuses)],
			Priority: priorities[(i*7)%len(priorities)],
		})
	}

	s := Summarize(tasks)
	assert.Equal(t, 17, s.TotalTasks)
	assert.Equal(t, s.TotalTasks, s.ByStatus.Todo+s.ByStatus.InProgress+s.ByStatus.Done)
	assert.Equal(t, s.TotalTasks, s.ByPriority.Low+s.ByPriority.Medium+s.ByPriority.High)
}

func TestBuildReportEmptyProject(t *testing.T) {
	t.Parallel()

	p := &domain.Project{ID: uuid.New(), Name: "Empty", CreatedAt: time.Now()}
	data, err := Marshal(BuildReport(p, nil))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []any{}, decoded["tasks"], "tasks must be an empty array, not null")
	assert.Nil(t, decoded["project"].(map[string]any)["description"])
	assert.EqualValues(t, 0, decoded["summary"].(map[string]any)["totalTasks"])
}

func TestArtifactName(t *testing.T) {
	t.Parallel()

	projectID := uuid.MustParse("6f1c1f4e-8a7b-4a55-9d0e-3c2b1a000001")
	at := time.Date(2026, 10, 15, 9, 30, 12, 345_000_000, time.UTC)

	assert.Equal(t,
		"project-6f1c1f4e-8a7b-4a55-9d0e-3c2b1a000001-2026-10-15T09-30-12-345Z.json",
		ArtifactName(projectID, at))
	assert.NotContains(t, ArtifactName(projectID, time.Now()), ":")
}
