package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockExportRunner is a testify mock of the export execution port used by
// the dispatcher, the worker and the stale-pending sweeper.
type MockExportRunner struct {
	mock.Mock
}

// RunExport records the call and returns the configured error.
func (m *MockExportRunner) RunExport(ctx context.Context, exportID, projectID uuid.UUID) error {
	args := m.Called(ctx, exportID, projectID)
	return args.Error(0)
}
