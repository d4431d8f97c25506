package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// MemStore holds users, projects, tasks and exports in memory.
// It is safe for concurrent use.
type MemStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]domain.User
	projects map[uuid.UUID]domain.Project
	tasks    map[uuid.UUID]domain.Task
	exports  map[uuid.UUID]domain.Export
	errs     map[string]error
	calls    map[string]int
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[uuid.UUID]domain.User),
		projects: make(map[uuid.UUID]domain.Project),
		tasks:    make(map[uuid.UUID]domain.Task),
		exports:  make(map[uuid.UUID]domain.Export),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetError makes the named method, e.g. "ExportStore.MarkCompleted", fail
// with err until it is cleared with a nil err.
func (m *MemStore) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// Calls returns how many times the named method was invoked.
func (m *MemStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Users returns a store.UserStore backed by m.
func (m *MemStore) Users() *MemUserStore { return &MemUserStore{m: m} }

// Projects returns a store.ProjectStore backed by m.
func (m *MemStore) Projects() *MemProjectStore { return &MemProjectStore{m: m} }

// Tasks returns a store.TaskStore backed by m.
func (m *MemStore) Tasks() *MemTaskStore { return &MemTaskStore{m: m} }

// Exports returns a store.ExportStore backed by m.
func (m *MemStore) Exports() *MemExportStore { return &MemExportStore{m: m} }

// Export returns a copy of the stored export, for assertions.
func (m *MemStore) Export(id uuid.UUID) (domain.Export, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exports[id]
	return e, ok
}

// enter locks m and records the call. The caller must unlock.
func (m *MemStore) enter(method string) error {
	m.mu.Lock()
	m.calls[method]++
	return m.errs[method]
}

// enterCtx is enter for methods that, like a database driver, refuse to run
// on a done context.
func (m *MemStore) enterCtx(ctx context.Context, method string) error {
	if err := m.enter(method); err != nil {
		return err
	}
	return ctx.Err()
}

func (m *MemStore) userRef(id *uuid.UUID) *domain.UserRef {
	if id == nil {
		return nil
	}
	u, ok := m.users[*id]
	if !ok {
		return nil
	}
	return &domain.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// projectTasks returns the tasks of a project, assignees joined, oldest first.
func (m *MemStore) projectTasks(projectID uuid.UUID) []domain.Task {
	tasks := make([]domain.Task, 0)
	for _, t := range m.tasks {
		if t.ProjectID != projectID {
			continue
		}
		t.Assignee = m.userRef(t.AssignedTo)
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID.String() < tasks[j].ID.String()
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}

func (m *MemStore) withProjectName(e domain.Export) *domain.Export {
	if p, ok := m.projects[e.ProjectID]; ok {
		e.ProjectName = p.Name
	}
	return &e
}

// MemUserStore implements store.UserStore.
type MemUserStore struct{ m *MemStore }

var _ store.UserStore = (*MemUserStore)(nil)

// Create implements store.UserStore.
func (s *MemUserStore) Create(_ context.Context, user *domain.User) error {
	err := s.m.enter("UserStore.Create")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	if user.HashedPassword == "" {
		return store.ErrInvalidEntity
	}
	for _, u := range s.m.users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	stored := *user
	stored.Password = ""
	s.m.users[user.ID] = stored
	return nil
}

// GetByID implements store.UserStore.
func (s *MemUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	err := s.m.enter("UserStore.GetByID")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, ok := s.m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

// GetByEmail implements store.UserStore.
func (s *MemUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	err := s.m.enter("UserStore.GetByEmail")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, u := range s.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// WithTx implements store.UserStore.
func (s *MemUserStore) WithTx(*sql.Tx) store.UserStore { return s }

// MemProjectStore implements store.ProjectStore.
type MemProjectStore struct{ m *MemStore }

var _ store.ProjectStore = (*MemProjectStore)(nil)

// Create implements store.ProjectStore.
func (s *MemProjectStore) Create(_ context.Context, p *domain.Project) error {
	err := s.m.enter("ProjectStore.Create")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.m.users[p.OwnerID]; !ok {
		return store.ErrInvalidEntity
	}
	s.m.projects[p.ID] = *p
	return nil
}

// GetByID implements store.ProjectStore.
func (s *MemProjectStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	err := s.m.enter("ProjectStore.GetByID")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	p, ok := s.m.projects[id]
	if !ok {
		return nil, store.ErrProjectNotFound
	}
	return &p, nil
}

// GetDetail implements store.ProjectStore.
func (s *MemProjectStore) GetDetail(_ context.Context, id uuid.UUID) (*domain.ProjectDetail, error) {
	err := s.m.enter("ProjectStore.GetDetail")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	p, ok := s.m.projects[id]
	if !ok {
		return nil, store.ErrProjectNotFound
	}
	tasks := s.m.projectTasks(id)
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}
	return &domain.ProjectDetail{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		Tasks:       tasks,
	}, nil
}

// ListByOwner implements store.ProjectStore.
func (s *MemProjectStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.ProjectListItem, error) {
	err := s.m.enter("ProjectStore.ListByOwner")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	items := make([]domain.ProjectListItem, 0)
	for _, p := range s.m.projects {
		if p.OwnerID != ownerID {
			continue
		}
		items = append(items, domain.ProjectListItem{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			OwnerID:     p.OwnerID,
			CreatedAt:   p.CreatedAt,
			TaskCount:   len(s.m.projectTasks(p.ID)),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// Update implements store.ProjectStore.
func (s *MemProjectStore) Update(_ context.Context, p *domain.Project) error {
	err := s.m.enter("ProjectStore.Update")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.m.projects[p.ID]; !ok {
		return store.ErrProjectNotFound
	}
	s.m.projects[p.ID] = *p
	return nil
}

// Delete implements store.ProjectStore. Tasks and exports cascade.
func (s *MemProjectStore) Delete(_ context.Context, id uuid.UUID) error {
	err := s.m.enter("ProjectStore.Delete")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.m.projects[id]; !ok {
		return store.ErrProjectNotFound
	}
	delete(s.m.projects, id)
	for tid, t := range s.m.tasks {
		if t.ProjectID == id {
			delete(s.m.tasks, tid)
		}
	}
	for eid, e := range s.m.exports {
		if e.ProjectID == id {
			delete(s.m.exports, eid)
		}
	}
	return nil
}

// WithTx implements store.ProjectStore.
func (s *MemProjectStore) WithTx(*sql.Tx) store.ProjectStore { return s }

// MemTaskStore implements store.TaskStore.
type MemTaskStore struct{ m *MemStore }

var _ store.TaskStore = (*MemTaskStore)(nil)

func (s *MemTaskStore) checkRefs(t *domain.Task) error {
	if _, ok := s.m.projects[t.ProjectID]; !ok {
		return store.ErrInvalidEntity
	}
	if t.AssignedTo != nil {
		if _, ok := s.m.users[*t.AssignedTo]; !ok {
			return store.ErrInvalidEntity
		}
	}
	return nil
}

// Create implements store.TaskStore.
func (s *MemTaskStore) Create(_ context.Context, t *domain.Task) error {
	err := s.m.enter("TaskStore.Create")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.checkRefs(t); err != nil {
		return err
	}
	stored := *t
	stored.Assignee = nil
	s.m.tasks[t.ID] = stored
	return nil
}

// GetByID implements store.TaskStore.
func (s *MemTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	err := s.m.enter("TaskStore.GetByID")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t, ok := s.m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	t.Assignee = s.m.userRef(t.AssignedTo)
	return &t, nil
}

// Update implements store.TaskStore.
func (s *MemTaskStore) Update(_ context.Context, t *domain.Task) error {
	err := s.m.enter("TaskStore.Update")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.m.tasks[t.ID]; !ok {
		return store.ErrTaskNotFound
	}
	if err := s.checkRefs(t); err != nil {
		return err
	}
	stored := *t
	stored.Assignee = nil
	s.m.tasks[t.ID] = stored
	return nil
}

// Delete implements store.TaskStore.
func (s *MemTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	err := s.m.enter("TaskStore.Delete")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.m.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.m.tasks, id)
	return nil
}

// ListByProject implements store.TaskStore.
func (s *MemTaskStore) ListByProject(_ context.Context, projectID uuid.UUID) ([]domain.Task, error) {
	err := s.m.enter("TaskStore.ListByProject")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.m.projectTasks(projectID), nil
}

// WithTx implements store.TaskStore.
func (s *MemTaskStore) WithTx(*sql.Tx) store.TaskStore { return s }

// MemExportStore implements store.ExportStore, including the conditional
// claim and terminal updates.
type MemExportStore struct{ m *MemStore }

var _ store.ExportStore = (*MemExportStore)(nil)

// Create implements store.ExportStore.
func (s *MemExportStore) Create(_ context.Context, e *domain.Export) error {
	err := s.m.enter("ExportStore.Create")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.m.projects[e.ProjectID]; !ok {
		return store.ErrInvalidEntity
	}
	s.m.exports[e.ID] = *e
	return nil
}

// GetByID implements store.ExportStore.
func (s *MemExportStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Export, error) {
	err := s.m.enter("ExportStore.GetByID")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e, ok := s.m.exports[id]
	if !ok {
		return nil, store.ErrExportNotFound
	}
	return s.m.withProjectName(e), nil
}

// ListByUser implements store.ExportStore.
func (s *MemExportStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Export, error) {
	err := s.m.enter("ExportStore.ListByUser")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Export, 0)
	for _, e := range s.m.exports {
		if e.UserID == userID {
			out = append(out, s.m.withProjectName(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Claim implements store.ExportStore.
func (s *MemExportStore) Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*domain.Export, error) {
	err := s.m.enterCtx(ctx, "ExportStore.Claim")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e, ok := s.m.exports[id]
	if !ok {
		return nil, store.ErrExportNotFound
	}
	switch {
	case e.Status == domain.ExportStatusPending:
	case e.Status == domain.ExportStatusProcessing && e.ClaimedAt != nil && e.ClaimedAt.Before(now.Add(-lease)):
	case e.Status == domain.ExportStatusProcessing:
		return nil, store.NewStoreError("export", "claim", "status PROCESSING", store.ErrExportLeased)
	default:
		return nil, store.NewStoreError("export", "claim", "status "+string(e.Status), store.ErrExportNotClaimable)
	}
	if err := e.Transition(domain.ExportStatusProcessing, nil, now); err != nil {
		return nil, err
	}
	s.m.exports[id] = e
	return s.m.withProjectName(e), nil
}

// MarkCompleted implements store.ExportStore.
func (s *MemExportStore) MarkCompleted(ctx context.Context, id uuid.UUID, filePath string, at time.Time) error {
	err := s.m.enterCtx(ctx, "ExportStore.MarkCompleted")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	return s.finish(id, domain.ExportStatusCompleted, &filePath, nil, at)
}

// MarkFailed implements store.ExportStore.
func (s *MemExportStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	err := s.m.enterCtx(ctx, "ExportStore.MarkFailed")
	defer s.m.mu.Unlock()
	if err != nil {
		return err
	}
	return s.finish(id, domain.ExportStatusFailed, nil, &reason, time.Now().UTC())
}

func (s *MemExportStore) finish(id uuid.UUID, to domain.ExportStatus, filePath, reason *string, at time.Time) error {
	e, ok := s.m.exports[id]
	if !ok || e.Status != domain.ExportStatusProcessing {
		return store.ErrExportNotProcessing
	}
	if err := e.Transition(to, filePath, at); err != nil {
		return err
	}
	e.ErrorMessage = reason
	s.m.exports[id] = e
	return nil
}

// ListStale implements store.ExportStore.
func (s *MemExportStore) ListStale(_ context.Context, pendingBefore, claimedBefore time.Time, limit int) ([]*domain.Export, error) {
	err := s.m.enter("ExportStore.ListStale")
	defer s.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Export, 0)
	for _, e := range s.m.exports {
		pending := e.Status == domain.ExportStatusPending && e.CreatedAt.Before(pendingBefore)
		expired := e.Status == domain.ExportStatusProcessing && e.ClaimedAt != nil && e.ClaimedAt.Before(claimedBefore)
		if pending || expired {
			out = append(out, s.m.withProjectName(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WithTx implements store.ExportStore.
func (s *MemExportStore) WithTx(*sql.Tx) store.ExportStore { return s }
