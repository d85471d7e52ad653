package a2a

import (
	"sync"
)

// DefaultMaxTasksPerTenant bounds the task history kept for each tenant.
const DefaultMaxTasksPerTenant = 1000

// TaskStore keeps finished tasks per tenant. A task is only visible to the
// tenant that created it. When a tenant exceeds its limit the oldest task is
// evicted.
type TaskStore struct {
	mu      sync.Mutex
	max     int
	tenants map[string]*tenantTasks
}

type tenantTasks struct {
	byID  map[string]Task
	order []string
}

// NewTaskStore creates a store keeping at most maxPerTenant tasks per tenant.
// A non-positive limit uses DefaultMaxTasksPerTenant.
func NewTaskStore(maxPerTenant int) *TaskStore {
	if maxPerTenant <= 0 {
		maxPerTenant = DefaultMaxTasksPerTenant
	}
	return &TaskStore{max: maxPerTenant, tenants: make(map[string]*tenantTasks)}
}

// Put stores a task under tenantID.
func (s *TaskStore) Put(tenantID string, t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tt, ok := s.tenants[tenantID]
	if !ok {
		tt = &tenantTasks{byID: make(map[string]Task)}
		s.tenants[tenantID] = tt
	}
	if _, exists := tt.byID[t.ID]; !exists {
		tt.order = append(tt.order, t.ID)
	}
	tt.byID[t.ID] = t

	for len(tt.order) > s.max {
		delete(tt.byID, tt.order[0])
		tt.order = tt.order[1:]
	}
}

// Get returns the task with id if it belongs to tenantID.
func (s *TaskStore) Get(tenantID, id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tt, ok := s.tenants[tenantID]
	if !ok {
		return Task{}, false
	}
	t, ok := tt.byID[id]
	return t, ok
}
