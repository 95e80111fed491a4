package helpers

import (
	"context"
	"sync"

	"github.com/kode4food/stride/internal/client"
	"github.com/kode4food/stride/pkg/api"
)

// MockPersistence is a simple in-memory implementation of
// client.Persistence for testing. It applies the same transforms the real
// service would, records every call, and returns configured errors for
// specific operations
type MockPersistence struct {
	instances map[api.SubmissionID]*api.WorkflowInstance
	errors    map[string]error
	calls     []string
	total     int
	mu        sync.Mutex
}

var _ client.Persistence = (*MockPersistence)(nil)

// NewMockPersistence creates a mock persistence service for a process with
// the given number of steps
func NewMockPersistence(total int) *MockPersistence {
	return &MockPersistence{
		instances: map[api.SubmissionID]*api.WorkflowInstance{},
		errors:    map[string]error{},
		total:     total,
	}
}

// SetError configures the mock to fail a specific operation (by the
// controller's op name)
func (m *MockPersistence) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op] = err
}

// ClearError removes any configured error for an operation
func (m *MockPersistence) ClearError(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errors, op)
}

// Calls returns the operations invoked, in order
func (m *MockPersistence) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]string, len(m.calls))
	copy(res, m.calls)
	return res
}

// Stored returns the mock's authoritative instance for a submission
func (m *MockPersistence) Stored(
	id api.SubmissionID,
) *api.WorkflowInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances[id]
}

// Seed installs an authoritative instance directly
func (m *MockPersistence) Seed(w *api.WorkflowInstance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[w.SubmissionID] = w
}

func (m *MockPersistence) Initialize(
	_ context.Context, id api.SubmissionID, init *api.InitialData,
) (*api.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("initialize"); err != nil {
		return nil, err
	}

	cur, ok := m.instances[id]
	if !ok {
		cur = api.NewDraft(id)
	}
	if cur.IsDraft() {
		cur = cur.SetStatus(api.StatusInProgress)
	}
	next := cur.MergeInitial(init)
	m.instances[id] = next
	return next, nil
}

func (m *MockPersistence) UpdateStep(
	_ context.Context, id api.SubmissionID, step api.StepNumber,
	data api.StepData,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update_step_data"); err != nil {
		return err
	}
	cur, err := m.stored(id)
	if err != nil {
		return err
	}
	m.instances[id] = cur.SetStepData(step, data)
	return nil
}

func (m *MockPersistence) Navigate(
	_ context.Context, id api.SubmissionID, step api.StepNumber,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("navigate_to_step"); err != nil {
		return err
	}
	cur, err := m.stored(id)
	if err != nil {
		return err
	}
	m.instances[id] = cur.SetCurrentStep(step)
	return nil
}

func (m *MockPersistence) CompleteStep(
	_ context.Context, id api.SubmissionID, step, next api.StepNumber,
	data api.StepData,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("complete_step"); err != nil {
		return err
	}
	cur, err := m.stored(id)
	if err != nil {
		return err
	}
	if data != nil {
		cur = cur.SetStepData(step, data)
	}
	m.instances[id] = cur.AddCompletedStep(step).SetCurrentStep(next)
	return nil
}

func (m *MockPersistence) Complete(
	_ context.Context, id api.SubmissionID, _ api.StepData,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("complete_workflow"); err != nil {
		return err
	}
	cur, err := m.stored(id)
	if err != nil {
		return err
	}
	m.instances[id] = cur.CompleteAll(m.total)
	return nil
}

func (m *MockPersistence) Fetch(
	_ context.Context, id api.SubmissionID,
) (*api.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("fetch"); err != nil {
		return nil, err
	}
	return m.stored(id)
}

func (m *MockPersistence) record(op string) error {
	m.calls = append(m.calls, op)
	return m.errors[op]
}

func (m *MockPersistence) stored(
	id api.SubmissionID,
) (*api.WorkflowInstance, error) {
	cur, ok := m.instances[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	return cur, nil
}
