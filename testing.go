package pagedkv

import "sync"

// MockFrontend is a thread-safe Frontend implementation for tests and
// examples. GetInputs drains the queue atomically, satisfying the §5
// ingress-concurrency requirement (option (b): the frontend itself is safe
// to call concurrently with whatever populates it).
type MockFrontend struct {
	mu        sync.Mutex
	queued    []FrontendInput
	responses []int
}

// NewMockFrontend creates an empty mock frontend.
func NewMockFrontend() *MockFrontend {
	return &MockFrontend{}
}

// Enqueue appends one (group, params) pair to be returned by a future
// GetInputs call. Safe to call from a different goroutine than the one
// driving Scheduler.Step.
func (f *MockFrontend) Enqueue(in FrontendInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, in)
}

// GetInputs implements Frontend, draining every queued input.
func (f *MockFrontend) GetInputs() []FrontendInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.queued
	f.queued = nil
	return out
}

// PrintResponse implements Frontend, recording the finished group id.
func (f *MockFrontend) PrintResponse(groupID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, groupID)
}

// Responses returns a copy of every group id PrintResponse has been called
// with, in order.
func (f *MockFrontend) Responses() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.responses...)
}

// Pending reports how many inputs are queued but not yet drained.
func (f *MockFrontend) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queued)
}

var _ Frontend = (*MockFrontend)(nil)

// MockController is a Controller that records every StepPlan it is handed
// instead of dispatching to a real worker, for tests and examples.
type MockController struct {
	mu    sync.Mutex
	calls []*StepPlan
	err   error
}

// NewMockController creates a controller that always succeeds.
func NewMockController() *MockController {
	return &MockController{}
}

// SetError makes every subsequent ExecuteStage call fail with err.
func (c *MockController) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// ExecuteStage implements Controller, recording plan and returning the
// configured error, if any.
func (c *MockController) ExecuteStage(plan *StepPlan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, plan)
	return c.err
}

// Calls returns every StepPlan handed to ExecuteStage so far, in order.
func (c *MockController) Calls() []*StepPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*StepPlan(nil), c.calls...)
}

// CallCount returns the number of ExecuteStage invocations recorded.
func (c *MockController) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

var _ Controller = (*MockController)(nil)
