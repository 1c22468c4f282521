package scheduler

import (
	"testing"

	"github.com/pagedkv/pagedkv/internal/blockspace"
	"github.com/pagedkv/pagedkv/internal/interfaces"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopObserver struct{}

func (nopObserver) ObserveStep(uint64)        {}
func (nopObserver) ObserveQueueDepth(uint32)  {}
func (nopObserver) ObserveAdmission()         {}
func (nopObserver) ObservePreemption()        {}
func (nopObserver) ObserveSwapIn()            {}
func (nopObserver) ObserveSwapOut()           {}
func (nopObserver) ObserveCoW()               {}
func (nopObserver) ObserveBlocksAllocated(int) {}
func (nopObserver) ObserveBlocksFreed(int)     {}
func (nopObserver) ObserveSequenceFinished()   {}

// testFrontend queues FrontendInput values to be drained by one GetInputs
// call each, and records every group id PrintResponse is called with.
type testFrontend struct {
	queued    []interfaces.FrontendInput
	responses []int
}

func (f *testFrontend) enqueue(in interfaces.FrontendInput) {
	f.queued = append(f.queued, in)
}

func (f *testFrontend) GetInputs() []interfaces.FrontendInput {
	out := f.queued
	f.queued = nil
	return out
}

func (f *testFrontend) PrintResponse(groupID int) {
	f.responses = append(f.responses, groupID)
}

func promptTokens(n int) []int {
	tokens := make([]int, n)
	for i := range tokens {
		tokens[i] = i + 1
	}
	return tokens
}

func newTestScheduler(blockSize, numDevice, numHost, maxBatchedTokens int) (*Scheduler, *testFrontend) {
	fe := &testFrontend{}
	blocks := blockspace.New(blockSize, numDevice, numHost, nopLogger{})
	s := New(fe, blocks, nopLogger{}, nopObserver{}, maxBatchedTokens, blockSize)
	return s, fe
}

func TestAdmitWithinBudget(t *testing.T) {
	s, fe := newTestScheduler(8, 4, 4, 2048)
	fe.enqueue(interfaces.FrontendInput{GroupID: 1, PromptTokenIDs: promptTokens(12), NumSeqs: 1, StopTokenIDs: map[int]struct{}{}, MaxNumSteps: 10})

	plan, err := s.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(plan.PromptTokens) != 1 {
		t.Fatalf("want 1 prompt-phase sequence, got %d", len(plan.PromptTokens))
	}
	for seqID, tokens := range plan.PromptTokens {
		if len(tokens) != 12 {
			t.Fatalf("seq %d: want 12 prompt tokens, got %d", seqID, len(tokens))
		}
	}
}

func TestAdmissionStopsAtBudget(t *testing.T) {
	s, fe := newTestScheduler(8, 100, 100, 10)
	fe.enqueue(interfaces.FrontendInput{GroupID: 1, PromptTokenIDs: promptTokens(8), NumSeqs: 1, StopTokenIDs: map[int]struct{}{}, MaxNumSteps: 5})
	fe.enqueue(interfaces.FrontendInput{GroupID: 2, PromptTokenIDs: promptTokens(8), NumSeqs: 1, StopTokenIDs: map[int]struct{}{}, MaxNumSteps: 5})

	plan, err := s.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	// budget 10 allows only the first 8-token prompt; the second must stay
	// pending (property 9).
	if len(plan.PromptTokens) != 1 {
		t.Fatalf("want exactly 1 admitted group, got %d", len(plan.PromptTokens))
	}
	if len(s.pending) != 1 {
		t.Fatalf("want 1 group left pending, got %d", len(s.pending))
	}
}
