package pagedkv

import (
	"sync"
	"testing"
)

func TestMockFrontendDrainsAtomically(t *testing.T) {
	fe := NewMockFrontend()
	fe.Enqueue(FrontendInput{GroupID: 1})
	fe.Enqueue(FrontendInput{GroupID: 2})

	if got := fe.Pending(); got != 2 {
		t.Fatalf("want 2 pending, got %d", got)
	}
	got := fe.GetInputs()
	if len(got) != 2 {
		t.Fatalf("want 2 drained inputs, got %d", len(got))
	}
	if fe.Pending() != 0 {
		t.Fatalf("want queue empty after drain, got %d pending", fe.Pending())
	}
	if more := fe.GetInputs(); len(more) != 0 {
		t.Fatalf("want empty drain on second call, got %d", len(more))
	}
}

func TestMockFrontendConcurrentEnqueue(t *testing.T) {
	fe := NewMockFrontend()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fe.Enqueue(FrontendInput{GroupID: i})
		}(i)
	}
	wg.Wait()
	if got := fe.Pending(); got != 50 {
		t.Fatalf("want 50 pending after concurrent enqueue, got %d", got)
	}
}

func TestMockFrontendPrintResponseRecordsOrder(t *testing.T) {
	fe := NewMockFrontend()
	fe.PrintResponse(3)
	fe.PrintResponse(1)
	got := fe.Responses()
	if len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Fatalf("want [3 1], got %v", got)
	}
}

func TestMockControllerRecordsCalls(t *testing.T) {
	mc := NewMockController()
	plan := NewStepPlan()
	if err := mc.ExecuteStage(plan); err != nil {
		t.Fatalf("ExecuteStage: %v", err)
	}
	if mc.CallCount() != 1 {
		t.Fatalf("want 1 recorded call, got %d", mc.CallCount())
	}
	if calls := mc.Calls(); len(calls) != 1 || calls[0] != plan {
		t.Fatalf("want recorded plan to match, got %v", calls)
	}
}

func TestMockControllerSetError(t *testing.T) {
	mc := NewMockController()
	wantErr := NewError("test", ErrOutOfMemory, "boom")
	mc.SetError(wantErr)
	if err := mc.ExecuteStage(NewStepPlan()); err != wantErr {
		t.Fatalf("want configured error returned, got %v", err)
	}
}
