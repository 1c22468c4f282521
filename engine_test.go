package pagedkv

import (
	"context"
	"testing"
)

type countingSampler struct{ calls int }

func (s *countingSampler) Sample(plan *StepPlan) (map[int]SampledToken, error) {
	s.calls++
	out := make(map[int]SampledToken)
	for seqID := range plan.PromptTokens {
		out[seqID] = SampledToken{ParentSeqID: seqID, TokenID: 1}
	}
	for seqID := range plan.GenerationTokens {
		out[seqID] = SampledToken{ParentSeqID: seqID, TokenID: 1}
	}
	return out, nil
}

func TestNewEngineRejectsInvalidBlockSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = 7
	if _, err := NewEngine(context.Background(), cfg, NewMockFrontend(), nil); err == nil {
		t.Fatalf("want error for invalid block size, got nil")
	}
}

func TestNewEngineRejectsNilFrontend(t *testing.T) {
	if _, err := NewEngine(context.Background(), DefaultConfig(), nil, nil); err == nil {
		t.Fatalf("want error for nil frontend, got nil")
	}
}

func TestEngineStepWithoutAdmissionIsNoOp(t *testing.T) {
	frontend := NewMockFrontend()
	engine, err := NewEngine(context.Background(), DefaultConfig(), frontend, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Stop()

	plan, err := engine.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(plan.PromptTokens) != 0 {
		t.Fatalf("want no prompt tokens with nothing enqueued, got %d", len(plan.PromptTokens))
	}
	if engine.Info().StepsExecuted != 1 {
		t.Fatalf("want 1 step executed, got %d", engine.Info().StepsExecuted)
	}
}

func TestEngineRunAdmitsAndFinishesWithSampler(t *testing.T) {
	frontend := NewMockFrontend()
	frontend.Enqueue(FrontendInput{
		GroupID:        1,
		PromptTokenIDs: []int{1, 2, 3, 4, 5, 6, 7, 8},
		NumSeqs:        1,
		StopTokenIDs:   map[int]struct{}{},
		MaxNumSteps:    2,
	})

	sampler := &countingSampler{}
	controller := NewMockController()
	engine, err := NewEngine(context.Background(), DefaultConfig(), frontend, &Options{
		Sampler:    sampler,
		Controller: controller,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Stop()

	if err := engine.Run(context.Background(), 5); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sampler.calls == 0 {
		t.Fatalf("want sampler invoked at least once")
	}
	if controller.CallCount() == 0 {
		t.Fatalf("want controller invoked at least once")
	}
	if len(frontend.Responses()) != 1 {
		t.Fatalf("want group 1 returned to frontend, got responses=%v", frontend.Responses())
	}
	snap := engine.MetricsSnapshot()
	if snap.Admissions != 1 {
		t.Fatalf("want 1 admission, got %d", snap.Admissions)
	}
	if snap.SequencesFinished != 1 {
		t.Fatalf("want 1 sequence finished, got %d", snap.SequencesFinished)
	}
}

func TestEngineRunRequiresSampler(t *testing.T) {
	engine, err := NewEngine(context.Background(), DefaultConfig(), NewMockFrontend(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Stop()

	if err := engine.Run(context.Background(), 1); err == nil {
		t.Fatalf("want error when no Sampler is configured")
	}
}

func TestEngineStopAndState(t *testing.T) {
	engine, err := NewEngine(context.Background(), DefaultConfig(), NewMockFrontend(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if engine.State() != EngineStateRunning {
		t.Fatalf("want running state, got %s", engine.State())
	}
	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if engine.State() != EngineStateStopped {
		t.Fatalf("want stopped state, got %s", engine.State())
	}
}

func TestEngineResetReturnsToFreshState(t *testing.T) {
	frontend := NewMockFrontend()
	frontend.Enqueue(FrontendInput{
		GroupID:        1,
		PromptTokenIDs: []int{1, 2, 3, 4, 5, 6, 7, 8},
		NumSeqs:        1,
		StopTokenIDs:   map[int]struct{}{},
		MaxNumSteps:    10,
	})
	engine, err := NewEngine(context.Background(), DefaultConfig(), frontend, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Stop()

	if _, err := engine.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := engine.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	plan, err := engine.Step()
	if err != nil {
		t.Fatalf("Step after reset: %v", err)
	}
	if len(plan.PromptTokens) != 0 || len(plan.GenerationTokens) != 0 {
		t.Fatalf("want empty plan after reset, got %+v", plan)
	}
}
