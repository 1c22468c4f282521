// Package interfaces provides internal interface definitions for pagedkv.
// These are separate from the public interfaces (package pagedkv) to avoid
// a circular import between the root package and the internal packages
// (internal/scheduler, internal/blockspace) that need the same contracts
// but are themselves imported by the root package.
package interfaces

// StepPlan is the payload handed to the first Controller in the chain once
// per scheduler iteration (§4.3, §6).
type StepPlan struct {
	// PromptTokens maps seq_id -> token ids, populated only for
	// prompt-iteration sequences (num_steps == 0 for their group).
	PromptTokens map[int][]int
	// GenerationTokens maps seq_id -> the most recently sampled token id,
	// populated only for generation-iteration sequences.
	GenerationTokens map[int]int
	// ContextLens maps seq_id -> current token count, populated alongside
	// GenerationTokens.
	ContextLens map[int]int
	// BlockTables maps seq_id -> its full, in-order physical block number
	// list.
	BlockTables map[int][]int

	// BlocksToSwapIn maps host block number -> device block number.
	BlocksToSwapIn map[int]int
	// BlocksToSwapOut maps device block number -> host block number.
	BlocksToSwapOut map[int]int
	// BlocksToCopy maps source device block number -> destination device
	// block number (copy-on-write).
	BlocksToCopy map[int]int
}

// NewStepPlan returns a StepPlan with every map initialized empty.
func NewStepPlan() *StepPlan {
	return &StepPlan{
		PromptTokens:     make(map[int][]int),
		GenerationTokens: make(map[int]int),
		ContextLens:      make(map[int]int),
		BlockTables:      make(map[int][]int),
		BlocksToSwapIn:   make(map[int]int),
		BlocksToSwapOut:  make(map[int]int),
		BlocksToCopy:     make(map[int]int),
	}
}

// SampledToken is one sampler result for a running sibling: ParentSeqID
// equal to the sibling's own seq_id means ordinary continuation; different
// means the sampler chose a beam-search fork from that parent.
type SampledToken struct {
	ParentSeqID int
	TokenID     int
}

// Frontend is the narrow inbound/outbound contract to request ingress
// (§4.4). Implementations must tolerate GetInputs being called concurrently
// with whatever populates it (§5's documented ingress hazard) — either by
// draining a thread-safe queue, or by being driven from a single goroutine
// that also owns the producer.
type Frontend interface {
	// GetInputs drains and returns newly arrived (group, params) pairs.
	GetInputs() []FrontendInput
	// PrintResponse is called exactly once per group, when every sibling
	// has finished.
	PrintResponse(groupID int)
}

// FrontendInput pairs a group identifier with its sampling parameters and
// sibling seed data, the shape a Frontend hands the Scheduler.
type FrontendInput struct {
	GroupID        int
	PromptTokenIDs []int
	NumSeqs        int
	StopTokenIDs   map[int]struct{}
	MaxNumSteps    int
}

// Controller is one stage of the pipeline chain; the scheduler hands the
// step plan to the first controller in the chain.
type Controller interface {
	ExecuteStage(plan *StepPlan) error
}

// Logger is the narrow logging contract scheduler/blockspace code depends
// on, satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives scheduling/memory-management events.
type Observer interface {
	ObserveStep(latencyNs uint64)
	ObserveQueueDepth(depth uint32)
	ObserveAdmission()
	ObservePreemption()
	ObserveSwapIn()
	ObserveSwapOut()
	ObserveCoW()
	ObserveBlocksAllocated(n int)
	ObserveBlocksFreed(n int)
	ObserveSequenceFinished()
}
