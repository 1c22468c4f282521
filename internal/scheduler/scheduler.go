// Package scheduler implements the FCFS request scheduler (spec.md §4.3),
// the Go translation of cacheflow's Scheduler: a single-goroutine phase
// loop driving admission, preemption, and swap over a blockspace.Manager,
// shaped after a per-queue processing-loop state machine: one goroutine
// draining a batch of state transitions per iteration.
package scheduler

import (
	"github.com/pagedkv/pagedkv/internal/blockspace"
	"github.com/pagedkv/pagedkv/internal/interfaces"
	"github.com/pagedkv/pagedkv/internal/model"
)

// Scheduler owns the running/swapped/pending queues and drives one block
// manager. Not safe for concurrent use: Step and PostStep are meant to be
// called from a single engine goroutine (spec.md §5).
type Scheduler struct {
	frontend interfaces.Frontend
	blocks   *blockspace.Manager
	logger   interfaces.Logger
	observer interfaces.Observer

	maxBatchedTokens int
	// seedBlockSize is the block size newly fetched pending sequences are
	// built with; the scheduler has no other source of truth for it once
	// running is empty.
	seedBlockSize int

	running []*model.SequenceGroup
	swapped []*model.SequenceGroup
	pending []*model.SequenceGroup

	numSteps       map[int]int
	samplingParams map[int]model.SamplingParams
}

// New creates a scheduler over blocks, fed by frontend. blockSize seeds the
// logical blocks of every newly admitted sequence.
func New(frontend interfaces.Frontend, blocks *blockspace.Manager, logger interfaces.Logger, observer interfaces.Observer, maxBatchedTokens, blockSize int) *Scheduler {
	return &Scheduler{
		frontend:         frontend,
		blocks:           blocks,
		logger:           logger,
		observer:         observer,
		maxBatchedTokens: maxBatchedTokens,
		seedBlockSize:    blockSize,
		numSteps:         make(map[int]int),
		samplingParams:   make(map[int]model.SamplingParams),
	}
}

func (s *Scheduler) fetchInputs() {
	for _, in := range s.frontend.GetInputs() {
		g := &model.SequenceGroup{GroupID: in.GroupID}
		for i := 0; i < in.NumSeqs; i++ {
			g.Seqs = append(g.Seqs, model.NewSequence(in.GroupID*1000+i, append([]int(nil), in.PromptTokenIDs...), s.blockSize()))
		}
		s.pending = append(s.pending, g)
		s.samplingParams[in.GroupID] = model.SamplingParams{
			StopTokenIDs: in.StopTokenIDs,
			MaxNumSteps:  in.MaxNumSteps,
		}
	}
}

func (s *Scheduler) blockSize() int {
	return s.seedBlockSize
}

func (s *Scheduler) freeSeq(seq *model.Sequence) error {
	n := len(s.blocks.GetBlockTable(seq))
	seq.Status = model.StatusFinished
	if err := s.blocks.Free(seq); err != nil {
		return err
	}
	s.observer.ObserveBlocksFreed(n)
	return nil
}

func (s *Scheduler) allocate(group *model.SequenceGroup) error {
	if err := s.blocks.Allocate(group); err != nil {
		return err
	}
	for _, seq := range group.Seqs {
		seq.Status = model.StatusRunning
	}
	s.running = append(s.running, group)
	s.numSteps[group.GroupID] = 0
	s.observer.ObserveAdmission()
	s.observer.ObserveBlocksAllocated(group.Seqs[0].NumLogicalBlocks())
	return nil
}

func (s *Scheduler) appendGroup(group *model.SequenceGroup, blocksToCopy map[int]int) error {
	for _, seq := range group.Seqs {
		if seq.Status == model.StatusFinished {
			continue
		}
		cow, err := s.blocks.Append(seq)
		if err != nil {
			return err
		}
		if cow != nil {
			blocksToCopy[cow[0]] = cow[1]
			s.observer.ObserveCoW()
		}
	}
	return nil
}

func (s *Scheduler) swapIn(group *model.SequenceGroup, blocksToSwapIn map[int]int) error {
	mapping, err := s.blocks.SwapIn(group)
	if err != nil {
		return err
	}
	for k, v := range mapping {
		blocksToSwapIn[k] = v
	}
	for _, seq := range group.Seqs {
		if seq.Status == model.StatusSwapped {
			seq.Status = model.StatusRunning
		}
	}
	s.running = append(s.running, group)
	s.observer.ObserveSwapIn()
	s.logger.Debug("swapped in group", "group", group.GroupID, "num_blocks", len(mapping))
	return nil
}

func (s *Scheduler) swapOut(group *model.SequenceGroup, blocksToSwapOut map[int]int) error {
	mapping, err := s.blocks.SwapOut(group)
	if err != nil {
		return err
	}
	for k, v := range mapping {
		blocksToSwapOut[k] = v
	}
	for _, seq := range group.Seqs {
		if seq.Status == model.StatusRunning {
			seq.Status = model.StatusSwapped
		}
	}
	s.swapped = append(s.swapped, group)
	s.observer.ObserveSwapOut()
	s.observer.ObservePreemption()
	s.logger.Debug("swapped out group", "group", group.GroupID, "num_blocks", len(mapping))
	return nil
}

// Step runs one scheduling iteration: reserve-or-preempt running groups,
// swap in swapped groups if room allows, admit pending groups under the
// batched-token budget, then emits a StepPlan for the pipeline's first
// Controller (spec.md §4.3, phases 1-4). It does not itself invoke the
// controller — the engine does that, so Step stays pure and testable.
func (s *Scheduler) Step() (*interfaces.StepPlan, error) {
	plan := interfaces.NewStepPlan()

	// Phase 1: reserve new slots for running groups, preempting the most
	// recently admitted ones (highest index) first on OOM.
	victimIdx := len(s.running) - 1
	for i := 0; i < len(s.running); i++ {
		if i > victimIdx {
			break
		}
		group := s.running[i]
		canAppend := s.blocks.CanAppend(group)
		for !canAppend && i <= victimIdx {
			victim := s.running[victimIdx]
			if err := s.swapOut(victim, plan.BlocksToSwapOut); err != nil {
				return nil, err
			}
			victimIdx--
			if i > victimIdx {
				break
			}
			canAppend = s.blocks.CanAppend(group)
		}
		if i <= victimIdx {
			if err := s.appendGroup(group, plan.BlocksToCopy); err != nil {
				return nil, err
			}
		}
	}
	s.running = s.running[:victimIdx+1]

	// Phase 2: swap in, LIFO, stopping at the first group that doesn't fit.
	allSwappedIn := true
	for i := len(s.swapped) - 1; i >= 0; i-- {
		group := s.swapped[i]
		if !s.blocks.CanSwapIn(group) {
			s.swapped = s.swapped[:i+1]
			allSwappedIn = false
			break
		}
		if err := s.swapIn(group, plan.BlocksToSwapIn); err != nil {
			return nil, err
		}
		if err := s.appendGroup(group, plan.BlocksToCopy); err != nil {
			return nil, err
		}
	}
	if allSwappedIn {
		s.swapped = nil
	}

	numBatchedTokens := 0
	for _, group := range s.running {
		numBatchedTokens += group.NumSeqsWithStatus(model.StatusRunning)
	}

	// Phase 3: admit pending groups, only while nothing is swapped (a
	// pending group must never jump ahead of a swapped one).
	if len(s.swapped) == 0 {
		s.fetchInputs()
		admitted := len(s.pending)
		for i, group := range s.pending {
			numPromptTokens := group.Seqs[0].GetLen()
			if s.blocks.CanAllocate(group) && numBatchedTokens+numPromptTokens <= s.maxBatchedTokens {
				if err := s.allocate(group); err != nil {
					return nil, err
				}
				s.logger.Debug("admitted group", "group", group.GroupID, "num_prompt_tokens", numPromptTokens)
				numBatchedTokens += numPromptTokens
				continue
			}
			s.logger.Debug("admission stopped", "group", group.GroupID, "num_batched_tokens", numBatchedTokens)
			admitted = i
			break
		}
		s.pending = s.pending[admitted:]
	}

	// Phase 4: build the step plan from every running group's sequences.
	for _, group := range s.running {
		numSteps := s.numSteps[group.GroupID]
		isPrompt := numSteps == 0
		for _, seq := range group.Seqs {
			if seq.Status != model.StatusRunning {
				continue
			}
			plan.BlockTables[seq.SeqID] = s.blocks.GetBlockTable(seq)
			if isPrompt {
				plan.PromptTokens[seq.SeqID] = seq.GetTokenIDs()
			} else {
				tokens := seq.GetTokenIDs()
				plan.GenerationTokens[seq.SeqID] = tokens[len(tokens)-1]
				plan.ContextLens[seq.SeqID] = seq.GetLen()
			}
		}
	}

	s.observer.ObserveQueueDepth(uint32(len(s.running) + len(s.swapped) + len(s.pending)))
	return plan, nil
}

// PostStep applies sampled tokens to every running group's siblings,
// handling beam-search forks, stop tokens, and max-step termination, then
// returns finished groups to the frontend (spec.md §4.3 post_step).
func (s *Scheduler) PostStep(nextTokens map[int]interfaces.SampledToken) error {
	var stillRunning []*model.SequenceGroup
	for _, group := range s.running {
		groupID := group.GroupID
		s.numSteps[groupID]++
		params := s.samplingParams[groupID]

		for _, seq := range group.Seqs {
			if seq.Status == model.StatusFinished {
				continue
			}
			sampled, ok := nextTokens[seq.SeqID]
			if !ok {
				continue
			}
			if sampled.ParentSeqID != seq.SeqID {
				if err := s.blocks.Free(seq); err != nil {
					return err
				}
				parent, err := group.Find(sampled.ParentSeqID)
				if err != nil {
					return err
				}
				seq.SetLogicalBlocks(parent.LogicalBlocks())
				s.blocks.Fork(parent, seq)
			}

			seq.Append([]int{sampled.TokenID})

			if params.StopsOn(sampled.TokenID) {
				if err := s.freeSeq(seq); err != nil {
					return err
				}
				continue
			}
			if s.numSteps[groupID] == params.MaxNumSteps {
				if err := s.freeSeq(seq); err != nil {
					return err
				}
			}
		}

		if group.IsFinished() {
			s.returnGroup(group)
		} else {
			stillRunning = append(stillRunning, group)
		}
	}
	s.running = stillRunning
	return nil
}

// Reset aborts all in-flight work: frees every tracked block table and
// clears running/swapped/pending plus the per-group ancillary maps
// (spec.md §5's only supported bulk cancellation primitive).
func (s *Scheduler) Reset() error {
	if err := s.blocks.Reset(); err != nil {
		return err
	}
	s.running = nil
	s.swapped = nil
	s.pending = nil
	s.numSteps = make(map[int]int)
	s.samplingParams = make(map[int]model.SamplingParams)
	return nil
}

func (s *Scheduler) returnGroup(group *model.SequenceGroup) {
	delete(s.numSteps, group.GroupID)
	delete(s.samplingParams, group.GroupID)
	s.observer.ObserveSequenceFinished()
	s.frontend.PrintResponse(group.GroupID)
}
