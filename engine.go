package pagedkv

import (
	"context"
	"fmt"
	"time"

	"github.com/pagedkv/pagedkv/internal/blockspace"
	"github.com/pagedkv/pagedkv/internal/config"
	"github.com/pagedkv/pagedkv/internal/logging"
	"github.com/pagedkv/pagedkv/internal/scheduler"
	"github.com/pagedkv/pagedkv/storage"
)

// Sampler produces sampled tokens for a step plan. It stands in for the
// numerical attention/sampling worker spec.md §1 places out of scope
// ("referenced only through the narrow interfaces in §6"); Engine.Run
// drives it purely as an injected collaborator, never implementing
// sampling itself.
type Sampler interface {
	Sample(plan *StepPlan) (map[int]SampledToken, error)
}

// Options configures Engine construction: logger/observer/controller/
// sampler, each with a default or nil-handling described on its field.
type Options struct {
	// Logger receives Debug/Info/Warn/Error calls from the scheduler and
	// block-space manager. Defaults to logging.Default().
	Logger Logger
	// Observer receives scheduling/memory events. Defaults to a
	// MetricsObserver backed by Engine's own Metrics.
	Observer Observer
	// Controller is the first stage of the pipeline chain the step plan is
	// handed to each iteration (spec.md §4.3 phase 4: "hand this plan...
	// to the first controller's execute_stage"). Defaults to a
	// MockController if nil, so Engine.Run works standalone for tests and
	// examples.
	Controller Controller
	// Sampler supplies next-step tokens for Run's automatic PostStep.
	// Required by Run, which returns an error when it is nil; without one,
	// callers drive Step and ApplyTokens themselves.
	Sampler Sampler
}

// EngineState is a coarse lifecycle label for Info()/State().
type EngineState string

const (
	EngineStateCreated EngineState = "created"
	EngineStateRunning EngineState = "running"
	EngineStateStopped EngineState = "stopped"
)

// Engine is the top-level paged KV-cache engine: one scheduler driving one
// block-space manager over a two-tier allocator, plus an in-process
// storage.TierStore that actually moves payload bytes for the swap/copy
// operations a step plan describes — the in-process stand-in for what a
// real worker would do with the plan (spec.md §1's boundary).
type Engine struct {
	cfg      config.EngineConfig
	sched    *scheduler.Scheduler
	store    *storage.TierStore
	logger   Logger
	metrics  *Metrics
	observer Observer

	controller Controller
	sampler    Sampler

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stepped uint64
}

// NewEngine validates cfg and constructs an Engine wired over frontend.
// Options may be nil to take every default.
func NewEngine(ctx context.Context, cfg config.EngineConfig, frontend Frontend, options *Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if frontend == nil {
		return nil, fmt.Errorf("pagedkv: frontend must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if options == nil {
		options = &Options{}
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	metrics := NewMetrics(time.Now())
	var observer Observer = options.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	blocks := blockspace.New(cfg.BlockSize, cfg.NumDeviceBlocks, cfg.NumHostBlocks, logger)
	sched := scheduler.New(frontend, blocks, logger, observer, cfg.MaxBatchedTokens, cfg.BlockSize)
	store := storage.New(cfg.BlockSize, cfg.NumDeviceBlocks, cfg.NumHostBlocks)
	blocks.SetDiscarder(store)

	controller := options.Controller
	if controller == nil {
		controller = NewMockController()
	}

	engineCtx, cancel := context.WithCancel(ctx)
	e := &Engine{
		cfg:        cfg,
		sched:      sched,
		store:      store,
		logger:     logger,
		metrics:    metrics,
		observer:   observer,
		controller: controller,
		sampler:    options.Sampler,
		ctx:        engineCtx,
		cancel:     cancel,
		started:    true,
	}
	logger.Info("engine initialized", "block_size", cfg.BlockSize, "num_device_blocks", cfg.NumDeviceBlocks, "num_host_blocks", cfg.NumHostBlocks)
	return e, nil
}

// applyStorageMoves replays a step plan's block-number maps against the
// in-process tier store: swap-in/out actually migrate payload bytes
// between tiers, and copy-on-write duplicates a device block's payload.
// This is the "worker" side of the boundary spec.md §1 keeps abstract for
// the real numerical kernels; here it is just enough bookkeeping for the
// plan to be locally self-consistent.
func (e *Engine) applyStorageMoves(plan *StepPlan) error {
	for hostBlock, deviceBlock := range plan.BlocksToSwapIn {
		if err := e.store.MoveBlock(Host, hostBlock, Device, deviceBlock); err != nil {
			return fmt.Errorf("pagedkv: swap-in move: %w", err)
		}
	}
	for deviceBlock, hostBlock := range plan.BlocksToSwapOut {
		if err := e.store.MoveBlock(Device, deviceBlock, Host, hostBlock); err != nil {
			return fmt.Errorf("pagedkv: swap-out move: %w", err)
		}
	}
	for src, dst := range plan.BlocksToCopy {
		if err := e.store.CopyBlock(Device, src, dst); err != nil {
			return fmt.Errorf("pagedkv: copy-on-write: %w", err)
		}
	}
	return nil
}

// Step runs exactly one scheduler iteration, moves the described payload
// bytes in the tier store, and hands the plan to the configured
// Controller. It does not apply sampled tokens — callers drive that via
// ApplyTokens (or use Run, which does both when a Sampler is configured).
func (e *Engine) Step() (*StepPlan, error) {
	start := time.Now()
	plan, err := e.sched.Step()
	if err != nil {
		e.logger.Error("step failed", "error", err)
		return nil, err
	}
	if err := e.applyStorageMoves(plan); err != nil {
		e.logger.Error("storage move failed", "error", err)
		return nil, err
	}
	if e.controller != nil {
		if err := e.controller.ExecuteStage(plan); err != nil {
			e.logger.Error("controller execute_stage failed", "error", err)
			return nil, err
		}
	}
	e.stepped++
	latency := time.Since(start)
	if e.observer != nil {
		e.observer.ObserveStep(uint64(latency.Nanoseconds()))
	}
	e.logger.Debug("step complete", "step", e.stepped, "latency_us", latency.Microseconds())
	return plan, nil
}

// ApplyTokens forwards sampled tokens to the scheduler's PostStep,
// finishing/forking sibling sequences as spec.md §4.3 describes.
func (e *Engine) ApplyTokens(next map[int]SampledToken) error {
	return e.sched.PostStep(next)
}

// Run drives Step/ApplyTokens for up to maxSteps iterations (or until ctx
// is done), requiring a configured Sampler to supply next-step tokens: a
// single-goroutine loop over synchronous phases, with no suspension points
// of its own inside one iteration (spec.md §5's "coroutine-free
// scheduling").
func (e *Engine) Run(ctx context.Context, maxSteps int) error {
	if e.sampler == nil {
		return fmt.Errorf("pagedkv: Run requires Options.Sampler")
	}
	if ctx == nil {
		ctx = e.ctx
	}
	for i := 0; maxSteps <= 0 || i < maxSteps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.ctx.Done():
			return e.ctx.Err()
		default:
		}

		plan, err := e.Step()
		if err != nil {
			return err
		}
		next, err := e.sampler.Sample(plan)
		if err != nil {
			return fmt.Errorf("pagedkv: sampler: %w", err)
		}
		if err := e.ApplyTokens(next); err != nil {
			return err
		}
	}
	return nil
}

// State reports the engine's coarse lifecycle state.
func (e *Engine) State() EngineState {
	if e == nil || !e.started {
		return EngineStateCreated
	}
	select {
	case <-e.ctx.Done():
		return EngineStateStopped
	default:
		return EngineStateRunning
	}
}

// EngineInfo summarizes an Engine's configuration and live state.
type EngineInfo struct {
	State            EngineState
	BlockSize        int
	NumDeviceBlocks  int
	NumHostBlocks    int
	MaxBatchedTokens int
	StepsExecuted    uint64
}

// Info returns a point-in-time summary of the engine.
func (e *Engine) Info() EngineInfo {
	if e == nil {
		return EngineInfo{}
	}
	return EngineInfo{
		State:            e.State(),
		BlockSize:        e.cfg.BlockSize,
		NumDeviceBlocks:  e.cfg.NumDeviceBlocks,
		NumHostBlocks:    e.cfg.NumHostBlocks,
		MaxBatchedTokens: e.cfg.MaxBatchedTokens,
		StepsExecuted:    e.stepped,
	}
}

// Metrics returns the engine's live metrics counters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot returns a point-in-time copy of the engine's metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot(time.Now())
}

// Stop cancels the engine's context and marks its metrics stopped. Safe to
// call once; further Run calls on a stopped engine return the engine
// context's error via Run's select, while direct Step calls still run
// (Step itself does not check ctx, matching spec.md §5: model execution is
// delegated, Step itself has no suspension points).
func (e *Engine) Stop() error {
	if e == nil {
		return nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.metrics != nil {
		e.metrics.Stop(time.Now())
	}
	e.logger.Info("engine stopped", "steps_executed", e.stepped)
	return nil
}

// Reset aborts all in-flight work: frees every block table and clears
// every scheduler queue (spec.md §5's only supported bulk cancellation
// primitive).
func (e *Engine) Reset() error {
	return e.sched.Reset()
}
