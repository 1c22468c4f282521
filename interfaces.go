package pagedkv

import "github.com/pagedkv/pagedkv/internal/interfaces"

// StepPlan, Frontend and Controller are the public faces of the narrow
// inbound/outbound contract described in spec.md §4.4/§6. They live in
// internal/interfaces and are re-exported here the same way model.go
// re-exports internal/model, so external callers never import an internal
// package directly.
type (
	StepPlan      = interfaces.StepPlan
	SampledToken  = interfaces.SampledToken
	Frontend      = interfaces.Frontend
	FrontendInput = interfaces.FrontendInput
	Controller    = interfaces.Controller
	// Logger is the narrow logging contract the scheduler/blockspace
	// packages depend on; *logging.Logger satisfies it structurally, and
	// external callers may supply any implementation without importing
	// the internal logging package.
	Logger = interfaces.Logger
)

var NewStepPlan = interfaces.NewStepPlan
