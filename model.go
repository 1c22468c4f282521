package pagedkv

import "github.com/pagedkv/pagedkv/internal/model"

// The core data vocabulary — blocks, sequences, sequence groups, and the
// structured error type — lives in internal/model so that internal/alloc,
// internal/blockspace, and internal/scheduler can share it without each
// importing this root package (which itself imports them). These aliases
// re-export that vocabulary as the public API, the same re-export idiom
// constants.go uses for its own internal config package.
type (
	Tier           = model.Tier
	PhysicalBlock  = model.PhysicalBlock
	LogicalBlock   = model.LogicalBlock
	BlockTable     = model.BlockTable
	SequenceStatus = model.SequenceStatus
	Sequence       = model.Sequence
	SamplingParams = model.SamplingParams
	SequenceGroup  = model.SequenceGroup
	ErrorCode      = model.ErrorCode
	Error          = model.Error
)

const (
	Device = model.Device
	Host   = model.Host

	StatusPending  = model.StatusPending
	StatusRunning  = model.StatusRunning
	StatusSwapped  = model.StatusSwapped
	StatusFinished = model.StatusFinished

	ErrOutOfMemory      = model.ErrOutOfMemory
	ErrDoubleFree       = model.ErrDoubleFree
	ErrUnknownSequence  = model.ErrUnknownSequence
	ErrBlockSizeInvalid = model.ErrBlockSizeInvalid
)

var AllowedBlockSizes = model.AllowedBlockSizes

func IsBlockSizeValid(size int) bool { return model.IsBlockSizeValid(size) }

var (
	NewSequence   = model.NewSequence
	NewError      = model.NewError
	NewGroupError = model.NewGroupError
	NewSeqError   = model.NewSeqError
	NewTierError  = model.NewTierError
	WrapError     = model.WrapError
	IsCode        = model.IsCode
)
