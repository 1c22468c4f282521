// Package config holds the construction-time parameters of an Engine,
// mirroring a device-parameter struct's validate-on-construct shape.
package config

import "github.com/pagedkv/pagedkv/internal/model"

// EngineConfig is the full set of construction-time parameters for a paged
// KV-cache engine (spec.md §9 Configuration).
type EngineConfig struct {
	// BlockSize is the number of tokens held by one logical/physical block.
	// Must be one of model.AllowedBlockSizes.
	BlockSize int
	// NumDeviceBlocks is the size of the fast-tier block pool.
	NumDeviceBlocks int
	// NumHostBlocks is the size of the slow-tier block pool.
	NumHostBlocks int
	// MaxBatchedTokens bounds the sum of prompt lengths admitted into
	// `running` in a single scheduler step (spec.md §4.3 phase 3).
	MaxBatchedTokens int
}

// Reference defaults from spec.md §8's end-to-end scenarios and §6's
// MAX_BATCHED_TOKENS default.
const (
	DefaultBlockSize        = 8
	DefaultNumDeviceBlocks  = 4
	DefaultNumHostBlocks    = 4
	DefaultMaxBatchedTokens = 2048
)

// DefaultConfig returns the reference configuration from spec.md §8's
// end-to-end scenarios: block_size=8, num_device=4, num_host=4, MAX=2048.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		BlockSize:        DefaultBlockSize,
		NumDeviceBlocks:  DefaultNumDeviceBlocks,
		NumHostBlocks:    DefaultNumHostBlocks,
		MaxBatchedTokens: DefaultMaxBatchedTokens,
	}
}

// Validate checks the configuration's compile-time invariants.
func (c EngineConfig) Validate() error {
	if !model.IsBlockSizeValid(c.BlockSize) {
		return model.NewError("Validate", model.ErrBlockSizeInvalid, "block size must be one of {8, 16, 32}")
	}
	if c.NumDeviceBlocks <= 0 {
		return model.NewError("Validate", model.ErrBlockSizeInvalid, "num device blocks must be positive")
	}
	if c.NumHostBlocks <= 0 {
		return model.NewError("Validate", model.ErrBlockSizeInvalid, "num host blocks must be positive")
	}
	if c.MaxBatchedTokens <= 0 {
		return model.NewError("Validate", model.ErrBlockSizeInvalid, "max batched tokens must be positive")
	}
	return nil
}
