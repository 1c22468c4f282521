package pagedkv

import "github.com/pagedkv/pagedkv/internal/config"

// Re-export configuration defaults for the public API.
const (
	DefaultBlockSize        = config.DefaultBlockSize
	DefaultNumDeviceBlocks  = config.DefaultNumDeviceBlocks
	DefaultNumHostBlocks    = config.DefaultNumHostBlocks
	DefaultMaxBatchedTokens = config.DefaultMaxBatchedTokens
)

// EngineConfig and DefaultConfig re-export internal/config's construction
// parameters, validated via Validate() (spec.md §6, §7 ErrBlockSizeInvalid).
type EngineConfig = config.EngineConfig

var DefaultConfig = config.DefaultConfig
