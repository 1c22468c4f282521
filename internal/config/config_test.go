package config

import (
	"testing"

	"github.com/pagedkv/pagedkv/internal/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() should validate, got %v", err)
	}
	if cfg.BlockSize != DefaultBlockSize || cfg.NumDeviceBlocks != DefaultNumDeviceBlocks ||
		cfg.NumHostBlocks != DefaultNumHostBlocks || cfg.MaxBatchedTokens != DefaultMaxBatchedTokens {
		t.Fatalf("DefaultConfig() = %+v, want the package defaults", cfg)
	}
}

func TestValidateRejectsBadBlockSize(t *testing.T) {
	for _, size := range []int{0, 1, 7, 9, 15, 17, 33, 64} {
		cfg := DefaultConfig()
		cfg.BlockSize = size
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("block size %d: want error, got nil", size)
		}
		if !model.IsCode(err, model.ErrBlockSizeInvalid) {
			t.Fatalf("block size %d: want ErrBlockSizeInvalid, got %v", size, err)
		}
	}
}

func TestValidateAcceptsAllowedBlockSizes(t *testing.T) {
	for _, size := range []int{8, 16, 32} {
		cfg := DefaultConfig()
		cfg.BlockSize = size
		if err := cfg.Validate(); err != nil {
			t.Fatalf("block size %d: want valid, got %v", size, err)
		}
	}
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*EngineConfig)
	}{
		{"zero device blocks", func(c *EngineConfig) { c.NumDeviceBlocks = 0 }},
		{"negative host blocks", func(c *EngineConfig) { c.NumHostBlocks = -1 }},
		{"zero max batched tokens", func(c *EngineConfig) { c.MaxBatchedTokens = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.fn(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("want error, got nil")
			}
		})
	}
}
