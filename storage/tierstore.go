// Package storage simulates the byte-level KV-cache payload that would
// really live in GPU/pinned-host memory, standing in for the worker's
// actual tensor storage so swap and copy-on-write operations have
// something concrete to move. Shaped after a sharded in-memory RAM-disk
// (one lock per shard, flat backing buffer), re-keyed from byte offsets
// to block numbers since here the natural locking unit is one physical
// block, not a byte range.
package storage

import (
	"fmt"
	"sync"

	"github.com/pagedkv/pagedkv/internal/model"
)

// TierStore holds one fixed-size byte payload per physical block per tier,
// guarded by a per-block lock so concurrent swap/copy traffic on distinct
// blocks never contends.
type TierStore struct {
	blockSize int // bytes per block payload (BytesPerToken * token capacity)

	device []blockSlot
	host   []blockSlot
	staged *stagingPool
}

type blockSlot struct {
	mu   sync.RWMutex
	data []byte
}

// BytesPerToken is the simulated per-token payload width. The exact figure
// is arbitrary — this store never feeds a real attention kernel — but a
// nonzero width keeps ReadBlock/WriteBlock exercising real copies instead
// of degenerating into a no-op.
const BytesPerToken = 4

// New creates a tier store sized for numDeviceBlocks/numHostBlocks blocks,
// each holding blockSize*BytesPerToken bytes.
func New(blockSize, numDeviceBlocks, numHostBlocks int) *TierStore {
	payloadSize := blockSize * BytesPerToken
	s := &TierStore{
		blockSize: payloadSize,
		device:    make([]blockSlot, numDeviceBlocks),
		host:      make([]blockSlot, numHostBlocks),
		staged:    newStagingPool(payloadSize),
	}
	for i := range s.device {
		s.device[i].data = make([]byte, payloadSize)
	}
	for i := range s.host {
		s.host[i].data = make([]byte, payloadSize)
	}
	return s
}

func (s *TierStore) slots(tier model.Tier) ([]blockSlot, error) {
	switch tier {
	case model.Device:
		return s.device, nil
	case model.Host:
		return s.host, nil
	default:
		return nil, fmt.Errorf("storage: unknown tier %v", tier)
	}
}

func (s *TierStore) slot(tier model.Tier, blockNumber int) (*blockSlot, error) {
	slots, err := s.slots(tier)
	if err != nil {
		return nil, err
	}
	if blockNumber < 0 || blockNumber >= len(slots) {
		return nil, fmt.Errorf("storage: block %d out of range for tier %v", blockNumber, tier)
	}
	return &slots[blockNumber], nil
}

// ReadBlock returns a copy of the payload stored at (tier, blockNumber).
func (s *TierStore) ReadBlock(tier model.Tier, blockNumber int) ([]byte, error) {
	slot, err := s.slot(tier, blockNumber)
	if err != nil {
		return nil, err
	}
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	out := make([]byte, len(slot.data))
	copy(out, slot.data)
	return out, nil
}

// WriteBlock overwrites the payload stored at (tier, blockNumber).
func (s *TierStore) WriteBlock(tier model.Tier, blockNumber int, payload []byte) error {
	slot, err := s.slot(tier, blockNumber)
	if err != nil {
		return err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	copy(slot.data, payload)
	return nil
}

// CopyBlock duplicates srcBlock's payload onto dstBlock within the same
// tier, the data-plane counterpart of a block-space copy-on-write. The
// payload is staged through a pooled buffer (stagingPool) rather than held
// under both blocks' locks at once, the same way runner.go's I/O hot path
// stages into a GetBuffer/PutBuffer buffer instead of holding a backend
// lock across the whole read-then-write.
func (s *TierStore) CopyBlock(tier model.Tier, srcBlock, dstBlock int) error {
	src, err := s.slot(tier, srcBlock)
	if err != nil {
		return err
	}
	dst, err := s.slot(tier, dstBlock)
	if err != nil {
		return err
	}

	buf := s.staged.Get()
	defer s.staged.Put(buf)

	src.mu.RLock()
	copy(buf, src.data)
	src.mu.RUnlock()

	dst.mu.Lock()
	copy(dst.data, buf)
	dst.mu.Unlock()
	return nil
}

// MoveBlock copies srcBlock's payload from srcTier onto dstBlock in
// dstTier and discards the source, the data-plane counterpart of one
// swap-in/swap-out block number pair. Staged through the same pooled
// buffer as CopyBlock, which also means src and dst are never locked
// simultaneously.
func (s *TierStore) MoveBlock(srcTier model.Tier, srcBlock int, dstTier model.Tier, dstBlock int) error {
	src, err := s.slot(srcTier, srcBlock)
	if err != nil {
		return err
	}
	dst, err := s.slot(dstTier, dstBlock)
	if err != nil {
		return err
	}

	buf := s.staged.Get()
	defer s.staged.Put(buf)

	src.mu.Lock()
	copy(buf, src.data)
	for i := range src.data {
		src.data[i] = 0
	}
	src.mu.Unlock()

	dst.mu.Lock()
	copy(dst.data, buf)
	dst.mu.Unlock()
	return nil
}

// DiscardBlock zeroes a block's payload, used when a block returns to its
// tier's free list.
func (s *TierStore) DiscardBlock(tier model.Tier, blockNumber int) error {
	slot, err := s.slot(tier, blockNumber)
	if err != nil {
		return err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	for i := range slot.data {
		slot.data[i] = 0
	}
	return nil
}
