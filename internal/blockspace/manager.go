// Package blockspace implements the block-space manager (spec.md §4.2), the
// Go translation of cacheflow's BlockSpaceManager: per-sequence block
// tables layered over two internal/alloc tier allocators, with
// copy-on-write append, fork, and swap.
package blockspace

import (
	"github.com/pagedkv/pagedkv/internal/alloc"
	"github.com/pagedkv/pagedkv/internal/interfaces"
	"github.com/pagedkv/pagedkv/internal/model"
)

// Discarder receives a callback every time Free or Reset drops a physical
// block's ref_count to zero, so a data-plane payload store
// (storage.TierStore) can zero its bytes before the block is handed to a
// new owner. The frees inside Append's copy-on-write and SwapIn/SwapOut do
// not call it. Optional: a
// nil Discarder just skips the callback, since not every caller (tests,
// the allocator's own unit tests) needs a payload store wired in.
type Discarder interface {
	DiscardBlock(tier model.Tier, blockNumber int) error
}

// Manager owns the device/host tier allocators and every sequence's block
// table. It is not safe for concurrent use; the scheduler is its sole
// caller and already serializes access (spec.md §5).
type Manager struct {
	blockSize int
	device    *alloc.Allocator
	host      *alloc.Allocator

	// blockTables maps seq_id -> ordered physical block numbers, all drawn
	// from whichever tier currently holds that sequence.
	blockTables map[int]model.BlockTable
	// tierOf tracks which tier each block table currently lives in, since
	// a BlockTable alone doesn't carry its tier.
	tierOf map[int]model.Tier

	logger    interfaces.Logger
	discarder Discarder
}

// New creates a block-space manager over fresh device/host tier pools.
func New(blockSize, numDeviceBlocks, numHostBlocks int, logger interfaces.Logger) *Manager {
	return &Manager{
		blockSize:   blockSize,
		device:      alloc.New(model.Device, numDeviceBlocks),
		host:        alloc.New(model.Host, numHostBlocks),
		blockTables: make(map[int]model.BlockTable),
		tierOf:      make(map[int]model.Tier),
		logger:      logger,
	}
}

func (m *Manager) allocatorFor(tier model.Tier) *alloc.Allocator {
	if tier == model.Host {
		return m.host
	}
	return m.device
}

// SetDiscarder wires d as the manager's payload-discard callback. Call
// once after construction; nil disables the callback.
func (m *Manager) SetDiscarder(d Discarder) {
	m.discarder = d
}

// freeBlock frees one physical block at tier, invoking the discarder only
// when this call actually dropped the block's ref_count to zero — a block
// still referenced by another sibling must keep its payload intact.
func (m *Manager) freeBlock(tier model.Tier, blockNumber int) error {
	freed, err := m.allocatorFor(tier).Free(blockNumber)
	if err != nil {
		return err
	}
	if freed && m.discarder != nil {
		if err := m.discarder.DiscardBlock(tier, blockNumber); err != nil {
			return err
		}
	}
	return nil
}

// CanAllocate reports whether the device tier has enough free blocks for
// seq_group's shared prompt (every sibling shares an identical prompt, so
// only seqs[0]'s logical block count matters).
func (m *Manager) CanAllocate(group *model.SequenceGroup) bool {
	seq := group.Seqs[0]
	return seq.NumLogicalBlocks() <= m.device.NumFree()
}

// Allocate assigns a fresh device block table to every sibling in group,
// sharing one physical block per logical position across all siblings
// (ref_count == num_seqs).
func (m *Manager) Allocate(group *model.SequenceGroup) error {
	seq := group.Seqs[0]
	table := make(model.BlockTable, 0, seq.NumLogicalBlocks())
	for i := 0; i < seq.NumLogicalBlocks(); i++ {
		block, err := m.device.Allocate()
		if err != nil {
			return err
		}
		m.device.SetRefCount(block, group.NumSeqs())
		table = append(table, block)
	}
	for _, s := range group.Seqs {
		m.blockTables[s.SeqID] = table.Clone()
		m.tierOf[s.SeqID] = model.Device
	}
	m.logger.Debug("allocated block table", "group", group.GroupID, "num_blocks", len(table), "num_seqs", group.NumSeqs())
	return nil
}

// CanAppend reports whether there is at least one free device block per
// running sibling — a conservative heuristic, not a tight bound (spec.md
// §4.2's documented limitation: it overestimates demand when only some
// siblings actually need a new physical block this step).
func (m *Manager) CanAppend(group *model.SequenceGroup) bool {
	numSeqs := group.NumSeqsWithStatus(model.StatusRunning)
	return numSeqs <= m.device.NumFree()
}

// Append allocates a physical slot for seq's newest token, returning a
// non-nil (src, dst) copy-on-write pair when the last block had to be
// copied because it was shared with another sibling.
func (m *Manager) Append(seq *model.Sequence) (cow *[2]int, err error) {
	logicalBlocks := seq.LogicalBlocks()
	table := m.blockTables[seq.SeqID]
	if table == nil {
		return nil, model.NewSeqError("Append", seq.SeqID, model.ErrUnknownSequence, "no block table for sequence")
	}

	if len(table) < len(logicalBlocks) {
		block, err := m.device.Allocate()
		if err != nil {
			return nil, err
		}
		table = append(table, block)
		m.blockTables[seq.SeqID] = table
		m.logger.Debug("appended new block", "seq", seq.SeqID, "block", block)
		return nil, nil
	}

	last := table[len(table)-1]
	if m.device.RefCount(last) == 1 {
		return nil, nil
	}

	newBlock, err := m.device.Allocate()
	if err != nil {
		return nil, err
	}
	table[len(table)-1] = newBlock
	// A bare allocator Free, not m.freeBlock: the engine's pending
	// BlocksToCopy entry still needs to read last's payload to populate
	// newBlock before last's bytes can be discarded.
	if _, err := m.device.Free(last); err != nil {
		return nil, err
	}
	m.logger.Debug("copy-on-write", "seq", seq.SeqID, "src", last, "dst", newBlock)
	return &[2]int{last, newBlock}, nil
}

// Fork copies parent's block table onto child, bumping every block's
// ref_count. Never allocates, so it can never fail with OOM.
func (m *Manager) Fork(parent, child *model.Sequence) {
	src := m.blockTables[parent.SeqID]
	dst := src.Clone()
	tier := m.tierOf[parent.SeqID]
	for _, block := range src {
		m.allocatorFor(tier).IncRef(block)
	}
	m.blockTables[child.SeqID] = dst
	m.tierOf[child.SeqID] = tier
	m.logger.Debug("forked block table", "parent", parent.SeqID, "child", child.SeqID, "num_blocks", len(dst))
}

// livePhysicalBlocks returns the deduplicated physical blocks backing
// group's non-finished siblings (block_manager.py's _get_physical_blocks).
func (m *Manager) livePhysicalBlocks(group *model.SequenceGroup) []int {
	seen := make(map[int]struct{})
	var blocks []int
	for _, s := range group.Seqs {
		if s.Status == model.StatusFinished {
			continue
		}
		for _, b := range m.blockTables[s.SeqID] {
			if _, ok := seen[b]; !ok {
				seen[b] = struct{}{}
				blocks = append(blocks, b)
			}
		}
	}
	return blocks
}

// CanSwapIn conservatively estimates whether group's host-resident blocks
// fit the device tier, assuming every swapped sibling will also need one
// fresh block right after swap-in (mirrors CanAppend's heuristic).
func (m *Manager) CanSwapIn(group *model.SequenceGroup) bool {
	blocks := m.livePhysicalBlocks(group)
	numSwapped := group.NumSeqsWithStatus(model.StatusSwapped)
	return len(blocks)+numSwapped <= m.device.NumFree()
}

// SwapIn moves every non-finished sibling's block table from host to
// device, returning the host->device block number mapping applied (for the
// plan's BlocksToSwapIn).
func (m *Manager) SwapIn(group *model.SequenceGroup) (map[int]int, error) {
	mapping := make(map[int]int)
	for _, s := range group.Seqs {
		if s.Status == model.StatusFinished {
			continue
		}
		oldTable := m.blockTables[s.SeqID]
		newTable := make(model.BlockTable, 0, len(oldTable))
		for _, hostBlock := range oldTable {
			deviceBlock, ok := mapping[hostBlock]
			if ok {
				m.device.IncRef(deviceBlock)
			} else {
				var err error
				deviceBlock, err = m.device.Allocate()
				if err != nil {
					return nil, err
				}
				mapping[hostBlock] = deviceBlock
			}
			newTable = append(newTable, deviceBlock)
			// A bare allocator Free, not m.freeBlock: the host payload this
			// block still holds is read by the engine's pending MoveBlock
			// once the plan comes back, so it must not be discarded yet.
			if _, err := m.host.Free(hostBlock); err != nil {
				return nil, err
			}
		}
		m.blockTables[s.SeqID] = newTable
		m.tierOf[s.SeqID] = model.Device
	}
	m.logger.Debug("swapped in", "group", group.GroupID, "num_blocks", len(mapping))
	return mapping, nil
}

// CanSwapOut reports whether group's live device blocks fit the host tier.
func (m *Manager) CanSwapOut(group *model.SequenceGroup) bool {
	blocks := m.livePhysicalBlocks(group)
	return len(blocks) <= m.host.NumFree()
}

// SwapOut moves every non-finished sibling's block table from device to
// host, returning the device->host mapping applied (for the plan's
// BlocksToSwapOut).
func (m *Manager) SwapOut(group *model.SequenceGroup) (map[int]int, error) {
	mapping := make(map[int]int)
	for _, s := range group.Seqs {
		if s.Status == model.StatusFinished {
			continue
		}
		oldTable := m.blockTables[s.SeqID]
		newTable := make(model.BlockTable, 0, len(oldTable))
		for _, deviceBlock := range oldTable {
			hostBlock, ok := mapping[deviceBlock]
			if ok {
				m.host.IncRef(hostBlock)
			} else {
				var err error
				hostBlock, err = m.host.Allocate()
				if err != nil {
					return nil, err
				}
				mapping[deviceBlock] = hostBlock
			}
			newTable = append(newTable, hostBlock)
			// Same reasoning as SwapIn: the engine's pending MoveBlock still
			// needs to read this device block's payload before it is gone.
			if _, err := m.device.Free(deviceBlock); err != nil {
				return nil, err
			}
		}
		m.blockTables[s.SeqID] = newTable
		m.tierOf[s.SeqID] = model.Host
	}
	m.logger.Debug("swapped out", "group", group.GroupID, "num_blocks", len(mapping))
	return mapping, nil
}

// freeTable releases every block in table at tier. Unlike the CoW/swap free
// sites, nothing downstream still needs these bytes, so a block that
// returns to the free list here is discarded immediately.
func (m *Manager) freeTable(table model.BlockTable, tier model.Tier) error {
	for _, block := range table {
		if err := m.freeBlock(tier, block); err != nil {
			return err
		}
	}
	return nil
}

// Free releases seq's block table entirely, removing it from the manager.
func (m *Manager) Free(seq *model.Sequence) error {
	table, ok := m.blockTables[seq.SeqID]
	if !ok {
		return nil
	}
	if err := m.freeTable(table, m.tierOf[seq.SeqID]); err != nil {
		return err
	}
	delete(m.blockTables, seq.SeqID)
	delete(m.tierOf, seq.SeqID)
	return nil
}

// Reset frees every tracked block table, returning the manager to its
// just-constructed state.
func (m *Manager) Reset() error {
	for seqID, table := range m.blockTables {
		if err := m.freeTable(table, m.tierOf[seqID]); err != nil {
			return err
		}
	}
	m.blockTables = make(map[int]model.BlockTable)
	m.tierOf = make(map[int]model.Tier)
	return nil
}

// GetBlockTable returns seq's current physical block numbers, in order.
func (m *Manager) GetBlockTable(seq *model.Sequence) model.BlockTable {
	return m.blockTables[seq.SeqID].Clone()
}

// NumFreeDevice returns the device tier's free block count.
func (m *Manager) NumFreeDevice() int {
	return m.device.NumFree()
}

// NumFreeHost returns the host tier's free block count.
func (m *Manager) NumFreeHost() int {
	return m.host.NumFree()
}
