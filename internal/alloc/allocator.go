// Package alloc implements the single-tier block allocator (spec.md §4.1),
// the Go equivalent of cacheflow's BlockManager: a LIFO free list of block
// handles with refcounted allocate/free, generalized from a pre-sized
// buffer pool idiom (pooled byte slices) to pooled integer block
// identities.
package alloc

import "github.com/pagedkv/pagedkv/internal/model"

// Allocator hands out refcounted physical block numbers for one tier. It is
// not safe for concurrent use; callers serialize access the same way the
// scheduler serializes calls into the block-space manager (spec.md §5).
type Allocator struct {
	tier     model.Tier
	numTotal int

	// freeList holds block numbers with ref_count == 0, LIFO (a plain
	// pop()/append() free-list discipline).
	freeList []int
	refCount []int
}

// New creates an allocator for the given tier with numBlocks pre-allocated
// block numbers [0, numBlocks) all initially free.
func New(tier model.Tier, numBlocks int) *Allocator {
	a := &Allocator{
		tier:     tier,
		numTotal: numBlocks,
		freeList: make([]int, numBlocks),
		refCount: make([]int, numBlocks),
	}
	for i := 0; i < numBlocks; i++ {
		a.freeList[i] = i
	}
	return a
}

// Allocate pops one free block and sets its ref_count to 1.
func (a *Allocator) Allocate() (int, error) {
	if len(a.freeList) == 0 {
		return 0, model.NewTierError("Allocate", a.tier, model.ErrOutOfMemory, "no free blocks available")
	}
	n := len(a.freeList) - 1
	block := a.freeList[n]
	a.freeList = a.freeList[:n]
	a.refCount[block] = 1
	return block, nil
}

// SetRefCount sets a just-allocated block's ref_count directly, used when a
// block is immediately shared across every sibling in a group (spec.md
// §4.2's allocate, mirroring block_manager.py's `block.ref_count =
// seq_group.num_seqs()`).
func (a *Allocator) SetRefCount(blockNumber, refCount int) {
	a.refCount[blockNumber] = refCount
}

// RefCount returns a block's current reference count.
func (a *Allocator) RefCount(blockNumber int) int {
	return a.refCount[blockNumber]
}

// IncRef increments a block's reference count (used by fork and by
// swap mapping reuse).
func (a *Allocator) IncRef(blockNumber int) {
	a.refCount[blockNumber]++
}

// Free decrements a block's ref_count, returning it to the free list once
// the count reaches zero. The returned bool reports whether this call was
// the one that dropped the count to zero, so callers that also manage a
// data-plane payload (storage.TierStore) know exactly when it is safe to
// discard it — every other sibling still holding a reference must not see
// its payload zeroed out from under it.
func (a *Allocator) Free(blockNumber int) (bool, error) {
	if a.refCount[blockNumber] == 0 {
		return false, model.NewTierError("Free", a.tier, model.ErrDoubleFree, "block is already freed")
	}
	a.refCount[blockNumber]--
	if a.refCount[blockNumber] == 0 {
		a.freeList = append(a.freeList, blockNumber)
		return true, nil
	}
	return false, nil
}

// NumFree returns the number of currently free blocks.
func (a *Allocator) NumFree() int {
	return len(a.freeList)
}

// NumTotal returns the tier's total block count.
func (a *Allocator) NumTotal() int {
	return a.numTotal
}

// Tier returns the tier this allocator manages.
func (a *Allocator) Tier() model.Tier {
	return a.tier
}
