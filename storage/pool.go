package storage

import "sync"

// stagingPool hands out reusable byte buffers for moving one block's
// payload during swap or copy, a size-bucketed sync.Pool collapsed to one
// bucket since every buffer here is exactly one block's payload.
type stagingPool struct {
	pool sync.Pool
}

func newStagingPool(payloadSize int) *stagingPool {
	return &stagingPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, payloadSize)
				return &b
			},
		},
	}
}

// Get returns a pooled buffer sized to one block's payload.
func (p *stagingPool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

// Put returns buf to the pool.
func (p *stagingPool) Put(buf []byte) {
	p.pool.Put(&buf)
}
