package malloc

import "sync/atomic"
import "unsafe"

import "github.com/bnclabs/gomemory/api"

// Noderesource is a single-size allocator layered above one provider.
// The node size is either supplied to Init or discovered from the first
// Alloc, which lets it serve allocators that allocate unknown types.
// When different sizes are in play the largest size must be allocated
// first: the call to Alloc(largest) must have returned before a call
// with a smaller size may happen. Concurrent first callers are assumed
// to carry the same size, so the benign race on the stored size needs
// no mutex.
//
// Usage:
//
//	mpp := malloc.NewPagepool(0x8000, nil)  // chunks of 32kB blocks
//	nmr := malloc.NewNoderesource(mpp, 0)   // node size fixed by first Alloc
type Noderesource struct {
	blocksize int64 // atomic; 0 until Init or the first Alloc publishes it

	pool api.MemoryPooler
	fl   freelist
}

// NewNoderesource create an initialized resource over pool. A zero
// blocksize is discovered on first Alloc.
func NewNoderesource(pool api.MemoryPooler, blocksize int64) *Noderesource {
	nmr := &Noderesource{}
	nmr.Init(pool, blocksize)
	return nmr
}

// Init late-initialize a zero valued Noderesource. May only be called
// once.
func (nmr *Noderesource) Init(pool api.MemoryPooler, blocksize int64) {
	if nmr.pool != nil {
		panicerr("noderesource initialized twice")
	} else if pool == nil {
		panicerr("noderesource needs an upstream pool")
	}
	nmr.pool = pool
	atomic.StoreInt64(&nmr.blocksize, blocksize)
	nmr.fl.initlist()
	debugf("noderesource init with blocksize %v\n", blocksize)
}

// Nodesize the published node size. When Init was given a zero size
// this is 0 until the first Alloc.
func (nmr *Noderesource) Nodesize() int64 {
	return atomic.LoadInt64(&nmr.blocksize)
}

// Alloc one node of atleast the stored size. size is the stored size
// for the first caller; later callers may pass smaller sizes and still
// receive a full node. Returns nil when the provider is exhausted.
func (nmr *Noderesource) Alloc(size int64) unsafe.Pointer {
	blocksize := atomic.LoadInt64(&nmr.blocksize)
	if blocksize == 0 {
		// Call Init before using a zero valued Noderesource.
		if nmr.pool == nil {
			panicerr("noderesource used before Init")
		}
		atomic.StoreInt64(&nmr.blocksize, size)
		blocksize = size
		debugf("noderesource blocksize set to %v\n", size)
	} else {
		assertfits(size, blocksize)
	}
	return nmr.fl.alloc(func() bool {
		block := nmr.pool.Allocblock()
		if block == nil {
			return false
		}
		nmr.fl.addblock(block, nmr.pool.Blocksize(), blocksize)
		return true
	})
}

// Free a node obtained from Alloc on this resource.
func (nmr *Noderesource) Free(ptr unsafe.Pointer) {
	nmr.fl.free(ptr)
}
