package malloc

//#include <stdlib.h>
import "C"

import "fmt"
import "sync/atomic"
import "unsafe"

import humanize "github.com/dustin/go-humanize"
import s "github.com/prataprc/gosettings"

// Pagepool is a heap backed provider of page granular fixed size
// blocks. Chunks are pulled from the system allocator with geometric
// growth between "minchunk" and "maxchunk" blocks and sliced onto the
// embedded freelist. Allocblock and Freeblock are safe for concurrent
// use; Release is a terminal teardown.
type Pagepool struct {
	// 64-bit aligned stats
	nblocks int64 // total blocks sliced onto the freelist

	blocksize int64
	minchunk  int64 // chunk growth floor, in blocks
	maxchunk  int64 // chunk growth ceiling, in blocks
	chunks    []unsafe.Pointer
	fl        freelist
	logprefix string
}

// NewPagepool create a provider of blocksize sized blocks, where
// blocksize must be a non-zero multiple of the page size. Refer to
// Defaultsettings() for configuration.
func NewPagepool(blocksize int64, setts s.Settings) *Pagepool {
	if blocksize <= 0 || (blocksize%pagesize) != 0 {
		panicerr("blocksize %v is not a multiple of pagesize %v", blocksize, pagesize)
	}
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	pp := &Pagepool{
		blocksize: blocksize,
		minchunk:  setts.Int64("minchunk"),
		maxchunk:  setts.Int64("maxchunk"),
		logprefix: fmt.Sprintf("pagepool %v", blocksize),
	}
	if pp.minchunk < 2 {
		panicerr("minchunk %v should be atleast 2", pp.minchunk)
	}
	if pp.maxchunk == 0 {
		pp.maxchunk = defaultmaxchunk(pp.minchunk, blocksize)
	}
	if pp.maxchunk < pp.minchunk {
		panicerr("maxchunk %v less than minchunk %v", pp.maxchunk, pp.minchunk)
	}
	pp.chunks = make([]unsafe.Pointer, 0, 1+ceillog2(uint64(pp.maxchunk/pp.minchunk)))
	pp.fl.initlist()
	infof("%v boot with chunks of %v to %v blocks\n", pp.logprefix, pp.minchunk, pp.maxchunk)
	return pp
}

// Blocksize implement api.MemoryPooler{} interface.
func (pp *Pagepool) Blocksize() int64 {
	return pp.blocksize
}

// Allocblock implement api.MemoryPooler{} interface. Returns nil when
// the system allocator is exhausted.
func (pp *Pagepool) Allocblock() unsafe.Pointer {
	return pp.fl.alloc(pp.addchunk)
}

// Freeblock implement api.MemoryPooler{} interface.
func (pp *Pagepool) Freeblock(ptr unsafe.Pointer) {
	pp.fl.free(ptr)
}

// addchunk runs under the freelist's add mutex.
func (pp *Pagepool) addchunk() bool {
	nblocks := pp.maxchunk
	if shift := uint(len(pp.chunks)); shift < 32 {
		if n := pp.minchunk << shift; n < pp.maxchunk {
			nblocks = n
		}
	}
	chunksize := nblocks * pp.blocksize
	base := C.malloc(C.size_t(chunksize))
	if base == nil {
		errorf("%v exhausted allocating chunk of %v blocks\n", pp.logprefix, nblocks)
		return false
	}
	pp.chunks = append(pp.chunks, base)
	pp.fl.addblock(base, chunksize, pp.blocksize)
	atomic.AddInt64(&pp.nblocks, nblocks)
	debugf("%v chunk %v of %v blocks\n", pp.logprefix, len(pp.chunks), nblocks)
	return true
}

// Chunks number of chunks pulled from the system allocator so far.
func (pp *Pagepool) Chunks() int64 {
	pp.fl.addmu.Lock()
	defer pp.fl.addmu.Unlock()
	return int64(len(pp.chunks))
}

// Capacity total bytes sliced onto the freelist so far.
func (pp *Pagepool) Capacity() int64 {
	return atomic.LoadInt64(&pp.nblocks) * pp.blocksize
}

// Release every chunk back to the system allocator. Terminal: the
// caller guarantees no outstanding block pointers; all of them become
// invalid. The pool itself goes back to its boot state and may be
// grown again.
func (pp *Pagepool) Release() {
	pp.fl.addmu.Lock()
	defer pp.fl.addmu.Unlock()
	size := atomic.LoadInt64(&pp.nblocks) * pp.blocksize
	for _, chunk := range pp.chunks {
		C.free(chunk)
	}
	pp.chunks = pp.chunks[:0]
	atomic.StoreInt64(&pp.nblocks, 0)
	atomic.StoreUintptr(&pp.fl.head, uintptr(endoflist))
	infof("%v released %v\n", pp.logprefix, humanize.Bytes(uint64(size)))
}
