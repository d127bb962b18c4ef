package malloc

//#include <stdlib.h>
import "C"

import "fmt"
import "sync"
import "unsafe"

// Nodepool layout. Every chunk of nchunks cells begins with an int64
// free counter; every cell carries a pointer back to that counter so
// Free can find its chunk, followed by size bytes of user data. On the
// free list the first data word doubles as the link.
const npbeginsize = int64(8)
const npheadersize = int64(8)

// npcell overlays a free cell. next holds either a pointer to the next
// free cell, or, when below nchunks, the count of never used cells
// that follow this one inside the same chunk; zero ends the list. The
// count form lets a fresh chunk join the free list without touching
// every cell up front.
type npcell struct {
	free *int64
	next uintptr
}

// Nodepool is a mutex protected pool for fixed size allocations, one
// object at a time, where size and type are not known until the first
// Alloc. It is independent of the lock-free pools: chunks come straight
// from the system allocator and a chunk is given back as soon as its
// free counter reaches nchunks while the pool holds at least 2*nchunks
// free cells overall.
//
// Usage:
//
//	pool := malloc.NewNodepool(64, 0) // 64 objects at a time
//	ptr := pool.Alloc(int64(unsafe.Sizeof(node{})))
//	...
//	pool.Free(ptr)
//
// Different types of about the same size may share a pool provided the
// largest size is allocated first, or the size is fixed up front.
type Nodepool struct {
	mu        sync.Mutex
	nchunks   int64 // cells per chunk
	size      int64 // fixed cell size, 0 until the first Alloc
	freelist  uintptr
	blocks    []unsafe.Pointer
	totalfree int64
}

// NewNodepool create a pool that allocates nchunks cells at a time. A
// zero size is fixed by the first Alloc.
func NewNodepool(nchunks, size int64) *Nodepool {
	if nchunks < 1 {
		panicerr("nchunks %v should be atleast 1", nchunks)
	}
	return &Nodepool{nchunks: nchunks, size: size}
}

// Alloc one cell of atleast size bytes. The first call fixes the cell
// size when it was left zero; later calls may pass smaller sizes.
// Returns nil when the system allocator is exhausted.
func (np *Nodepool) Alloc(size int64) unsafe.Pointer {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.freelist == 0 {
		if np.size == 0 {
			np.size = size
		}
		if np.size < wordsize || (np.size%Alignment) != 0 {
			panicerr("cell size %v must be a multiple of %v and hold a link", np.size, Alignment)
		}
		base := C.malloc(C.size_t(npbeginsize + np.nchunks*(npheadersize+np.size)))
		if base == nil {
			return nil
		}
		counter := (*int64)(base)
		*counter = np.nchunks
		first := (*npcell)(unsafe.Add(base, npbeginsize))
		first.free = counter
		first.next = uintptr(np.nchunks - 1)
		np.freelist = uintptr(unsafe.Pointer(first))
		np.blocks = append(np.blocks, base)
		np.totalfree += np.nchunks
		debugf("nodepool grown by %v cells of %v bytes\n", np.nchunks, np.size)
	}
	if size > np.size {
		panicerr("alloc size %v exceeds cell size %v", size, np.size)
	}

	cell := (*npcell)(unsafe.Pointer(np.freelist))
	if cell.next > 0 && cell.next < uintptr(np.nchunks) {
		// Unfold one never used neighbour into a real link.
		count := cell.next
		next := (*npcell)(unsafe.Add(unsafe.Pointer(cell), npheadersize+np.size))
		next.next = count - 1
		next.free = cell.free
		cell.next = uintptr(unsafe.Pointer(next))
	}
	np.freelist = cell.next
	*cell.free--
	np.totalfree--
	return unsafe.Add(unsafe.Pointer(cell), npheadersize)
}

// Free a cell obtained from Alloc on this pool.
func (np *Nodepool) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		panicerr("nodepool.Free(): nil pointer")
	}
	cell := (*npcell)(unsafe.Add(ptr, -npheadersize))
	np.mu.Lock()
	defer np.mu.Unlock()
	cell.next = np.freelist
	np.freelist = uintptr(unsafe.Pointer(cell))
	*cell.free++
	np.totalfree++
	if *cell.free > np.nchunks {
		panicerr("nodepool.Free(): foreign or double freed pointer")
	}
	if *cell.free == np.nchunks && np.totalfree >= 2*np.nchunks {
		np.reclaim(cell.free)
	}
}

// reclaim give the chunk owning counter back to the system allocator.
// Every cell of the chunk is unlinked from the free list first; a
// count valued link encountered on the way refers to cells of this
// same chunk and simply ends the list.
func (np *Nodepool) reclaim(counter *int64) {
	begin := uintptr(unsafe.Pointer(counter))
	end := begin + uintptr(npbeginsize+np.nchunks*(npheadersize+np.size))
	for fpp := &np.freelist; *fpp >= uintptr(np.nchunks); {
		for begin <= *fpp && *fpp < end {
			*fpp = (*npcell)(unsafe.Pointer(*fpp)).next
		}
		if *fpp < uintptr(np.nchunks) {
			*fpp = 0
			break
		}
		fpp = &(*npcell)(unsafe.Pointer(*fpp)).next
	}
	np.totalfree -= np.nchunks
	C.free(unsafe.Pointer(begin))
	for i, blk := range np.blocks {
		if uintptr(blk) == begin {
			np.blocks = append(np.blocks[:i], np.blocks[i+1:]...)
			break
		}
	}
	debugf("nodepool reclaimed chunk of %v cells\n", np.nchunks)
}

// Info one line of pool statistics.
func (np *Nodepool) Info() string {
	np.mu.Lock()
	defer np.mu.Unlock()
	nchunks := np.nchunks * int64(len(np.blocks))
	return fmt.Sprintf(
		"nodepool stats: cell size: %v; chunks: %v; total/used/free: %v/%v/%v",
		np.size, len(np.blocks), nchunks, nchunks-np.totalfree, np.totalfree)
}
