package api

import "unsafe"

// Alignment guaranteed on every pointer handed out by the pools. Block
// sizes and partition sizes should be multiples of Alignment.
const Alignment = int64(8)

// Tagbits number of low order pointer bits used for the free-list tag.
// Alignment must keep at least this many bits free.
const Tagbits = uint(2)

// MemoryPooler is the upstream provider contract: a page granular pool
// handing out fixed size blocks. Pagepool and Mappedpool from the malloc
// package implement this interface.
type MemoryPooler interface {
	// Blocksize of every block handed out by this pool.
	Blocksize() int64

	// Allocblock return one block, or nil when the pool and its
	// upstream are exhausted.
	Allocblock() unsafe.Pointer

	// Freeblock return a block obtained from Allocblock.
	Freeblock(ptr unsafe.Pointer)
}
