package malloc

//#include <stdlib.h>
import "C"

import "unsafe"

// Deque table maps grow along a well known schedule: the most frequent
// map sizes in words are 8, 18, 38, 78, 158, 318, ... (double and add
// two). Serving exactly those sizes plus one intermediate step between
// each pair keeps the wasted share of a random request small. The
// resulting schedule follows
//
//	s = (10 * 2^(n/2) - 2) words
//
// which for n = 0..11 lies within one word of the sizes below; the odd
// entries are taken to a nearby integer (54 for n = 5, where s is 54.57).
var i2s = [nmrasize]int64{8, 12, 18, 26, 38, 54, 78, 111, 158, 224, 318, 451}

const nmrasize = 12

const wordsize = int64(unsafe.Sizeof(uintptr(0)))

// Uppersize largest request in bytes served from the size classed
// resources; larger requests fall through to the system allocator.
var Uppersize = indextosize(nmrasize - 1)

func indextosize(index int) int64 {
	return wordsize * i2s[index]
}

// sizetoindex smallest index whose class size holds size bytes. The
// schedule s(n) = (10*2^(n/2) - 2)*wordsize, inverted:
//
//	t = 16*(nodes+2)/10 ; n = ceillog2(t*t) - 8
//
// where multiplying by 16 inside the log and subtracting log2(16*16)
// keeps the arithmetic integral, and squaring t folds the factor two
// of the even-index subschedule into the log.
func sizetoindex(size int64) int {
	nodes := ceildiv(size, wordsize)
	if nodes <= i2s[0] {
		return 0
	}
	t := uint64(16 * (nodes + 2) / 10) // 16 <= t <= 724
	return ceillog2(t*t) - 8
}

// Dequeresource routes deque table sizes to one of twelve
// Noderesources over a shared Pagepool. The zero value is ready for
// Init; use the process wide Dqr instance.
type Dequeresource struct {
	pool *Pagepool
	nmrs [nmrasize]Noderesource
}

// Dqr is the process wide deque memory resource. Call Dqr.Init with
// the shared Pagepool at program start, before the first container
// allocates through it.
var Dqr Dequeresource

// Init bind the twelve size classed resources to pool. Calling Init
// again with the same pool is a no-op; a different pool is a contract
// violation.
func (dmr *Dequeresource) Init(pool *Pagepool) {
	if dmr.pool == pool {
		return
	} else if dmr.pool != nil {
		panicerr("dequeresource already bound to another pagepool")
	}
	dmr.pool = pool
	for index := range dmr.nmrs {
		dmr.nmrs[index].Init(pool, indextosize(index))
	}
	infof("dequeresource init with %v classes upto %v bytes\n", nmrasize, Uppersize)
}

// Alloc a block of n bytes. Requests above Uppersize go straight to
// the system allocator. Returns nil on out of memory.
func (dmr *Dequeresource) Alloc(n int64) unsafe.Pointer {
	if n > Uppersize { // cold path
		return C.malloc(C.size_t(n))
	}
	return dmr.nmrs[sizetoindex(n)].Alloc(n)
}

// Free a block obtained from Alloc with the same n.
func (dmr *Dequeresource) Free(ptr unsafe.Pointer, n int64) {
	if n > Uppersize { // cold path
		C.free(ptr)
		return
	}
	dmr.nmrs[sizetoindex(n)].Free(ptr)
}
