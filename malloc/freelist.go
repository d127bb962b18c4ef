package malloc

import "sync"
import "sync/atomic"
import "unsafe"

// freelist is a lock-free LIFO of equally sized free blocks threaded
// through the blocks themselves. The only shared mutable word is head,
// a tagptr; addmu serializes refill attempts so that a single observed
// empty state pulls at most one chunk from upstream.
//
// A consistent freelist is a singly linked chain of freenodes:
//
//	head -->.---------.   .-->.---------.   .-->.---------.
//	        | next ---+--'    | next ---+--'    | next ---+--> nil
//	        `---------'       `---------'       `---------'
//
// alloc unlinks the first node, free links a node back in front. Both
// are a load / compare-and-swap loop on head; Go's atomics give the
// store of a freed node's next link visibility to the popper that later
// observes the swapped-in head.
type freelist struct {
	head  uintptr // tagptr
	addmu sync.Mutex
}

// initlist reset to the empty list. Pools call this once before use;
// the zero value also reads as empty but carries a zero tag word.
func (fl *freelist) initlist() {
	atomic.StoreUintptr(&fl.head, uintptr(endoflist))
}

// initialize with an existing region head, tag zero. Used by Mappedpool
// whose entire mapping begins life as one virgin region.
func (fl *freelist) initialize(head unsafe.Pointer) {
	atomic.StoreUintptr(&fl.head, uintptr(mktagptr((*freenode)(head), 0)))
}

// alloc pop one block. On empty, addmore is given a chance to refill
// the list from upstream; a nil or false addmore means out of memory.
func (fl *freelist) alloc(addmore func() bool) unsafe.Pointer {
	for {
		head := tagptr(atomic.LoadUintptr(&fl.head))
		for head.ptr() != nil {
			newhead := head.next()
			if atomic.CompareAndSwapUintptr(&fl.head, uintptr(head), uintptr(newhead)) {
				return unsafe.Pointer(head.ptr())
			}
			head = tagptr(atomic.LoadUintptr(&fl.head))
		}
		if !fl.tryaddmore(addmore) {
			return nil
		}
	}
}

// tryaddmore serialize the empty-check to refill transition. Another
// goroutine may have refilled while this one waited on addmu, in which
// case the upstream is left alone.
func (fl *freelist) tryaddmore(addmore func() bool) bool {
	if addmore == nil {
		return false
	}
	fl.addmu.Lock()
	defer fl.addmu.Unlock()
	if tagptr(atomic.LoadUintptr(&fl.head)).ptr() != nil {
		return true
	}
	return addmore()
}

// free push one block. ptr must be a value previously returned by
// alloc on this list. The node's next link is rewritten on every retry
// because the popper reads it through the head it observed.
func (fl *freelist) free(ptr unsafe.Pointer) {
	if ptr == nil {
		panicerr("freelist.free(): nil pointer")
	}
	node := (*freenode)(ptr)
	head := tagptr(atomic.LoadUintptr(&fl.head))
	for {
		node.next = head.ptr()
		newhead := mktagptr(node, head.tag())
		if atomic.CompareAndSwapUintptr(&fl.head, uintptr(head), uintptr(newhead)) {
			return
		}
		head = tagptr(atomic.LoadUintptr(&fl.head))
	}
}

// addblock slice a fresh upstream block into blocksize/partitionsize
// partitions, thread them into a chain and splice the chain in front of
// the list. Only call from the addmore callback passed to alloc, which
// runs under addmu.
func (fl *freelist) addblock(block unsafe.Pointer, blocksize, partitionsize int64) {
	n := blocksize / partitionsize
	if n < 2 {
		panicerr("addblock: blocksize %v not a 2x multiple of %v", blocksize, partitionsize)
	}
	first := (*freenode)(block)
	last := (*freenode)(unsafe.Add(block, (n-1)*partitionsize))
	for node, off := first, int64(0); node != last; {
		off += partitionsize
		next := (*freenode)(unsafe.Add(block, off))
		node.next = next
		node = next
	}
	head := tagptr(atomic.LoadUintptr(&fl.head))
	for {
		last.next = head.ptr()
		newhead := mktagptr(first, head.tag())
		if atomic.CompareAndSwapUintptr(&fl.head, uintptr(head), uintptr(newhead)) {
			return
		}
		head = tagptr(atomic.LoadUintptr(&fl.head))
	}
}

// allocmapped pop one block from a list laid over an mmaped region.
// The mapping starts out as a single virgin region: a node whose next
// link is still zero stands for "the successor is the adjacent block",
// until the arithmetic steps off the end of the mapping.
func (fl *freelist) allocmapped(base unsafe.Pointer, mappedsize, blocksize int64) unsafe.Pointer {
	for {
		head := tagptr(atomic.LoadUintptr(&fl.head))
		if head.ptr() == nil {
			return nil
		}
		newhead := head.next()
		if newhead.ptr() == nil {
			second := unsafe.Add(unsafe.Pointer(head.ptr()), blocksize)
			if uintptr(second) == uintptr(base)+uintptr(mappedsize) {
				newhead = endoflist
			} else {
				newhead = mktagptr((*freenode)(second), head.tag()+1)
			}
		}
		if atomic.CompareAndSwapUintptr(&fl.head, uintptr(head), uintptr(newhead)) {
			return unsafe.Pointer(head.ptr())
		}
	}
}
