package malloc

import "unsafe"

// freenode overlays the first word of every free block. For heap backed
// lists a nil next means end of list; for mapped lists a nil next means
// the successor is the adjacent block, see Mappedpool.
type freenode struct {
	next *freenode
}

// tagptr packs a *freenode and a Tagbits wide counter into one word.
// The tag is bumped on every successful pop so that a pop concurrent
// with a pop;push of the same pointer fails its compare-and-swap. Two
// bits suffice: reproducing a stale head inside one load/CAS window
// needs three reappearances of the same pointer and four tag values
// tell them apart.
type tagptr uintptr

const (
	tagmask = uintptr(1<<Tagbits) - 1
	ptrmask = ^tagmask
)

// endoflist reserved head value for the empty list: pointer part zero,
// tag bits saturated.
const endoflist = tagptr(tagmask)

func mktagptr(node *freenode, tag uintptr) tagptr {
	if node == nil {
		return endoflist
	}
	return tagptr(uintptr(unsafe.Pointer(node)) | (tag & tagmask))
}

func (tp tagptr) ptr() *freenode {
	return (*freenode)(unsafe.Pointer(uintptr(tp) & ptrmask))
}

func (tp tagptr) tag() uintptr {
	return uintptr(tp) & tagmask
}

// next derive the head that replaces tp when tp's node is popped.
func (tp tagptr) next() tagptr {
	return mktagptr(tp.ptr().next, tp.tag()+1)
}
