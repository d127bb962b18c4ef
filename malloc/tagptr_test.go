package malloc

import "testing"
import "unsafe"

func TestTagptrEncode(t *testing.T) {
	buf := make([]uint64, 4)
	node := (*freenode)(unsafe.Pointer(&buf[0]))

	for tag := uintptr(0); tag < 8; tag++ {
		tp := mktagptr(node, tag)
		if tp.ptr() != node {
			t.Errorf("expected %p, got %p", node, tp.ptr())
		} else if x := tp.tag(); x != tag&tagmask {
			t.Errorf("expected %v, got %v", tag&tagmask, x)
		}
	}
}

func TestTagptrSentinel(t *testing.T) {
	if tp := mktagptr(nil, 0); tp != endoflist {
		t.Errorf("expected %v, got %v", endoflist, tp)
	} else if tp := mktagptr(nil, 2); tp != endoflist {
		t.Errorf("expected %v, got %v", endoflist, tp)
	} else if endoflist.ptr() != nil {
		t.Errorf("unexpected %p", endoflist.ptr())
	} else if x := endoflist.tag(); x != tagmask {
		t.Errorf("expected %v, got %v", tagmask, x)
	}
}

func TestTagptrNext(t *testing.T) {
	buf := make([]uint64, 8)
	first := (*freenode)(unsafe.Pointer(&buf[0]))
	second := (*freenode)(unsafe.Pointer(&buf[4]))
	first.next = second

	tp := mktagptr(first, 1)
	next := tp.next()
	if next.ptr() != second {
		t.Errorf("expected %p, got %p", second, next.ptr())
	} else if x := next.tag(); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	}

	// tag wraps modulo four
	tp = mktagptr(first, 3)
	if x := tp.next().tag(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}

	// nil next ends the list
	first.next = nil
	if x := mktagptr(first, 0).next(); x != endoflist {
		t.Errorf("expected %v, got %v", endoflist, x)
	}
}
