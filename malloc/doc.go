// Package malloc supplies fixed size memory management for node based
// containers, with a limited scope:
//
//   - Memory is allocated from OS in page granular chunks and sliced
//     into blocks of same size; blocks are sliced further into node
//     sized partitions by single-size resources.
//   - Free blocks are kept on a lock-free singly linked list whose head
//     word carries a 2-bit tag to defeat ABA races. Alloc and Free on
//     every pool can be called from any number of goroutines.
//   - Chunks a Pagepool allocates from OS are not automatically given
//     back to OS; it gives its chunks back only on Release(). Nodepool
//     gives a chunk back on Free, see Nodepool.
//   - There is no coalescing and no variable size allocation inside a
//     pool. Requests above the largest deque size-class fall through to
//     the system allocator.
//   - Blocks handed out by this package are always page or word aligned,
//     keeping the two low pointer bits free for the tag.
//
// Pagepool is a growable heap backed provider of page sized blocks.
// Mappedpool is the same provider backed by an mmaped regular file, with
// persistent, copy-on-write and read-only modes. Noderesource slices
// provider blocks into nodes of one discovered size. Dqr routes deque
// table sizes to one of twelve Noderesources. Nodepool is an independent
// mutex protected per-type pool.
package malloc
