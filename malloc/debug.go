//go:build debug

package malloc

// assertfits contract check on Noderesource sizes, compiled only under
// the debug tag. Allocating a size above the published node size is
// undefined in production builds.
func assertfits(size, blocksize int64) {
	if size > blocksize {
		panicerr("alloc size %v exceeds node size %v", size, blocksize)
	}
}
