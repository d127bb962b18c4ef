//go:build !debug

package malloc

func assertfits(size, blocksize int64) {
}
