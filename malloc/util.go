package malloc

import "fmt"
import "math/bits"
import "os"

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}

// ceillog2 for x >= 1.
func ceillog2(x uint64) int {
	if x <= 1 {
		return 0
	}
	return 64 - bits.LeadingZeros64(x-1)
}

// ceildiv for a >= 0, b > 0.
func ceildiv(a, b int64) int64 {
	return (a + b - 1) / b
}

var pagesize = int64(os.Getpagesize())

// Pagesize cached os.Getpagesize(), the granularity of provider blocks.
func Pagesize() int64 {
	return pagesize
}

func init() {
	if uint64(Alignment) < (1 << Tagbits) {
		panicerr("alignment %v cannot hold %v tag bits", Alignment, Tagbits)
	}
}
