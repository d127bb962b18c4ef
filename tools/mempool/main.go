// Command mempool inspects the backing file of a persisted Mappedpool:
// checks page and block alignment, and samples blocks for content.
package main

import "flag"
import "fmt"
import "os"

import hm "github.com/dustin/go-humanize"
import "golang.org/x/exp/mmap"

var options struct {
	file      string
	blocksize int
	sample    int
}

func argParse() {
	flag.StringVar(&options.file, "file", "",
		"backing file of a persisted mapped pool")
	flag.IntVar(&options.blocksize, "blocksize", 4096,
		"block size the pool was created with")
	flag.IntVar(&options.sample, "sample", 64,
		"number of blocks to sample for zero content")
	flag.Parse()
	if options.file == "" {
		flag.Usage()
		os.Exit(1)
	}
}

func main() {
	argParse()

	rd, err := mmap.Open(options.file)
	if err != nil {
		fmt.Printf("mmap.Open(%q): %v\n", options.file, err)
		os.Exit(1)
	}
	defer rd.Close()

	size, blocksize := rd.Len(), options.blocksize
	pagesize := os.Getpagesize()
	fmt.Printf("file       : %v\n", options.file)
	fmt.Printf("size       : %v (%v)\n", size, hm.Bytes(uint64(size)))
	fmt.Printf("pagealign  : %v\n", size%pagesize == 0)
	fmt.Printf("blockalign : %v\n", size%blocksize == 0)
	fmt.Printf("blocks     : %v\n", size/blocksize)

	nblocks := size / blocksize
	sample := options.sample
	if sample > nblocks {
		sample = nblocks
	}
	block, zeroed := make([]byte, blocksize), 0
	for i := 0; i < sample; i++ {
		off := (i * (nblocks / sample)) * blocksize
		if _, err := rd.ReadAt(block, int64(off)); err != nil {
			fmt.Printf("ReadAt(%v): %v\n", off, err)
			os.Exit(1)
		}
		if iszero(block) {
			zeroed++
		}
	}
	fmt.Printf("sampled    : %v blocks, %v zeroed\n", sample, zeroed)
}

func iszero(block []byte) bool {
	for _, b := range block {
		if b != 0 {
			return false
		}
	}
	return true
}
