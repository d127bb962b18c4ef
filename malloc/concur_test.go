package malloc

import "sync"
import "testing"
import "unsafe"

import s "github.com/prataprc/gosettings"

func TestConcur(t *testing.T) {
	skipodd(t)
	nroutines, repeat := 8, 1000000
	if testing.Short() {
		repeat = 100000
	}

	pp := NewPagepool(4096, s.Settings{"minchunk": 2, "maxchunk": 32})
	defer pp.Release()
	nmr := NewNoderesource(pp, 64)

	var wg sync.WaitGroup
	wg.Add(nroutines)
	for n := 0; n < nroutines; n++ {
		go func(n int) {
			defer wg.Done()
			for i := 0; i < repeat; i++ {
				ptr := nmr.Alloc(64)
				if ptr == nil {
					panic("unexpected out of memory")
				}
				// scribble over the whole node; the link word
				// only matters while the node sits on the list
				block := unsafe.Slice((*byte)(ptr), 64)
				for j := range block {
					block[j] = byte(n)
				}
				for j := range block {
					if block[j] != byte(n) {
						panic("corrupted node")
					}
				}
				nmr.Free(ptr)
			}
		}(n)
	}
	wg.Wait()

	// eight goroutines holding one node each can never outgrow the
	// chunk ceiling
	if x := pp.Capacity(); x > 32*4096 {
		t.Errorf("unexpected capacity %v", x)
	}
}

func TestConcurHandover(t *testing.T) {
	skipodd(t)
	nroutines, repeat := 8, 200000
	if testing.Short() {
		repeat = 20000
	}

	pp := NewPagepool(4096, s.Settings{"minchunk": 2, "maxchunk": 64})
	defer pp.Release()
	nmr := NewNoderesource(pp, 128)

	// allocators hand nodes to a sibling that frees them, so push
	// and pop race across goroutines
	chans := make([]chan unsafe.Pointer, nroutines)
	for n := range chans {
		chans[n] = make(chan unsafe.Pointer, 1000)
	}

	var awg, fwg sync.WaitGroup
	awg.Add(nroutines)
	fwg.Add(nroutines)
	for n := 0; n < nroutines; n++ {
		go func(n int) {
			defer awg.Done()
			for i := 0; i < repeat; i++ {
				ptr := nmr.Alloc(128)
				if ptr == nil {
					panic("unexpected out of memory")
				}
				chans[(n+i)%nroutines] <- ptr
			}
		}(n)
		go func(ch chan unsafe.Pointer) {
			defer fwg.Done()
			for ptr := range ch {
				nmr.Free(ptr)
			}
		}(chans[n])
	}
	awg.Wait()
	for _, ch := range chans {
		close(ch)
	}
	fwg.Wait()
}

func TestConcurDeque(t *testing.T) {
	skipodd(t)
	nroutines, repeat := 8, 100000
	if testing.Short() {
		repeat = 10000
	}

	pp := NewPagepool(0x8000, s.Settings{"minchunk": 2})
	defer pp.Release()
	var dmr Dequeresource
	dmr.Init(pp)

	sizes := []int64{8 * wordsize, 26 * wordsize, 111 * wordsize, 451 * wordsize, Uppersize + 8}

	var wg sync.WaitGroup
	wg.Add(nroutines)
	for n := 0; n < nroutines; n++ {
		go func(n int) {
			defer wg.Done()
			for i := 0; i < repeat; i++ {
				size := sizes[(n+i)%len(sizes)]
				ptr := dmr.Alloc(size)
				if ptr == nil {
					panic("unexpected out of memory")
				}
				dmr.Free(ptr, size)
			}
		}(n)
	}
	wg.Wait()
}
