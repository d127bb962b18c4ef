package malloc

import sigar "github.com/cloudfoundry/gosigar"
import s "github.com/prataprc/gosettings"

// Alignment blocksizes and partition sizes should be multiples of
// Alignment. Must keep the low Tagbits pointer bits free.
const Alignment = int64(8)

// Tagbits number of low order bits of the free-list head used as the
// ABA tag.
const Tagbits = uint(2)

// Defaultminchunk number of blocks in the first chunk a Pagepool pulls
// from OS. Subsequent chunks double until "maxchunk".
const Defaultminchunk = int64(16)

// Chunkgrowths factor from "minchunk" to the default "maxchunk", that
// is six doublings.
const Chunkgrowths = int64(64)

// Defaultsettings for Pagepool.
//
// "minchunk" (int64, default: Defaultminchunk)
//		Number of blocks in the smallest chunk allocated from OS.
//
// "maxchunk" (int64, default: 0)
//		Number of blocks in the largest chunk allocated from OS.
//		Zero derives minchunk * Chunkgrowths, clamped so that a
//		single chunk does not exceed 1/8th of free RAM. The clamp
//		is skipped when it would fall below minchunk.
func Defaultsettings() s.Settings {
	return s.Settings{
		"minchunk": Defaultminchunk,
		"maxchunk": int64(0),
	}
}

// Mappedsettings for Mappedpool.
//
// "filesize" (int64, default: 0)
//		Size of the backing file, multiple of the page size. Zero
//		means use the existing file's size. When the file exists a
//		non-zero value must equal its size.
//
// "mode" (string, default: "persistent")
//		One of "persistent", "copyonwrite" or "readonly".
//
// "zeroinit" (bool, default: false)
//		Zero existing file content before use. Valid only for
//		writable modes.
//
// "flock" (bool, default: false)
//		Take an advisory lock on a sidecar "<file>.lock" for the
//		life of the pool, exclusive for writable modes and shared
//		for readonly, keeping other processes off the same file.
func Mappedsettings() s.Settings {
	return s.Settings{
		"filesize": int64(0),
		"mode":     "persistent",
		"zeroinit": false,
		"flock":    false,
	}
}

// defaultmaxchunk when "maxchunk" is left zero: grow from minchunk by
// Chunkgrowths, clamped so one chunk stays within 1/8th of free RAM
// unless that limit is below minchunk.
func defaultmaxchunk(minchunk, blocksize int64) int64 {
	maxchunk := minchunk * Chunkgrowths
	mem := sigar.Mem{}
	if err := mem.Get(); err == nil && mem.Free > 0 {
		if limit := int64(mem.Free) / (8 * blocksize); limit >= minchunk && maxchunk > limit {
			maxchunk = limit
		}
	}
	return maxchunk
}
