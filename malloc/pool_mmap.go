//go:build linux

package malloc

import "fmt"
import "os"
import "path/filepath"
import "unsafe"

import "github.com/bnclabs/gomemory/flock"
import humanize "github.com/dustin/go-humanize"
import s "github.com/prataprc/gosettings"
import "golang.org/x/sys/unix"

// Mapmode how a Mappedpool relates to its backing file.
type Mapmode byte

const (
	// Persistent map the file shared: stores reach the file, kept
	// alive across pool lifetimes by the operating system.
	Persistent Mapmode = iota
	// Copyonwrite map the file private: stores stay in this
	// process, the file is never modified.
	Copyonwrite
	// Readonly map the file private and read-only, stores fault.
	Readonly
)

func (mode Mapmode) String() string {
	switch mode {
	case Persistent:
		return "persistent"
	case Copyonwrite:
		return "copyonwrite"
	case Readonly:
		return "readonly"
	}
	panic("unexpected map mode") // should never reach here
}

func string2mapmode(str string) Mapmode {
	switch str {
	case "persistent":
		return Persistent
	case "copyonwrite":
		return Copyonwrite
	case "readonly":
		return Readonly
	}
	panicerr("unknown mapped pool mode %q", str)
	return 0
}

// Mappedpool is a page granular provider of fixed size blocks backed
// by an mmaped regular file. The free list begins life pointing at the
// mapping base with the whole mapping as one virgin region, so opening
// a file never pays a linear initialization pass; the head word itself
// is not persisted and every open starts from "virgin full".
//
// Durability of Persistent mode is left to the operating system; no
// msync is issued.
type Mappedpool struct {
	blocksize  int64
	mappedsize int64
	data       []byte // the mapping
	base       unsafe.Pointer
	mode       Mapmode
	fl         freelist
	lock       *flock.Mutex
	path       string
	logprefix  string
}

// NewMappedpool map the regular file at path as a pool of blocksize
// sized blocks. Refer to Mappedsettings() for configuration. Parameter
// combinations that make no sense, see the mode matrix below, come
// back as descriptive errors before any side effect; so do failing
// system calls.
//
//	file present? writable? mode        zeroinit  result
//	no            -         readonly    -         ErrmapNoFile
//	no            -         copyonwrite -         ErrmapNoFile
//	no            -         persistent  any       create, preallocate, map shared
//	yes           no        persistent  -         ErrmapNotWritable
//	yes           no        -           yes       ErrmapZeroinit
//	yes           yes       persistent  no        open rw, map shared
//	yes           yes       persistent  yes       open rw, zero range, map shared
//	yes           any       copyonwrite no        open, map private
//	yes           any       readonly    no        open read, map read-only private
func NewMappedpool(path string, blocksize int64, setts s.Settings) (*Mappedpool, error) {
	// blocksize must hold a freenode and be page granular.
	if blocksize < int64(unsafe.Sizeof(freenode{})) {
		panicerr("blocksize %v cannot hold a free node", blocksize)
	} else if (blocksize % pagesize) != 0 {
		panicerr("blocksize %v is not a multiple of pagesize %v", blocksize, pagesize)
	}

	setts = make(s.Settings).Mixin(Mappedsettings(), setts)
	filesize := setts.Int64("filesize")
	mode := string2mapmode(setts.String("mode"))
	zeroinit := setts.Bool("zeroinit")
	if (filesize % pagesize) != 0 {
		return nil, fmt.Errorf("%w: filesize %v of %q not a multiple of pagesize %v",
			ErrmapSizeAlign, filesize, path, pagesize)
	} else if (filesize % blocksize) != 0 {
		return nil, fmt.Errorf("%w: filesize %v of %q not a multiple of blocksize %v",
			ErrmapSizeAlign, filesize, path, blocksize)
	}

	abspath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs(%q): %v", path, err)
	}

	fi, err := os.Stat(abspath)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %q: %v", abspath, err)
	}
	if exists {
		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %q exists but is not a regular file", ErrmapNotRegular, abspath)
		} else if (fi.Mode().Perm() & 0444) == 0 {
			return nil, fmt.Errorf("%w: %q exists but is not readable", ErrmapNotReadable, abspath)
		}
	}
	writable := exists && (fi.Mode().Perm()&0222) != 0

	if !exists {
		if filesize == 0 {
			return nil, fmt.Errorf("%w: %q does not exist, and no size was provided", ErrmapNoSize, abspath)
		} else if mode == Readonly {
			return nil, fmt.Errorf("%w: no such file %q", ErrmapNoFile, abspath)
		} else if mode == Copyonwrite {
			return nil, fmt.Errorf("%w: copy-on-write requested, but %q does not exist", ErrmapNoFile, abspath)
		}
	} else if !writable {
		if mode == Persistent {
			return nil, fmt.Errorf("%w: persistent mode requested, but %q is not writable", ErrmapNotWritable, abspath)
		} else if zeroinit {
			return nil, fmt.Errorf("%w: zero initialization requested for read-only file %q", ErrmapZeroinit, abspath)
		}
	} else if mode == Readonly && zeroinit {
		return nil, fmt.Errorf("%w: zero initialization requested for readonly mapping of %q", ErrmapZeroinit, abspath)
	}

	var fd *os.File
	var mappedsize int64
	var needzero bool

	if !exists {
		fd, err = os.OpenFile(abspath, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return nil, fmt.Errorf("create %q: %v", abspath, err)
		}
		// Preallocate disk space; everything a fresh fallocate
		// covers reads back as zero.
		if err := unix.Fallocate(int(fd.Fd()), 0, 0, filesize); err != nil {
			fd.Close()
			return nil, fmt.Errorf("fallocate %v bytes for %q: %v", filesize, abspath, err)
		}
		mappedsize = filesize

	} else {
		flags := os.O_RDONLY
		if mode == Persistent {
			flags = os.O_RDWR
		}
		fd, err = os.OpenFile(abspath, flags, 0)
		if err != nil {
			return nil, fmt.Errorf("open %q: %v", abspath, err)
		}
		fi, err := fd.Stat()
		if err != nil {
			fd.Close()
			return nil, fmt.Errorf("fstat %q: %v", abspath, err)
		}
		if filesize == 0 {
			if (fi.Size() % pagesize) != 0 {
				fd.Close()
				return nil, fmt.Errorf("%w: size %v of existing %q not a multiple of pagesize %v",
					ErrmapSizeAlign, fi.Size(), abspath, pagesize)
			}
			mappedsize = fi.Size()
		} else if fi.Size() != filesize {
			fd.Close()
			return nil, fmt.Errorf("%w: provided size %v does not match size %v of existing %q",
				ErrmapSizeMismatch, filesize, fi.Size(), abspath)
		} else {
			mappedsize = filesize
		}
		if mode == Persistent && zeroinit {
			// Zeroing happens inside the filesystem, preferably
			// by converting the range to unwritten extents. Not
			// every filesystem supports that; fall back to
			// zeroing through the mapping.
			err := unix.Fallocate(int(fd.Fd()), unix.FALLOC_FL_ZERO_RANGE, 0, mappedsize)
			if err == unix.EOPNOTSUPP || err == unix.EINVAL {
				needzero = true
			} else if err != nil {
				fd.Close()
				return nil, fmt.Errorf("fallocate zero range on %q: %v", abspath, err)
			}
		}
	}
	defer fd.Close() // the mapping survives the descriptor

	if (mappedsize % blocksize) != 0 {
		return nil, fmt.Errorf("%w: size %v of %q not a multiple of blocksize %v",
			ErrmapSizeAlign, mappedsize, abspath, blocksize)
	}

	prot := unix.PROT_READ | unix.PROT_WRITE
	mapflags := unix.MAP_PRIVATE
	if mode == Persistent {
		mapflags = unix.MAP_SHARED
	} else if mode == Readonly {
		prot = unix.PROT_READ
	}
	data, err := unix.Mmap(int(fd.Fd()), 0, int(mappedsize), prot, mapflags)
	if err != nil {
		return nil, fmt.Errorf("mmap %q of size %v: %v", abspath, mappedsize, err)
	}
	if needzero {
		for i := range data {
			data[i] = 0
		}
	}

	mpp := &Mappedpool{
		blocksize:  blocksize,
		mappedsize: mappedsize,
		data:       data,
		base:       unsafe.Pointer(&data[0]),
		mode:       mode,
		path:       abspath,
		logprefix:  fmt.Sprintf("mappedpool %q", abspath),
	}
	mpp.fl.initialize(mpp.base)

	if setts.Bool("flock") {
		lock, err := flock.New(abspath + ".lock")
		if err != nil {
			unix.Munmap(data)
			return nil, fmt.Errorf("flock %q: %v", abspath+".lock", err)
		}
		if mode == Readonly {
			lock.RLock()
		} else {
			lock.Lock()
		}
		mpp.lock = lock
	}

	infof("%v boot %v in %v mode with %v blocks\n",
		mpp.logprefix, humanize.Bytes(uint64(mappedsize)), mode, mappedsize/blocksize)
	return mpp, nil
}

// Blocksize implement api.MemoryPooler{} interface.
func (mpp *Mappedpool) Blocksize() int64 {
	return mpp.blocksize
}

// Mappedsize total bytes mapped from the backing file.
func (mpp *Mappedpool) Mappedsize() int64 {
	return mpp.mappedsize
}

// Mode this pool was opened in.
func (mpp *Mappedpool) Mode() Mapmode {
	return mpp.mode
}

// Allocblock implement api.MemoryPooler{} interface. Returns nil once
// every block of the mapping is handed out.
func (mpp *Mappedpool) Allocblock() unsafe.Pointer {
	return mpp.fl.allocmapped(mpp.base, mpp.mappedsize, mpp.blocksize)
}

// Freeblock implement api.MemoryPooler{} interface. Freeing into a
// fully drained pool threads a zero next link, which the virgin aware
// pop reads as "successor adjacent"; drain-and-refill workloads should
// keep at least one block on the list.
func (mpp *Mappedpool) Freeblock(ptr unsafe.Pointer) {
	mpp.fl.free(ptr)
}

// Close unmap the region and drop the file lock, if any. Outstanding
// block pointers become invalid.
func (mpp *Mappedpool) Close() error {
	if mpp.data == nil {
		return nil
	}
	err := unix.Munmap(mpp.data)
	mpp.data, mpp.base = nil, nil
	mpp.fl.initlist()
	if mpp.lock != nil {
		if mpp.mode == Readonly {
			mpp.lock.RUnlock()
		} else {
			mpp.lock.Unlock()
		}
		if cerr := mpp.lock.Close(); err == nil {
			err = cerr
		}
		mpp.lock = nil
	}
	infof("%v closed\n", mpp.logprefix)
	return err
}
