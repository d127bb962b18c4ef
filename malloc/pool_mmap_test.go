//go:build linux

package malloc

import "os"
import "path/filepath"
import "testing"
import "unsafe"

import s "github.com/prataprc/gosettings"
import "github.com/stretchr/testify/require"

func TestMappedpoolErrors(t *testing.T) {
	skipodd(t)
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.pool")

	// no file, no size
	_, err := NewMappedpool(missing, 4096, nil)
	require.ErrorIs(t, err, ErrmapNoSize)

	// no file, readonly
	_, err = NewMappedpool(missing, 4096,
		s.Settings{"filesize": 16384, "mode": "readonly"})
	require.ErrorIs(t, err, ErrmapNoFile)

	// no file, copy on write
	_, err = NewMappedpool(missing, 4096,
		s.Settings{"filesize": 16384, "mode": "copyonwrite"})
	require.ErrorIs(t, err, ErrmapNoFile)

	// unaligned file size
	_, err = NewMappedpool(missing, 4096, s.Settings{"filesize": 1000})
	require.ErrorIs(t, err, ErrmapSizeAlign)

	// not a regular file
	_, err = NewMappedpool(dir, 4096, s.Settings{"filesize": 16384})
	require.ErrorIs(t, err, ErrmapNotRegular)

	// existing file, mismatched size
	existing := filepath.Join(dir, "existing.pool")
	mpp, err := NewMappedpool(existing, 4096, s.Settings{"filesize": 16384})
	require.NoError(t, err)
	require.NoError(t, mpp.Close())
	_, err = NewMappedpool(existing, 4096, s.Settings{"filesize": 32768})
	require.ErrorIs(t, err, ErrmapSizeMismatch)

	// existing file, odd size on disk
	odd := filepath.Join(dir, "odd.pool")
	require.NoError(t, os.WriteFile(odd, make([]byte, 1000), 0644))
	_, err = NewMappedpool(odd, 4096, nil)
	require.ErrorIs(t, err, ErrmapSizeAlign)

	// existing read-only file
	readonly := filepath.Join(dir, "readonly.pool")
	require.NoError(t, os.WriteFile(readonly, make([]byte, 16384), 0444))
	_, err = NewMappedpool(readonly, 4096, nil)
	require.ErrorIs(t, err, ErrmapNotWritable)
	_, err = NewMappedpool(readonly, 4096,
		s.Settings{"mode": "copyonwrite", "zeroinit": true})
	require.ErrorIs(t, err, ErrmapZeroinit)

	// zeroinit on a readonly mapping
	_, err = NewMappedpool(readonly, 4096,
		s.Settings{"mode": "readonly", "zeroinit": true})
	require.ErrorIs(t, err, ErrmapZeroinit)
}

func TestMappedpoolVirginwalk(t *testing.T) {
	skipodd(t)
	path := filepath.Join(t.TempDir(), "virgin.pool")
	mpp, err := NewMappedpool(path, 4096, s.Settings{"filesize": 16384})
	require.NoError(t, err)
	defer mpp.Close()

	// four blocks in file order, then exhausted
	base := uintptr(mpp.base)
	for k := int64(0); k < 4; k++ {
		ptr := mpp.Allocblock()
		if ptr == nil {
			t.Fatalf("unexpected nil block at %v", k)
		} else if uintptr(ptr) != base+uintptr(k*4096) {
			t.Errorf("expected %x, got %x", base+uintptr(k*4096), uintptr(ptr))
		}
	}
	if ptr := mpp.Allocblock(); ptr != nil {
		t.Errorf("expected exhausted pool, got %p", ptr)
	}
}

func TestMappedpoolRoundtrip(t *testing.T) {
	skipodd(t)
	path := filepath.Join(t.TempDir(), "roundtrip.pool")
	mpp, err := NewMappedpool(path, 4096, s.Settings{"filesize": 32768})
	require.NoError(t, err)
	defer mpp.Close()

	p1, p2 := mpp.Allocblock(), mpp.Allocblock()
	mpp.Freeblock(p2)
	if ptr := mpp.Allocblock(); ptr != p2 {
		t.Errorf("expected %p, got %p", p2, ptr)
	}
	mpp.Freeblock(p1)
	// p1's link carries the virgin head, not a zero word
	if ptr := mpp.Allocblock(); ptr != p1 {
		t.Errorf("expected %p, got %p", p1, ptr)
	}
}

func TestMappedpoolPersistent(t *testing.T) {
	skipodd(t)
	path := filepath.Join(t.TempDir(), "persist.pool")
	mpp, err := NewMappedpool(path, 4096, s.Settings{"filesize": 16384})
	require.NoError(t, err)

	ptr := mpp.Allocblock()
	copy(unsafe.Slice((*byte)(ptr), 4096), "hello mapped pool")
	require.NoError(t, mpp.Close())

	// reopen: content persisted, the free list is virgin full again
	mpp, err = NewMappedpool(path, 4096, nil)
	require.NoError(t, err)
	ptr = mpp.Allocblock()
	require.Equal(t, "hello mapped pool",
		string(unsafe.Slice((*byte)(ptr), 17)))
	require.NoError(t, mpp.Close())

	// zeroinit wipes it
	mpp, err = NewMappedpool(path, 4096, s.Settings{"zeroinit": true})
	require.NoError(t, err)
	ptr = mpp.Allocblock()
	for i, c := range unsafe.Slice((*byte)(ptr), 4096) {
		if c != 0 {
			t.Fatalf("unexpected byte %v at %v", c, i)
		}
	}
	require.NoError(t, mpp.Close())
}

func TestMappedpoolCopyonwrite(t *testing.T) {
	skipodd(t)
	path := filepath.Join(t.TempDir(), "cow.pool")
	mpp, err := NewMappedpool(path, 4096, s.Settings{"filesize": 16384})
	require.NoError(t, err)
	ptr := mpp.Allocblock()
	copy(unsafe.Slice((*byte)(ptr), 4096), "original")
	require.NoError(t, mpp.Close())

	// private mapping: stores never reach the file
	mpp, err = NewMappedpool(path, 4096, s.Settings{"mode": "copyonwrite"})
	require.NoError(t, err)
	require.Equal(t, Copyonwrite, mpp.Mode())
	ptr = mpp.Allocblock()
	copy(unsafe.Slice((*byte)(ptr), 4096), "scribble")
	require.NoError(t, mpp.Close())

	mpp, err = NewMappedpool(path, 4096, nil)
	require.NoError(t, err)
	ptr = mpp.Allocblock()
	require.Equal(t, "original", string(unsafe.Slice((*byte)(ptr), 8)))
	require.NoError(t, mpp.Close())
}

func TestMappedpoolReadonly(t *testing.T) {
	skipodd(t)
	path := filepath.Join(t.TempDir(), "read.pool")
	mpp, err := NewMappedpool(path, 4096, s.Settings{"filesize": 16384})
	require.NoError(t, err)
	require.NoError(t, mpp.Close())

	mpp, err = NewMappedpool(path, 4096, s.Settings{"mode": "readonly"})
	require.NoError(t, err)
	require.Equal(t, Readonly, mpp.Mode())
	require.Equal(t, int64(16384), mpp.Mappedsize())
	require.NoError(t, mpp.Close())
}

func TestMappedpoolFlock(t *testing.T) {
	skipodd(t)
	path := filepath.Join(t.TempDir(), "locked.pool")
	mpp, err := NewMappedpool(path, 4096,
		s.Settings{"filesize": 16384, "flock": true})
	require.NoError(t, err)

	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Errorf("expected lock file, got %v", err)
	}
	require.NoError(t, mpp.Close())
}
