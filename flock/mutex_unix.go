//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

// Package flock guards a memory pool's backing file across processes.
// Mutex behaves like sync.RWMutex but synchronizes through an advisory
// lock on a sidecar file, so that one process maps a persistent pool
// writable while readers hold shared locks.
package flock

import "sync"

import "golang.org/x/sys/unix"

// Mutex is equivalent to sync.RWMutex, but synchronizes across
// processes through the lock file supplied to New.
type Mutex struct {
	mu sync.RWMutex
	fd int
}

// New create a lock over filename, creating the file when missing.
func New(filename string) (*Mutex, error) {
	fd, err := unix.Open(filename, unix.O_CREAT|unix.O_RDONLY, 0750)
	if err != nil {
		return nil, err
	}
	return &Mutex{fd: fd}, nil
}

// Lock take the lock exclusive. Blocks until every other holder, in
// this process or another, lets go.
func (rw *Mutex) Lock() {
	rw.mu.Lock()
	if err := unix.Flock(rw.fd, unix.LOCK_EX); err != nil {
		panic(err)
	}
}

// Unlock release an exclusive hold.
func (rw *Mutex) Unlock() {
	if err := unix.Flock(rw.fd, unix.LOCK_UN); err != nil {
		panic(err)
	}
	rw.mu.Unlock()
}

// RLock take the lock shared.
func (rw *Mutex) RLock() {
	rw.mu.RLock()
	if err := unix.Flock(rw.fd, unix.LOCK_SH); err != nil {
		panic(err)
	}
}

// RUnlock undo a single RLock call.
func (rw *Mutex) RUnlock() {
	if err := unix.Flock(rw.fd, unix.LOCK_UN); err != nil {
		panic(err)
	}
	rw.mu.RUnlock()
}

// Close the lock file descriptor. Any hold this process still has is
// dropped with it.
func (rw *Mutex) Close() error {
	return unix.Close(rw.fd)
}
