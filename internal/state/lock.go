package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

const lockFileName = ".plan.lock"

// FileLock provides mutual exclusion over the plan directory using
// flock(2) across processes and a mutex across goroutines of this one.
type FileLock struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewFileLock creates a FileLock whose lock file lives in dir.
func NewFileLock(dir string) *FileLock {
	return &FileLock{path: filepath.Join(dir, lockFileName)}
}

// Lock blocks until the lock is held.
func (fl *FileLock) Lock() error {
	fl.mu.Lock()

	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		fl.mu.Unlock()
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		fl.mu.Unlock()
		return fmt.Errorf("flock: %w", err)
	}
	fl.file = f
	return nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}
	defer fl.mu.Unlock()

	err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN)
	closeErr := fl.file.Close()
	fl.file = nil
	if err != nil {
		return fmt.Errorf("funlock: %w", err)
	}
	return closeErr
}
