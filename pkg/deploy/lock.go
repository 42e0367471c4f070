package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"autonet/pkg/errdefs"
)

// StagingLock guards the staging directory so only one run writes and
// pushes at a time. Release must be safe to call more than once.
type StagingLock interface {
	Acquire() error
	Release() error
}

// FlockLock is the default single-host lock: an exclusive flock on a
// well-known file inside the staging directory.
type FlockLock struct {
	Path string
	file *os.File
}

const lockFileName = ".autonet.lock"

func NewFlockLock(stageDir string) *FlockLock {
	return &FlockLock{Path: filepath.Join(stageDir, lockFileName)}
}

func (l *FlockLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("staging lock dir: %w: %v", errdefs.ErrUpload, err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("staging lock open: %w: %v", errdefs.ErrUpload, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return fmt.Errorf("staging directory is locked by another run: %w: %v", errdefs.ErrUpload, err)
	}
	l.file = f
	return nil
}

func (l *FlockLock) Release() error {
	if l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
	return err
}
