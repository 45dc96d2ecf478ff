package sysexec

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ProcessLock is the whole-process advisory lock acquired at engine
// construction (spec.md §5): exclusive for a read-write instance, shared for
// a read-only one. Multiple read-only instances may coexist with at most one
// exclusive instance; construction fails with the competing process's PID
// when that invariant would be violated.
type ProcessLock struct {
	file *os.File
	path string
}

// Acquire opens (creating if necessary) the lock file at path and takes a
// flock of the requested mode. On contention it returns the PID recorded in
// the file by the lock holder, if one was written, and a non-nil error.
func Acquire(path string, exclusive bool) (*ProcessLock, int, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("opening lock file %s: %w", path, err)
	}

	how := unix.LOCK_SH | unix.LOCK_NB
	if exclusive {
		how = unix.LOCK_EX | unix.LOCK_NB
	}

	if err := unix.Flock(int(f.Fd()), how); err != nil {
		pid := readPid(f)
		f.Close()
		return nil, pid, fmt.Errorf("storage engine lock held by pid %d: %w", pid, err)
	}

	if exclusive {
		f.Truncate(0)
		f.Seek(0, 0)
		fmt.Fprintf(f, "%d", os.Getpid())
	}

	return &ProcessLock{file: f, path: path}, 0, nil
}

// Release drops the advisory lock and closes the underlying file.
func (l *ProcessLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	return l.file.Close()
}

func readPid(f *os.File) int {
	buf := make([]byte, 32)
	f.Seek(0, 0)
	n, _ := f.Read(buf)
	var pid int
	fmt.Sscanf(string(buf[:n]), "%d", &pid)
	return pid
}
