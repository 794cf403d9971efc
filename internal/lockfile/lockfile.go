// Package lockfile guards a CardDesk state directory against a second running instance.
//
// Two instances sharing a directory would both poll the reply outbox and both drive the
// whatsmeow device session. The lock is an flock on a file in the directory, so the
// kernel drops it when the process exits, cleanly or not.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created in the state directory.
const FileName = "carddesk.lock"

// ErrLocked is wrapped by HeldError.
var ErrLocked = errors.New("state directory is locked by another CardDesk instance")

// Lock is a held state-directory lock.
type Lock struct {
	file *os.File
	path string
}

// HeldError reports the lock file and, when readable, the PID that holds it.
type HeldError struct {
	Path  string
	PID   int
	Stale bool // the recorded PID is not running
}

func (e *HeldError) Error() string {
	msg := fmt.Sprintf("%v (lock file %s", ErrLocked, e.Path)
	if e.PID > 0 {
		state := "running"
		if e.Stale {
			state = "not running"
		}
		msg += fmt.Sprintf(", pid %d %s", e.PID, state)
	}
	return msg + ")"
}

func (e *HeldError) Unwrap() error {
	return ErrLocked
}

// Acquire takes an exclusive, non-blocking lock on dir, creating the directory if needed.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, FileName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	// O_TRUNC would wipe the holder's PID before we know the lock is ours.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		held := &HeldError{Path: path, PID: readPID(path)}
		held.Stale = held.PID > 0 && !processRunning(held.PID)
		slog.Error("lockfile.Acquire: state directory already locked", "lock_path", path, "pid", held.PID, "stale", held.Stale)
		return nil, held
	}

	if err := writeHolder(file); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to record lock holder in %s: %w", path, err)
	}
	slog.Info("lockfile.Acquire: state directory locked", "lock_path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

func writeHolder(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))), 0); err != nil {
		return err
	}
	return file.Sync()
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove while still holding the lock so a waiting instance never sees our PID.
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Lock.Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	slog.Info("Lock.Release: state directory unlocked", "lock_path", l.path)
	return err
}

// readPID returns the pid recorded in the lock file, or 0.
func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(line, "pid="); ok {
			if pid, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return pid
			}
		}
	}
	return 0
}

// processRunning probes pid with signal 0.
func processRunning(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
