package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotation bounds the size of the log file written by a long-running
// process such as panedrive serve.
type Rotation struct {
	// MaxSizeMB is the size at which the live file is rotated. Zero disables rotation.
	MaxSizeMB int
	// MaxBackups is how many rotated files (panedrive.log.1, .2, ...) are kept.
	MaxBackups int
}

func (r Rotation) limit() int64 {
	return int64(r.MaxSizeMB) * 1024 * 1024
}

// rotatingFile is an append-only file that shifts itself to numbered
// backups before a write would take it past its size limit.
type rotatingFile struct {
	mu      sync.Mutex
	path    string
	limit   int64
	backups int
	file    *os.File
	size    int64
}

func openRotatingFile(path string, r Rotation) (*rotatingFile, error) {
	f := &rotatingFile{path: path, limit: r.limit(), backups: r.MaxBackups}
	if err := f.open(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *rotatingFile) open() error {
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	f.file = file
	f.size = info.Size()
	return nil
}

// Write appends p, rotating first when the limit would be exceeded. A single
// entry larger than the limit is still written whole to a fresh file.
func (f *rotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, os.ErrClosed
	}
	if f.limit > 0 && f.size > 0 && f.size+int64(len(p)) > f.limit {
		if err := f.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

func (f *rotatingFile) rotate() error {
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file for rotation: %w", err)
	}
	f.file = nil

	if f.backups <= 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove log file: %w", err)
		}
		return f.open()
	}

	_ = os.Remove(backupName(f.path, f.backups))
	for i := f.backups - 1; i >= 1; i-- {
		if err := os.Rename(backupName(f.path, i), backupName(f.path, i+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to shift log backup: %w", err)
		}
	}
	if err := os.Rename(f.path, backupName(f.path, 1)); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return f.open()
}

func (f *rotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// Backups lists the rotated files that exist for the log in dir, newest first.
func Backups(dir string) []string {
	var found []string
	for i := 1; ; i++ {
		name := backupName(filepath.Join(dir, LogFileName), i)
		if _, err := os.Stat(name); err != nil {
			return found
		}
		found = append(found, name)
	}
}
