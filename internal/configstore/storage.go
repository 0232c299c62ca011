package configstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Mode selects how the backing file is opened
type Mode int

const (
	// ModeRead opens an existing file for reading
	ModeRead Mode = iota
	// ModeWrite opens a file for writing, truncating it
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "w"
	}
	return "r"
}

// File is an open backing file.
// WriteError reports the first fault seen by Write, if any, so callers can
// write several chunks and check once before declaring success.
type File interface {
	io.Reader
	io.Writer
	io.Closer
	WriteError() error
}

// Storage is the filesystem the store reads and writes through.
// Names are relative to the storage root.
type Storage interface {
	// Mount prepares the storage for use. Safe to call repeatedly.
	Mount() error
	// Exists reports whether name is present.
	Exists(name string) bool
	// Create creates an empty file named name.
	Create(name string) error
	// Open opens name in the given mode.
	Open(name string, mode Mode) (File, error)
	// Remove deletes name. Removing a missing file is not an error.
	Remove(name string) error
	// Path returns a display path for name.
	Path(name string) string
}

// DirStorage stores files in a directory on the local filesystem.
// This is what the daemon uses on Linux targets where the persistent
// partition is mounted as a plain directory.
type DirStorage struct {
	dir string
}

// NewDirStorage creates storage rooted at dir
func NewDirStorage(dir string) *DirStorage {
	return &DirStorage{dir: dir}
}

// Mount creates the root directory with user-only permissions
func (s *DirStorage) Mount() error {
	if s.dir == "" {
		return fmt.Errorf("storage directory not configured")
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// Exists reports whether name exists under the root
func (s *DirStorage) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Create creates an empty file, leaving an existing one untouched
func (s *DirStorage) Create(name string) error {
	f, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

// Open opens name for reading or truncating write
func (s *DirStorage) Open(name string, mode Mode) (File, error) {
	var (
		f   *os.File
		err error
	)
	switch mode {
	case ModeWrite:
		f, err = os.OpenFile(s.Path(name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	default:
		f, err = os.Open(s.Path(name))
	}
	if err != nil {
		return nil, err
	}
	return &osFile{File: f}, nil
}

// Remove deletes name
func (s *DirStorage) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path returns the full filesystem path for name
func (s *DirStorage) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// osFile records the first write failure. Close also syncs writable files so
// a successful Save has reached the device.
type osFile struct {
	*os.File
	mu       sync.Mutex
	writeErr error
	wrote    bool
}

func (f *osFile) Write(p []byte) (int, error) {
	n, err := f.File.Write(p)
	f.mu.Lock()
	f.wrote = true
	if err != nil && f.writeErr == nil {
		f.writeErr = err
	}
	f.mu.Unlock()
	return n, err
}

func (f *osFile) Close() error {
	f.mu.Lock()
	wrote := f.wrote
	f.mu.Unlock()
	if wrote {
		if err := f.File.Sync(); err != nil {
			f.mu.Lock()
			if f.writeErr == nil {
				f.writeErr = err
			}
			f.mu.Unlock()
		}
	}
	return f.File.Close()
}

func (f *osFile) WriteError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeErr
}
