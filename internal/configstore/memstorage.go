package configstore

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrInjected is returned by MemStorage when a fault has been injected
var ErrInjected = errors.New("injected storage fault")

// MemStorage is an in-memory Storage with fault injection.
// It stands in for the flash filesystem in tests and in --mock runs.
type MemStorage struct {
	mu    sync.Mutex
	files map[string][]byte

	// FailMount makes Mount fail.
	FailMount bool
	// FailCreate makes Create fail.
	FailCreate bool
	// FailOpen makes Open fail for the listed modes.
	FailOpen map[Mode]bool
	// FailWriteAfter makes writes fail once this many bytes have been
	// written to the current handle. Negative disables the fault.
	FailWriteAfter int
	// ReadErr, when set, is returned by Read after the file content.
	ReadErr error

	opens  int
	closes int
}

// NewMemStorage creates an empty in-memory storage
func NewMemStorage() *MemStorage {
	return &MemStorage{
		files:          make(map[string][]byte),
		FailOpen:       make(map[Mode]bool),
		FailWriteAfter: -1,
	}
}

// Mount succeeds unless FailMount is set
func (s *MemStorage) Mount() error {
	if s.FailMount {
		return ErrInjected
	}
	return nil
}

// Exists reports whether name is present
func (s *MemStorage) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}

// Create creates an empty file
func (s *MemStorage) Create(name string) error {
	if s.FailCreate {
		return ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		s.files[name] = nil
	}
	return nil
}

// Open opens name. Write mode truncates immediately, so a failed write
// leaves a torn file behind just like flash storage would.
func (s *MemStorage) Open(name string, mode Mode) (File, error) {
	if s.FailOpen[mode] {
		return nil, ErrInjected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[name]
	if !ok && mode == ModeRead {
		return nil, io.ErrUnexpectedEOF
	}
	s.opens++

	f := &memFile{storage: s, name: name, mode: mode, failAfter: s.FailWriteAfter}
	if mode == ModeWrite {
		s.files[name] = nil
	} else {
		f.reader = bytes.NewReader(append([]byte(nil), data...))
		f.readErr = s.ReadErr
	}
	return f, nil
}

// Remove deletes name
func (s *MemStorage) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	return nil
}

// Path returns name unchanged
func (s *MemStorage) Path(name string) string {
	return "mem:" + name
}

// Contents returns a copy of the file content and whether it exists
func (s *MemStorage) Contents(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return string(data), ok
}

// SetContents replaces the file content
func (s *MemStorage) SetContents(name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = []byte(content)
}

// OpenHandles returns the number of handles opened but not yet closed
func (s *MemStorage) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens - s.closes
}

type memFile struct {
	storage   *MemStorage
	name      string
	mode      Mode
	reader    *bytes.Reader
	readErr   error
	written   int
	failAfter int
	writeErr  error
	closed    bool
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.mode != ModeRead {
		return 0, errors.New("file not opened for reading")
	}
	n, err := f.reader.Read(p)
	if err == io.EOF && f.readErr != nil {
		return n, f.readErr
	}
	return n, err
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.mode != ModeWrite {
		return 0, errors.New("file not opened for writing")
	}

	n := len(p)
	if f.failAfter >= 0 && f.written+n > f.failAfter {
		n = f.failAfter - f.written
		if n < 0 {
			n = 0
		}
		if f.writeErr == nil {
			f.writeErr = ErrInjected
		}
	}

	f.storage.mu.Lock()
	f.storage.files[f.name] = append(f.storage.files[f.name], p[:n]...)
	f.storage.mu.Unlock()
	f.written += n

	if n < len(p) {
		return n, ErrInjected
	}
	return n, nil
}

func (f *memFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.storage.mu.Lock()
	f.storage.closes++
	f.storage.mu.Unlock()
	return nil
}

func (f *memFile) WriteError() error {
	return f.writeErr
}
