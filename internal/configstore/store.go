package configstore

import (
	"bufio"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
)

const (
	// DefaultFileName is the backing file name inside the storage root.
	// The content is line pairs, not JSON; the name is kept so devices
	// provisioned by earlier firmware keep their settings.
	DefaultFileName = "config.json"
)

// Entry is a persisted (id, value) pair
type Entry struct {
	ID    string `json:"id" yaml:"id"`
	Value string `json:"value" yaml:"value"`
}

// CredentialEraser forgets Wi-Fi credentials held by the network driver
type CredentialEraser interface {
	ForgetCredentials() error
}

// Option configures a Store
type Option func(*Store)

// WithFileName overrides DefaultFileName
func WithFileName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// WithCredentialEraser sets the driver Erase delegates to
func WithCredentialEraser(e CredentialEraser) Option {
	return func(s *Store) {
		s.eraser = e
	}
}

// Store is a durable key/value mapping backed by one flat file, with an
// in-memory cache that mirrors the file after every successful Load or Save.
type Store struct {
	storage Storage
	name    string
	eraser  CredentialEraser

	// mu protects cache and loaded
	mu     sync.RWMutex
	cache  map[string]string
	loaded bool
}

// New creates a store on top of storage. Nothing is read until Load or
// EnsureLoaded is called.
func New(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		name:    DefaultFileName,
		cache:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the display path of the backing file
func (s *Store) Path() string {
	return s.storage.Path(s.name)
}

// Get returns the cached value for id, or "" if absent.
// It never touches storage.
func (s *Store) Get(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[id]
}

// Lookup is Get with a presence flag
func (s *Store) Lookup(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[id]
	return v, ok
}

// Loaded reports whether the cache has been populated by a successful
// Load or Save at least once
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Len returns the number of cached entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Entries returns a snapshot of the cache sorted by id
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.cache))
	for id, v := range s.cache {
		entries = append(entries, Entry{ID: id, Value: v})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// EnsureLoaded loads the backing file when the cache is empty
func (s *Store) EnsureLoaded() error {
	if s.Len() > 0 {
		return nil
	}
	return s.Load()
}

// Load reads the backing file and replaces the cache with its contents.
// A missing file is created empty first. The cache is only replaced after
// the whole file parsed, so a failed Load leaves the previous cache intact.
func (s *Store) Load() error {
	path := s.Path()

	f, err := s.open(ModeRead)
	if err != nil {
		logging.LogStorage("load", path, 0, err)
		return err
	}
	defer func() { _ = f.Close() }()

	parsed, err := parseEntries(f)
	if err != nil {
		rerr := NewReadError(path, err)
		logging.LogStorage("load", path, 0, rerr)
		return rerr
	}

	s.mu.Lock()
	s.cache = parsed
	s.loaded = true
	s.mu.Unlock()

	logging.LogStorage("load", path, len(parsed), nil)
	return nil
}

// Save replaces the cache with entries and rewrites the backing file.
// Entries are written in slice order; a repeated id keeps its first
// position and its last value. There is no protection against power loss
// mid-write: a torn write can leave an odd number of lines behind.
func (s *Store) Save(entries []Entry) error {
	path := s.Path()
	ordered := dedupe(entries)

	cache := make(map[string]string, len(ordered))
	for _, e := range ordered {
		cache[e.ID] = e.Value
	}
	s.mu.Lock()
	s.cache = cache
	s.loaded = true
	s.mu.Unlock()

	f, err := s.open(ModeWrite)
	if err != nil {
		logging.LogStorage("save", path, len(ordered), err)
		return err
	}

	var firstErr error
	for _, e := range ordered {
		if _, werr := io.WriteString(f, e.ID+"\n"+e.Value+"\n"); werr != nil && firstErr == nil {
			firstErr = werr
		}
	}
	closeErr := f.Close()

	if werr := f.WriteError(); werr != nil {
		firstErr = werr
	}
	if firstErr == nil && closeErr != nil {
		firstErr = closeErr
	}
	if firstErr != nil {
		serr := NewWriteError(path, firstErr)
		logging.LogStorage("save", path, len(ordered), serr)
		return serr
	}

	logging.LogStorage("save", path, len(ordered), nil)
	return nil
}

// Erase asks the network driver to forget stored Wi-Fi credentials.
// The key/value file is left alone; use Purge to remove it.
func (s *Store) Erase() error {
	if s.eraser == nil {
		logging.Debug("No credential eraser configured, nothing to erase")
		return nil
	}
	if err := s.eraser.ForgetCredentials(); err != nil {
		logging.Warn("Failed to forget stored credentials", zap.Error(err))
		return err
	}
	logging.Info("Stored Wi-Fi credentials forgotten")
	return nil
}

// Purge removes the backing file and clears the cache
func (s *Store) Purge() error {
	path := s.Path()
	if err := s.storage.Mount(); err != nil {
		return NewOpenError("mount", path, err)
	}
	if err := s.storage.Remove(s.name); err != nil {
		return NewWriteError(path, err)
	}

	s.mu.Lock()
	s.cache = make(map[string]string)
	s.loaded = false
	s.mu.Unlock()

	logging.Info("Backing file removed", zap.String("path", path))
	return nil
}

// open mounts storage, creates the file if needed and opens it
func (s *Store) open(mode Mode) (File, error) {
	path := s.Path()

	if err := s.storage.Mount(); err != nil {
		return nil, NewOpenError("mount", path, err)
	}
	if !s.storage.Exists(s.name) {
		if err := s.storage.Create(s.name); err != nil {
			return nil, NewOpenError("create", path, err)
		}
	}

	f, err := s.storage.Open(s.name, mode)
	if err != nil {
		return nil, NewOpenError("open "+mode.String(), path, err)
	}
	if f == nil {
		return nil, NewOpenError("open "+mode.String(), path, errors.New("storage returned no file"))
	}
	return f, nil
}

// parseEntries reads alternating id and value lines. A trailing id without
// a value line is dropped. A final value line without a line break still
// counts. Later duplicates overwrite earlier ones.
func parseEntries(r io.Reader) (map[string]string, error) {
	br := bufio.NewReader(r)
	parsed := make(map[string]string)

	for {
		id, ok, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		value, ok, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if !ok {
			logging.Debug("Ignoring trailing id without value", zap.String("id", id))
			break
		}

		parsed[id] = value
	}

	return parsed, nil
}

// readLine returns the next line without its terminator. ok is false at
// end of input.
func readLine(br *bufio.Reader) (string, bool, error) {
	line, err := br.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", false, nil
		}
		return line, true, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSuffix(line, "\n"), true, nil
}

func dedupe(entries []Entry) []Entry {
	index := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.ID]; ok {
			out[i].Value = e.Value
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
