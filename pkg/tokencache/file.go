package tokencache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// File stores tokens in a YAML document on disk. The file is re-read on
// every Get so several processes can share it; concurrent writers are
// last-writer-wins.
type File struct {
	path    string
	nowFunc func() time.Time

	mu sync.Mutex
}

// FileOption configures a File store.
type FileOption func(*File)

// WithFileNowFunc overrides the time function for testing.
func WithFileNowFunc(f func() time.Time) FileOption {
	return func(s *File) {
		s.nowFunc = f
	}
}

// NewFile creates a File store at path. The file is created on first Set.
func NewFile(path string, opts ...FileOption) *File {
	s := &File{path: path, nowFunc: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *File) Path() string {
	return s.path
}

// Get returns the value stored under key. Expired entries are absent.
func (s *File) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return "", false, err
	}
	r, ok := records[key]
	if !ok || r.expired(s.nowFunc()) {
		return "", false, nil
	}
	return r.Value, true, nil
}

// Set stores value under key and drops expired entries.
func (s *File) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	now := s.nowFunc()
	for k, r := range records {
		if r.expired(now) {
			delete(records, k)
		}
	}
	records[key] = newRecord(value, ttl, now)

	return s.save(records)
}

// Close is a no-op.
func (*File) Close() error {
	return nil
}

func (s *File) load() (map[string]record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	records := make(map[string]record)
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return records, nil
}

func (s *File) save(records map[string]record) error {
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error wins
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}
