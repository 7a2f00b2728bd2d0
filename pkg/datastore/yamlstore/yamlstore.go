// Package yamlstore is a datastore backend on a flat YAML file.
//
// The file maps each preference name to its kind and value:
//
//	retries:
//	    kind: int
//	    value: "5"
//
// Names are literal strings, not nested paths. yaml.Marshal sorts map keys,
// so the output is deterministic and diff-friendly. Writers from several
// processes coordinate through an flock on path + ".lock".
package yamlstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/prefstate/pkg/datastore"
)

// FileName is the default file name inside a data directory.
const FileName = "prefs.yaml"

const defaultDebounce = 200 * time.Millisecond

// Option configures a Store.
type Option func(*Store)

// WithDebounce sets how long the file must stay quiet before Watch reports
// a change.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store reads and writes preferences in a YAML file.
type Store struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// New returns a Store for path. A missing file is an empty store; the file
// is created on the first commit. An existing file must parse.
func New(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.readFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Load reads the file. Commits replace it by rename, so no lock is needed.
// Entries with an invalid name or kind are logged and left out.
func (s *Store) Load(ctx context.Context) (map[string]datastore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.readFromDisk()
	if err != nil {
		return nil, err
	}
	for name, e := range data {
		err := datastore.ValidateName(name)
		if err == nil {
			err = e.Validate()
		}
		if err != nil {
			s.logger.Warn("yamlstore: skipping invalid entry", "path", s.path, "name", name, "error", err)
			delete(data, name)
		}
	}
	return data, nil
}

// Commit applies changes to the latest file contents while holding the
// lock, so writers in other processes are merged rather than overwritten.
// Entries this process cannot read are carried over untouched.
func (s *Store) Commit(ctx context.Context, changes []datastore.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("yamlstore: %w", err)
	}
	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	data, err := s.readFromDisk()
	if err != nil {
		return err
	}
	for _, c := range changes {
		if c.Delete {
			delete(data, c.Name)
		} else {
			data[c.Name] = c.Entry
		}
	}
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("yamlstore: encoding %s: %w", s.path, err)
	}
	return replaceFile(s.path, raw)
}

func (s *Store) Close() error { return nil }

func (s *Store) readFromDisk() (map[string]datastore.Entry, error) {
	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return map[string]datastore.Entry{}, nil
	case err != nil:
		return nil, fmt.Errorf("yamlstore: %w", err)
	}
	data := map[string]datastore.Entry{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("yamlstore: parsing %s: %w", s.path, err)
	}
	if data == nil {
		// An empty or null document.
		data = map[string]datastore.Entry{}
	}
	return data, nil
}

// lockFile takes an exclusive flock on path. The returned func releases it.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("yamlstore: opening lock: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("yamlstore: locking %s: %w", path, err)
	}
	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}

// replaceFile writes data next to path, syncs it and renames it over path.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("yamlstore: %w", err)
	}
	name := tmp.Name()
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(name, 0o644)
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("yamlstore: writing %s: %w", path, err)
	}
	return nil
}

var (
	_ datastore.Backend = (*Store)(nil)
	_ datastore.Watcher = (*Store)(nil)
)
