package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var _ TokenStore = (*File)(nil)

// File is a TokenStore persisted as a single JSON file. Writes go through a
// temp-file rename so a concurrently restoring process never reads a torn file.
type File struct {
	path   string
	values map[string]string
	lock   sync.Mutex
}

// NewFile loads (or initializes) a file-backed store at path. The parent
// directory is created if missing.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[store.NewFile] MkdirAll")
	}

	f := &File{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[store.NewFile] ReadFile")
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &f.values); err != nil {
			// A corrupt store file is equivalent to an empty one: the session
			// manager's restore path settles into Unauthenticated.
			f.values = make(map[string]string)
		}
	}
	return f, nil
}

func (f *File) Get(key string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	value, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (f *File) Set(key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.values[key] = value
	return f.flushLocked()
}

func (f *File) Remove(key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.flushLocked()
}

func (f *File) flushLocked() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[store.File.flush] Marshal")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[store.File.flush] WriteFile")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrap(err, "[store.File.flush] Rename")
	}
	return nil
}
