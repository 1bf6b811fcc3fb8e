// Package localstatefile keeps the local state of a profile in a YAML document on disk.
package localstatefile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/openkcm/course-client/internal/localstate"
)

const fileMode = 0o600

type Store struct {
	path string
	mu   sync.Mutex
}

var _ = localstate.Store(&Store{})

// NewStore keeps the profile state in <dir>/<profile>.yaml.
func NewStore(dir, profile string) *Store {
	return &Store{
		path: filepath.Join(os.ExpandEnv(dir), profile+".yaml"),
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}

	value, ok := doc[key]
	if !ok {
		return "", localstate.ErrNotFound
	}

	return value, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil && !errors.Is(err, localstate.ErrCorrupted) {
		return err
	}
	if doc == nil {
		doc = map[string]string{}
	}

	doc[key] = value

	return s.write(doc)
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		if errors.Is(err, localstate.ErrCorrupted) {
			return s.write(map[string]string{})
		}
		return err
	}

	if _, ok := doc[key]; !ok {
		return nil
	}

	delete(doc, key)

	return s.write(doc)
}

// read returns an empty document when the file does not exist yet.
func (s *Store) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	doc := map[string]string{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(localstate.ErrCorrupted, fmt.Errorf("unmarshaling state file: %w", err))
	}

	return doc, nil
}

// write replaces the file atomically so a crash never leaves a truncated document.
func (s *Store) write(doc map[string]string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling state file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting state file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}

	return nil
}
