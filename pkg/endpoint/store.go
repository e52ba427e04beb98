// ABOUTME: JSON file storage for endpoints
// ABOUTME: Loads and atomically saves the endpoint list
package endpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists endpoints to a JSON file
type Store struct {
	path string
}

type storeFile struct {
	Endpoints []Endpoint `json:"endpoints"`
}

// NewStore creates a store backed by path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStorePath returns the endpoint file under the user config directory
func DefaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "vbancast", "endpoints.json"), nil
}

// Path returns the backing file path
func (s *Store) Path() string { return s.path }

// Load reads the endpoint list. A missing file yields an empty list.
func (s *Store) Load() ([]Endpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return f.Endpoints, nil
}

// Save writes the endpoint list via a temporary file and rename
func (s *Store) Save(endpoints []Endpoint) error {
	if endpoints == nil {
		endpoints = []Endpoint{}
	}
	data, err := json.MarshalIndent(storeFile{Endpoints: endpoints}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode endpoints: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".endpoints-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write endpoints: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write endpoints: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
