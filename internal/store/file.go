// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/wingedpig/gamepanel/internal/instance"
)

// FileStore keeps all records in one JSON file.
type FileStore struct {
	fs       afero.Fs
	filePath string
}

// NewFileStore creates a store backed by filePath on fs.
func NewFileStore(fs afero.Fs, filePath string) *FileStore {
	return &FileStore{fs: fs, filePath: filePath}
}

// Path returns the file the records are written to.
func (s *FileStore) Path() string {
	return s.filePath
}

// Load reads the records from disk. Returns no records if the file does not
// exist.
func (s *FileStore) Load() ([]instance.Record, error) {
	data, err := afero.ReadFile(s.fs, s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read instances file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []instance.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse instances file: %w", err)
	}
	return records, nil
}

// Save writes the records to disk atomically (write tmp + rename).
func (s *FileStore) Save(records []instance.Record) error {
	if records == nil {
		records = []instance.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal instances: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create instances dir: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := afero.WriteFile(s.fs, tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp instances file: %w", err)
	}
	if err := s.fs.Rename(tmpPath, s.filePath); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("rename instances file: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
