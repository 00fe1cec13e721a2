// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ssutikno/chat-node-n8n/internal/util"
)

// FileKV keeps each key in BaseDir/<key>.json.
type FileKV struct {
	// BaseDir is the directory holding the value files.
	BaseDir string

	mu sync.Mutex
}

// NewFileKV creates a store in baseDir, creating it if needed.
func NewFileKV(baseDir string) (*FileKV, error) {
	if baseDir == "" {
		return nil, &StorageError{Message: "empty state directory"}
	}
	if err := os.MkdirAll(baseDir, util.DefaultDirPerm); err != nil {
		return nil, &StorageError{Message: "failed to create state directory", Cause: err}
	}
	return &FileKV{BaseDir: baseDir}, nil
}

// Get reads the value stored under key.
func (s *FileKV) Get(key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(key)
		}
		return nil, &StorageError{Message: "failed to read value", Key: key, Cause: err}
	}
	return data, nil
}

// Set replaces the value stored under key.
func (s *FileKV) Set(key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWriteFile(s.filePath(key), value, 0600); err != nil {
		return &StorageError{Message: "failed to write value", Key: key, Cause: err}
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
func (s *FileKV) Close() error {
	return nil
}

// filePath returns the file path for a key.
func (s *FileKV) filePath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}
