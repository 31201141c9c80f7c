package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

type FileDocuments struct {
	dir string
	mu  sync.Mutex
}

func NewFileDocuments(dir string) (*FileDocuments, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileDocuments{dir: dir}, nil
}

func (d *FileDocuments) path(name string) string {
	return filepath.Join(d.dir, name+".json")
}

func (d *FileDocuments) Get(_ context.Context, name string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := os.ReadFile(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

// Put replaces the document atomically: write a temp file, sync, rename.
func (d *FileDocuments) Put(_ context.Context, name string, body []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	tmp, err := os.CreateTemp(d.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, d.path(name))
}

func (d *FileDocuments) Ping(context.Context) error {
	_, err := os.Stat(d.dir)
	return err
}

func (d *FileDocuments) Close() error { return nil }
