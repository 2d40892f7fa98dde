package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileDestination writes reports to a local file, replacing it atomically.
type FileDestination struct {
	path string
}

// NewFileDestination creates a destination writing to path. "-" writes to stdout.
func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

func (d *FileDestination) Name() string { return d.path }

func (d *FileDestination) Write(_ context.Context, data []byte) error {
	if d.path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".reconcile-*.jsonl")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("rename to %s: %w", d.path, err)
	}
	return nil
}
