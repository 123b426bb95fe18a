package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage serves media straight from a directory shared with the upload
// handler. Relative locations resolve against root.
type Storage struct {
	root string
}

func NewStorage(root string) *Storage {
	return &Storage{root: root}
}

func (s *Storage) resolve(location string) string {
	if filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(s.root, filepath.FromSlash(location))
}

// Fetch returns the file in place; nothing is copied.
func (s *Storage) Fetch(_ context.Context, location, _ string) (string, error) {
	path := s.resolve(location)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat %s: %w", location, err)
	}
	return path, nil
}

func (s *Storage) Publish(_ context.Context, localPath, location, _ string) error {
	dest := s.resolve(location)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", location, err)
	}
	if err := os.Rename(localPath, dest); err == nil {
		return nil
	}
	// rename fails across filesystems
	if err := copyFile(localPath, dest); err != nil {
		return fmt.Errorf("publish %s: %w", location, err)
	}
	return nil
}

func (s *Storage) Remove(_ context.Context, location string) error {
	err := os.Remove(s.resolve(location))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", location, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
