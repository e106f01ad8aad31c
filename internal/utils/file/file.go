// Package file provides file utilities shared by the stores and the installer steps.
package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrFreeSpaceUnsupported is returned when the platform can't report free disk space.
var ErrFreeSpaceUnsupported = errors.New("free space not supported")

// WriteAtomic replaces the file at path with data. The data is written to a temporary file
// in the same directory and renamed over the destination, readers see the old or the new
// content, never a partial one.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // No-op after a successful rename.

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write temporary file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temporary file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("could not set file permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("could not replace %s: %w", path, err)
	}

	return nil
}

// Exists returns true if path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirWritable checks that dir exists (creating it if needed) and that a file can be created inside.
func DirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	return nil
}
