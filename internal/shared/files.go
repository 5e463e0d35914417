package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes a file by streaming into a temporary sibling and renaming it over path.
//
// Readers see either the previous contents or the complete new file. On any failure the
// temporary file is removed and path is left untouched.
func WriteFileAtomic(path string, perm os.FileMode, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileWrite, path, err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileWrite, path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileWrite, path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileWrite, path, err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileWrite, path, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileWrite, path, err)
	}
	return nil
}

// CheckOutputPath verifies that the directory holding path exists and that path itself is not a directory.
func CheckOutputPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty output path", ErrInvalidArgument)
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileWrite, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s: %s is not a directory", ErrFileWrite, path, dir)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileWrite, path)
	}
	return nil
}
