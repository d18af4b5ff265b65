// Package filex contains file helpers used by the key generation tool.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir resolves dir against the working directory when it is relative
// and creates it (with parents) if missing. It returns the absolute path.
func EnsureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// WriteSecret writes data to path readable only by the owner. Unless
// overwrite is set, an existing file makes it fail with fs.ErrExist.
func WriteSecret(path string, data []byte, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// StageSecret writes data to a new owner-only temp file in dir and returns
// its path. The caller moves it into place with Install or removes it.
func StageSecret(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}
	return tmp, nil
}

// Install moves a staged file to path. Unless overwrite is set, an existing
// path makes it fail with fs.ErrExist and the staged file is left alone.
func Install(staged, path string, overwrite bool) error {
	if overwrite {
		if err := os.Rename(staged, path); err != nil {
			return fmt.Errorf("install %s: %w", path, err)
		}
		return nil
	}

	if err := os.Link(staged, path); err != nil {
		return fmt.Errorf("install %s: %w", path, err)
	}
	return os.Remove(staged)
}
