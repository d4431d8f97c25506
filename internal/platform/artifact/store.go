// Package artifact stores export artifacts as files in a single directory.
// It is backed by an afero filesystem so tests can run against memory.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when the named artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned for names that are empty or would escape
	// the artifact directory.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Store writes and reads artifacts under dir.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a Store rooted at dir on fs, creating dir if needed.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if fs == nil {
		return nil, errors.New("filesystem cannot be nil")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// NewOSStore creates a Store on the local filesystem.
func NewOSStore(dir string) (*Store, error) {
	return NewStore(afero.NewOsFs(), dir)
}

// Write durably stores data under name. The content is written to a
// temporary file first and renamed into place, so a reader never observes
// a partially written artifact.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to sync artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close artifact %s: %w", name, err)
	}

	if err := s.fs.Rename(tmpName, s.path(name)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to publish artifact %s: %w", name, err)
	}
	return nil
}

// Open returns a reader over the named artifact and its size in bytes.
func (s *Store) Open(name string) (io.ReadCloser, int64, error) {
	if err := validateName(name); err != nil {
		return nil, 0, err
	}

	f, err := s.fs.Open(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, 0, fmt.Errorf("failed to open artifact %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("failed to stat artifact %s: %w", name, err)
	}
	return f, info.Size(), nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
