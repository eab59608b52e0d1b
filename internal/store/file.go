package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/studyquest/backend/internal/progress"
)

const appDirName = "studyquest"

// File keeps one JSON document per user in a directory, defaulting to
// ~/.local/state/studyquest (respecting XDG_STATE_HOME).
type File struct {
	dir string
}

// NewFile creates a File store rooted at dir. The directory is created
// (with parents) on the first Persist. Pass an empty string to use the
// default XDG state path.
func NewFile(dir string) *File {
	if dir == "" {
		dir = defaultStateDir()
	}
	return &File{dir: dir}
}

// Dir returns the directory holding the documents.
func (f *File) Dir() string { return f.dir }

// Path returns the document path for userID.
func (f *File) Path(userID string) string {
	return filepath.Join(f.dir, userID+".json")
}

// Fetch reads the user's snapshot. A missing file yields ErrNotFound.
func (f *File) Fetch(ctx context.Context, userID string) (*progress.Snapshot, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading progress: %w", err)
	}
	return Decode(data)
}

// Persist writes the snapshot using an atomic temp-file-then-rename pattern.
func (f *File) Persist(ctx context.Context, userID string, s *progress.Snapshot) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("creating progress dir: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path(userID)); err != nil {
		return fmt.Errorf("renaming progress file: %w", err)
	}
	committed = true

	return nil
}

// checkUserID rejects IDs that would escape the store directory.
func checkUserID(userID string) error {
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) {
		return fmt.Errorf("invalid user id %q", userID)
	}
	return nil
}

// defaultStateDir returns ~/.local/state/studyquest, respecting
// XDG_STATE_HOME if set.
func defaultStateDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
