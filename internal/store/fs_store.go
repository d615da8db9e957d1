package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

const tempSuffix = ".tmp"

// FSStore implements Store on a single output directory.
//
// Thread-safety: writes go to a temp file that is renamed into place, so
// readers never see a partial snapshot. Concurrent runs should use separate
// directories since Clear removes everything.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem store rooted at baseDir, creating it if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// Dir returns the output directory
func (fs *FSStore) Dir() string {
	return fs.baseDir
}

// Path returns the filesystem path of a snapshot name
func (fs *FSStore) Path(name string) string {
	return filepath.Join(fs.baseDir, name)
}

// Clear removes all regular files in the output directory.
func (fs *FSStore) Clear() error {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(fs.Path(entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}

	slog.Debug("Cleared outputs", "dir", fs.baseDir, "removed", removed)
	return nil
}

// Create writes a snapshot atomically using the temp file + rename pattern.
func (fs *FSStore) Create(name string, write func(w io.Writer) error) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if write == nil {
		return "", fmt.Errorf("write function cannot be nil")
	}

	tempPath := fs.Path(name) + tempSuffix
	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close temp snapshot file: %w", err)
	}

	finalPath := fs.Path(name)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	slog.Debug("Snapshot saved", "name", name, "path", finalPath)
	return name, nil
}

// Open returns a reader for an existing snapshot
func (fs *FSStore) Open(name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(fs.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{Name: name}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	return f, nil
}

// List returns metadata for all stored files, snapshots first by iteration.
func (fs *FSStore) List() ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	infos := []SnapshotInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == tempSuffix {
			continue
		}

		fi, err := entry.Info()
		if errors.Is(err, os.ErrNotExist) {
			continue // Removed while listing
		} else if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		iteration, ok := ParseIteration(entry.Name())
		if !ok {
			iteration = -1
		}
		infos = append(infos, SnapshotInfo{
			Name:      entry.Name(),
			Iteration: iteration,
			Size:      fi.Size(),
			ModTime:   fi.ModTime(),
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if (a.Iteration < 0) != (b.Iteration < 0) {
			return a.Iteration >= 0
		}
		if a.Iteration != b.Iteration {
			return a.Iteration < b.Iteration
		}
		return a.Name < b.Name
	})

	slog.Debug("Listed snapshots", "count", len(infos))
	return infos, nil
}

// Delete removes a single snapshot
func (fs *FSStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := os.Remove(fs.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Name: name}
	} else if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	slog.Debug("Snapshot deleted", "name", name)
	return nil
}
