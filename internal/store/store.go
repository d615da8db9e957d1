package store

import "io"

// Store defines where snapshot artifacts of a run are kept.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a snapshot doesn't exist (for Open/Delete)
//   - Return *ValidationError for names that are not plain file names
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// Clear removes every artifact left by earlier runs.
	Clear() error

	// Create atomically writes a snapshot under name and returns the name.
	// write receives the destination; if it fails nothing is left behind.
	Create(name string, write func(w io.Writer) error) (string, error)

	// Open returns a reader for an existing snapshot.
	Open(name string) (io.ReadCloser, error)

	// List returns metadata for all snapshots, ordered by iteration.
	List() ([]SnapshotInfo, error)

	// Delete removes a single snapshot.
	Delete(name string) error
}

// ErrNotFound is returned when a requested snapshot does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing snapshot.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return "snapshot not found: " + e.Name
	}
	return "snapshot not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
