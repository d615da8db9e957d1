package store

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	snapshotPrefix = "iter_"
	snapshotExt    = ".png"
)

// SnapshotInfo describes one stored snapshot
type SnapshotInfo struct {
	Name      string    `json:"name"`
	Iteration int       `json:"iteration"` // -1 for artifacts without an iteration label
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
}

// SnapshotName returns the file name used for the snapshot of an iteration
func SnapshotName(iteration int) string {
	return fmt.Sprintf("%s%d%s", snapshotPrefix, iteration, snapshotExt)
}

// ParseIteration extracts the iteration from a snapshot name
func ParseIteration(name string) (int, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotExt) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotExt))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ValidateName rejects names that would escape the output directory.
func ValidateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	if name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return &ValidationError{Field: "name", Reason: "must be a plain file name"}
	}
	if strings.HasSuffix(name, tempSuffix) {
		return &ValidationError{Field: "name", Reason: "uses the reserved " + tempSuffix + " suffix"}
	}
	return nil
}

// ValidationError represents an invalid store request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
