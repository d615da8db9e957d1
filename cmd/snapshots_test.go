package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/gridopt/internal/store"
)

func TestSelectSnapshotsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.SnapshotInfo{
		{Name: "iter_0.png", Iteration: 0, ModTime: now.AddDate(0, 0, -10)},  // 10 days old
		{Name: "iter_10.png", Iteration: 10, ModTime: now.AddDate(0, 0, -5)}, // 5 days old
		{Name: "iter_20.png", Iteration: 20, ModTime: now.AddDate(0, 0, -1)}, // 1 day old
		{Name: "base_zones.png", Iteration: -1, ModTime: now.AddDate(0, 0, -30)},
	}

	toDelete := selectSnapshotsForDeletion(infos, 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 snapshots to delete, got %d", len(toDelete))
	}
	if toDelete[0].Name != "iter_0.png" || toDelete[1].Name != "base_zones.png" {
		t.Errorf("Unexpected selection: %v", toDelete)
	}
}

func TestSelectSnapshotsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.SnapshotInfo{
		{Name: "iter_0.png", Iteration: 0, ModTime: now},
		{Name: "iter_10.png", Iteration: 10, ModTime: now},
		{Name: "iter_20.png", Iteration: 20, ModTime: now},
		{Name: "base_zones.png", Iteration: -1, ModTime: now},
	}

	// Keep only the two latest iterations
	toDelete := selectSnapshotsForDeletion(infos, 2, 0, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 snapshots to delete, got %d", len(toDelete))
	}
	for _, info := range toDelete {
		if info.Name == "iter_20.png" || info.Name == "iter_10.png" {
			t.Errorf("Latest snapshot %s should be kept", info.Name)
		}
	}
}

func TestSelectSnapshotsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.SnapshotInfo{
		{Name: "iter_0.png", Iteration: 0, ModTime: now.AddDate(0, 0, -10)},
		{Name: "iter_10.png", Iteration: 10, ModTime: now},
		{Name: "iter_20.png", Iteration: 20, ModTime: now},
	}

	// Age and count overlap on iter_0; it is listed once
	toDelete := selectSnapshotsForDeletion(infos, 2, 7, now)
	if len(toDelete) != 1 || toDelete[0].Name != "iter_0.png" {
		t.Errorf("Expected only iter_0.png, got %v", toDelete)
	}

	if got := selectSnapshotsForDeletion(infos, 5, 0, now); len(got) != 0 {
		t.Errorf("Nothing should be deleted when under the limit, got %v", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func setSnapshotFlags(t *testing.T, dir string, keep, older int, all, force bool) {
	t.Helper()
	orig := []any{snapshotDir, keepLast, olderThanDays, cleanAll, forceClean}
	snapshotDir, keepLast, olderThanDays, cleanAll, forceClean = dir, keep, older, all, force
	t.Cleanup(func() {
		snapshotDir = orig[0].(string)
		keepLast = orig[1].(int)
		olderThanDays = orig[2].(int)
		cleanAll = orig[3].(bool)
		forceClean = orig[4].(bool)
	})
}

func writeSnapshots(t *testing.T, dir string, iterations ...int) *store.FSStore {
	t.Helper()
	outputs, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	for _, i := range iterations {
		_, err := outputs.Create(store.SnapshotName(i), func(w io.Writer) error {
			_, err := w.Write([]byte("png"))
			return err
		})
		if err != nil {
			t.Fatalf("Failed to write snapshot: %v", err)
		}
	}
	return outputs
}

func TestSnapshotsListCommand_Empty(t *testing.T) {
	setSnapshotFlags(t, t.TempDir(), 0, 0, false, false)

	var out bytes.Buffer
	if err := listSnapshots(&out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No snapshots found.") {
		t.Errorf("Unexpected output: %s", out.String())
	}
}

func TestSnapshotsListCommand_WithSnapshots(t *testing.T) {
	dir := t.TempDir()
	writeSnapshots(t, dir, 0, 10, 20)
	setSnapshotFlags(t, dir, 0, 0, false, false)

	var out bytes.Buffer
	if err := listSnapshots(&out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "iter_20.png") || !strings.Contains(s, "Total snapshots: 3") {
		t.Errorf("Unexpected output: %s", s)
	}
}

func TestSnapshotsCleanCommand_NoFlags(t *testing.T) {
	setSnapshotFlags(t, t.TempDir(), 0, 0, false, false)

	if err := cleanSnapshots(strings.NewReader(""), io.Discard); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestSnapshotsCleanCommand_WithForce(t *testing.T) {
	dir := t.TempDir()
	outputs := writeSnapshots(t, dir, 0, 10, 20)
	setSnapshotFlags(t, dir, 1, 0, false, true)

	if err := cleanSnapshots(strings.NewReader(""), io.Discard); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	infos, _ := outputs.List()
	if len(infos) != 1 || infos[0].Name != "iter_20.png" {
		t.Errorf("Expected only iter_20.png to remain, got %v", infos)
	}
}

func TestSnapshotsCleanCommand_Confirmation(t *testing.T) {
	dir := t.TempDir()
	writeSnapshots(t, dir, 0, 10)
	setSnapshotFlags(t, dir, 0, 0, true, false)

	var out bytes.Buffer
	if err := cleanSnapshots(strings.NewReader("n\n"), &out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("Expected abort, got %s", out.String())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("Nothing should be deleted after declining, found %d files", len(entries))
	}

	if err := cleanSnapshots(strings.NewReader("y\n"), io.Discard); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	entries, _ = os.ReadDir(filepath.Clean(dir))
	if len(entries) != 0 {
		t.Errorf("Expected empty directory, found %d files", len(entries))
	}
}
