package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gridopt/internal/store"
)

var (
	snapshotDir   string
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage snapshot images",
	Long:  `List and clean the snapshot images written by optimization runs.`,
}

var listSnapshotsCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots in the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSnapshots(cmd.OutOrStdout())
	},
}

var cleanSnapshotsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old snapshots",
	Long: `Delete snapshots based on a retention policy. Keep the latest N
iterations, delete snapshots older than N days, or use --all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanSnapshots(cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var cleanAll bool

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(listSnapshotsCmd)
	snapshotsCmd.AddCommand(cleanSnapshotsCmd)

	snapshotsCmd.PersistentFlags().StringVar(&snapshotDir, "out", "outputs", "Snapshot output directory")

	cleanSnapshotsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N snapshots (0 = keep all)")
	cleanSnapshotsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete snapshots older than N days (0 = no age limit)")
	cleanSnapshotsCmd.Flags().BoolVar(&cleanAll, "all", false, "Delete every file in the output directory")
	cleanSnapshotsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func listSnapshots(out io.Writer) error {
	outputs, err := store.NewFSStore(snapshotDir)
	if err != nil {
		return err
	}

	infos, err := outputs.List()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(out, "No snapshots found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tITERATION\tMODIFIED\tSIZE")
	fmt.Fprintln(w, "----\t---------\t--------\t----")

	var total int64
	for _, info := range infos {
		iteration := "-"
		if info.Iteration >= 0 {
			iteration = fmt.Sprint(info.Iteration)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			info.Name,
			iteration,
			info.ModTime.Format("2006-01-02 15:04:05"),
			formatBytes(info.Size),
		)
		total += info.Size
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal snapshots: %d (%s)\n", len(infos), formatBytes(total))
	return nil
}

func cleanSnapshots(in io.Reader, out io.Writer) error {
	if !cleanAll && keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify --all, --keep-last or --older-than")
	}

	outputs, err := store.NewFSStore(snapshotDir)
	if err != nil {
		return err
	}

	infos, err := outputs.List()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	toDelete := infos
	if !cleanAll {
		toDelete = selectSnapshotsForDeletion(infos, keepLast, olderThanDays, time.Now())
	}
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No snapshots match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d snapshot(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s)\n", info.Name, info.ModTime.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		fmt.Fprint(out, "\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Fscanln(in, &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := outputs.Delete(info.Name); err != nil {
			slog.Error("Failed to delete snapshot", "name", info.Name, "error", err)
			failed++
			continue
		}
		slog.Debug("Deleted snapshot", "name", info.Name)
		deleted++
	}

	fmt.Fprintf(out, "\nDeleted %d snapshot(s), %d failed.\n", deleted, failed)
	return nil
}

// selectSnapshotsForDeletion applies the retention policy. Snapshots are
// ranked by iteration; files without an iteration rank by modification time
// after them.
func selectSnapshotsForDeletion(infos []store.SnapshotInfo, keepLast, olderThanDays int, now time.Time) []store.SnapshotInfo {
	marked := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.ModTime.Before(cutoff) {
				marked[info.Name] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := append([]store.SnapshotInfo{}, infos...)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if a.Iteration != b.Iteration {
				return a.Iteration > b.Iteration
			}
			return a.ModTime.After(b.ModTime)
		})
		for _, info := range sorted[keepLast:] {
			marked[info.Name] = true
		}
	}

	var toDelete []store.SnapshotInfo
	for _, info := range infos {
		if marked[info.Name] {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

