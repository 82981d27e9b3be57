package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vfs19/edlscan/internal/config"
	"github.com/vfs19/edlscan/internal/database"
)

// NewCompareCmd creates the compare command.
// This command compares scan sessions stored in the history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [base-session-id] [target-session-id]",
		Short: "Compare two scan sessions from history",
		Long: `Compare shows how device memory changed between two scan sessions.

Fuse regions are one-time programmable: words that appear or change
between sessions usually indicate a provisioning event. The comparison
classifies every discovered word as appeared, vanished, changed, or
unchanged.

Sessions are saved automatically by 'edlscan scan' unless --no-db was
given. Use --list to see available session IDs.

Examples:
  # List all scan sessions in the database
  edlscan compare --list

  # Compare session 3 (base) against session 7 (target)
  edlscan compare 3 7

  # Compare the two most recent sessions
  edlscan compare --latest

  # Output comparison in JSON format
  edlscan compare --json 3 7`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List scan sessions in the database")
	cmd.Flags().Bool("latest", false,
		"Compare the two most recent sessions")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// Open the existing history database; compare never creates one.
	opts := database.Options{CreateIfNotExists: false, EnableWAL: true}
	db, err := database.Open(config.XDGDataDir(), opts)
	if err != nil {
		return fmt.Errorf("no scan history found (run 'edlscan scan' first): %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if list {
		return listSessions(ctx, cmd, db)
	}

	baseID, targetID, err := resolveSessionIDs(ctx, db, args, latest)
	if err != nil {
		return err
	}

	diff, err := db.DiffSessions(ctx, baseID, targetID)
	if err != nil {
		return fmt.Errorf("failed to compare sessions: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(diff)
	}

	printSessionDiff(cmd, diff)
	return nil
}

// resolveSessionIDs determines which two sessions to compare.
func resolveSessionIDs(ctx context.Context, db *database.ScanDB, args []string, latest bool) (int64, int64, error) {
	if latest {
		sessions, err := db.ListSessions(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sessions) < 2 {
			return 0, 0, errors.New("need at least two sessions in history to compare")
		}
		// ListSessions is newest first; the older one is the base.
		return sessions[1].ID, sessions[0].ID, nil
	}

	if len(args) != 2 {
		return 0, 0, errors.New("provide two session IDs, or use --latest (see --list for IDs)")
	}

	baseID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid base session ID %q: %w", args[0], err)
	}
	targetID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid target session ID %q: %w", args[1], err)
	}
	return baseID, targetID, nil
}

// listSessions prints the scan history table.
func listSessions(ctx context.Context, cmd *cobra.Command, db *database.ScanDB) error {
	sessions, err := db.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scan sessions in history.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-5s %-22s %-25s %8s %8s %8s  %s\n",
		"ID", "Range", "Date", "Reads", "NonZero", "Errors", "Status")
	for _, s := range sessions {
		status := "complete"
		switch {
		case s.Aborted:
			status = "aborted: " + s.AbortReason
		case s.Cancelled:
			status = "cancelled"
		}
		fmt.Fprintf(out, "%-5d 0x%08x-0x%08x  %-25s %8d %8d %8d  %s\n",
			s.ID, s.StartAddr, s.EndAddr,
			s.DateScanned.Format(time.DateTime),
			s.ReadsAttempted, s.NonZeroCount, s.ErrorCount, status)
	}
	return nil
}

// printSessionDiff writes the comparison as text.
func printSessionDiff(cmd *cobra.Command, diff *database.SessionDiff) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Comparing session #%d (base) with #%d (target)\n\n", diff.BaseID, diff.TargetID)

	if len(diff.Appeared) > 0 {
		fmt.Fprintf(out, "Appeared (%d):\n", len(diff.Appeared))
		for _, d := range diff.Appeared {
			fmt.Fprintf(out, "  + %s\n", d.String())
		}
		fmt.Fprintln(out)
	}

	if len(diff.Vanished) > 0 {
		fmt.Fprintf(out, "Vanished (%d):\n", len(diff.Vanished))
		for _, d := range diff.Vanished {
			fmt.Fprintf(out, "  - %s\n", d.String())
		}
		fmt.Fprintln(out)
	}

	if len(diff.Changed) > 0 {
		fmt.Fprintf(out, "Changed (%d):\n", len(diff.Changed))
		for _, c := range diff.Changed {
			fmt.Fprintf(out, "  ~ %s\n", c.String())
		}
		fmt.Fprintln(out)
	}

	if len(diff.Appeared)+len(diff.Vanished)+len(diff.Changed) == 0 {
		fmt.Fprintln(out, "No differences between the sessions.")
	}
	fmt.Fprintf(out, "Unchanged non-zero words: %d\n", diff.Unchanged)
}
