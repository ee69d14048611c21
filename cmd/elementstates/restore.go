package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuemby/elementstates/pkg/heuristic"
	"github.com/cuemby/elementstates/pkg/operation"
	"github.com/cuemby/elementstates/pkg/prompt"
	"github.com/cuemby/elementstates/pkg/snapshot"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore element states",
}

var restoreFileCmd = &cobra.Command{
	Use:   "file [SNAPSHOT]",
	Short: "Restore element states from a snapshot",
	Long: `Drive every element named in a snapshot back to its recorded state.

SNAPSHOT is either the snapshot time ("2024-01-31 04:00:00") or its file
name ("2024-01-31 04#00#00.csv"). Without SNAPSHOT the newest snapshot
is used.

Elements that no longer exist are skipped, and so are elements already in
their recorded state. Stops, starts and pauses are paced, and after every
100 changes the restore pauses for 5 seconds.

Examples:
  # Restore the newest snapshot
  elementstates restore file

  # Restore a specific snapshot
  elementstates restore file "2024-01-31 04:00:00"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestoreFile,
}

var restorePropertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "Start elements the system stopped during a time window",
	Long: `Start every stopped element whose last state change was made by the
system itself (not by a user) strictly between --from and --to, on the
selected agents. Use this when no usable snapshot exists.

Examples:
  elementstates restore properties \
    --from "2024-01-31 02:00:00" --to "2024-01-31 06:00:00" --agent 101 --agent 102

  elementstates restore properties --from "2024-01-31 02:00:00" \
    --to "2024-01-31 06:00:00" --all-agents`,
	Args: cobra.NoArgs,
	RunE: runRestoreProperties,
}

func init() {
	restorePropertiesCmd.Flags().String("from", "", "Window start, "+prompt.WindowLayout+" (required)")
	restorePropertiesCmd.Flags().String("to", "", "Window end, "+prompt.WindowLayout+" (required)")
	restorePropertiesCmd.Flags().IntSlice("agent", nil, "Agent id to restore (repeatable)")
	restorePropertiesCmd.Flags().Bool("all-agents", false, "Restore on every agent in the cluster")
	_ = restorePropertiesCmd.MarkFlagRequired("from")
	_ = restorePropertiesCmd.MarkFlagRequired("to")

	restoreCmd.AddCommand(restoreFileCmd)
	restoreCmd.AddCommand(restorePropertiesCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runRestoreFile(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var id types.SnapshotID
	if len(args) == 1 {
		id, err = parseSnapshotArg(args[0])
		if err != nil {
			return err
		}
	} else {
		id, err = a.runner.LatestSnapshot()
		if errors.Is(err, snapshot.ErrNotFound) {
			fmt.Println(operation.MsgNoSnapshots)
			return nil
		}
		if err != nil {
			return err
		}
	}

	report, err := a.runner.RestoreFromFile(a.ctx, id)
	a.stopProgress()
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return fmt.Errorf("snapshot %s does not exist, see 'elementstates snapshots list'", id)
		}
		printReport(os.Stdout, report)
		return fmt.Errorf("restore failed: %w", err)
	}

	printReport(os.Stdout, report)
	fmt.Println()
	fmt.Println(report.Message)
	return nil
}

func runRestoreProperties(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	agentIDs, _ := cmd.Flags().GetIntSlice("agent")
	allAgents, _ := cmd.Flags().GetBool("all-agents")

	if allAgents && len(agentIDs) > 0 {
		return fmt.Errorf("--agent and --all-agents are mutually exclusive")
	}

	// Validate the window before connecting
	if _, err := prompt.ParseWindow(from, to, agentIDs); err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if allAgents {
		agents, err := a.runner.Agents(a.ctx)
		if err != nil {
			return fmt.Errorf("failed to list agents: %w", err)
		}
		for _, agent := range agents {
			agentIDs = append(agentIDs, agent.ID)
		}
	}

	var w heuristic.Window
	w, err = prompt.ParseWindow(from, to, agentIDs)
	if err != nil {
		return err
	}

	report, err := a.runner.RestoreFromProperties(a.ctx, w)
	a.stopProgress()
	if err != nil {
		printReport(os.Stdout, report)
		return fmt.Errorf("restore failed: %w", err)
	}

	printReport(os.Stdout, report)
	fmt.Println()
	fmt.Println(report.Message)
	return nil
}

// parseSnapshotArg accepts the display form or the file name
func parseSnapshotArg(arg string) (types.SnapshotID, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasSuffix(arg, types.SnapshotExtension) {
		return types.ParseSnapshotFileName(arg)
	}
	id, err := types.ParseSnapshotDisplay(arg)
	if err != nil {
		return types.SnapshotID{}, fmt.Errorf("invalid snapshot %q: expected %s", arg,
			strings.ReplaceAll(types.SnapshotLayout, "#", ":"))
	}
	return id, nil
}

// formatAge renders how long ago t was, for listings
func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
