package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cuemby/elementstates/pkg/heuristic"
	"github.com/cuemby/elementstates/pkg/operation"
	"github.com/cuemby/elementstates/pkg/prompt"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "elementstates",
	Short: "Dump and restore the run state of every element in a cluster",
	Long: `elementstates records which elements of a cluster are active, paused
or stopped, and drives the cluster back to a recorded state after an
outage, upgrade or failover.

Without a subcommand elementstates asks what to do. When standard input
is not a terminal it dumps the element states without asking.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runInteractive,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"elementstates version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to the YAML configuration file")
	flags.String("endpoint", "", "Management system websocket endpoint (ws:// or wss://)")
	flags.String("user", "", "User name for the management system")
	flags.String("snapshot-dir", "", "Directory holding the snapshot files")
	flags.String("journal", "", "Run journal file")
	flags.Duration("timeout", 0, "Maximum duration of a run (default 4h)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file when the run ends")
	flags.Bool("accessible", false, "Use plain line prompts instead of full-screen forms")
}

// runInteractive asks for an operation and runs it. Without a terminal it
// always dumps.
func runInteractive(cmd *cobra.Command, args []string) error {
	if !prompt.Interactive(os.Stdin) {
		return runDump(cmd, args)
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	accessible, _ := cmd.Flags().GetBool("accessible")
	p := prompt.NewHuhPrompter(os.Stdin, os.Stdout, accessible)

	op, err := p.ChooseOperation()
	if err != nil {
		if errors.Is(err, operation.ErrCancelled) {
			return nil
		}
		return err
	}

	var report *types.Report
	switch op {
	case operation.Dump:
		report, err = a.runner.Dump(a.ctx)

	case operation.RestoreFromFile:
		ids, lerr := a.runner.Snapshots()
		if lerr != nil {
			return lerr
		}
		if len(ids) == 0 {
			p.ShowResult(operation.MsgNoSnapshots)
			return nil
		}
		id, ok, perr := p.ChooseSnapshot(ids)
		if perr != nil || !ok {
			return perr
		}
		report, err = a.runner.RestoreFromFile(a.ctx, id)

	case operation.RestoreFromProperties:
		agents, lerr := a.runner.Agents(a.ctx)
		if lerr != nil {
			return fmt.Errorf("failed to list agents: %w", lerr)
		}
		var w heuristic.Window
		var ok bool
		w, ok, err = p.ChooseWindow(agents)
		if err != nil || !ok {
			return err
		}
		report, err = a.runner.RestoreFromProperties(a.ctx, w)
	}

	a.stopProgress()
	if err != nil {
		return err
	}
	printReport(os.Stdout, report)
	p.ShowResult(report.Message)
	return nil
}
