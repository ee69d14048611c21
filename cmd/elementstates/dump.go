package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the current state of every element to a new snapshot",
	Long: `Write the current state of every element to a new snapshot file named
after the current time. Only the newest snapshots are kept (14 by default,
see "retention" in the configuration file).`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.runner.Dump(a.ctx)
	a.stopProgress()
	if err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}

	printReport(os.Stdout, report)
	fmt.Println()
	fmt.Println(report.Message)
	return nil
}
