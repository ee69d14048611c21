package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cuemby/elementstates/pkg/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs from the run journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openJournal(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}

		fmt.Printf("%-36s %-20s %-19s %-8s %-8s %s\n", "RUN", "OPERATION", "STARTED", "CHANGED", "ISSUES", "RESULT")
		for _, run := range runs {
			result := run.Message
			if result == "" {
				result = "failed"
			}
			fmt.Printf("%-36s %-20s %-19s %-8d %-8d %s\n",
				run.RunID,
				run.Operation,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Changed,
				len(run.Observations),
				result,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show one run with its observations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openJournal(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(args[0])
		if err != nil {
			if errors.Is(err, storage.ErrRunNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			return err
		}

		fmt.Printf("Operation:    %s\n", run.Operation)
		fmt.Printf("Started:      %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
		printReport(os.Stdout, run)
		if run.Message != "" {
			fmt.Println()
			fmt.Println(run.Message)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openJournal(cmd *cobra.Command) (*storage.BoltStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.JournalPath == "" {
		return nil, fmt.Errorf("run journal is disabled (journal_path is empty)")
	}
	return storage.NewBoltStore(cfg.JournalPath)
}
