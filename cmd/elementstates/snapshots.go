package main

import (
	"fmt"

	"github.com/cuemby/elementstates/pkg/snapshot"
	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect snapshot files",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store, err := snapshot.NewStore(cfg.SnapshotDir, snapshot.WithRetention(cfg.Retention))
		if err != nil {
			return err
		}

		ids, err := store.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Printf("No snapshots in %s\n", store.Dir())
			return nil
		}

		fmt.Printf("%-20s %-10s %-10s %s\n", "SNAPSHOT", "AGE", "ELEMENTS", "ACTIVE")
		for _, id := range ids {
			records, err := store.Records(id)
			if err != nil {
				fmt.Printf("%-20s %-10s %s\n", id.Display(), formatAge(id.Time), err)
				continue
			}
			active := 0
			for _, r := range records {
				if r.State == "Active" {
					active++
				}
			}
			fmt.Printf("%-20s %-10s %-10d %d\n", id.Display(), formatAge(id.Time), len(records), active)
		}
		return nil
	},
}

func init() {
	snapshotsCmd.AddCommand(snapshotsListCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
