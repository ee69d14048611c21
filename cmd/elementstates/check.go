package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/elementstates/pkg/client"
	"github.com/cuemby/elementstates/pkg/health"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity and storage before a run",
	Long: `Check that the management system is reachable, that a session can be
opened with the configured credentials, and that the snapshot directory is
writable. Run this before starting a long restore.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.RequireEndpoint(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		checkers := []health.Checker{health.NewDirChecker(cfg.SnapshotDir)}

		endpoint, err := health.NewEndpointChecker(cfg.Endpoint)
		if err != nil {
			return err
		}
		checkers = append(checkers, endpoint)

		c, dialErr := client.Dial(ctx, cfg.ClientConfig())
		if dialErr == nil {
			defer c.Close()
			checkers = append(checkers, health.NewSessionChecker(c, cfg.Endpoint))
		}

		results, ok := health.RunAll(ctx, checkers...)
		for _, r := range results {
			mark := "✓"
			if !r.Healthy {
				mark = "✗"
			}
			fmt.Printf("%s %-8s %-40s %s (%s)\n", mark, r.Type, r.Target, r.Message, r.Duration.Round(time.Millisecond))
		}
		if dialErr != nil {
			fmt.Printf("✗ %-8s %-40s %v\n", health.CheckTypeSession, cfg.Endpoint, dialErr)
			ok = false
		}

		if !ok {
			return fmt.Errorf("preflight checks failed")
		}
		fmt.Println()
		fmt.Println("✓ All checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
