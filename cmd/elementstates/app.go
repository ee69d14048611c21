package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/elementstates/pkg/client"
	"github.com/cuemby/elementstates/pkg/config"
	"github.com/cuemby/elementstates/pkg/events"
	"github.com/cuemby/elementstates/pkg/heuristic"
	"github.com/cuemby/elementstates/pkg/inventory"
	"github.com/cuemby/elementstates/pkg/log"
	"github.com/cuemby/elementstates/pkg/metrics"
	"github.com/cuemby/elementstates/pkg/operation"
	"github.com/cuemby/elementstates/pkg/reconciler"
	"github.com/cuemby/elementstates/pkg/snapshot"
	"github.com/cuemby/elementstates/pkg/storage"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/spf13/cobra"
)

// app holds everything one command invocation needs
type app struct {
	cfg     *config.Config
	ctx     context.Context
	cancel  context.CancelFunc
	client  *client.WSClient
	journal *storage.BoltStore
	broker  *events.Broker
	runner  *operation.Runner

	started      bool
	progressOnce sync.Once
	progressDone chan struct{}
	progressSub  events.Subscriber
}

// loadConfig reads the config file and applies the global flags on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("endpoint") {
		cfg.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("user") {
		cfg.User, _ = flags.GetString("user")
	}
	if flags.Changed("snapshot-dir") {
		cfg.SnapshotDir, _ = flags.GetString("snapshot-dir")
	}
	if flags.Changed("journal") {
		cfg.JournalPath, _ = flags.GetString("journal")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile, _ = flags.GetString("metrics-file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(cfg.LogConfig())
	return cfg, nil
}

// newApp loads the configuration and connects to the cluster. The run
// deadline starts here.
func newApp(cmd *cobra.Command, progress bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireEndpoint(); err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)

	a := &app{
		cfg: cfg,
		ctx: ctx,
		cancel: func() {
			cancel()
			stop()
		},
		broker: events.NewBroker(),
	}

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store, err := snapshot.NewStore(cfg.SnapshotDir, snapshot.WithRetention(cfg.Retention))
	if err != nil {
		return nil, err
	}

	opts := []operation.Option{operation.WithPublisher(a.broker)}
	if cfg.JournalPath != "" {
		journal, err := storage.NewBoltStore(cfg.JournalPath)
		if err != nil {
			// The journal is optional; the run goes ahead without it
			log.Logger.Warn().Err(err).Str("path", cfg.JournalPath).Msg("Run journal unavailable")
		} else {
			a.journal = journal
			opts = append(opts, operation.WithJournal(journal, cfg.JournalKeep))
		}
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
	defer dialCancel()
	c, err := client.Dial(dialCtx, cfg.ClientConfig())
	if err != nil {
		return nil, err
	}
	a.client = c

	inv := inventory.NewReader(c)
	rec := reconciler.NewReconciler(c, cfg.ReconcilerConfig(), reconciler.WithPublisher(a.broker))
	sel := heuristic.NewSelector(inv, cfg.ActorTag)
	a.runner = operation.NewRunner(inv, store, rec, sel, opts...)

	a.broker.Start()
	a.started = true
	if progress {
		a.startProgress(os.Stdout)
	}

	ok = true
	return a, nil
}

// startProgress prints one line per event until stopProgress
func (a *app) startProgress(w io.Writer) {
	a.progressSub = a.broker.Subscribe()
	a.progressDone = make(chan struct{})
	go func() {
		defer close(a.progressDone)
		for ev := range a.progressSub {
			if line := formatEvent(ev); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()
}

// stopProgress drains pending events and waits for the printer
func (a *app) stopProgress() {
	a.progressOnce.Do(func() {
		if !a.started {
			return
		}
		a.broker.Stop()
		if a.progressSub != nil {
			a.broker.Unsubscribe(a.progressSub)
			<-a.progressDone
		}
	})
}

// Close releases the session, the journal and the deadline, and writes
// the metrics file when one is configured
func (a *app) Close() {
	a.stopProgress()

	if a.client != nil {
		_ = a.client.Close()
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			log.Logger.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("Failed to write metrics file")
		}
	}
	a.cancel()
}

func formatEvent(ev *events.Event) string {
	switch ev.Type {
	case events.EventElementStarted:
		return fmt.Sprintf("  ✓ %s started", ev.Element)
	case events.EventElementStopped:
		return fmt.Sprintf("  ✓ %s stopped", ev.Element)
	case events.EventElementPaused:
		return fmt.Sprintf("  ✓ %s paused", ev.Element)
	case events.EventElementFailed:
		return fmt.Sprintf("  ✗ %s: %s", ev.Element, ev.Message)
	case events.EventThrottleCooling:
		return fmt.Sprintf("  … %s", ev.Message)
	case events.EventSnapshotWritten:
		return fmt.Sprintf("✓ Snapshot %s written", ev.Message)
	case events.EventSnapshotPruned:
		return fmt.Sprintf("  Old snapshot %s deleted", ev.Message)
	case events.EventRunStarted:
		return ev.Message + "..."
	default:
		return ""
	}
}

func printReport(w io.Writer, report *types.Report) {
	if report == nil {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run:          %s\n", report.RunID)
	if report.Snapshot != "" {
		fmt.Fprintf(w, "Snapshot:     %s\n", report.Snapshot)
	}
	fmt.Fprintf(w, "Elements:     %d\n", report.Requested)
	if report.Operation != operation.Dump.String() {
		fmt.Fprintf(w, "Changed:      %d\n", report.Changed)
		fmt.Fprintf(w, "Skipped:      %d\n", report.Skipped)
		fmt.Fprintf(w, "Cooldowns:    %d\n", report.Cooldowns)
	}
	fmt.Fprintf(w, "Duration:     %s\n", report.Duration().Round(time.Second))
	if len(report.Observations) > 0 {
		fmt.Fprintf(w, "Observations: %d\n", len(report.Observations))
		for _, obs := range report.Observations {
			fmt.Fprintf(w, "  - %s: %s\n", obs.Element, obs.Message)
		}
	}
}
