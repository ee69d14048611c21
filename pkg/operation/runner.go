package operation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/elementstates/pkg/events"
	"github.com/cuemby/elementstates/pkg/heuristic"
	"github.com/cuemby/elementstates/pkg/inventory"
	"github.com/cuemby/elementstates/pkg/log"
	"github.com/cuemby/elementstates/pkg/metrics"
	"github.com/cuemby/elementstates/pkg/reconciler"
	"github.com/cuemby/elementstates/pkg/snapshot"
	"github.com/cuemby/elementstates/pkg/storage"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Runner executes the dump and restore flows and journals their reports
type Runner struct {
	inventory  *inventory.Reader
	snapshots  *snapshot.Store
	reconciler *reconciler.Reconciler
	selector   *heuristic.Selector

	journal     storage.Store
	journalKeep int
	publisher   events.Publisher
	newID       func() string
}

// Option configures a Runner
type Option func(*Runner)

// WithJournal persists every finished report to store, keeping at most
// keep runs (0 keeps all)
func WithJournal(store storage.Store, keep int) Option {
	return func(r *Runner) {
		r.journal = store
		r.journalKeep = keep
	}
}

// WithPublisher publishes run events to p
func WithPublisher(p events.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// NewRunner creates a new runner
func NewRunner(inv *inventory.Reader, snaps *snapshot.Store, rec *reconciler.Reconciler, sel *heuristic.Selector, opts ...Option) *Runner {
	r := &Runner{
		inventory:  inv,
		snapshots:  snaps,
		reconciler: rec,
		selector:   sel,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshots returns the available snapshots, newest first
func (r *Runner) Snapshots() ([]types.SnapshotID, error) {
	return r.snapshots.List()
}

// LatestSnapshot returns the newest snapshot, or snapshot.ErrNotFound when
// there is none
func (r *Runner) LatestSnapshot() (types.SnapshotID, error) {
	return r.snapshots.Latest()
}

// Agents returns the cluster agents, deduplicated and ordered by id
func (r *Runner) Agents(ctx context.Context) ([]*types.Agent, error) {
	return r.inventory.SortedNodes(ctx)
}

// Dump writes the current state of every element to a new snapshot and
// applies retention. Failed deletes during retention are observations;
// failing to read the snapshot directory ends the run.
func (r *Runner) Dump(ctx context.Context) (*types.Report, error) {
	report, logger, timer := r.begin(Dump)

	elements, err := r.inventory.ListResources(ctx)
	if err != nil {
		return r.finish(report, logger, timer, err)
	}
	report.Requested = len(elements)

	counts := inventory.CountByState(elements)
	logger.Info().
		Int("active", counts[types.ElementStateActive]).
		Int("stopped", counts[types.ElementStateStopped]).
		Int("paused", counts[types.ElementStatePaused]).
		Msg("Elements retrieved")

	id, err := r.snapshots.Write(elements)
	report.Snapshot = id.Display()
	if err != nil {
		return r.finish(report, logger, timer, err)
	}
	metrics.SnapshotElements.Set(float64(len(elements)))
	events.Publish(r.publisher, &events.Event{
		Type:    events.EventSnapshotWritten,
		Message: fmt.Sprintf("%s (%d elements)", id.Display(), len(elements)),
	})

	deleted, errs, err := r.snapshots.Prune()
	if err != nil {
		return r.finish(report, logger, timer, err)
	}
	for _, err := range errs {
		report.Observe("", err.Error())
	}
	for _, old := range deleted {
		events.Publish(r.publisher, &events.Event{
			Type:    events.EventSnapshotPruned,
			Message: old.Display(),
		})
	}
	metrics.SnapshotsPrunedTotal.Add(float64(len(deleted)))

	if remaining, err := r.snapshots.List(); err == nil {
		metrics.SnapshotArtifacts.Set(float64(len(remaining)))
	}

	report.Message = MsgDumpCompleted
	return r.finish(report, logger, timer, nil)
}

// RestoreFromFile reconciles the cluster against snapshot id
func (r *Runner) RestoreFromFile(ctx context.Context, id types.SnapshotID) (*types.Report, error) {
	report, logger, timer := r.begin(RestoreFromFile)
	report.Snapshot = id.Display()

	requests, err := r.snapshots.Load(id)
	if err != nil {
		return r.finish(report, logger, timer, err)
	}

	result, err := r.reconciler.Reconcile(ctx, requests)
	report.Merge(result)
	if err != nil {
		return r.finish(report, logger, timer, err)
	}

	report.Message = MsgRestoreCompleted
	return r.finish(report, logger, timer, nil)
}

// RestoreFromProperties starts every element the heuristic selects in w
func (r *Runner) RestoreFromProperties(ctx context.Context, w heuristic.Window) (*types.Report, error) {
	report, logger, timer := r.begin(RestoreFromProperties)

	if len(w.AgentIDs()) == 0 {
		report.Message = MsgNoAgents
		return r.finish(report, logger, timer, nil)
	}

	candidates, observations, err := r.selector.SelectRestoreCandidates(ctx, w)
	report.Observations = append(report.Observations, observations...)
	if errors.Is(err, heuristic.ErrNoElements) {
		report.Message = MsgNoElements
		return r.finish(report, logger, timer, nil)
	}
	if err != nil {
		return r.finish(report, logger, timer, err)
	}

	logger.Info().
		Int("candidates", len(candidates)).
		Str("actor", r.selector.Actor()).
		Time("from", w.Start).
		Time("to", w.End).
		Msg("Starting elements stopped by the system")

	result, err := r.reconciler.Activate(ctx, candidates)
	report.Merge(result)
	if err != nil {
		return r.finish(report, logger, timer, err)
	}

	report.Message = MsgRestoreCompleted
	return r.finish(report, logger, timer, nil)
}

func (r *Runner) begin(op Operation) (*types.Report, zerolog.Logger, *metrics.Timer) {
	report := &types.Report{
		RunID:     r.newID(),
		Operation: op.String(),
		StartedAt: time.Now(),
	}
	logger := log.WithRunID(report.RunID).With().Str("operation", op.String()).Logger()
	logger.Info().Msg("Run started")

	events.Publish(r.publisher, &events.Event{
		Type:     events.EventRunStarted,
		Message:  op.Label(),
		Metadata: map[string]string{"run_id": report.RunID},
	})
	return report, logger, metrics.NewTimer()
}

// finish stamps, measures and journals the report. runErr is returned
// unchanged together with the report.
func (r *Runner) finish(report *types.Report, logger zerolog.Logger, timer *metrics.Timer, runErr error) (*types.Report, error) {
	report.FinishedAt = time.Now()

	timer.ObserveDurationVec(metrics.RunDuration, report.Operation)
	metrics.RunObservations.WithLabelValues(report.Operation).Set(float64(len(report.Observations)))
	metrics.LastRunTimestamp.WithLabelValues(report.Operation).Set(float64(report.FinishedAt.Unix()))

	for _, obs := range report.Observations {
		logger.Warn().Str("element", obs.Element).Msg(obs.Message)
	}

	ev := logger.Info()
	if runErr != nil {
		ev = logger.Error().Err(runErr)
	}
	ev.Int("requested", report.Requested).
		Int("changed", report.Changed).
		Int("skipped", report.Skipped).
		Int("cooldowns", report.Cooldowns).
		Int("observations", len(report.Observations)).
		Dur("duration", report.Duration()).
		Msg("Run finished")

	events.Publish(r.publisher, &events.Event{
		Type:     events.EventRunCompleted,
		Message:  report.Message,
		Metadata: map[string]string{"run_id": report.RunID},
	})

	r.record(report, logger)
	return report, runErr
}

func (r *Runner) record(report *types.Report, logger zerolog.Logger) {
	if r.journal == nil {
		return
	}
	if err := r.journal.CreateRun(report); err != nil {
		logger.Warn().Err(err).Msg("Failed to journal run")
		return
	}
	if r.journalKeep > 0 {
		if _, err := r.journal.PruneRuns(r.journalKeep); err != nil {
			logger.Warn().Err(err).Msg("Failed to prune run journal")
		}
	}
}
