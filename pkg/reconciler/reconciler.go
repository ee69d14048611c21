package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/elementstates/pkg/client"
	"github.com/cuemby/elementstates/pkg/events"
	"github.com/cuemby/elementstates/pkg/inventory"
	"github.com/cuemby/elementstates/pkg/log"
	"github.com/cuemby/elementstates/pkg/metrics"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/rs/zerolog"
)

// Skip reasons, used as metric labels
const (
	SkipNotFound    = "not_found"
	SkipInertTarget = "inert_target"
	SkipInState     = "in_state"
)

// Config holds the pacing of state transitions
type Config struct {
	// Settle delays applied after a successful transition, per direction
	StartSettle time.Duration
	StopSettle  time.Duration
	PauseSettle time.Duration

	// After ThrottleCeiling successful transitions the reconciler sleeps
	// for ThrottleCooldown and starts counting again
	ThrottleCeiling  int
	ThrottleCooldown time.Duration

	// ActivateSettle is the delay after each start issued by Activate
	ActivateSettle time.Duration
}

// DefaultConfig returns the pacing used against production clusters. Stops
// take longer to settle than starts or pauses.
func DefaultConfig() Config {
	return Config{
		StartSettle:      1 * time.Second,
		StopSettle:       2 * time.Second,
		PauseSettle:      1 * time.Second,
		ThrottleCeiling:  100,
		ThrottleCooldown: 5 * time.Second,
		ActivateSettle:   2 * time.Second,
	}
}

// SettleFor returns the settle delay for a transition to state
func (c Config) SettleFor(state types.ElementState) time.Duration {
	switch state {
	case types.ElementStateActive:
		return c.StartSettle
	case types.ElementStateStopped:
		return c.StopSettle
	case types.ElementStatePaused:
		return c.PauseSettle
	default:
		return 0
	}
}

// Reconciler drives elements toward desired states, one at a time
type Reconciler struct {
	client    client.Client
	config    Config
	sleeper   Sleeper
	publisher events.Publisher
	logger    zerolog.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithSleeper replaces the real sleeper
func WithSleeper(s Sleeper) Option {
	return func(r *Reconciler) { r.sleeper = s }
}

// WithPublisher publishes progress events to p
func WithPublisher(p events.Publisher) Option {
	return func(r *Reconciler) { r.publisher = p }
}

// NewReconciler creates a new reconciler
func NewReconciler(c client.Client, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		client:  c,
		config:  cfg,
		sleeper: RealSleeper,
		logger:  log.WithComponent("reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.config.ThrottleCeiling < 1 {
		r.config.ThrottleCeiling = DefaultConfig().ThrottleCeiling
	}
	return r
}

// Reconcile processes requests sequentially in their original order. The
// inventory is fetched once up front; failing to fetch it is fatal. Every
// other problem is recorded on the report and the batch continues.
//
// When ctx is done the loop stops and returns the partial report together
// with ctx.Err(). Transitions already issued are not rolled back.
func (r *Reconciler) Reconcile(ctx context.Context, requests []types.Request) (*types.Report, error) {
	report := &types.Report{
		StartedAt: time.Now(),
		Requested: len(requests),
	}
	defer func() { report.FinishedAt = time.Now() }()

	r.logger.Info().Int("requests", len(requests)).Msg("Starting element state restore")

	elements, err := r.client.ListElements(ctx)
	if err != nil {
		return report, err
	}
	index := inventory.IndexByName(elements)

	count := 0
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		target, changed, err := r.apply(ctx, index, req, report)
		if err != nil {
			r.fail(report, req, target, err)
		}

		if changed {
			report.Changed++
			if err := r.sleeper.Sleep(ctx, r.config.SettleFor(target)); err != nil {
				return report, err
			}
			count++
		}

		if count >= r.config.ThrottleCeiling {
			r.logger.Info().
				Dur("cooldown", r.config.ThrottleCooldown).
				Msg("Maximum simultaneous actions reached, cooling down")
			events.Publish(r.publisher, &events.Event{
				Type:    events.EventThrottleCooling,
				Message: fmt.Sprintf("sleeping %s after %d transitions", r.config.ThrottleCooldown, count),
			})
			metrics.CooldownsTotal.Inc()
			report.Cooldowns++

			if err := r.sleeper.Sleep(ctx, r.config.ThrottleCooldown); err != nil {
				return report, err
			}
			count = 0
		}
	}

	r.logger.Info().
		Int("changed", report.Changed).
		Int("skipped", report.Skipped).
		Int("observations", len(report.Observations)).
		Msg("Element state restore finished")
	return report, nil
}

// apply handles a single request. It returns the target state and whether
// a transition was issued successfully.
func (r *Reconciler) apply(ctx context.Context, index map[string]*types.Element, req types.Request, report *types.Report) (types.ElementState, bool, error) {
	if req.Malformed() {
		return types.ElementStateUndefined, false, fmt.Errorf("malformed snapshot line %q", req.Source)
	}

	element, ok := index[req.Name]
	if !ok {
		r.skip(report, req.Name, SkipNotFound)
		return types.ElementStateUndefined, false, nil
	}

	target, ok := types.DesiredStateFromToken(req.DesiredState)
	if !ok {
		r.skip(report, req.Name, SkipInertTarget)
		return types.ElementStateUndefined, false, nil
	}

	if element.State == target {
		r.skip(report, req.Name, SkipInState)
		return target, false, nil
	}

	if err := r.client.SetElementState(ctx, element.ID, target); err != nil {
		return target, false, err
	}

	r.logger.Debug().
		Str("element", element.Name).
		Str("from", element.State.String()).
		Str("to", target.String()).
		Msg("Element state changed")

	// Later requests for the same element in this batch see the new state
	element.State = target

	metrics.TransitionsTotal.WithLabelValues(target.String(), "success").Inc()
	events.Publish(r.publisher, &events.Event{
		Type:    transitionEvent(target),
		Element: element.Name,
		Message: fmt.Sprintf("%s → %s", req.DesiredState, target),
	})
	return target, true, nil
}

// Activate starts each element, pausing ActivateSettle after every
// successful start. There is no throttle cooldown on this path.
func (r *Reconciler) Activate(ctx context.Context, elements []*types.Element) (*types.Report, error) {
	report := &types.Report{
		StartedAt: time.Now(),
		Requested: len(elements),
	}
	defer func() { report.FinishedAt = time.Now() }()

	for _, element := range elements {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := r.client.SetElementState(ctx, element.ID, types.ElementStateActive); err != nil {
			r.fail(report, types.Request{Name: element.Name, Source: element.Name}, types.ElementStateActive, err)
			continue
		}

		report.Changed++
		metrics.TransitionsTotal.WithLabelValues(types.ElementStateActive.String(), "success").Inc()
		events.Publish(r.publisher, &events.Event{
			Type:    events.EventElementStarted,
			Element: element.Name,
		})
		r.logger.Debug().Str("element", element.Name).Msg("Element started")

		if err := r.sleeper.Sleep(ctx, r.config.ActivateSettle); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (r *Reconciler) skip(report *types.Report, name, reason string) {
	report.Skipped++
	metrics.SkippedTotal.WithLabelValues(reason).Inc()
	r.logger.Debug().Str("element", name).Str("reason", reason).Msg("Request skipped")
}

func (r *Reconciler) fail(report *types.Report, req types.Request, target types.ElementState, err error) {
	name := req.Name
	if name == "" {
		name = req.Source
	}

	report.Observe(name, err.Error())
	if target != types.ElementStateUndefined {
		metrics.TransitionsTotal.WithLabelValues(target.String(), "failure").Inc()
	}
	events.Publish(r.publisher, &events.Event{
		Type:    events.EventElementFailed,
		Element: name,
		Message: err.Error(),
	})
	r.logger.Warn().Err(err).Str("element", name).Msg("Element state restore failed")
}

func transitionEvent(state types.ElementState) events.EventType {
	switch state {
	case types.ElementStateStopped:
		return events.EventElementStopped
	case types.ElementStatePaused:
		return events.EventElementPaused
	default:
		return events.EventElementStarted
	}
}
