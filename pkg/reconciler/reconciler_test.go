package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/elementstates/pkg/client/clienttest"
	"github.com/cuemby/elementstates/pkg/events"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper records every requested sleep instead of sleeping
type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
	// callsBefore holds the number of mutation calls seen at each sleep
	callsBefore []int
	fake        *clienttest.FakeCluster
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	if s.fake != nil {
		s.callsBefore = append(s.callsBefore, len(s.fake.Calls()))
	}
	return ctx.Err()
}

func testConfig() Config {
	return Config{
		StartSettle:      1 * time.Second,
		StopSettle:       2 * time.Second,
		PauseSettle:      3 * time.Second,
		ThrottleCeiling:  100,
		ThrottleCooldown: 5 * time.Second,
		ActivateSettle:   7 * time.Second,
	}
}

func newTestReconciler(fake *clienttest.FakeCluster) (*Reconciler, *recordingSleeper) {
	sleeper := &recordingSleeper{fake: fake}
	return NewReconciler(fake, testConfig(), WithSleeper(sleeper)), sleeper
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1*time.Second, cfg.StartSettle)
	assert.Equal(t, 2*time.Second, cfg.StopSettle)
	assert.Equal(t, 1*time.Second, cfg.PauseSettle)
	assert.Equal(t, 100, cfg.ThrottleCeiling)
	assert.Equal(t, 5*time.Second, cfg.ThrottleCooldown)
	assert.Equal(t, 2*time.Second, cfg.ActivateSettle)
	assert.Greater(t, cfg.StopSettle, cfg.StartSettle)
}

func TestReconcile_TokenMapping(t *testing.T) {
	tests := []struct {
		name     string
		current  types.ElementState
		token    string
		expected types.ElementState
		changed  bool
	}{
		{"active", types.ElementStateStopped, "Active", types.ElementStateActive, true},
		{"active lower", types.ElementStatePaused, "active", types.ElementStateActive, true},
		{"stop", types.ElementStateActive, "stop", types.ElementStateStopped, true},
		{"stopped upper", types.ElementStateActive, "STOPPED", types.ElementStateStopped, true},
		{"inactive", types.ElementStateActive, "Inactive", types.ElementStateStopped, true},
		{"paused", types.ElementStateActive, "Paused", types.ElementStatePaused, true},
		{"already active", types.ElementStateActive, "Active", types.ElementStateActive, false},
		{"hidden is inert", types.ElementStateActive, "Hidden", types.ElementStateActive, false},
		{"error is inert", types.ElementStateActive, "Error", types.ElementStateActive, false},
		{"restart is inert", types.ElementStateStopped, "Restart", types.ElementStateStopped, false},
		{"empty is inert", types.ElementStateStopped, "", types.ElementStateStopped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := clienttest.NewFakeCluster()
			fake.AddElement("el", 1, tt.current, nil)
			r, _ := newTestReconciler(fake)

			report, err := r.Reconcile(context.Background(), []types.Request{{Name: "el", DesiredState: tt.token}})
			require.NoError(t, err)

			state, _ := fake.State("el")
			assert.Equal(t, tt.expected, state)
			if tt.changed {
				assert.Equal(t, 1, report.Changed)
				assert.Len(t, fake.Calls(), 1)
			} else {
				assert.Equal(t, 0, report.Changed)
				assert.Empty(t, fake.Calls())
				assert.Equal(t, 1, report.Skipped)
			}
			assert.Empty(t, report.Observations)
		})
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.AddElement("a", 1, types.ElementStateStopped, nil)
	fake.AddElement("b", 1, types.ElementStateActive, nil)
	fake.AddElement("c", 2, types.ElementStateActive, nil)
	r, _ := newTestReconciler(fake)

	requests := []types.Request{
		{Name: "a", DesiredState: "Active"},
		{Name: "b", DesiredState: "Stopped"},
		{Name: "c", DesiredState: "Paused"},
	}

	first, err := r.Reconcile(context.Background(), requests)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Changed)

	fake.ResetCalls()
	second, err := r.Reconcile(context.Background(), requests)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changed)
	assert.Empty(t, fake.Calls(), "second run issues no mutation calls")
}

func TestReconcile_OrderPreserved(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.AddElement("C", 1, types.ElementStateActive, nil)
	fake.AddElement("A", 1, types.ElementStateActive, nil)
	fake.AddElement("B", 1, types.ElementStateActive, nil)
	r, _ := newTestReconciler(fake)

	_, err := r.Reconcile(context.Background(), []types.Request{
		{Name: "A", DesiredState: "Stopped"},
		{Name: "B", DesiredState: "Paused"},
		{Name: "C", DesiredState: "Stopped"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, fake.CalledNames())
}

func TestReconcile_SettlePerDirection(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.AddElement("start-me", 1, types.ElementStateStopped, nil)
	fake.AddElement("stop-me", 1, types.ElementStateActive, nil)
	fake.AddElement("pause-me", 1, types.ElementStateActive, nil)
	r, sleeper := newTestReconciler(fake)

	_, err := r.Reconcile(context.Background(), []types.Request{
		{Name: "start-me", DesiredState: "Active"},
		{Name: "stop-me", DesiredState: "Stopped"},
		{Name: "pause-me", DesiredState: "Paused"},
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}, sleeper.sleeps)
}

func TestReconcile_ThrottleBoundary(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	var requests []types.Request
	for i := 0; i < 101; i++ {
		name := fmt.Sprintf("el-%03d", i)
		fake.AddElement(name, 1, types.ElementStateStopped, nil)
		requests = append(requests, types.Request{Name: name, DesiredState: "Active"})
	}
	r, sleeper := newTestReconciler(fake)

	report, err := r.Reconcile(context.Background(), requests)
	require.NoError(t, err)
	assert.Equal(t, 101, report.Changed)
	assert.Equal(t, 1, report.Cooldowns)

	// 100 settles, one cooldown, then the 101st settle
	require.Len(t, sleeper.sleeps, 102)
	for i := 0; i < 100; i++ {
		assert.Equal(t, 1*time.Second, sleeper.sleeps[i])
	}
	assert.Equal(t, 5*time.Second, sleeper.sleeps[100])
	assert.Equal(t, 1*time.Second, sleeper.sleeps[101])

	// The cooldown happens after the 100th call and before the 101st
	assert.Equal(t, 100, sleeper.callsBefore[100])
}

func TestReconcile_ThrottleCountsOnlySuccesses(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	var requests []types.Request
	for i := 0; i < 150; i++ {
		name := fmt.Sprintf("el-%03d", i)
		state := types.ElementStateStopped
		if i%2 == 0 {
			// Already in the desired state, skipped
			state = types.ElementStateActive
		}
		fake.AddElement(name, 1, state, nil)
		requests = append(requests, types.Request{Name: name, DesiredState: "Active"})
	}
	r, _ := newTestReconciler(fake)

	report, err := r.Reconcile(context.Background(), requests)
	require.NoError(t, err)
	assert.Equal(t, 75, report.Changed)
	assert.Equal(t, 75, report.Skipped)
	assert.Equal(t, 0, report.Cooldowns)
}

func TestReconcile_UnknownElementTolerated(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.AddElement("known", 1, types.ElementStateStopped, nil)
	r, _ := newTestReconciler(fake)

	report, err := r.Reconcile(context.Background(), []types.Request{
		{Name: "ghost", DesiredState: "Active"},
		{Name: "known", DesiredState: "Active"},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Observations)
	assert.Equal(t, []string{"known"}, fake.CalledNames())
}

func TestReconcile_FailureIsolation(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.AddElement("a", 1, types.ElementStateActive, nil)
	fake.AddElement("bad", 1, types.ElementStateActive, nil)
	fake.AddElement("c", 1, types.ElementStateActive, nil)
	fake.SetErrors["bad"] = errors.New("stopping a derived element is not supported")
	r, sleeper := newTestReconciler(fake)

	report, err := r.Reconcile(context.Background(), []types.Request{
		{Name: "a", DesiredState: "Stopped"},
		{Name: "bad", DesiredState: "Stopped"},
		{Source: "garbage-line"},
		{Name: "c", DesiredState: "Stopped"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Changed)
	require.Len(t, report.Observations, 2)
	assert.Equal(t, "bad", report.Observations[0].Element)
	assert.Contains(t, report.Observations[0].Message, "derived element")
	assert.Equal(t, "garbage-line", report.Observations[1].Element)

	// No settle delay for the failed transition
	assert.Len(t, sleeper.sleeps, 2)
	assert.Equal(t, []string{"a", "c"}, fake.CalledNames())
}

func TestReconcile_DuplicateRequestsSeeNewState(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.AddElement("a", 1, types.ElementStateStopped, nil)
	r, _ := newTestReconciler(fake)

	report, err := r.Reconcile(context.Background(), []types.Request{
		{Name: "a", DesiredState: "Active"},
		{Name: "a", DesiredState: "active"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Len(t, fake.Calls(), 1)
}

func TestReconcile_InventoryFetchedOnce(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	for i := 0; i < 5; i++ {
		fake.AddElement(fmt.Sprintf("el-%d", i), 1, types.ElementStateStopped, nil)
	}
	r, _ := newTestReconciler(fake)

	var requests []types.Request
	for i := 0; i < 5; i++ {
		requests = append(requests, types.Request{Name: fmt.Sprintf("el-%d", i), DesiredState: "Active"})
	}

	_, err := r.Reconcile(context.Background(), requests)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.ListCalls())
}

func TestReconcile_InventoryErrorIsFatal(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.ListElementsErr = errors.New("connection refused")
	r, _ := newTestReconciler(fake)

	_, err := r.Reconcile(context.Background(), []types.Request{{Name: "a", DesiredState: "Active"}})
	assert.EqualError(t, err, "connection refused", "client errors are not wrapped again")
	assert.Empty(t, fake.Calls())
}

func TestReconcile_ContextCancelled(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.AddElement("a", 1, types.ElementStateStopped, nil)
	fake.AddElement("b", 1, types.ElementStateStopped, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sleeper := SleeperFunc(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	})
	r := NewReconciler(fake, testConfig(), WithSleeper(sleeper))

	report, err := r.Reconcile(ctx, []types.Request{
		{Name: "a", DesiredState: "Active"},
		{Name: "b", DesiredState: "Active"},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, []string{"a"}, fake.CalledNames())
}

func TestReconcile_PublishesEvents(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	fake.AddElement("a", 1, types.ElementStateActive, nil)
	fake.AddElement("b", 1, types.ElementStateActive, nil)
	fake.SetErrors["b"] = errors.New("boom")

	broker := events.NewBroker()
	sub := broker.Subscribe()
	broker.Start()

	r := NewReconciler(fake, testConfig(), WithSleeper(&recordingSleeper{}), WithPublisher(broker))
	_, err := r.Reconcile(context.Background(), []types.Request{
		{Name: "a", DesiredState: "Paused"},
		{Name: "b", DesiredState: "Paused"},
	})
	require.NoError(t, err)
	broker.Stop()

	var got []events.EventType
	for len(sub) > 0 {
		got = append(got, (<-sub).Type)
	}
	assert.Equal(t, []events.EventType{events.EventElementPaused, events.EventElementFailed}, got)
}

func TestActivate(t *testing.T) {
	fake := clienttest.NewFakeCluster()
	var elements []*types.Element
	for i := 0; i < 150; i++ {
		elements = append(elements, fake.AddElement(fmt.Sprintf("el-%03d", i), 1, types.ElementStateStopped, nil))
	}
	fake.SetErrors["el-010"] = errors.New("not supported")
	r, sleeper := newTestReconciler(fake)

	report, err := r.Activate(context.Background(), elements)
	require.NoError(t, err)
	assert.Equal(t, 149, report.Changed)
	assert.Equal(t, 0, report.Cooldowns, "no throttle cooldown on the activate path")
	require.Len(t, report.Observations, 1)
	assert.Equal(t, "el-010", report.Observations[0].Element)

	require.Len(t, sleeper.sleeps, 149)
	for _, d := range sleeper.sleeps {
		assert.Equal(t, 7*time.Second, d)
	}
}

func TestRealSleeper(t *testing.T) {
	start := time.Now()
	require.NoError(t, RealSleeper.Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, RealSleeper.Sleep(ctx, time.Hour), context.Canceled)
}
