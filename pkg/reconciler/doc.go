/*
Package reconciler drives elements toward desired run states.

Reconcile takes an ordered list of (name, desired state) requests, usually
loaded from a snapshot, and issues one remote transition per element that
is not already in its desired state. It is idempotent: running the same
requests twice issues no calls the second time.

# Algorithm

	ListElements (once; failure aborts the run)
	    │
	    ▼
	for each request, in order:
	    ├─ malformed line              → observation
	    ├─ no element with that name   → skip (not_found)
	    ├─ token not Active/Stopped/
	    │  Paused                      → skip (inert_target)
	    ├─ element already in state    → skip (in_state)
	    ├─ SetElementState fails       → observation, continue
	    └─ success                     → settle delay, count++
	    │
	    └─ count >= ThrottleCeiling    → cooldown, count = 0

Names match exactly and case-sensitively; when two elements share a name
the first one listed wins. Tokens match case-insensitively, and "stop",
"stopped" and "inactive" all mean Stopped.

# Pacing

A successful transition is followed by a settle delay that depends on the
direction:

	Active   StartSettle  (1s)
	Stopped  StopSettle   (2s)
	Paused   PauseSettle  (1s)

Every ThrottleCeiling (100) successful transitions the reconciler sleeps
for ThrottleCooldown (5s). Failed and skipped requests do not count.

Activate is the heuristic restore path. It starts every given element,
sleeps ActivateSettle (2s) after each successful start and never applies
the throttle cooldown.

All sleeping goes through a Sleeper, so tests can record delays instead
of waiting for them.

# Cancellation

The run deadline arrives as the context. When it expires the loop stops
before the next request (or during a sleep) and returns the partial report
together with ctx.Err(). Transitions already issued stay in place.
*/
package reconciler
