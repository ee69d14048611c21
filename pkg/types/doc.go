/*
Package types defines the core data structures shared by every elementstates
package.

# Elements and Agents

An Element is one managed device or service instance in the cluster. It is
identified remotely by an ElementID (agent/element) and by a Name that is
unique across the cluster. Snapshots and restore requests refer to elements
by Name only, so a restored element is always looked up again in a fresh
inventory.

An Agent is a member server of the cluster. A failover pair reports two
info responses with the same id and is presented as one Agent.

# Element States

ElementState mirrors the numbering of the management system:

	Undefined  0
	Active     1
	Hidden     2
	Paused     3
	Stopped    4
	Deleted    6
	Error      10
	Restart    11
	Masked     12

Only Active, Stopped and Paused are reconciliation targets.
DesiredStateFromToken maps the tokens found in snapshot files:

	"active"                        → Active
	"stop", "stopped", "inactive"   → Stopped
	"paused"                        → Paused
	anything else                   → inert, not a target

# Snapshots

A SnapshotID is the creation time of a snapshot with second precision. The
artifact file name is the time in the layout "2006-01-02 15#04#05" with a
".csv" extension; '#' stands in for ':' so the name is valid on every
filesystem. Display converts it back for users. Because the layout is
zero-padded, sorting file names sorts snapshots chronologically.

# Reports

A Report is produced by every dump or restore run. Changed counts remote
transitions that succeeded, Skipped counts policy no-ops, and Observations
hold per-element problems that did not abort the run.
*/
package types
