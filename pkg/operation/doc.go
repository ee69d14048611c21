/*
Package operation runs the three elementstates flows:

  - Dump writes the state of every element to a new snapshot and keeps the
    newest snapshots only.
  - RestoreFromFile drives every element named in a snapshot back to its
    recorded state.
  - RestoreFromProperties starts elements that the management system
    stopped by itself during a time window, for clusters without a usable
    snapshot.

Each flow returns a types.Report. Per-element problems are observations on
the report, never errors. Finished reports are written to the run journal
when one is configured.
*/
package operation
