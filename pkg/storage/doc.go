/*
Package storage provides the BoltDB-backed run journal.

Every dump or restore run produces a types.Report. The journal keeps those
reports after the process exits so that per-element observations (elements
that could not be restarted, unparseable timestamps, failed deletes during
retention) can be inspected later with "elementstates history".

# Layout

	┌──────────── journal file ────────────┐
	│  bucket "runs"                        │
	│    key:   run id (uuid)               │
	│    value: JSON encoded types.Report   │
	└───────────────────────────────────────┘

Reads use db.View and writes use db.Update, so a write either lands
completely or not at all. Opening the file takes an exclusive lock; a
second concurrent invocation gives up after a short timeout.

# Usage

	store, err := storage.NewBoltStore(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns() // newest first

The journal is best effort from the caller's point of view: a run that
cannot be journaled still completes.
*/
package storage
