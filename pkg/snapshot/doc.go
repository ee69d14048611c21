/*
Package snapshot stores element state snapshots as flat files.

One snapshot is one file in the snapshot directory, named after its
creation time with second precision:

	2024-01-31 04#00#00.csv

Each line holds one element, in enumeration order:

	encoder-1;Active
	decoder-7;Stopped

The line is split on the first ';', so element names must not contain
one. Files whose names do not parse as a snapshot time are ignored by
List and Prune.

After every dump Prune deletes the oldest files until Retention (14)
remain. A delete that fails is reported and the sweep continues with the
next file.
*/
package snapshot
