/*
Package log provides structured logging for elementstates using zerolog.

A single global Logger is configured once by Init at startup. Packages
derive child loggers with a fixed field so that every line can be traced
back to where it came from:

	logger := log.WithComponent("reconciler")
	logger.Info().Int("requests", n).Msg("Starting element state restore")

	logger := log.WithRunID(report.RunID)

Until Init is called Logger discards everything, which keeps tests quiet.

# Output

Console output (the default) is human readable and goes to stderr, so it
never mixes with the command results on stdout:

	2024-01-31T04:00:01+01:00 INF Snapshot written component=snapshot elements=812 snapshot="2024-01-31 04:00:01"

With JSONOutput every line is one JSON object:

	{"level":"warn","component":"reconciler","element":"encoder-7","error":"element not found","time":"2024-01-31T04:00:09+01:00","message":"Element state restore failed"}

# Levels

	debug  every transition and skip
	info   run start and end, snapshots, throttle cooldowns
	warn   per-element problems (observations)
	error  failed runs

The level is global (zerolog.SetGlobalLevel); unknown level names fall
back to info.
*/
package log
