/*
Package config loads the elementstates configuration.

Configuration comes from three layers, later layers winning:

 1. Built-in defaults (Default)
 2. A YAML file (Load)
 3. Environment variables ELEMENTSTATES_ENDPOINT, ELEMENTSTATES_USER and
    ELEMENTSTATES_PASSWORD

Command-line flags are applied by the CLI on top of the result, after
which Validate must be called.

Example file:

	endpoint: wss://dma.example.com/api
	user: operator
	snapshot_dir: /srv/elementstates/snapshots
	retention: 14
	journal_path: /srv/elementstates/journal.db
	timeout: 4h
	actor_tag: dataminer
	pacing:
	  start_settle: 1s
	  stop_settle: 2s
	  pause_settle: 1s
	  activate_settle: 2s
	  throttle_ceiling: 100
	  throttle_cooldown: 5s
	log:
	  level: info
	  json: false
*/
package config
