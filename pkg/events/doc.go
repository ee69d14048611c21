// Package events carries progress events of a run (element transitions,
// throttle cooldowns, snapshot writes) from the packages doing the work to
// whoever prints them. Publishers depend on the Publisher interface only;
// Broker fans events out to buffered subscriber channels and drops events
// for subscribers that fall behind.
package events
