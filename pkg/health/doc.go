/*
Package health provides preflight checks run before a long restore.

A restore can take hours on a large cluster, so "elementstates check"
verifies up front that everything it needs is in place:

	tcp      the management system endpoint accepts connections
	dir      the snapshot directory exists and is writable
	session  an authenticated session answers queries

Each Checker returns a Result; RunAll runs every checker even when an
earlier one fails, so the operator sees all problems at once.
*/
package health
