// Package heuristic selects elements to start again from the properties
// the management system records on every state change, for clusters that
// have no usable snapshot.
package heuristic
