package operation

import (
	"errors"
	"fmt"
	"strings"
)

// Operation is one of the flows a run can execute
type Operation int

const (
	Dump Operation = iota
	RestoreFromFile
	RestoreFromProperties
)

// Result messages shown to the operator
const (
	MsgDumpCompleted    = "Element states dump completed."
	MsgRestoreCompleted = "Element states restore completed."
	MsgNoSnapshots      = "Cluster has no element states backup files. Restore not possible."
	MsgNoAgents         = "No agents were selected"
	MsgNoElements       = "No elements were retrieved from the cluster"
)

// ErrCancelled is returned when the operator backs out of a prompt
var ErrCancelled = errors.New("operation cancelled")

var operationNames = map[Operation]string{
	Dump:                  "dump",
	RestoreFromFile:       "restore-file",
	RestoreFromProperties: "restore-properties",
}

var operationLabels = map[Operation]string{
	Dump:                  "Dump element states",
	RestoreFromFile:       "Restore element states from file",
	RestoreFromProperties: "Restore element states from element properties",
}

// All returns every operation in menu order
func All() []Operation {
	return []Operation{Dump, RestoreFromFile, RestoreFromProperties}
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// Label is the menu text for the operation
func (o Operation) Label() string {
	if label, ok := operationLabels[o]; ok {
		return label
	}
	return o.String()
}

// ParseOperation parses an operation name case-insensitively
func ParseOperation(s string) (Operation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for op, name := range operationNames {
		if name == s {
			return op, nil
		}
	}
	return Dump, fmt.Errorf("unknown operation %q", s)
}
