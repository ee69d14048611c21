package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Element represents one managed element in the cluster
type Element struct {
	ID          ElementID
	Name        string
	HostAgentID int // Agent currently hosting the element
	State       ElementState
	Properties  map[string]string
}

// Property keys written by the management system on every state change
const (
	PropertyStateChangedBy = "State changed by"
	PropertyStateChanged   = "State changed"
)

// DefaultAutomatedActor is the actor tag the management system records
// when it changes an element's state by itself
const DefaultAutomatedActor = "dataminer"

// Property returns a property value, or "" when the property is missing
func (e *Element) Property(key string) string {
	if e.Properties == nil {
		return ""
	}
	return e.Properties[key]
}

// LastStateChangeActor returns who or what caused the last state change
func (e *Element) LastStateChangeActor() string {
	return e.Property(PropertyStateChangedBy)
}

// LastStateChangeTimestamp parses the last state change time
func (e *Element) LastStateChangeTimestamp() (time.Time, error) {
	raw := e.Property(PropertyStateChanged)
	if raw == "" {
		return time.Time{}, fmt.Errorf("property %q is missing", PropertyStateChanged)
	}
	return ParseTimestamp(raw)
}

// timestampLayouts are tried in order; all are locale-invariant
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"01/02/2006",
	"2006-01-02",
}

// ParseTimestamp parses a state change timestamp in local time
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing last change time %q failed", raw)
}

// ElementID identifies an element as agent/element
type ElementID struct {
	AgentID   int
	ElementID int
}

// String renders the id as "agent/element"
func (id ElementID) String() string {
	return fmt.Sprintf("%d/%d", id.AgentID, id.ElementID)
}

// ElementState is the run state of an element. Values match the
// management system's numbering.
type ElementState int

const (
	ElementStateUndefined ElementState = 0
	ElementStateActive    ElementState = 1
	ElementStateHidden    ElementState = 2
	ElementStatePaused    ElementState = 3
	ElementStateStopped   ElementState = 4
	ElementStateDeleted   ElementState = 6
	ElementStateError     ElementState = 10
	ElementStateRestart   ElementState = 11
	ElementStateMasked    ElementState = 12
)

var elementStateNames = map[ElementState]string{
	ElementStateUndefined: "Undefined",
	ElementStateActive:    "Active",
	ElementStateHidden:    "Hidden",
	ElementStatePaused:    "Paused",
	ElementStateStopped:   "Stopped",
	ElementStateDeleted:   "Deleted",
	ElementStateError:     "Error",
	ElementStateRestart:   "Restart",
	ElementStateMasked:    "Masked",
}

func (s ElementState) String() string {
	if name, ok := elementStateNames[s]; ok {
		return name
	}
	return strconv.Itoa(int(s))
}

// DesiredStateFromToken maps a desired-state token from a snapshot line to
// a reconciliation target. Only Active, Stopped and Paused are targets;
// every other token is inert and reported as !ok.
func DesiredStateFromToken(token string) (ElementState, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "active":
		return ElementStateActive, true
	case "stop", "stopped", "inactive":
		return ElementStateStopped, true
	case "paused":
		return ElementStatePaused, true
	default:
		return ElementStateUndefined, false
	}
}

// Agent is one logical member of the cluster. A failover pair is one Agent.
type Agent struct {
	ID         int
	Name       string
	IsFailover bool
}

// SnapshotID is the identity of a snapshot artifact, its creation time
// truncated to the second
type SnapshotID struct {
	Time time.Time
}

// Snapshot layout constants
const (
	SnapshotLayout    = "2006-01-02 15#04#05"
	SnapshotExtension = ".csv"
	SnapshotDelimiter = ";"
)

// NewSnapshotID truncates t to second precision
func NewSnapshotID(t time.Time) SnapshotID {
	return SnapshotID{Time: t.Truncate(time.Second)}
}

// FileName is the artifact file name, e.g. "2024-01-01 00#00#00.csv"
func (id SnapshotID) FileName() string {
	return id.Time.Format(SnapshotLayout) + SnapshotExtension
}

// Display is the user-facing form with ':' restored
func (id SnapshotID) Display() string {
	return strings.ReplaceAll(id.Time.Format(SnapshotLayout), "#", ":")
}

func (id SnapshotID) String() string {
	return id.Display()
}

// ParseSnapshotFileName parses an artifact file name back to its identity
func ParseSnapshotFileName(name string) (SnapshotID, error) {
	base, ok := strings.CutSuffix(name, SnapshotExtension)
	if !ok {
		return SnapshotID{}, fmt.Errorf("not a snapshot file: %s", name)
	}
	t, err := time.ParseInLocation(SnapshotLayout, base, time.Local)
	if err != nil {
		return SnapshotID{}, fmt.Errorf("not a snapshot file: %s", name)
	}
	return SnapshotID{Time: t}, nil
}

// ParseSnapshotDisplay parses the user-facing form ("2024-01-01 00:00:00")
func ParseSnapshotDisplay(display string) (SnapshotID, error) {
	return ParseSnapshotFileName(strings.ReplaceAll(strings.TrimSpace(display), ":", "#") + SnapshotExtension)
}

// StateRecord is one line of a snapshot artifact
type StateRecord struct {
	Name  string
	State string
}

// Request is one desired (element, state) pair to reconcile
type Request struct {
	Name         string
	DesiredState string
	Source       string // Raw snapshot line, kept for diagnostics
}

// Malformed reports whether the request could not be parsed into a pair
func (r Request) Malformed() bool {
	return r.Name == ""
}

// Observation is a per-element problem recorded during a run
type Observation struct {
	Element string    `json:"element"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Report summarizes one dump or restore run
type Report struct {
	RunID        string        `json:"run_id"`
	Operation    string        `json:"operation"`
	Snapshot     string        `json:"snapshot,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Requested    int           `json:"requested"`
	Changed      int           `json:"changed"`
	Skipped      int           `json:"skipped"`
	Cooldowns    int           `json:"cooldowns"`
	Observations []Observation `json:"observations,omitempty"`
	Message      string        `json:"message,omitempty"`
}

// Observe records a per-element problem
func (r *Report) Observe(element, message string) {
	r.Observations = append(r.Observations, Observation{
		Element: element,
		Message: message,
		Time:    time.Now(),
	})
}

// Merge folds the counters and observations of other into r
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Requested += other.Requested
	r.Changed += other.Changed
	r.Skipped += other.Skipped
	r.Cooldowns += other.Cooldowns
	r.Observations = append(r.Observations, other.Observations...)
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
