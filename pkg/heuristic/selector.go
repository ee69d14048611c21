package heuristic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/elementstates/pkg/inventory"
	"github.com/cuemby/elementstates/pkg/log"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/rs/zerolog"
)

// ErrNoElements is returned when the cluster reports no elements at all
var ErrNoElements = errors.New("no elements were retrieved from the cluster")

// Window bounds the heuristic: elements on one of Agents that were
// stopped by the automated actor strictly between Start and End.
type Window struct {
	Start  time.Time
	End    time.Time
	Agents map[int]bool
}

// NewWindow builds a window over the given agent ids
func NewWindow(start, end time.Time, agentIDs ...int) Window {
	agents := make(map[int]bool, len(agentIDs))
	for _, id := range agentIDs {
		agents[id] = true
	}
	return Window{Start: start, End: end, Agents: agents}
}

// Validate checks that the window can select anything
func (w Window) Validate() error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("window start %s must be before end %s",
			w.Start.Format(time.DateTime), w.End.Format(time.DateTime))
	}
	return nil
}

// AgentIDs returns the selected agent ids in ascending order
func (w Window) AgentIDs() []int {
	ids := make([]int, 0, len(w.Agents))
	for id, selected := range w.Agents {
		if selected {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Contains reports whether t lies strictly inside the window
func (w Window) Contains(t time.Time) bool {
	return t.After(w.Start) && t.Before(w.End)
}

// Selector picks elements to start again based on their state-change
// properties
type Selector struct {
	reader *inventory.Reader
	actor  string
	logger zerolog.Logger
}

// NewSelector creates a selector matching actor (case-insensitive). An
// empty actor falls back to types.DefaultAutomatedActor.
func NewSelector(reader *inventory.Reader, actor string) *Selector {
	if actor == "" {
		actor = types.DefaultAutomatedActor
	}
	return &Selector{
		reader: reader,
		actor:  actor,
		logger: log.WithComponent("heuristic"),
	}
}

// Actor returns the actor tag matched against "State changed by"
func (s *Selector) Actor() string {
	return s.actor
}

// SelectRestoreCandidates returns the elements that match w, in
// enumeration order. Elements whose change timestamp cannot be parsed are
// reported as observations and left out. An inventory error is returned
// as-is; an empty inventory yields ErrNoElements.
func (s *Selector) SelectRestoreCandidates(ctx context.Context, w Window) ([]*types.Element, []types.Observation, error) {
	if len(w.AgentIDs()) == 0 {
		return nil, nil, nil
	}

	elements, err := s.reader.ListResources(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(elements) == 0 {
		return nil, nil, ErrNoElements
	}

	var candidates []*types.Element
	var observations []types.Observation
	for _, element := range elements {
		if !w.Agents[element.HostAgentID] {
			continue
		}
		if element.State != types.ElementStateStopped {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(element.LastStateChangeActor()), s.actor) {
			continue
		}

		changed, err := element.LastStateChangeTimestamp()
		if err != nil {
			s.logger.Warn().Err(err).Str("element", element.Name).Msg("Skipping element")
			observations = append(observations, types.Observation{
				Element: element.Name,
				Message: err.Error(),
				Time:    time.Now(),
			})
			continue
		}

		s.logger.Debug().
			Str("element", element.Name).
			Int("agent_id", element.HostAgentID).
			Time("changed", changed).
			Msg("Evaluating stopped element")

		if w.Contains(changed) {
			candidates = append(candidates, element)
		}
	}

	s.logger.Info().
		Int("candidates", len(candidates)).
		Ints("agents", w.AgentIDs()).
		Msg("Restore candidates selected")
	return candidates, observations, nil
}
