// Package clienttest provides an in-memory management system for tests.
package clienttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/elementstates/pkg/client"
	"github.com/cuemby/elementstates/pkg/types"
)

// Call records one SetElementState invocation
type Call struct {
	ID    types.ElementID
	Name  string
	State types.ElementState
	Err   error
}

// FakeCluster implements client.Client in memory. Successful state
// changes are applied to the stored element.
type FakeCluster struct {
	mu       sync.Mutex
	elements []*types.Element
	agents   []*types.Agent
	calls    []Call

	// ListElementsErr and ListAgentsErr fail the enumeration calls
	ListElementsErr error
	ListAgentsErr   error

	// SetErrors fails SetElementState for the named element
	SetErrors map[string]error

	listCalls int
	nextID    int
}

var _ client.Client = (*FakeCluster)(nil)

// NewFakeCluster creates an empty fake cluster
func NewFakeCluster() *FakeCluster {
	return &FakeCluster{SetErrors: make(map[string]error)}
}

// AddElement adds an element hosted on agentID and returns it
func (f *FakeCluster) AddElement(name string, agentID int, state types.ElementState, props map[string]string) *types.Element {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	e := &types.Element{
		ID:          types.ElementID{AgentID: agentID, ElementID: f.nextID},
		Name:        name,
		HostAgentID: agentID,
		State:       state,
		Properties:  props,
	}
	f.elements = append(f.elements, e)
	return e
}

// AddAgent adds an agent info response
func (f *FakeCluster) AddAgent(id int, name string, failover bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents = append(f.agents, &types.Agent{ID: id, Name: name, IsFailover: failover})
}

// RemoveElement deletes an element from the cluster
func (f *FakeCluster) RemoveElement(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.elements {
		if e.Name == name {
			f.elements = append(f.elements[:i], f.elements[i+1:]...)
			return
		}
	}
}

// ListElements returns copies of the stored elements
func (f *FakeCluster) ListElements(ctx context.Context) ([]*types.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	if f.ListElementsErr != nil {
		return nil, f.ListElementsErr
	}

	out := make([]*types.Element, 0, len(f.elements))
	for _, e := range f.elements {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// ListAgents returns the stored agent info responses
func (f *FakeCluster) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListAgentsErr != nil {
		return nil, f.ListAgentsErr
	}

	out := make([]*types.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// SetElementState records the call and applies the state on success
func (f *FakeCluster) SetElementState(ctx context.Context, id types.ElementID, state types.ElementState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := client.ValidateTarget(state); err != nil {
		return err
	}

	var target *types.Element
	for _, e := range f.elements {
		if e.ID == id {
			target = e
			break
		}
	}

	call := Call{ID: id, State: state}
	if target == nil {
		call.Err = fmt.Errorf("element %s: %w", id, client.ErrElementNotFound)
		f.calls = append(f.calls, call)
		return call.Err
	}
	call.Name = target.Name

	if err, ok := f.SetErrors[target.Name]; ok && err != nil {
		call.Err = err
		f.calls = append(f.calls, call)
		return err
	}

	if state == types.ElementStateRestart {
		target.State = types.ElementStateActive
	} else {
		target.State = state
	}
	f.calls = append(f.calls, call)
	return nil
}

// Calls returns every SetElementState call in order
func (f *FakeCluster) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CalledNames returns the element names of successful calls in order
func (f *FakeCluster) CalledNames() []string {
	var names []string
	for _, c := range f.Calls() {
		if c.Err == nil {
			names = append(names, c.Name)
		}
	}
	return names
}

// ResetCalls clears the recorded calls
func (f *FakeCluster) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// ListCalls returns how many times ListElements was called
func (f *FakeCluster) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// State returns the current state of the named element
func (f *FakeCluster) State(name string) (types.ElementState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.elements {
		if e.Name == name {
			return e.State, true
		}
	}
	return types.ElementStateUndefined, false
}
