/*
Package client talks to the management system of the cluster.

Client is the whole capability surface elementstates needs:

	ListElements     every element with its state and properties
	ListAgents       one entry per agent info response
	SetElementState  request a transition of one element

WSClient implements Client over a single websocket session. Every call is
one JSON request envelope answered by one response envelope with the same
id:

	→ {"id":7,"method":"SetElementState","params":{"dataMinerId":101,"elementId":12,"state":4}}
	← {"id":7}

	← {"id":7,"error":{"code":-2146233088,"message":"Element is unavailable."}}

Calls are serialized on the session; elementstates never issues two
requests at once. SetElementState returns when the request is accepted,
not when the element has settled, so callers pace themselves.

An element-unavailable error maps to ErrElementNotFound. Undefined and
Deleted are rejected locally with ErrInvalidTarget. Restart is passed
through; the management system records it as Active.

Failover pairs answer ListAgents twice with the same id. The client
returns both; package inventory deduplicates.

Package clienttest provides an in-memory FakeCluster for tests.
*/
package client
