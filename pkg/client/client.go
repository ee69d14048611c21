package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/elementstates/pkg/types"
	"github.com/gorilla/websocket"
)

// Client is the capability surface of the management system used by
// elementstates: enumerate elements and agents, change an element's state.
type Client interface {
	ListElements(ctx context.Context) ([]*types.Element, error)
	ListAgents(ctx context.Context) ([]*types.Agent, error)
	SetElementState(ctx context.Context, id types.ElementID, state types.ElementState) error
}

// Wire methods
const (
	MethodGetElementInfo   = "GetElementInfo"
	MethodGetDataMinerInfo = "GetDataMinerInfo"
	MethodSetElementState  = "SetElementState"
)

// CodeElementUnavailable is returned by the management system when an
// element no longer exists (0x80131500)
const CodeElementUnavailable = -2146233088

var (
	// ErrElementNotFound is returned when the target element does not exist
	ErrElementNotFound = errors.New("element not found")

	// ErrInvalidTarget is returned for states that cannot be requested
	ErrInvalidTarget = errors.New("invalid target state")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("client closed")
)

// RemoteError is an error reported by the management system
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// Request is the envelope sent for every call
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the envelope received for every call
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

// ElementInfo is the wire form of an element
type ElementInfo struct {
	DataMinerID    int            `json:"dataMinerId"`
	ElementID      int            `json:"elementId"`
	Name           string         `json:"name"`
	HostingAgentID int            `json:"hostingAgentId"`
	State          int            `json:"state"`
	Properties     []PropertyInfo `json:"properties,omitempty"`
}

// PropertyInfo is one element property on the wire
type PropertyInfo struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DataMinerInfo is the wire form of an agent. Failover pairs report two
// entries with the same ID.
type DataMinerInfo struct {
	ID         int    `json:"id"`
	AgentName  string `json:"agentName"`
	IsFailover bool   `json:"isFailover"`
}

// SetElementStateParams are the parameters of MethodSetElementState
type SetElementStateParams struct {
	DataMinerID int `json:"dataMinerId"`
	ElementID   int `json:"elementId"`
	State       int `json:"state"`
}

// Config holds connection settings
type Config struct {
	Endpoint         string
	User             string
	Password         string
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
}

// WSClient talks to the management system over a single websocket
// session. Calls are serialized; there is no pooling. A session that fails
// mid-call is discarded and dialed again on the next call.
type WSClient struct {
	cfg  Config
	conn *websocket.Conn

	mu     sync.Mutex
	nextID uint64
	closed bool
}

// Dial connects to the management system
func Dial(ctx context.Context, cfg Config) (*WSClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	conn, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &WSClient{cfg: cfg, conn: conn}, nil
}

func dial(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	header := http.Header{}
	if cfg.User != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.User + ":" + cfg.Password))
		header.Set("Authorization", "Basic "+creds)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.Endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", cfg.Endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Endpoint, err)
	}
	return conn, nil
}

// Close closes the session
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// ListElements returns every element in the cluster
func (c *WSClient) ListElements(ctx context.Context) ([]*types.Element, error) {
	var infos []ElementInfo
	if err := c.call(ctx, MethodGetElementInfo, nil, &infos); err != nil {
		return nil, fmt.Errorf("failed to list elements: %w", err)
	}

	elements := make([]*types.Element, 0, len(infos))
	for _, info := range infos {
		elements = append(elements, info.toElement())
	}
	return elements, nil
}

// ListAgents returns one entry per agent info response. Failover pairs
// are not merged here.
func (c *WSClient) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	var infos []DataMinerInfo
	if err := c.call(ctx, MethodGetDataMinerInfo, nil, &infos); err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	agents := make([]*types.Agent, 0, len(infos))
	for _, info := range infos {
		agents = append(agents, &types.Agent{
			ID:         info.ID,
			Name:       info.AgentName,
			IsFailover: info.IsFailover,
		})
	}
	return agents, nil
}

// SetElementState requests a state transition. The call returns when the
// request is accepted, not when the element has settled.
func (c *WSClient) SetElementState(ctx context.Context, id types.ElementID, state types.ElementState) error {
	if err := ValidateTarget(state); err != nil {
		return err
	}

	params := SetElementStateParams{
		DataMinerID: id.AgentID,
		ElementID:   id.ElementID,
		State:       int(state),
	}
	if err := c.call(ctx, MethodSetElementState, params, nil); err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Code == CodeElementUnavailable {
			return fmt.Errorf("element %s: %w", id, ErrElementNotFound)
		}
		return fmt.Errorf("failed to set element %s to %s: %w", id, state, err)
	}
	return nil
}

// ValidateTarget rejects states that cannot be requested
func ValidateTarget(state types.ElementState) error {
	switch state {
	case types.ElementStateUndefined, types.ElementStateDeleted:
		return fmt.Errorf("%w: %s", ErrInvalidTarget, state)
	}
	return nil
}

func (c *WSClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.nextID++
	req := Request{ID: c.nextID, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = raw
	}

	if c.conn == nil {
		conn, err := dial(ctx, c.cfg)
		if err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
		c.conn = conn
	}

	resp, err := c.exchange(ctx, req)
	if err != nil {
		// A failed read or write leaves the session unusable
		_ = c.conn.Close()
		c.conn = nil
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.Method, err)
	}
	return nil
}

// exchange sends req and waits for the response with the same id. A done
// ctx expires the deadlines so a pending read returns at once.
func (c *WSClient) exchange(ctx context.Context, req Request) (*Response, error) {
	conn := c.conn

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	watched := make(chan struct{})
	defer func() {
		close(stop)
		<-watched
	}()
	go func() {
		defer close(watched)
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
			_ = conn.SetWriteDeadline(time.Now())
		case <-stop:
		}
	}()

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", req.Method, err)
	}

	for {
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", req.Method, err)
		}
		// Responses to other ids are dropped
		if resp.ID != req.ID {
			continue
		}
		return &resp, nil
	}
}

func (info ElementInfo) toElement() *types.Element {
	props := make(map[string]string, len(info.Properties))
	for _, p := range info.Properties {
		props[p.Name] = p.Value
	}
	return &types.Element{
		ID:          types.ElementID{AgentID: info.DataMinerID, ElementID: info.ElementID},
		Name:        info.Name,
		HostAgentID: info.HostingAgentID,
		State:       types.ElementState(info.State),
		Properties:  props,
	}
}
