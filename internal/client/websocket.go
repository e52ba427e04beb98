// ABOUTME: WebSocket client for the vbancast control API
// ABOUTME: Handles connection, request/reply matching and routing of pushed events
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vbancast/vbancast-go/internal/control"
	"github.com/vbancast/vbancast-go/internal/protocol"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

// ErrClosed is returned for requests on a closed client
var ErrClosed = errors.New("control connection closed")

// Client is a connection to a control server
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan protocol.Message
	nextID    atomic.Uint64

	// Pushed messages; dropped when the reader falls behind
	Events chan protocol.EndpointEvent
	Stats  chan protocol.Stats

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the control server at addr (host:port)
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: control.Path}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan protocol.Message),
		Events:  make(chan protocol.EndpointEvent, 64),
		Stats:   make(chan protocol.Stats, 4),
		done:    make(chan struct{}),
	}
	go c.readMessages()
	return c, nil
}

// Request sends a request and decodes the reply payload into out, which
// may be nil. Error replies are returned as errors.
func (c *Client) Request(ctx context.Context, msgType string, payload, out interface{}) error {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	reply := make(chan protocol.Message, 1)

	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.send(protocol.Reply{Type: msgType, ID: id, Payload: payload}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case msg := <-reply:
		if msg.Type == protocol.TypeError {
			var e protocol.Error
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				return fmt.Errorf("%s failed", msgType)
			}
			return fmt.Errorf("%s failed: %s", msgType, e.Message)
		}
		if out == nil || len(msg.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Payload, out); err != nil {
			return fmt.Errorf("invalid %s reply: %w", msgType, err)
		}
		return nil
	}
}

// List returns all endpoints
func (c *Client) List(ctx context.Context) ([]endpoint.Endpoint, error) {
	var list protocol.EndpointList
	if err := c.Request(ctx, protocol.TypeEndpointList, nil, &list); err != nil {
		return nil, err
	}
	return list.Endpoints, nil
}

// Add creates an endpoint from patch
func (c *Client) Add(ctx context.Context, patch protocol.EndpointPatch) (endpoint.Endpoint, error) {
	var ep endpoint.Endpoint
	err := c.Request(ctx, protocol.TypeEndpointAdd, patch, &ep)
	return ep, err
}

// Update changes the fields set in patch on endpoint patch.ID
func (c *Client) Update(ctx context.Context, patch protocol.EndpointPatch) (endpoint.Endpoint, error) {
	var ep endpoint.Endpoint
	err := c.Request(ctx, protocol.TypeEndpointUpdate, patch, &ep)
	return ep, err
}

// Remove deletes an endpoint
func (c *Client) Remove(ctx context.Context, id uuid.UUID) error {
	return c.Request(ctx, protocol.TypeEndpointRemove, protocol.EndpointRef{ID: id}, nil)
}

// SetGain sets the receiver master gain and returns the applied value
func (c *Client) SetGain(ctx context.Context, g float64) (float64, error) {
	var reply protocol.GainSet
	if err := c.Request(ctx, protocol.TypeGainSet, protocol.GainSet{Gain: g}, &reply); err != nil {
		return 0, err
	}
	return reply.Gain, nil
}

func (c *Client) send(msg protocol.Reply) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return nil
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("Control read error: %v", err)
				}
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Failed to parse control message: %v", err)
			continue
		}
		c.route(msg)
	}
}

func (c *Client) route(msg protocol.Message) {
	if msg.ID != "" {
		c.pendingMu.Lock()
		reply, ok := c.pending[msg.ID]
		c.pendingMu.Unlock()
		if ok {
			reply <- msg
			return
		}
	}

	switch msg.Type {
	case protocol.TypeEndpointEvent:
		var ev protocol.EndpointEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			log.Printf("Invalid endpoint event: %v", err)
			return
		}
		select {
		case c.Events <- ev:
		default:
		}

	case protocol.TypeStats:
		var stats protocol.Stats
		if err := json.Unmarshal(msg.Payload, &stats); err != nil {
			log.Printf("Invalid stats push: %v", err)
			return
		}
		select {
		case c.Stats <- stats:
		default:
		}

	case protocol.TypeError:
		log.Printf("Control error: %s", msg.Payload)
	}
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.conn.Close()
	})
}
