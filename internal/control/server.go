// ABOUTME: WebSocket control server for endpoints, gain and live stats
// ABOUTME: Applies client requests to the registry and pushes stats every second
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vbancast/vbancast-go/internal/protocol"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

const (
	// Path is the control endpoint
	Path = "/control"

	// DefaultStatsInterval is how often stats are pushed
	DefaultStatsInterval = time.Second

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendBuffer    = 64
)

// GainControl adjusts the receiver master gain
type GainControl interface {
	SetGain(g float64)
	Gain() float64
}

// Config holds control server configuration
type Config struct {
	Addr          string
	Registry      *endpoint.Registry
	Gain          GainControl          // nil disables gain/set
	Stats         func() protocol.Stats // nil disables the stats push
	StatsInterval time.Duration
	Debug         bool
}

// Server serves the control WebSocket
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	clients   map[*client]struct{}
	clientsMu sync.RWMutex
	closing   bool // set once Serve starts shutting down; guarded by clientsMu
	wg        sync.WaitGroup
}

type client struct {
	conn     *websocket.Conn
	addr     string
	sendChan chan interface{}
	done     chan struct{}
	once     sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// New creates a control server
func New(config Config) *Server {
	if config.StatsInterval <= 0 {
		config.StatsInterval = DefaultStatsInterval
	}

	s := &Server{
		config:  config,
		mux:     http.NewServeMux(),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Control is meant for trusted local networks
				origin := r.Header.Get("Origin")
				if origin != "" && config.Debug {
					log.Printf("[DEBUG] Control connection from origin %s", origin)
				}
				return true
			},
		},
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving Path
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on Addr until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{Handler: s.mux}

	s.clientsMu.Lock()
	s.closing = false
	s.clientsMu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	log.Printf("Control server listening on %s%s", ln.Addr(), Path)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Control server shutdown error: %v", err)
	}

	// Hijacked connections are not closed by Shutdown
	s.clientsMu.Lock()
	s.closing = true
	for c := range s.clients {
		c.conn.Close()
	}
	s.clientsMu.Unlock()
	s.wg.Wait()

	if serveErr != nil {
		return fmt.Errorf("control server failed: %w", serveErr)
	}
	return nil
}

// Clients returns the number of connected clients
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Control upgrade error: %v", err)
		return
	}

	c := &client{
		conn:     conn,
		addr:     r.RemoteAddr,
		sendChan: make(chan interface{}, sendBuffer),
		done:     make(chan struct{}),
	}

	s.clientsMu.Lock()
	if s.closing {
		s.clientsMu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	s.clientsMu.Unlock()

	log.Printf("Control client connected: %s", c.addr)
	s.handleConnection(c)
}

func (s *Server) handleConnection(c *client) {
	defer s.wg.Done()
	defer c.conn.Close()

	events, unsubscribe := s.config.Registry.Subscribe(sendBuffer)

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		s.clientWriter(c, events)
	}()

	defer func() {
		c.close()
		unsubscribe()
		writer.Wait()

		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		log.Printf("Control client disconnected: %s", c.addr)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Control read error: %v", err)
			}
			return
		}
		s.handleMessage(c, data)
	}
}

// clientWriter owns all writes to the connection
func (s *Server) clientWriter(c *client, events <-chan endpoint.Event) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var statsC <-chan time.Time
	if s.config.Stats != nil {
		ticker := time.NewTicker(s.config.StatsInterval)
		defer ticker.Stop()
		statsC = ticker.C
	}

	for {
		var msg interface{}
		select {
		case <-c.done:
			return
		case msg = <-c.sendChan:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			msg = protocol.Reply{
				Type: protocol.TypeEndpointEvent,
				Payload: protocol.EndpointEvent{
					Kind:     ev.Kind.String(),
					Endpoint: ev.Endpoint,
					Changed:  ev.Changed.String(),
				},
			}
		case <-statsC:
			msg = protocol.Reply{Type: protocol.TypeStats, Payload: s.config.Stats()}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
			continue
		}

		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("Error marshaling control message: %v", err)
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Control write error to %s: %v", c.addr, err)
			c.conn.Close()
			return
		}
	}
}

func (s *Server) send(c *client, reply protocol.Reply) {
	select {
	case c.sendChan <- reply:
	case <-c.done:
	default:
		log.Printf("Control client %s send buffer full, dropping %s", c.addr, reply.Type)
	}
}

func (s *Server) handleMessage(c *client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.send(c, errorReply("", "", fmt.Errorf("invalid message: %w", err)))
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] Control request %s from %s", msg.Type, c.addr)
	}

	payload, err := s.dispatch(msg)
	if err != nil {
		s.send(c, errorReply(msg.Type, msg.ID, err))
		return
	}
	s.send(c, protocol.Reply{Type: msg.Type, ID: msg.ID, Payload: payload})
}

// dispatch executes one request and returns the reply payload
func (s *Server) dispatch(msg protocol.Message) (interface{}, error) {
	reg := s.config.Registry

	switch msg.Type {
	case protocol.TypeEndpointList:
		return protocol.EndpointList{Endpoints: reg.List()}, nil

	case protocol.TypeEndpointAdd:
		var patch protocol.EndpointPatch
		if err := decodePayload(msg.Payload, &patch); err != nil {
			return nil, err
		}
		ep := endpoint.New(endpoint.RoleReceiver, "", "", endpoint.DefaultPort)
		if patch.ID != uuid.Nil {
			ep.ID = patch.ID
		}
		patch.Apply(&ep)
		added, err := reg.Add(ep)
		if err != nil {
			return nil, err
		}
		log.Printf("Control: added endpoint %s", added)
		return added, nil

	case protocol.TypeEndpointUpdate:
		var patch protocol.EndpointPatch
		if err := decodePayload(msg.Payload, &patch); err != nil {
			return nil, err
		}
		updated, err := reg.Modify(patch.ID, patch.Apply)
		if err != nil {
			return nil, err
		}
		log.Printf("Control: updated endpoint %s", updated)
		return updated, nil

	case protocol.TypeEndpointRemove:
		var ref protocol.EndpointRef
		if err := decodePayload(msg.Payload, &ref); err != nil {
			return nil, err
		}
		if err := reg.Remove(ref.ID); err != nil {
			return nil, err
		}
		log.Printf("Control: removed endpoint %s", ref.ID)
		return ref, nil

	case protocol.TypeGainSet:
		if s.config.Gain == nil {
			return nil, errors.New("no receiver running")
		}
		var req protocol.GainSet
		if err := decodePayload(msg.Payload, &req); err != nil {
			return nil, err
		}
		if req.Gain < 0 {
			return nil, fmt.Errorf("invalid gain: %v", req.Gain)
		}
		s.config.Gain.SetGain(req.Gain)
		return protocol.GainSet{Gain: s.config.Gain.Gain()}, nil
	}

	return nil, fmt.Errorf("unknown message type: %s", msg.Type)
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func errorReply(request, id string, err error) protocol.Reply {
	return protocol.Reply{
		Type:    protocol.TypeError,
		ID:      id,
		Payload: protocol.Error{Request: request, Message: err.Error()},
	}
}
