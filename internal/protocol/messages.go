// ABOUTME: Control protocol message type definitions
// ABOUTME: Defines the JSON envelope, request payloads and the stats push
package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

// Message types
const (
	TypeEndpointList   = "endpoint/list"
	TypeEndpointAdd    = "endpoint/add"
	TypeEndpointUpdate = "endpoint/update"
	TypeEndpointRemove = "endpoint/remove"
	TypeEndpointEvent  = "endpoint/event"
	TypeGainSet        = "gain/set"
	TypeStats          = "stats"
	TypeError          = "error"
)

// Message is the top-level wrapper for all control messages. ID is echoed
// back on the reply to a request.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply is an outgoing message with an already typed payload
type Reply struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// EndpointPatch carries the fields to set on an endpoint. Nil fields are
// left unchanged on update and take defaults on add.
type EndpointPatch struct {
	ID      uuid.UUID         `json:"id,omitempty"`
	Role    *endpoint.Role    `json:"role,omitempty"`
	Name    *string           `json:"name,omitempty"`
	Host    *string           `json:"host,omitempty"`
	Port    *int              `json:"port,omitempty"`
	Enabled *bool             `json:"enabled,omitempty"`
	Denoise *bool             `json:"denoise,omitempty"`
	Volume  *float64          `json:"volume,omitempty"`
	Quality *endpoint.Quality `json:"quality,omitempty"`
}

// Apply copies the set fields onto ep
func (p EndpointPatch) Apply(ep *endpoint.Endpoint) {
	if p.Role != nil {
		ep.Role = *p.Role
	}
	if p.Name != nil {
		ep.Name = *p.Name
	}
	if p.Host != nil {
		ep.Host = *p.Host
	}
	if p.Port != nil {
		ep.Port = *p.Port
	}
	if p.Enabled != nil {
		ep.Enabled = *p.Enabled
	}
	if p.Denoise != nil {
		ep.Denoise = *p.Denoise
	}
	if p.Volume != nil {
		ep.Volume = *p.Volume
	}
	if p.Quality != nil {
		ep.Quality = *p.Quality
	}
}

// EndpointRef names an endpoint by ID
type EndpointRef struct {
	ID uuid.UUID `json:"id"`
}

// EndpointList is the reply to endpoint/list
type EndpointList struct {
	Endpoints []endpoint.Endpoint `json:"endpoints"`
}

// EndpointEvent is pushed to clients when the registry changes
type EndpointEvent struct {
	Kind     string            `json:"kind"`
	Endpoint endpoint.Endpoint `json:"endpoint"`
	Changed  string            `json:"changed,omitempty"`
}

// GainSet sets the receiver master gain
type GainSet struct {
	Gain float64 `json:"gain"`
}

// Error is the payload of an error reply
type Error struct {
	Request string `json:"request"`
	Message string `json:"message"`
}

// Stats is pushed to every client once per second
type Stats struct {
	Time      int64           `json:"time"` // unix milliseconds
	Gain      float64         `json:"gain"`
	Listeners []ListenerStats `json:"listeners,omitempty"`
	Streams   []StreamStats   `json:"streams,omitempty"`
	Targets   []TargetStats   `json:"targets,omitempty"`
}

// ListenerStats describes one receiving port
type ListenerStats struct {
	Port      int      `json:"port"`
	Endpoints []string `json:"endpoints"`
	Packets   uint64   `json:"packets"`
	Rejected  uint64   `json:"rejected"`
	Matched   uint64   `json:"matched"`
}

// StreamStats describes one received stream
type StreamStats struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	BufferedMs int       `json:"buffered_ms"`
	Capacity   int       `json:"capacity"`
	Dropped    uint64    `json:"dropped"`
	Underruns  uint64    `json:"underruns"`
}

// TargetStats describes one sender endpoint
type TargetStats struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Addr         string    `json:"addr"`
	Packets      uint64    `json:"packets"`
	Errors       uint64    `json:"errors"`
	Bytes        uint64    `json:"bytes"`
	FrameCounter uint32    `json:"frame_counter"`
}
