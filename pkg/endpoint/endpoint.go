// ABOUTME: Endpoint record and field-level change detection
// ABOUTME: Defines roles, validation and the FieldMask used by change events
package endpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vbancast/vbancast-go/pkg/vban"
)

var (
	ErrNotFound      = errors.New("endpoint not found")
	ErrInvalidName   = errors.New("invalid endpoint name")
	ErrInvalidPort   = errors.New("invalid endpoint port")
	ErrInvalidHost   = errors.New("invalid endpoint host")
	ErrInvalidRole   = errors.New("invalid endpoint role")
	ErrInvalidVolume = errors.New("invalid endpoint volume")
)

// DefaultPort is the standard VBAN UDP port
const DefaultPort = 6980

// Role says which direction an endpoint carries audio
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// Endpoint is one configured remote peer
type Endpoint struct {
	ID      uuid.UUID `json:"id"`
	Role    Role      `json:"role"`
	Name    string    `json:"name"`
	Host    string    `json:"host,omitempty"`
	Port    int       `json:"port"`
	Enabled bool      `json:"enabled"`
	Denoise bool      `json:"denoise"`
	Volume  float64   `json:"volume"`
	Quality Quality   `json:"quality"`
}

// New returns an enabled endpoint at unity volume with a fresh ID
func New(role Role, name, host string, port int) Endpoint {
	return Endpoint{
		ID:      uuid.New(),
		Role:    role,
		Name:    name,
		Host:    host,
		Port:    port,
		Enabled: true,
		Volume:  1.0,
		Quality: QualityFast,
	}
}

// Normalize returns e with its name made wire-safe
func (e Endpoint) Normalize() Endpoint {
	e.Name = vban.NormalizeName(e.Name)
	e.Host = strings.TrimSpace(e.Host)
	return e
}

// Validate checks that e can be used by its role
func (e Endpoint) Validate() error {
	switch e.Role {
	case RoleSender, RoleReceiver:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, e.Role)
	}
	if e.Name == "" || vban.NormalizeName(e.Name) != e.Name {
		return fmt.Errorf("%w: %q", ErrInvalidName, e.Name)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, e.Port)
	}
	if e.Role == RoleSender && e.Host == "" {
		return fmt.Errorf("%w: sender endpoint %q has no host", ErrInvalidHost, e.Name)
	}
	if e.Volume < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidVolume, e.Volume)
	}
	if !e.Quality.Valid() {
		return fmt.Errorf("invalid quality: %d", e.Quality)
	}
	return nil
}

func (e Endpoint) String() string {
	if e.Role == RoleSender {
		return fmt.Sprintf("%s -> %s:%d", e.Name, e.Host, e.Port)
	}
	return fmt.Sprintf("%s <- :%d", e.Name, e.Port)
}

// FieldMask is a set of endpoint fields
type FieldMask uint16

const (
	FieldRole FieldMask = 1 << iota
	FieldName
	FieldHost
	FieldPort
	FieldEnabled
	FieldDenoise
	FieldVolume
	FieldQuality

	FieldAll = FieldRole | FieldName | FieldHost | FieldPort | FieldEnabled |
		FieldDenoise | FieldVolume | FieldQuality
)

// Has reports whether any field in f is set in m
func (m FieldMask) Has(f FieldMask) bool {
	return m&f != 0
}

func (m FieldMask) String() string {
	names := []struct {
		f    FieldMask
		name string
	}{
		{FieldRole, "role"}, {FieldName, "name"}, {FieldHost, "host"},
		{FieldPort, "port"}, {FieldEnabled, "enabled"}, {FieldDenoise, "denoise"},
		{FieldVolume, "volume"}, {FieldQuality, "quality"},
	}
	var parts []string
	for _, n := range names {
		if m.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Diff returns the fields that differ between a and b
func Diff(a, b Endpoint) FieldMask {
	var m FieldMask
	if a.Role != b.Role {
		m |= FieldRole
	}
	if a.Name != b.Name {
		m |= FieldName
	}
	if a.Host != b.Host {
		m |= FieldHost
	}
	if a.Port != b.Port {
		m |= FieldPort
	}
	if a.Enabled != b.Enabled {
		m |= FieldEnabled
	}
	if a.Denoise != b.Denoise {
		m |= FieldDenoise
	}
	if a.Volume != b.Volume {
		m |= FieldVolume
	}
	if a.Quality != b.Quality {
		m |= FieldQuality
	}
	return m
}
