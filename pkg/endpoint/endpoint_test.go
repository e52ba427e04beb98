// ABOUTME: Tests for endpoint records and quality tiers
// ABOUTME: Tests validation, normalization, field diffs and tier tables
package endpoint

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(e *Endpoint)
		want   error
	}{
		{"valid sender", func(e *Endpoint) {}, nil},
		{"valid receiver without host", func(e *Endpoint) { e.Role = RoleReceiver; e.Host = "" }, nil},
		{"empty name", func(e *Endpoint) { e.Name = "" }, ErrInvalidName},
		{"name too long", func(e *Endpoint) { e.Name = "0123456789abcdefg" }, ErrInvalidName},
		{"non ascii name", func(e *Endpoint) { e.Name = "café" }, ErrInvalidName},
		{"port zero", func(e *Endpoint) { e.Port = 0 }, ErrInvalidPort},
		{"port too high", func(e *Endpoint) { e.Port = 70000 }, ErrInvalidPort},
		{"sender without host", func(e *Endpoint) { e.Host = "" }, ErrInvalidHost},
		{"unknown role", func(e *Endpoint) { e.Role = "relay" }, ErrInvalidRole},
		{"negative volume", func(e *Endpoint) { e.Volume = -1 }, ErrInvalidVolume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := New(RoleSender, "Stream1", "10.0.0.2", DefaultPort)
			tt.modify(&ep)
			err := ep.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateQuality(t *testing.T) {
	ep := New(RoleReceiver, "x", "", DefaultPort)
	ep.Quality = Quality(9)
	if err := ep.Validate(); err == nil {
		t.Error("expected error for unknown quality")
	}
}

func TestNormalize(t *testing.T) {
	ep := New(RoleSender, "café stream name too long", "  host.local ", 1)
	ep = ep.Normalize()
	if ep.Name != "caf__ stream nam" {
		t.Errorf("unexpected normalized name %q", ep.Name)
	}
	if ep.Host != "host.local" {
		t.Errorf("expected trimmed host, got %q", ep.Host)
	}
	if err := ep.Validate(); err != nil {
		t.Errorf("normalized endpoint should validate: %v", err)
	}
}

func TestDiff(t *testing.T) {
	a := New(RoleReceiver, "a", "", 6980)
	if Diff(a, a) != 0 {
		t.Error("expected no diff for identical endpoints")
	}

	b := a
	b.Port = 6981
	b.Volume = 0.5
	got := Diff(a, b)
	if got != FieldPort|FieldVolume {
		t.Errorf("expected port|volume, got %s", got)
	}
	if got.String() != "port|volume" {
		t.Errorf("unexpected mask string %q", got.String())
	}
	if got.Has(FieldName) {
		t.Error("name should not be marked changed")
	}
}

func TestQualityTiers(t *testing.T) {
	tests := []struct {
		q       Quality
		name    string
		bytes   int
		samples int
	}{
		{QualityOptimal, "optimal", 256, 512},
		{QualityFast, "fast", 512, 1024},
		{QualityMedium, "medium", 768, 2048},
		{QualitySlow, "slow", 1024, 4096},
		{QualityVerySlow, "veryslow", 1436, 8192},
	}
	for _, tt := range tests {
		if tt.q.String() != tt.name {
			t.Errorf("%d: expected name %q, got %q", tt.q, tt.name, tt.q.String())
		}
		if tt.q.ReferenceBytes() != tt.bytes {
			t.Errorf("%s: expected %d bytes, got %d", tt.name, tt.bytes, tt.q.ReferenceBytes())
		}
		if tt.q.ReferenceSamples() != tt.samples {
			t.Errorf("%s: expected %d samples, got %d", tt.name, tt.samples, tt.q.ReferenceSamples())
		}
		parsed, err := ParseQuality(tt.name)
		if err != nil || parsed != tt.q {
			t.Errorf("ParseQuality(%q): got %v, %v", tt.name, parsed, err)
		}
	}

	if _, err := ParseQuality("ludicrous"); err == nil {
		t.Error("expected error for unknown quality")
	}
	if Quality(-1).ReferenceBytes() != 512 {
		t.Error("invalid quality should fall back to fast")
	}
}

func TestEndpointJSON(t *testing.T) {
	ep := New(RoleSender, "Stream1", "10.0.0.2", 6980)
	ep.Quality = QualitySlow

	data, err := json.Marshal(ep)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["quality"] != "slow" || raw["role"] != "sender" {
		t.Errorf("expected readable quality and role, got %s", data)
	}

	var back Endpoint
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back != ep {
		t.Errorf("expected %+v, got %+v", ep, back)
	}
}
