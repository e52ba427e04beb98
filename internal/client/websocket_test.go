// ABOUTME: Tests for the control API client
// ABOUTME: Runs requests against a real control server over httptest
package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vbancast/vbancast-go/internal/control"
	"github.com/vbancast/vbancast-go/internal/protocol"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

type fakeGain struct {
	mu sync.Mutex
	g  float64
}

func (f *fakeGain) SetGain(g float64) {
	f.mu.Lock()
	f.g = g
	f.mu.Unlock()
}

func (f *fakeGain) Gain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.g
}

func newTestClient(t *testing.T, config control.Config) (*Client, *endpoint.Registry) {
	t.Helper()
	reg, err := endpoint.NewRegistry(nil)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	config.Registry = reg

	ts := httptest.NewServer(control.New(config).Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, err := Dial(ctx, strings.TrimPrefix(ts.URL, "http://"))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c, reg
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEndpointRequests(t *testing.T) {
	c, reg := newTestClient(t, control.Config{})
	ctx := testContext(t)

	name := "Stream1"
	port := 6990
	added, err := c.Add(ctx, protocol.EndpointPatch{Name: &name, Port: &port})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if added.Name != "Stream1" || added.Port != 6990 || added.Role != endpoint.RoleReceiver {
		t.Errorf("unexpected endpoint %+v", added)
	}
	if _, ok := reg.Get(added.ID); !ok {
		t.Error("endpoint not in registry")
	}

	list, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != added.ID {
		t.Errorf("expected one listed endpoint, got %+v", list)
	}

	disabled := false
	updated, err := c.Update(ctx, protocol.EndpointPatch{ID: added.ID, Enabled: &disabled})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Enabled {
		t.Error("expected endpoint disabled")
	}

	if err := c.Remove(ctx, added.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(reg.List()) != 0 {
		t.Error("expected registry empty")
	}
}

func TestErrorReply(t *testing.T) {
	c, _ := newTestClient(t, control.Config{})
	ctx := testContext(t)

	err := c.Remove(ctx, uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown endpoint")
	}
	if !strings.Contains(err.Error(), protocol.TypeEndpointRemove) {
		t.Errorf("expected request type in error, got %v", err)
	}

	if _, err := c.SetGain(ctx, 1); err == nil {
		t.Error("expected gain/set to fail without a receiver")
	}
}

func TestSetGain(t *testing.T) {
	gain := &fakeGain{g: 1}
	c, _ := newTestClient(t, control.Config{Gain: gain})

	got, err := c.SetGain(testContext(t), 0.4)
	if err != nil {
		t.Fatalf("gain/set failed: %v", err)
	}
	if got != 0.4 || gain.Gain() != 0.4 {
		t.Errorf("expected gain 0.4, got reply %v applied %v", got, gain.Gain())
	}
}

func TestEventsPushed(t *testing.T) {
	c, reg := newTestClient(t, control.Config{})

	// Round trip first so the server side subscription exists
	if _, err := c.List(testContext(t)); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	ep, err := reg.Add(endpoint.New(endpoint.RoleSender, "Out", "127.0.0.1", 6980))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	select {
	case ev := <-c.Events:
		if ev.Endpoint.ID != ep.ID {
			t.Errorf("expected event for %s, got %+v", ep.ID, ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no endpoint event received")
	}
}

func TestStatsPushed(t *testing.T) {
	c, _ := newTestClient(t, control.Config{
		Stats:         func() protocol.Stats { return protocol.Stats{Gain: 0.7} },
		StatsInterval: 20 * time.Millisecond,
	})

	select {
	case s := <-c.Stats:
		if s.Gain != 0.7 {
			t.Errorf("expected gain 0.7, got %v", s.Gain)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no stats received")
	}
}

func TestRequestAfterClose(t *testing.T) {
	c, _ := newTestClient(t, control.Config{})
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatal("expected Done closed")
	}
	if _, err := c.List(testContext(t)); err == nil {
		t.Error("expected error after close")
	}
}
