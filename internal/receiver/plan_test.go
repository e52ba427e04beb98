// ABOUTME: Tests for receiver topology planning
// ABOUTME: Tests open, close and update actions and endpoint filtering
package receiver

import (
	"testing"

	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

func rx(name string, port int) endpoint.Endpoint {
	return endpoint.New(endpoint.RoleReceiver, name, "", port)
}

func TestPlanFromEmpty(t *testing.T) {
	a, b, c := rx("a", 7000), rx("b", 7000), rx("c", 6990)
	off := rx("off", 7100)
	off.Enabled = false
	tx := endpoint.New(endpoint.RoleSender, "tx", "h", 7200)

	topo, actions := Plan(nil, []endpoint.Endpoint{a, b, c, off, tx})

	if len(topo) != 2 || len(topo[7000]) != 2 || len(topo[6990]) != 1 {
		t.Fatalf("unexpected topology %v", topo)
	}
	if topo[7000][0].ID != a.ID || topo[7000][1].ID != b.ID {
		t.Error("expected configuration order within a port")
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %v", actions)
	}
	if actions[0].Kind != ActionOpen || actions[0].Port != 6990 || actions[1].Port != 7000 {
		t.Errorf("expected opens ordered by port, got %v", actions)
	}
}

func TestPlanNoChange(t *testing.T) {
	eps := []endpoint.Endpoint{rx("a", 7000), rx("b", 7001)}
	topo, _ := Plan(nil, eps)
	next, actions := Plan(topo, eps)
	if len(actions) != 0 {
		t.Errorf("expected no actions, got %v", actions)
	}
	if len(next) != 2 {
		t.Errorf("expected topology preserved, got %v", next)
	}
}

func TestPlanSharedPortRemoval(t *testing.T) {
	a, b := rx("a", 7000), rx("b", 7000)
	topo, _ := Plan(nil, []endpoint.Endpoint{a, b})

	next, actions := Plan(topo, []endpoint.Endpoint{b})
	if len(actions) != 1 || actions[0].Kind != ActionUpdate || actions[0].Port != 7000 {
		t.Fatalf("expected a single update, got %v", actions)
	}
	if len(next[7000]) != 1 || next[7000][0].ID != b.ID {
		t.Errorf("expected only b on 7000, got %v", next[7000])
	}
}

func TestPlanTransitions(t *testing.T) {
	a, b := rx("a", 7000), rx("b", 7001)
	topo, _ := Plan(nil, []endpoint.Endpoint{a, b})

	tests := []struct {
		name     string
		modify   func() []endpoint.Endpoint
		expected []Action
	}{
		{
			name: "disable last endpoint on port",
			modify: func() []endpoint.Endpoint {
				off := b
				off.Enabled = false
				return []endpoint.Endpoint{a, off}
			},
			expected: []Action{{Kind: ActionClose, Port: 7001}},
		},
		{
			name: "move to another port",
			modify: func() []endpoint.Endpoint {
				moved := b
				moved.Port = 7002
				return []endpoint.Endpoint{a, moved}
			},
			expected: []Action{{Kind: ActionClose, Port: 7001}, {Kind: ActionOpen, Port: 7002}},
		},
		{
			name: "rename keeps socket",
			modify: func() []endpoint.Endpoint {
				renamed := b
				renamed.Name = "b2"
				return []endpoint.Endpoint{a, renamed}
			},
			expected: []Action{{Kind: ActionUpdate, Port: 7001}},
		},
		{
			name: "join existing port",
			modify: func() []endpoint.Endpoint {
				joined := b
				joined.Port = 7000
				return []endpoint.Endpoint{a, joined}
			},
			expected: []Action{{Kind: ActionUpdate, Port: 7000}, {Kind: ActionClose, Port: 7001}},
		},
		{
			name:     "remove everything",
			modify:   func() []endpoint.Endpoint { return nil },
			expected: []Action{{Kind: ActionClose, Port: 7000}, {Kind: ActionClose, Port: 7001}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, actions := Plan(topo, tt.modify())
			if len(actions) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, actions)
			}
			for i := range actions {
				if actions[i].Kind != tt.expected[i].Kind || actions[i].Port != tt.expected[i].Port {
					t.Errorf("action %d: expected %s %d, got %s %d", i,
						tt.expected[i].Kind, tt.expected[i].Port, actions[i].Kind, actions[i].Port)
				}
			}
		})
	}
}

func TestPlanDoesNotMutateCurrent(t *testing.T) {
	a := rx("a", 7000)
	topo, _ := Plan(nil, []endpoint.Endpoint{a})
	Plan(topo, nil)
	if len(topo[7000]) != 1 {
		t.Error("Plan mutated the current topology")
	}
}
