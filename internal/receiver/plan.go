// ABOUTME: Pure reconciliation of receiver endpoints into per-port listeners
// ABOUTME: Computes open, close and update actions from the current topology
package receiver

import (
	"sort"

	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

// Topology maps a UDP port to the receiver endpoints bound to it, in
// configuration order
type Topology map[int][]endpoint.Endpoint

// ActionKind says what to do with a port's listener
type ActionKind int

const (
	ActionOpen ActionKind = iota
	ActionClose
	ActionUpdate
)

func (k ActionKind) String() string {
	switch k {
	case ActionOpen:
		return "open"
	case ActionClose:
		return "close"
	case ActionUpdate:
		return "update"
	}
	return "unknown"
}

// Action is one step needed to move from one topology to another
type Action struct {
	Kind      ActionKind
	Port      int
	Endpoints []endpoint.Endpoint // empty for ActionClose
}

// Plan groups enabled receiver endpoints by port and returns the new
// topology with the actions that turn current into it. Ports whose
// endpoint list is unchanged get no action. Actions are ordered by port.
func Plan(current Topology, endpoints []endpoint.Endpoint) (Topology, []Action) {
	next := make(Topology)
	for _, ep := range endpoints {
		if ep.Role != endpoint.RoleReceiver || !ep.Enabled || ep.Port <= 0 {
			continue
		}
		next[ep.Port] = append(next[ep.Port], ep)
	}

	ports := make(map[int]struct{}, len(current)+len(next))
	for p := range current {
		ports[p] = struct{}{}
	}
	for p := range next {
		ports[p] = struct{}{}
	}
	sorted := make([]int, 0, len(ports))
	for p := range ports {
		sorted = append(sorted, p)
	}
	sort.Ints(sorted)

	var actions []Action
	for _, port := range sorted {
		cur, had := current[port]
		eps, wants := next[port]
		switch {
		case had && !wants:
			actions = append(actions, Action{Kind: ActionClose, Port: port})
		case !had && wants:
			actions = append(actions, Action{Kind: ActionOpen, Port: port, Endpoints: eps})
		case !sameEndpoints(cur, eps):
			actions = append(actions, Action{Kind: ActionUpdate, Port: port, Endpoints: eps})
		}
	}
	return next, actions
}

func sameEndpoints(a, b []endpoint.Endpoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
