// ABOUTME: Shared session plumbing for Sender and Receiver
// ABOUTME: Runs the reconcile loop that re-applies the registry on change events
package vbancast

import (
	"context"
	"errors"
	"log"

	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

// ErrRunning is returned by Start when the session is already running
var ErrRunning = errors.New("session already running")

// eventBuffer is the registry subscription depth per session
const eventBuffer = 16

// reconcile calls apply with the full endpoint list for every relevant
// registry event until ctx is done or the subscription ends
func reconcile(ctx context.Context, events <-chan endpoint.Event, reg *endpoint.Registry, apply func([]endpoint.Endpoint), debug bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind == endpoint.EventUpdated && ev.Changed == 0 {
				continue
			}
			if debug {
				log.Printf("[DEBUG] Reconcile: %s %q (%s)", ev.Kind, ev.Endpoint.Name, ev.Changed)
			}
			apply(reg.List())
		}
	}
}
