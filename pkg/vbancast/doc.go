// ABOUTME: High-level vbancast library API
// ABOUTME: Provides owned Sender and Receiver sessions driven by an endpoint registry
// Package vbancast provides high-level sessions for VBAN audio streaming.
//
// This is the main entry point for most library users, providing:
//   - Sender: capture audio and send it to every enabled sender endpoint
//   - Receiver: listen on every receiver endpoint's port and play the mix
//
// Both sessions follow the endpoint.Registry they are given: adding,
// removing or editing an endpoint takes effect while the session runs.
// A session can be started again after Stop; each Start builds fresh
// sockets, buffers and counters.
//
// For lower-level control, see the vban, audio and endpoint packages.
//
// Example Receiver:
//
//	reg, err := endpoint.NewRegistry(endpoint.NewStore(path))
//	rx, err := vbancast.NewReceiver(vbancast.ReceiverConfig{
//	    Registry: reg,
//	    Output:   "oto",
//	    Gain:     1.0,
//	})
//	err = rx.Start(ctx)
//	defer rx.Stop()
//
// Example Sender:
//
//	tx, err := vbancast.NewSender(vbancast.SenderConfig{
//	    Registry: reg,
//	    Source:   "device",
//	})
//	err = tx.Start(ctx)
package vbancast
