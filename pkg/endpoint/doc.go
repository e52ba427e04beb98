// ABOUTME: Endpoint configuration package
// ABOUTME: Endpoint records, quality tiers, an observable registry and JSON storage
// Package endpoint holds the configured remote endpoints.
//
// An Endpoint is either a sender target (audio is sent to Host:Port) or a
// receiver source (audio arriving on Port under Name is accepted). The
// Registry owns the live list, persists it through a Store and notifies
// subscribers of every change with the set of fields that changed.
//
// Example:
//
//	reg, err := endpoint.NewRegistry(endpoint.NewStore(path))
//	events, cancel := reg.Subscribe(16)
//	ep, err := reg.Add(endpoint.New(endpoint.RoleSender, "Stream1", "10.0.0.2", 6980))
package endpoint
