// Package registry tracks live connections per role.
//
// The Registry holds three independent groups (sensor, processor, dashboard),
// each mapping a connection identity to its Handle. Handles are borrowed from
// the transport: presence in a group says nothing about liveness, so callers
// check Handle.IsOpen before every send.
//
// Each group has its own lock. Connections are served by separate goroutines,
// so registration, disconnect cleanup and broadcast snapshots run in parallel.
package registry
