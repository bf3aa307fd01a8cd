// Package connection implements the WebSocket transport for the relay.
//
// The Server:
//   - Upgrades HTTP requests and assigns each connection a fresh UUID identity
//   - Reads frames on one goroutine per connection and hands them to the Router
//   - Writes outbound frames from a per-connection Queue so broadcasts never
//     block on a slow peer
//   - Removes the connection from the Registry when it closes, whatever the cause
//
// Connections are never evicted for being idle. Keepalive pings only exist to
// hold intermediaries open.
package connection
