// Package audit records connection lifecycle events to PostgreSQL.
//
// Only session metadata is stored (connect, register, disconnect), never
// message payloads. Events are batched and written with pgx.Batch, flushed
// when a batch fills or on a fixed interval. The Writer implements
// connection.Observer.
package audit
