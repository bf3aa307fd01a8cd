// Package database provides the PostgreSQL connection pool used by the
// session audit log.
package database
