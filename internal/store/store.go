// Package store holds the Postgres repositories and the Elasticsearch
// attendee directory the matching workers read from and write to.
package store

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrMatchNotFound = errors.New("match not found")
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
