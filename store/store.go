// Package store provides the daemon's view of the external
// configuration/state store: a cache of port records plus a
// change-notification feed the worker loop blocks on.
//
// Two implementations exist: MemoryStore for tests and single-process use,
// and FileStore, which watches a TOML file and folds edits into the cache.
// Store failures are recovered per worker iteration, never escalated to
// shutdown.
package store

import (
	"strings"

	"github.com/vinayprograms/lacpd/errors"
)

// Common errors.
var (
	ErrClosed     = errors.New(errors.CodeClosed, "store closed")
	ErrNotFound   = errors.New(errors.CodeInvalidInput, "port not found")
	ErrInvalidKey = errors.New(errors.CodeInvalidInput, "invalid port key")
)

// Operation represents the type of change to a port record.
type Operation int

const (
	// OpPut indicates a port was created or updated.
	OpPut Operation = iota
	// OpDelete indicates a port was removed.
	OpDelete
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Port is one link-aggregation port record.
type Port struct {
	// Name of the interface, e.g. "eth0".
	Name string `toml:"name"`

	// LACPMode is "active", "passive" or "off" (static LAG).
	LACPMode string `toml:"lacp"`

	// Rate is the LACP timer rate, "fast" or "slow".
	Rate string `toml:"rate"`

	// Aggregate names the LAG this port belongs to.
	Aggregate string `toml:"aggregate"`
}

// Change is one cache mutation, delivered on the change feed.
type Change struct {
	// Key is the port key that changed.
	Key string

	// Port is the new record. Nil for OpDelete.
	Port *Port

	// Operation indicates the type of change.
	Operation Operation

	// Revision is a monotonic store version, bumped per mutation.
	Revision uint64
}

// Store is the boundary to the external configuration/state store.
type Store interface {
	// Run folds pending external updates into the cache. Non-blocking;
	// called once per worker iteration. A failure is recoverable and will
	// be retried on the next iteration.
	Run() error

	// Snapshot returns a copy of the current cache.
	Snapshot() map[string]Port

	// Changes returns the change feed. The channel is closed by Close.
	Changes() <-chan Change

	// Close releases the store connection. Idempotent.
	Close() error
}

// ValidateKey checks if a port key is usable.
func ValidateKey(key string) error {
	if key == "" || strings.ContainsAny(key, " \t\n") {
		return ErrInvalidKey
	}
	return nil
}
