// Package orphanerr defines the error kinds of spec.md §7 as sentinel and
// typed errors, following torua's internal/storage convention of exporting
// a checkable sentinel (storage.ErrKeyNotFound) rather than a bespoke error
// interface per failure kind.
//
// Two kinds carry per-shard context (MissingShardKeyIndex, ConnectionLost):
// these are represented as *ShardError wrapping one of the sentinels below,
// so callers can both errors.Is against the sentinel and errors.As to reach
// the shard name and chunk range that failed.
package orphanerr

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Fatal error kinds. A fatal error aborts the run and surfaces a single
// diagnostic (spec.md §7 policy).
var (
	// ErrNotARouter is returned when the configured --uri does not point at
	// a mongos router (spec.md §6: program aborts before the core runs).
	ErrNotARouter = errors.New("orphanage: connection is not a mongos router")

	// ErrNamespaceNotSharded is returned when the target namespace has no
	// shard key registered in config.collections.
	ErrNamespaceNotSharded = errors.New("orphanage: namespace is not sharded")

	// ErrShardKeyMismatch indicates chunk metadata corruption: a chunk's min
	// and max documents disagree on field order.
	ErrShardKeyMismatch = errors.New("orphanage: chunk min/max shard-key field order mismatch")

	// ErrMetadataUnavailable indicates the router's config metadata could
	// not be read at all (no meaningful run is possible).
	ErrMetadataUnavailable = errors.New("orphanage: cluster metadata unavailable")

	// ErrMalformedBounds indicates one of a chunk's min/max documents is
	// empty while the other is not — a metadata bug, not a normal edge case.
	ErrMalformedBounds = errors.New("orphanage: chunk bounds malformed (one of min/max is empty)")
)

// Per-shard, non-fatal error kinds. These are logged with shard name and
// affected chunk range; the run continues (spec.md §7 policy).
var (
	// ErrMissingShardKeyIndex is returned when a shard lacks the shard-key
	// index required to serve a compiled predicate without a collection
	// scan (spec.md §4.C "index-servability discipline").
	ErrMissingShardKeyIndex = errors.New("orphanage: shard is missing the shard-key index")

	// ErrConnectionLost is returned when a shard's connection fails
	// permanently mid-run; that shard's results are omitted and the run's
	// completeness flag is cleared.
	ErrConnectionLost = errors.New("orphanage: lost connection to shard")
)

// ShardError wraps a per-shard error kind with the shard name and the chunk
// range being processed when the failure occurred, so logs and returned
// errors carry enough context to retry or investigate manually.
type ShardError struct {
	// Err is one of ErrMissingShardKeyIndex or ErrConnectionLost (or any
	// other error a Shard Worker surfaces — the type does not restrict Err
	// to the sentinels above so driver errors can be wrapped too).
	Err error

	Shard    string
	ChunkMin bson.D
	ChunkMax bson.D
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %s, chunk [%v, %v): %v", e.Shard, e.ChunkMin, e.ChunkMax, e.Err)
}

func (e *ShardError) Unwrap() error { return e.Err }

// NewShardError builds a *ShardError carrying the given shard and chunk
// range context around err.
func NewShardError(shard string, min, max bson.D, err error) *ShardError {
	return &ShardError{Err: err, Shard: shard, ChunkMin: min, ChunkMax: max}
}
