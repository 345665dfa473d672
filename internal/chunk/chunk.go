// Package chunk defines the shard-key and chunk-range data model shared by
// the predicate compiler, the megachunk merger, and the fan-out enumerator.
//
// A chunk is a contiguous shard-key range owned by exactly one shard at a
// time. The cluster's authoritative chunk map is a snapshot: callers obtain
// a ShardKey and a stream of Chunk values once per run and do not attempt to
// reconcile changes made by the balancer mid-run.
package chunk

import (
	"go.mongodb.org/mongo-driver/bson"
)

// ShardKey is the ordered, non-empty list of field names that determines
// chunk placement for a namespace. Direction is always treated as ascending;
// MongoDB hashed shard keys are represented the same way, since the hash is
// computed server-side and the resulting value still sorts like any other
// BSON value.
//
// ShardKey is a read-only snapshot obtained once per run from the Cluster
// Metadata Facade (internal/clusterapi) and is immutable for the lifetime of
// the process.
type ShardKey []string

// Chunk is a triple (owner shard, min, max) describing a contiguous range of
// the shard-key space. Min is inclusive, Max is exclusive. Both documents
// carry the shard-key fields in the same order as the collection's ShardKey.
//
// Invariant: Min sorts strictly below Max under lexicographic, field-by-field
// comparison. An empty chunk (Min == Max on every field) is legal and simply
// compiles to a pure equality predicate on Min (see internal/chunkrange).
type Chunk struct {
	// Owner is the name of the shard that currently owns this range
	// according to the cluster's chunk map.
	Owner string

	// Min is the inclusive lower bound of the range, one value per
	// shard-key field, in shard-key field order.
	Min bson.D

	// Max is the exclusive upper bound of the range, one value per
	// shard-key field, in shard-key field order.
	Max bson.D
}

// Bound is a single shard-key value paired with the field it belongs to.
// Bound is used by internal/chunkrange when walking Min/Max in
// lock-step so mismatches can be reported with both field names.
type Bound struct {
	Field string
	Value bson.RawValue
}

// Fields returns the ordered field/value pairs of a chunk boundary document,
// decoding the bson.D into a slice that is convenient to walk positionally.
func Fields(doc bson.D) []Bound {
	bounds := make([]Bound, len(doc))
	for i, elem := range doc {
		t, data, err := bson.MarshalValue(elem.Value)
		if err != nil {
			// A value that fails to re-marshal after having been decoded
			// from a cursor indicates corrupt metadata, not a programming
			// error the caller can usefully recover from here; surface it
			// as a bound with a zero RawValue instead of panicking. Compare
			// does not reject a zero RawValue: it ranks it with unrecognized
			// types and compares it by its (empty) raw bytes.
			bounds[i] = Bound{Field: elem.Key}
			continue
		}
		bounds[i] = Bound{Field: elem.Key, Value: bson.RawValue{Type: t, Value: data}}
	}
	return bounds
}
