// Package orphan implements the Orphan Summary (spec.md §4.E): the
// accumulator that the fan-out enumerator's single collector goroutine feeds
// as shard workers stream back identifiers found on the wrong shard.
package orphan

import "go.mongodb.org/mongo-driver/bson"

// Identifier is a document's primary key, carried opaquely. The core never
// inspects, orders or compares identifiers, so the raw BSON value is kept as
// received from the cursor rather than decoded into a narrower Go type.
type Identifier = bson.RawValue

// Orphan is a single identifier found on a shard that does not own it
// according to the cluster's chunk map.
type Orphan struct {
	Shard string
	ID    Identifier
}

// Summary accumulates orphans discovered during one run, grouped by the
// shard they were found on.
//
// Summary is initialized with one empty entry per known shard; those entries
// form the roster Add accepts. The read-only views (ShardTotals,
// PopulatedShardCount, ShardMap) leave out shards with zero orphans.
//
// Summary is not safe for concurrent use. Spec.md's concurrency model gives
// it exactly one writer: the enumerator's collector goroutine drains the
// shared sink and calls Add single-threaded, so no locking is needed here
// (compare torua's ShardRegistry, which guards concurrent writers with a
// mutex because it has several — Summary deliberately does not need one).
type Summary struct {
	shardMap   map[string][]Identifier
	totalCount int
	complete   bool
}

// NewSummary returns an empty Summary pre-seeded with one empty entry per
// shard in shards. A shard that never produces an orphan keeps its empty
// entry but is left out of ShardTotals and ShardMap.
func NewSummary(shards []string) *Summary {
	s := &Summary{
		shardMap: make(map[string][]Identifier, len(shards)),
		complete: true,
	}
	for _, shard := range shards {
		s.shardMap[shard] = nil
	}
	return s
}

// Add records one orphan found on the given shard, appending its identifier
// to that shard's sequence and incrementing the running total.
//
// Add panics if shard is not one of the shards passed to NewSummary: that
// would indicate the enumerator dispatched to (or received results from) a
// shard outside the roster it was built from, a programming error rather
// than a condition callers should recover from.
func (s *Summary) Add(o Orphan) {
	if _, ok := s.shardMap[o.Shard]; !ok {
		panic("orphan: Add called with shard " + o.Shard + " not in summary roster")
	}
	s.shardMap[o.Shard] = append(s.shardMap[o.Shard], o.ID)
	s.totalCount++
}

// MarkIncomplete clears the completeness flag. The enumerator calls this
// for every failure that reports a lost shard connection (spec.md §7):
// the summary is still returned, but callers must treat it as partial.
func (s *Summary) MarkIncomplete() {
	s.complete = false
}

// Complete reports whether every shard worker ran to completion. A false
// result means at least one shard's results are missing from this summary,
// not that zero orphans exist.
func (s *Summary) Complete() bool {
	return s.complete
}

// ClusterTotal returns the sum of every shard's orphan count.
//
// Invariant: ClusterTotal() == sum of len(v) over ShardMap(), for every
// observable state of s (spec.md §8).
func (s *Summary) ClusterTotal() int {
	return s.totalCount
}

// ShardTotals returns the orphan count for every shard that has at least one
// orphan. Shards with zero orphans are omitted.
func (s *Summary) ShardTotals() map[string]int {
	totals := make(map[string]int)
	for shard, ids := range s.shardMap {
		if len(ids) > 0 {
			totals[shard] = len(ids)
		}
	}
	return totals
}

// PopulatedShardCount returns the number of shards with at least one
// recorded orphan.
func (s *Summary) PopulatedShardCount() int {
	n := 0
	for _, ids := range s.shardMap {
		if len(ids) > 0 {
			n++
		}
	}
	return n
}

// ShardMap returns a copy of the shard -> identifier-list mapping, filtered
// to shards with at least one orphan. The returned map is safe for the
// caller to hold and range over after the run completes; it does not alias
// Summary's internal storage.
func (s *Summary) ShardMap() map[string][]Identifier {
	out := make(map[string][]Identifier)
	for shard, ids := range s.shardMap {
		if len(ids) == 0 {
			continue
		}
		cp := make([]Identifier, len(ids))
		copy(cp, ids)
		out[shard] = cp
	}
	return out
}
