// Package megachunk implements the chunk adjacency merger (spec.md §4.B):
// it coalesces chunks owned by the same shard whose ranges meet end-to-end,
// shrinking the number of ranges the fan-out enumerator must dispatch.
//
// Merging is opportunistic, not required for correctness: a chunk the merger
// fails to combine with its neighbor is simply dispatched on its own, costing
// extra queries but never producing a wrong answer. The merge is valid
// because the predicate compiled over (min_A, max_B) is the disjoint union
// of the predicates compiled over (min_A, max_A) and (min_B, max_B) whenever
// max_A == min_B (internal/chunkrange.Compile never depends on anything
// outside the [min, max) bounds it is given).
package megachunk

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/dreamware/orphanage/internal/chunk"
)

// Merger accumulates chunks fed to it one at a time via Add, coalescing
// adjacent same-owner ranges in place. Its zero value is ready to use.
//
// Merger is not safe for concurrent use; it is meant to be driven by a
// single goroutine that owns the chunk stream (internal/enumerator wraps its
// dispatch loop around one Merger per run).
type Merger struct {
	chunks []chunk.Chunk
}

// Add folds c into the accumulator: if any existing entry shares c's owner
// and abuts it on either side, that entry is widened in place; otherwise c
// is appended as a new entry.
//
// The scan is linear in the current accumulator size, making a full stream
// of n chunks O(n^2) in the worst case — acceptable given chunk counts are
// typically in the low thousands (spec.md §4.B).
func (m *Merger) Add(c chunk.Chunk) {
	for i := range m.chunks {
		e := &m.chunks[i]
		if e.Owner != c.Owner {
			continue
		}
		if chunkDocsEqual(e.Max, c.Min) {
			// e = [e.Min, e.Max), c = [c.Min, c.Max) = [e.Max, c.Max):
			// widen e on the right to absorb c.
			e.Max = c.Max
			return
		}
		if chunkDocsEqual(e.Min, c.Max) {
			// c = [c.Min, c.Max) = [c.Min, e.Min), e = [e.Min, e.Max):
			// widen e on the left to absorb c.
			e.Min = c.Min
			return
		}
	}
	m.chunks = append(m.chunks, c)
}

// Chunks returns the current merged list. The returned slice aliases the
// Merger's internal storage and must not be mutated by the caller; it is
// intended to be read once after the input stream has been fully drained.
func (m *Merger) Chunks() []chunk.Chunk {
	return m.chunks
}

// Merge drains an entire chunk stream through a fresh Merger and returns the
// resulting megachunk list. It is the convenience entry point used by
// internal/enumerator.
func Merge(chunks []chunk.Chunk) []chunk.Chunk {
	var m Merger
	for _, c := range chunks {
		m.Add(c)
	}
	return m.Chunks()
}

// chunkDocsEqual reports whether two shard-key boundary documents are equal
// field-for-field under the same BSON-aware comparison internal/chunkrange
// uses, so a MinKey/MaxKey boundary merges correctly just like any other
// value (spec.md §8: "MinKey/MaxKey participate without special-casing").
func chunkDocsEqual(a, b bson.D) bool {
	if len(a) != len(b) {
		return false
	}
	af, bf := chunk.Fields(a), chunk.Fields(b)
	for i := range af {
		if af[i].Field != bf[i].Field {
			return false
		}
		if !chunk.Equal(af[i].Value, bf[i].Value) {
			return false
		}
	}
	return true
}
