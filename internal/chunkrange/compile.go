// Package chunkrange implements the chunk-range → predicate compiler: the
// core, hardest part of orphanage (spec.md §4.A). It converts a chunk's
// half-open shard-key range [min, max) into a MongoDB query predicate that is
// both correct under lexicographic ordering and index-servable — meaning the
// storage engine can satisfy it with a bounded scan of the shard-key index,
// never a collection scan.
//
// A naive compound range ($gte on every field, $lt on every field) is not
// equivalent to lexicographic ordering on a compound index once more than
// one field diverges between min and max: it over- or under-selects rows
// whose earlier fields fall strictly between the bounds. The staircase
// construction below (spec.md §4.A step 6) is what makes the predicate exact
// while still decomposing into per-field bounded scans.
package chunkrange

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/dreamware/orphanage/internal/chunk"
	"github.com/dreamware/orphanage/internal/orphanerr"
)

// Compile converts min and max — ordered shard-key boundary documents over
// the same field sequence — into a predicate selecting exactly the
// documents whose shard-key tuple t satisfies min <= t < max lexicographically.
//
// Compile never returns a collection-scan-shaped predicate: every branch it
// produces pins a prefix of fields to exact equality and bounds at most the
// trailing field of each disjunct with a range operator, so a compound index
// on the shard-key fields (in order) can serve any disjunct with a single
// bounded scan.
//
// Errors:
//   - orphanerr.ErrShardKeyMismatch if min and max disagree on field names at
//     the same position (metadata corruption).
//   - orphanerr.ErrMalformedBounds if exactly one of min/max is empty while
//     the other is not.
func Compile(min, max bson.D) (bson.M, error) {
	if (len(min) == 0) != (len(max) == 0) {
		return nil, orphanerr.ErrMalformedBounds
	}

	minBounds := chunk.Fields(min)
	maxBounds := chunk.Fields(max)
	if len(minBounds) != len(maxBounds) {
		return nil, orphanerr.ErrShardKeyMismatch
	}

	// Step 1-2: walk in lock-step, partition into equal prefix and
	// diverging suffix.
	splitAt := len(minBounds)
	for i := range minBounds {
		if minBounds[i].Field != maxBounds[i].Field {
			return nil, orphanerr.ErrShardKeyMismatch
		}
		if splitAt == len(minBounds) && !chunk.Equal(minBounds[i].Value, maxBounds[i].Value) {
			splitAt = i
		}
	}

	equalPrefix := minBounds[:splitAt]
	diverging := minBounds[splitAt:]
	divergingMax := maxBounds[splitAt:]

	predicate := bson.M{}
	for _, b := range equalPrefix {
		predicate[b.Field] = rawEq(b.Value)
	}

	m := len(diverging)
	switch {
	case m == 0:
		// Step 4: min == max on every field. Pure equality, possibly
		// matching zero rows — not an error (spec.md §4.A edge policy).
		return predicate, nil

	case m == 1:
		// Step 5: single diverging field, plain half-open range.
		predicate[diverging[0].Field] = bson.M{
			"$gte": diverging[0].Value,
			"$lt":  divergingMax[0].Value,
		}
		return predicate, nil
	}

	// Step 6: m >= 2, build the 2m-1 case staircase (Middle, L, U, and two
	// interior rungs for each of the m-2 fields strictly between the first
	// and last diverging positions).
	cases := staircase(diverging, divergingMax)

	if len(cases) == 1 {
		// Step 7: a single disjunct, inline instead of wrapping in $or.
		for k, v := range cases[0] {
			predicate[k] = v
		}
		return predicate, nil
	}

	orClauses := make(bson.A, 0, len(cases))
	for _, c := range cases {
		orClauses = append(orClauses, c)
	}
	predicate["$or"] = orClauses
	return predicate, nil
}

// staircase builds the disjunctive cases of spec.md §4.A step 6 for a
// diverging field suffix g1..gm (min and max values given in parallel
// slices, same order as the shard key). g1 is guaranteed to differ between
// min and max (Compile only calls staircase on the suffix past the equal
// prefix); g2..gm may or may not coincide.
//
// min <= t < max decomposes as: either g1 sits strictly between min.g1 and
// max.g1 (any value for g2..gm), or g1 pins to min.g1 and the remaining
// tuple (g2..gm) is >= (min.g2..min.gm), or g1 pins to max.g1 and the
// remaining tuple is < (max.g2..max.gm). Those two remaining-tuple
// conditions are themselves lexicographic range conditions with no upper
// (resp. lower) bound, so they expand recursively into one rung per field:
//
//   - Middle: min.g1 < g1 < max.g1, nothing else constrained.
//   - L (lower boundary leaf): g1..g_{m-1} pinned to min, g_m >= min.g_m.
//   - U (upper boundary leaf): g1..g_{m-1} pinned to max, g_m < max.g_m.
//   - for j = 2..m-1: a min-side rung (g1..g_{j-1} pinned to min, g_j >
//     min.g_j, unbounded above) and a max-side rung (g1..g_{j-1} pinned to
//     max, g_j < max.g_j, unbounded below).
//
// Each rung bounds exactly one field and pins the rest to equality, so
// every disjunct still decomposes into a single bounded scan of a compound
// shard-key index. Binding a rung on both sides (as the min-side and
// max-side rungs for the SAME j would if merged into one clause) would
// exclude tuples that diverge from min on g_j but have not yet reached
// max.g_j on a later field — exactly the documents a fixed m=2 test can't
// catch but an m>=3 chunk can.
func staircase(min, max []chunk.Bound) []bson.M {
	m := len(min)
	cases := make([]bson.M, 0, 2*m-1)

	// Middle: min.g1 < g1 < max.g1.
	cases = append(cases, bson.M{
		min[0].Field: bson.M{"$gt": min[0].Value, "$lt": max[0].Value},
	})

	// L: fix g1..g_{m-1} = min, require g_m >= min.g_m.
	lower := bson.M{}
	for i := 0; i < m-1; i++ {
		lower[min[i].Field] = rawEq(min[i].Value)
	}
	lower[min[m-1].Field] = bson.M{"$gte": min[m-1].Value}
	cases = append(cases, lower)

	// U: fix g1..g_{m-1} = max, require g_m < max.g_m.
	upper := bson.M{}
	for i := 0; i < m-1; i++ {
		upper[max[i].Field] = rawEq(max[i].Value)
	}
	upper[max[m-1].Field] = bson.M{"$lt": max[m-1].Value}
	cases = append(cases, upper)

	// Interior rungs for g_2..g_{m-1} (0-indexed positions 1..m-2): a
	// min-side rung unbounded above and a max-side rung unbounded below,
	// kept as two separate clauses rather than one field bounded on both
	// sides.
	for p := 1; p <= m-2; p++ {
		minSide := bson.M{}
		for i := 0; i < p; i++ {
			minSide[min[i].Field] = rawEq(min[i].Value)
		}
		minSide[min[p].Field] = bson.M{"$gt": min[p].Value}
		cases = append(cases, minSide)

		maxSide := bson.M{}
		for i := 0; i < p; i++ {
			maxSide[max[i].Field] = rawEq(max[i].Value)
		}
		maxSide[max[p].Field] = bson.M{"$lt": max[p].Value}
		cases = append(cases, maxSide)
	}

	return cases
}

// rawEq returns v in a form suitable for direct equality comparison in a
// bson.M filter document. bson.RawValue marshals itself faithfully (it
// implements the driver's value-marshaling interface), so no conversion to
// a generic interface{} is needed or wanted — round-tripping through
// interface{} would lose the precise numeric subtype (int32 vs int64 vs
// double) that the shard-key index was built against.
func rawEq(v bson.RawValue) interface{} {
	return v
}
