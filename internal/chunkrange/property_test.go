package chunkrange

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

// evalPredicate interprets the subset of query shapes Compile ever produces
// (field equality, a single $gte/$gt/$lt/$lte range, or a top-level $or of
// such clauses) against a concrete tuple, so the §8 invariant can be checked
// without a live mongod.
func evalPredicate(t *testing.T, pred bson.M, tuple map[string]int32) bool {
	t.Helper()
	for field, v := range pred {
		if field == "$or" {
			clauses, ok := v.(bson.A)
			if !ok {
				t.Fatalf("$or value is %T, want bson.A", v)
			}
			matched := false
			for _, c := range clauses {
				clause, ok := c.(bson.M)
				if !ok {
					t.Fatalf("$or clause is %T, want bson.M", c)
				}
				if evalPredicate(t, clause, tuple) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}

		val := tuple[field]
		switch vv := v.(type) {
		case bson.RawValue:
			if val != rawInt32(t, vv) {
				return false
			}
		case bson.M:
			for op, opv := range vv {
				threshold := rawInt32(t, opv)
				switch op {
				case "$gte":
					if !(val >= threshold) {
						return false
					}
				case "$gt":
					if !(val > threshold) {
						return false
					}
				case "$lt":
					if !(val < threshold) {
						return false
					}
				case "$lte":
					if !(val <= threshold) {
						return false
					}
				default:
					t.Fatalf("unexpected operator %q", op)
				}
			}
		default:
			t.Fatalf("unexpected predicate value type %T for field %q", v, field)
		}
	}
	return true
}

func rawInt32(t *testing.T, v interface{}) int32 {
	t.Helper()
	rv, ok := v.(bson.RawValue)
	if !ok {
		t.Fatalf("expected bson.RawValue, got %T", v)
	}
	n, ok := rv.Int32OK()
	if !ok {
		t.Fatalf("expected an int32 raw value, got %v", rv)
	}
	return n
}

// lexInRange reports whether min <= t < max over tuples of equal length,
// compared field by field in order (the ground truth §8 defines the
// compiled predicate against).
func lexInRange(min, t, max []int32) bool {
	return lexCompare(min, t) <= 0 && lexCompare(t, max) < 0
}

func lexCompare(a, b []int32) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// TestCompile_PropertyInvariant enumerates every tuple in a small domain for
// shard keys of length 3 and 4 — strictly beyond the m=2 staircase the
// other tests exercise — and checks the §8 invariant "P(t) iff
// min <= t < max lexicographically" holds for every one of them. This is
// what catches a staircase rung that silently drops or over-admits tuples
// when three or more fields diverge.
func TestCompile_PropertyInvariant(t *testing.T) {
	const domainSize = 4 // tuple values range over [0, domainSize)
	fieldNames := []string{"a", "b", "c", "d"}

	cases := []struct {
		name string
		min  []int32
		max  []int32
	}{
		{name: "m=3 all fields diverge", min: []int32{0, 0, 0}, max: []int32{2, 2, 2}},
		{name: "m=3 middle field coincides", min: []int32{0, 1, 0}, max: []int32{2, 1, 2}},
		{name: "m=3 narrow first-field gap", min: []int32{0, 3, 0}, max: []int32{1, 0, 3}},
		{name: "m=4 all fields diverge", min: []int32{0, 0, 0, 0}, max: []int32{2, 2, 2, 2}},
		{name: "m=4 two interior fields coincide", min: []int32{0, 1, 1, 0}, max: []int32{2, 1, 1, 2}},
		{name: "m=4 adjacent first values, middle clause empty", min: []int32{0, 1, 1, 0}, max: []int32{1, 0, 0, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := len(tc.min)
			names := fieldNames[:m]

			minD := make(bson.D, m)
			maxD := make(bson.D, m)
			for i := 0; i < m; i++ {
				minD[i] = bson.E{Key: names[i], Value: tc.min[i]}
				maxD[i] = bson.E{Key: names[i], Value: tc.max[i]}
			}

			pred, err := Compile(minD, maxD)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}

			var tuple []int32
			var walk func(i int)
			mismatches := 0
			walk = func(i int) {
				if i == m {
					want := lexInRange(tc.min, tuple, tc.max)
					tupleMap := make(map[string]int32, m)
					for j, name := range names {
						tupleMap[name] = tuple[j]
					}
					got := evalPredicate(t, pred, tupleMap)
					if got != want {
						mismatches++
						if mismatches <= 5 {
							t.Errorf("tuple %v: predicate=%v, want lexInRange=%v (min=%v max=%v)", tuple, got, want, tc.min, tc.max)
						}
					}
					return
				}
				for v := int32(0); v < domainSize; v++ {
					tuple = append(tuple, v)
					walk(i + 1)
					tuple = tuple[:len(tuple)-1]
				}
			}
			walk(0)
			if mismatches > 5 {
				t.Errorf("%d total mismatches (only first 5 shown)", mismatches)
			}
		})
	}
}
