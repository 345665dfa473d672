package megachunk

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/dreamware/orphanage/internal/chunk"
)

func d(v int32) bson.D { return bson.D{{Key: "a", Value: v}} }

func TestMerge_AdjacentSameShard(t *testing.T) {
	// Scenario 6: input [(S1,{a:1},{a:3}), (S1,{a:3},{a:5}), (S2,{a:5},{a:7})]
	// merges to [(S1,{a:1},{a:5}), (S2,{a:5},{a:7})].
	input := []chunk.Chunk{
		{Owner: "S1", Min: d(1), Max: d(3)},
		{Owner: "S1", Min: d(3), Max: d(5)},
		{Owner: "S2", Min: d(5), Max: d(7)},
	}

	got := Merge(input)

	if len(got) != 2 {
		t.Fatalf("expected 2 merged chunks, got %d: %+v", len(got), got)
	}
	s1 := findOwner(t, got, "S1")
	if !chunk.Equal(rawOf(s1.Min), rawOf(d(1))) || !chunk.Equal(rawOf(s1.Max), rawOf(d(5))) {
		t.Errorf("S1 megachunk should be [1,5), got [%v,%v)", s1.Min, s1.Max)
	}
	s2 := findOwner(t, got, "S2")
	if !chunk.Equal(rawOf(s2.Min), rawOf(d(5))) || !chunk.Equal(rawOf(s2.Max), rawOf(d(7))) {
		t.Errorf("S2 chunk should be unmodified [5,7), got [%v,%v)", s2.Min, s2.Max)
	}
}

func TestMerge_DifferentShardsNotMerged(t *testing.T) {
	input := []chunk.Chunk{
		{Owner: "S1", Min: d(1), Max: d(3)},
		{Owner: "S2", Min: d(3), Max: d(5)},
	}
	got := Merge(input)
	if len(got) != 2 {
		t.Fatalf("chunks on different shards must not merge even if adjacent, got %d", len(got))
	}
}

func TestMerge_NonAdjacentNotMerged(t *testing.T) {
	input := []chunk.Chunk{
		{Owner: "S1", Min: d(1), Max: d(3)},
		{Owner: "S1", Min: d(10), Max: d(20)},
	}
	got := Merge(input)
	if len(got) != 2 {
		t.Fatalf("non-adjacent chunks must not merge, got %d", len(got))
	}
}

func TestMerge_LeftMerge(t *testing.T) {
	// Chunk arriving before its neighbor in the stream still merges: the
	// accumulator widens on the left when a later chunk's max meets an
	// earlier chunk's min.
	input := []chunk.Chunk{
		{Owner: "S1", Min: d(3), Max: d(5)},
		{Owner: "S1", Min: d(1), Max: d(3)},
	}
	got := Merge(input)
	if len(got) != 1 {
		t.Fatalf("expected single merged chunk, got %d: %+v", len(got), got)
	}
	if !chunk.Equal(rawOf(got[0].Min), rawOf(d(1))) || !chunk.Equal(rawOf(got[0].Max), rawOf(d(5))) {
		t.Errorf("expected merged [1,5), got [%v,%v)", got[0].Min, got[0].Max)
	}
}

func findOwner(t *testing.T, chunks []chunk.Chunk, owner string) chunk.Chunk {
	t.Helper()
	for _, c := range chunks {
		if c.Owner == owner {
			return c
		}
	}
	t.Fatalf("no chunk with owner %q in %+v", owner, chunks)
	return chunk.Chunk{}
}

func rawOf(doc bson.D) bson.RawValue {
	return chunk.Fields(doc)[0].Value
}
