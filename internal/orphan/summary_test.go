package orphan

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func id(v int32) Identifier {
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		panic(err)
	}
	return bson.RawValue{Type: t, Value: data}
}

func TestNewSummary_SeedsAllShards(t *testing.T) {
	s := NewSummary([]string{"shard01", "shard02", "shard03"})

	if s.ClusterTotal() != 0 {
		t.Errorf("expected 0 total, got %d", s.ClusterTotal())
	}
	if !s.Complete() {
		t.Error("expected a fresh summary to be complete")
	}
	if len(s.ShardMap()) != 0 {
		t.Errorf("expected no populated shards initially, got %v", s.ShardMap())
	}
}

func TestSummary_Add(t *testing.T) {
	s := NewSummary([]string{"shard01", "shard02"})

	s.Add(Orphan{Shard: "shard01", ID: id(1)})
	s.Add(Orphan{Shard: "shard01", ID: id(2)})
	s.Add(Orphan{Shard: "shard02", ID: id(3)})

	if s.ClusterTotal() != 3 {
		t.Errorf("expected cluster total 3, got %d", s.ClusterTotal())
	}
	if s.PopulatedShardCount() != 2 {
		t.Errorf("expected 2 populated shards, got %d", s.PopulatedShardCount())
	}

	totals := s.ShardTotals()
	if totals["shard01"] != 2 || totals["shard02"] != 1 {
		t.Errorf("unexpected shard totals: %v", totals)
	}

	shardMap := s.ShardMap()
	if len(shardMap["shard01"]) != 2 {
		t.Errorf("expected 2 entries for shard01, got %d", len(shardMap["shard01"]))
	}
}

func TestSummary_ClusterTotalInvariant(t *testing.T) {
	// ClusterTotal() must equal the sum of ShardMap() lengths at every
	// observable state (spec.md §8).
	s := NewSummary([]string{"shard01", "shard02", "shard03"})
	adds := []Orphan{
		{Shard: "shard01", ID: id(1)},
		{Shard: "shard02", ID: id(2)},
		{Shard: "shard02", ID: id(3)},
		{Shard: "shard03", ID: id(4)},
	}
	for _, o := range adds {
		s.Add(o)

		sum := 0
		for _, ids := range s.ShardMap() {
			sum += len(ids)
		}
		if sum != s.ClusterTotal() {
			t.Fatalf("invariant broken: ClusterTotal=%d but ShardMap sums to %d", s.ClusterTotal(), sum)
		}
	}
}

func TestSummary_UnpopulatedShardsExcludedFromViews(t *testing.T) {
	s := NewSummary([]string{"shard01", "shard02"})
	s.Add(Orphan{Shard: "shard01", ID: id(1)})

	if _, ok := s.ShardMap()["shard02"]; ok {
		t.Error("expected empty shard02 to be excluded from ShardMap")
	}
	if _, ok := s.ShardTotals()["shard02"]; ok {
		t.Error("expected empty shard02 to be excluded from ShardTotals")
	}
}

func TestSummary_MarkIncomplete(t *testing.T) {
	s := NewSummary([]string{"shard01"})
	if !s.Complete() {
		t.Fatal("expected fresh summary to be complete")
	}
	s.MarkIncomplete()
	if s.Complete() {
		t.Error("expected summary to report incomplete after MarkIncomplete")
	}
}

func TestSummary_ShardMapIsACopy(t *testing.T) {
	s := NewSummary([]string{"shard01"})
	s.Add(Orphan{Shard: "shard01", ID: id(1)})

	view := s.ShardMap()
	view["shard01"] = append(view["shard01"], id(2))

	if s.ClusterTotal() != 1 {
		t.Errorf("mutating a returned ShardMap view must not affect the summary, total is now %d", s.ClusterTotal())
	}
}

func TestSummary_AddUnknownShardPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Add on an unknown shard to panic")
		}
	}()
	s := NewSummary([]string{"shard01"})
	s.Add(Orphan{Shard: "shard99", ID: id(1)})
}
