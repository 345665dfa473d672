// Package planner implements the fast per-shard orphan count mode of
// spec.md §1(b): a per-shard count derived from the query planner's own
// executionStats rather than materializing and streaming every identifier.
// Like internal/estimate, this mode has no original_source equivalent; it
// supplements spec.md's operating modes using the same compiled predicates
// the exact-enumeration path uses, so "fast" and "exact" never disagree on
// what counts as an orphan.
package planner

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dreamware/orphanage/internal/chunk"
	"github.com/dreamware/orphanage/internal/chunkrange"
	"github.com/dreamware/orphanage/internal/clusterapi"
	"github.com/dreamware/orphanage/internal/megachunk"
)

// Counts runs explain (verbosity executionStats) for every merged chunk
// against every shard that does not own it, and sums each shard's
// nReturned across all of its explained commands. The result approximates
// the exact per-shard orphan count without a single identifier crossing the
// network: the planner's own row-count estimate stands in for materializing
// a cursor.
func Counts(ctx context.Context, shardClients map[string]*mongo.Client, ns clusterapi.Namespace, shardKey chunk.ShardKey, chunks []chunk.Chunk) (map[string]int64, error) {
	hint := make(bson.D, 0, len(shardKey))
	for _, field := range shardKey {
		hint = append(hint, bson.E{Key: field, Value: 1})
	}

	counts := make(map[string]int64)
	for _, c := range megachunk.Merge(chunks) {
		predicate, err := chunkrange.Compile(c.Min, c.Max)
		if err != nil {
			return nil, fmt.Errorf("planner: compiling predicate for chunk owned by %s: %w", c.Owner, err)
		}

		for shard, client := range shardClients {
			if shard == c.Owner {
				continue
			}
			n, err := explainCount(ctx, client, ns, predicate, hint)
			if err != nil {
				return nil, fmt.Errorf("planner: explaining on shard %s: %w", shard, err)
			}
			counts[shard] += n
		}
	}
	return counts, nil
}

// explainCount runs explain for a single find and reads nReturned from its
// executionStats.
func explainCount(ctx context.Context, client *mongo.Client, ns clusterapi.Namespace, predicate bson.M, hint bson.D) (int64, error) {
	cmd := bson.D{
		{Key: "explain", Value: bson.D{
			{Key: "find", Value: ns.Coll},
			{Key: "filter", Value: predicate},
			{Key: "hint", Value: hint},
		}},
		{Key: "verbosity", Value: "executionStats"},
	}

	var result bson.M
	if err := client.Database(ns.DB).RunCommand(ctx, cmd).Decode(&result); err != nil {
		return 0, err
	}

	stats, ok := result["executionStats"].(bson.M)
	if !ok {
		return 0, fmt.Errorf("planner: explain result missing executionStats")
	}
	n, ok := stats["nReturned"]
	if !ok {
		return 0, fmt.Errorf("planner: executionStats missing nReturned")
	}
	return toInt64(n)
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("planner: unexpected nReturned type %T", v)
	}
}
