// Package estimate implements the cheap estimate operating mode of spec.md
// §1(a): total documents minus routed documents, with no identifier
// enumeration. This mode has no equivalent in original_source (the Rust
// tool never implemented it) and is a supplemented feature: it reuses the
// range predicate compiler to define "routed" precisely, rather than
// inventing a separate notion of correctness.
package estimate

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dreamware/orphanage/internal/chunk"
	"github.com/dreamware/orphanage/internal/chunkrange"
	"github.com/dreamware/orphanage/internal/clusterapi"
	"github.com/dreamware/orphanage/internal/megachunk"
)

// Orphans estimates the number of orphan documents in ns as
// total - routed, where total is the router's own (approximate) document
// count and routed is the sum, over every chunk, of its owning shard's exact
// count of documents matching that chunk's compiled predicate.
//
// The result can be negative: EstimatedDocumentCount is itself an
// approximation (it reads collection metadata rather than scanning), so a
// cluster with very few orphans can estimate a routed count slightly above
// the router's total. Callers should treat a near-zero result as "no
// orphans detected", not insist on exactly zero.
func Orphans(ctx context.Context, router *mongo.Client, shardClients map[string]*mongo.Client, ns clusterapi.Namespace, chunks []chunk.Chunk) (int64, error) {
	total, err := router.Database(ns.DB).Collection(ns.Coll).EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("estimate: counting %s on router: %w", ns, err)
	}

	var routed int64
	for _, c := range megachunk.Merge(chunks) {
		predicate, err := chunkrange.Compile(c.Min, c.Max)
		if err != nil {
			return 0, fmt.Errorf("estimate: compiling predicate for chunk owned by %s: %w", c.Owner, err)
		}
		client, ok := shardClients[c.Owner]
		if !ok {
			return 0, fmt.Errorf("estimate: no connection for owning shard %s", c.Owner)
		}
		n, err := client.Database(ns.DB).Collection(ns.Coll).CountDocuments(ctx, predicate)
		if err != nil {
			return 0, fmt.Errorf("estimate: counting routed documents on shard %s: %w", c.Owner, err)
		}
		routed += n
	}

	return total - routed, nil
}
