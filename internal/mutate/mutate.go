// Package mutate implements the two update-mode mutation paths of spec.md
// §6: tagging orphan documents in place on the shard that holds them, or
// copying their identifiers into a sidecar namespace. Neither path is part
// of the core (spec.md §1 calls the mutation writer an external
// collaborator); this package exists because spec.md §9 open question (b)
// asks for the sidecar path's behavior to be defined even though the source
// never implemented it.
package mutate

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dreamware/orphanage/internal/clusterapi"
	"github.com/dreamware/orphanage/internal/orphan"
)

// batchSize is the write-batch size spec.md §6 fixes for the sidecar path;
// TagInPlace reuses it for its own $in filters so neither path has to build
// an unbounded filter or document slice for a shard with many orphans.
const batchSize = 1000

// Open question (a), spec.md §9: the source's draft in-place updater
// batches writes but never retries a failed batch. This package keeps that
// policy — a failed batch is logged and counted, not retried — and leaves
// recovery to the operator re-running update, since the right retry policy
// depends on operational requirements the source does not specify.

// TagInPlace sets {orphaned: true} on every document recorded in summary,
// batching each shard's identifier list into $in filters of at most
// batchSize so neither the filter nor the update touches a shard's entire
// orphan set in one round trip. It returns the number of batches that
// failed to apply; those documents are left untagged and a re-run of update
// will attempt them again.
func TagInPlace(ctx context.Context, shardClients map[string]*mongo.Client, ns clusterapi.Namespace, summary *orphan.Summary, log *logrus.Entry) (failedBatches int, err error) {
	for shard, ids := range summary.ShardMap() {
		client, ok := shardClients[shard]
		if !ok {
			log.WithField("shard", shard).Warn("no connection for shard, skipping its orphans")
			continue
		}
		coll := client.Database(ns.DB).Collection(ns.Coll)

		for _, batch := range chunkIDs(ids) {
			filter := bson.M{"_id": bson.M{"$in": batch}}
			update := bson.M{"$set": bson.M{"orphaned": true}}
			if _, err := coll.UpdateMany(ctx, filter, update); err != nil {
				log.WithField("shard", shard).WithError(err).Error("tag batch failed")
				failedBatches++
			}
		}
	}
	return failedBatches, nil
}

// WriteSidecar copies {_id: id} for every orphan in summary into target's
// targetNS, in ordered(false) batches of batchSize so one bad document
// doesn't stall the rest of a batch. A duplicate-key error on an insert is
// treated as "already recorded" rather than a failure, since sidecar writes
// are idempotent across re-runs of the same detection pass.
func WriteSidecar(ctx context.Context, target *mongo.Client, targetNS clusterapi.Namespace, summary *orphan.Summary, log *logrus.Entry) (failedBatches int, err error) {
	coll := target.Database(targetNS.DB).Collection(targetNS.Coll)
	insertOpts := options.InsertMany().SetOrdered(false)

	for shard, ids := range summary.ShardMap() {
		for _, batch := range chunkIDs(ids) {
			docs := make([]interface{}, len(batch))
			for i, id := range batch {
				docs[i] = bson.M{"_id": id}
			}
			if _, err := coll.InsertMany(ctx, docs, insertOpts); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					log.WithField("shard", shard).Debug("sidecar batch already recorded")
					continue
				}
				log.WithField("shard", shard).WithError(err).Error("sidecar batch failed")
				failedBatches++
			}
		}
	}
	return failedBatches, nil
}

// chunkIDs splits ids into consecutive slices of at most batchSize.
func chunkIDs(ids []orphan.Identifier) [][]orphan.Identifier {
	if len(ids) == 0 {
		return nil
	}
	batches := make([][]orphan.Identifier, 0, (len(ids)+batchSize-1)/batchSize)
	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[i:end])
	}
	return batches
}
