package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dreamware/orphanage/internal/chunk"
	"github.com/dreamware/orphanage/internal/clusterapi"
	"github.com/dreamware/orphanage/internal/connstring"
	"github.com/dreamware/orphanage/internal/orphanerr"
)

// globalOpts carries the flags spec.md §6 calls global: --uri, --db, --coll.
// Every subcommand embeds it, mirroring flowctl's per-command structs rather
// than a single shared sub-parser (go-flags has no first-class notion of
// "global" flags across subcommands).
type globalOpts struct {
	URI  string `long:"uri" default:"mongodb://localhost:27017" description:"URI of the MongoDB router (mongos)"`
	DB   string `short:"d" long:"db" default:"test" description:"database name"`
	Coll string `short:"c" long:"coll" default:"test" description:"collection name"`
}

func (g globalOpts) namespace() clusterapi.Namespace {
	return clusterapi.Namespace{DB: g.DB, Coll: g.Coll}
}

// cluster is everything a subcommand needs once discovery has run: the
// router facade, a client per shard (keyed by shard name), the namespace's
// shard key, and the full chunk stream read into memory.
//
// Reading the whole chunk stream up front (rather than handing the cursor to
// the enumerator directly) keeps megachunk merging, which needs to see
// adjacent chunks regardless of which shard they arrive interleaved with,
// decoupled from the network round trip.
type cluster struct {
	facade       *clusterapi.Facade
	router       *mongo.Client
	shardClients map[string]*mongo.Client
	shardKey     chunk.ShardKey
	chunks       []chunk.Chunk
	ns           clusterapi.Namespace
}

// closeAll disconnects the router and every shard client. Subcommands defer
// it right after discover succeeds.
func (c *cluster) closeAll(ctx context.Context) {
	for _, client := range c.shardClients {
		_ = client.Disconnect(ctx)
	}
	_ = c.router.Disconnect(ctx)
}

// discover dials the router, verifies it actually is one, reads the target
// namespace's shard key, dials a client to every shard using
// internal/connstring to derive each shard's URI from the router's, and then
// reads the chunk stream. It is the shared setup path for all three
// subcommands.
func discover(ctx context.Context, opts globalOpts, log *logrus.Entry) (*cluster, error) {
	router, err := clusterapi.Dial(ctx, opts.URI, log)
	if err != nil {
		return nil, err
	}

	facade := clusterapi.New(router, log)
	isRouter, err := facade.IsRouter(ctx)
	if err != nil {
		_ = router.Disconnect(ctx)
		return nil, err
	}
	if !isRouter {
		_ = router.Disconnect(ctx)
		return nil, orphanerr.ErrNotARouter
	}

	ns := opts.namespace()
	shardKey, err := facade.ShardKey(ctx, ns)
	if err != nil {
		_ = router.Disconnect(ctx)
		return nil, err
	}

	descriptors, err := facade.ListShards(ctx)
	if err != nil {
		_ = router.Disconnect(ctx)
		return nil, err
	}

	shardClients := make(map[string]*mongo.Client, len(descriptors))
	for _, d := range descriptors {
		shardURI := connstring.ForShard(opts.URI, d.Host)
		client, err := clusterapi.Dial(ctx, shardURI, log.WithField("shard", d.Name))
		if err != nil {
			for _, c := range shardClients {
				_ = c.Disconnect(ctx)
			}
			_ = router.Disconnect(ctx)
			return nil, fmt.Errorf("dialing shard %s: %w", d.Name, err)
		}
		shardClients[d.Name] = client
	}

	cursor, err := facade.ChunkStream(ctx, ns)
	if err != nil {
		for _, c := range shardClients {
			_ = c.Disconnect(ctx)
		}
		_ = router.Disconnect(ctx)
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []chunk.Chunk
	for cursor.Next(ctx) {
		c, err := clusterapi.DecodeChunk(cursor)
		if err != nil {
			for _, sc := range shardClients {
				_ = sc.Disconnect(ctx)
			}
			_ = router.Disconnect(ctx)
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if err := cursor.Err(); err != nil {
		for _, sc := range shardClients {
			_ = sc.Disconnect(ctx)
		}
		_ = router.Disconnect(ctx)
		return nil, fmt.Errorf("%w: iterating chunk cursor: %v", orphanerr.ErrMetadataUnavailable, err)
	}

	return &cluster{
		facade:       facade,
		router:       router,
		shardClients: shardClients,
		shardKey:     shardKey,
		chunks:       chunks,
		ns:           ns,
	}, nil
}
