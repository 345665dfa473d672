// Package clusterapi is the Cluster Metadata Facade (spec.md §4.F): the
// external collaborator the core depends on for router identity, the shard
// roster, a namespace's shard key, and its chunk stream. Everything else in
// this module treats a *Facade as the only source of cluster truth; no other
// package talks to config.shards/config.chunks/config.collections directly.
package clusterapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dreamware/orphanage/internal/chunk"
	"github.com/dreamware/orphanage/internal/orphanerr"
)

// Namespace is a database.collection pair, the unit spec.md's operations are
// scoped to.
type Namespace struct {
	DB   string
	Coll string
}

// String renders the namespace in "db.coll" form, the same form
// config.collections and config.chunks key their documents by.
func (ns Namespace) String() string {
	return ns.DB + "." + ns.Coll
}

// ShardDescriptor is one row of config.shards: a shard's name and its
// replica-set host list in the "rsName/host:port,..." form internal/connstring
// expects.
type ShardDescriptor struct {
	Name string
	Host string
}

// Facade wraps a *mongo.Client pointed at a mongos router and answers the
// four questions spec.md §4.F names.
type Facade struct {
	router *mongo.Client
	log    *logrus.Entry
}

// Dial connects to uri and runs a startup ping against admin, surfacing a
// dead or unreachable host at dial time rather than at the first real query
// (original_source db.rs::connect).
func Dial(ctx context.Context, uri string, log *logrus.Entry) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("orphanage"))
	if err != nil {
		return nil, fmt.Errorf("clusterapi: connect to %s: %w", redactURI(uri), err)
	}
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("clusterapi: ping %s: %w", redactURI(uri), err)
	}
	log.WithField("uri", redactURI(uri)).Info("connected")
	return client, nil
}

// New wraps an already-dialed router client in a Facade.
func New(router *mongo.Client, log *logrus.Entry) *Facade {
	return &Facade{router: router, log: log}
}

// IsRouter reports whether the wrapped client is a mongos process, by
// running {isdbgrid: 1} against admin. A "no such command" error means the
// client is a perfectly healthy mongod, not a failure, so it is translated
// to a clean false rather than propagated (original_source
// db.rs::is_mongos, util.rs::isdbgrid_error).
func (f *Facade) IsRouter(ctx context.Context) (bool, error) {
	err := f.router.Database("admin").RunCommand(ctx, bson.D{{Key: "isdbgrid", Value: 1}}).Err()
	if err == nil {
		return true, nil
	}
	if strings.Contains(err.Error(), "no such command: 'isdbgrid'") {
		return false, nil
	}
	return false, fmt.Errorf("clusterapi: checking router identity: %w", err)
}

// ListShards returns every shard currently registered in config.shards.
// Shards mid-removal (draining) are still returned; callers that care about
// steady-state membership only should check config.shards' "draining" field
// themselves if the driver version surfaces it.
func (f *Facade) ListShards(ctx context.Context) ([]ShardDescriptor, error) {
	cursor, err := f.router.Database("config").Collection("shards").Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("clusterapi: %w: listing config.shards: %v", orphanerr.ErrMetadataUnavailable, err)
	}
	defer cursor.Close(ctx)

	var shards []ShardDescriptor
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("clusterapi: %w: decoding config.shards row: %v", orphanerr.ErrMetadataUnavailable, err)
		}
		id, _ := doc["_id"].(string)
		host, _ := doc["host"].(string)
		if id == "" || host == "" {
			continue
		}
		shards = append(shards, ShardDescriptor{Name: id, Host: host})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("clusterapi: %w: iterating config.shards: %v", orphanerr.ErrMetadataUnavailable, err)
	}
	return shards, nil
}

// ShardKey returns the ordered shard-key field list for ns, read from
// config.collections. Returns orphanerr.ErrNamespaceNotSharded if ns has no
// registered key.
func (f *Facade) ShardKey(ctx context.Context, ns Namespace) (chunk.ShardKey, error) {
	var doc bson.Raw
	err := f.router.Database("config").Collection("collections").
		FindOne(ctx, bson.D{{Key: "_id", Value: ns.String()}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, orphanerr.ErrNamespaceNotSharded
	}
	if err != nil {
		return nil, fmt.Errorf("clusterapi: %w: reading config.collections for %s: %v", orphanerr.ErrMetadataUnavailable, ns, err)
	}

	keyVal, err := doc.LookupErr("key")
	if err != nil {
		return nil, orphanerr.ErrNamespaceNotSharded
	}

	// The outer document is kept raw so "key" can be decoded straight into a
	// bson.D, preserving field order, which matters for lexicographic
	// comparison (a bson.M would lose it).
	var raw bson.D
	if err := keyVal.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("clusterapi: %w: decoding shard key for %s: %v", orphanerr.ErrMetadataUnavailable, ns, err)
	}
	if len(raw) == 0 {
		return nil, orphanerr.ErrNamespaceNotSharded
	}

	fields := make(chunk.ShardKey, 0, len(raw))
	for _, elem := range raw {
		fields = append(fields, elem.Key)
	}
	return fields, nil
}

// ChunkStream opens a cursor over config.chunks scoped to ns, using the
// version-gated filter original_source's util.rs::get_ns_filter applies: a
// UUID filter on MongoDB >= 5 (chunks are keyed by collection UUID, not
// namespace string, from that version on), falling back to a plain "ns"
// filter on older servers. The caller owns the returned cursor and must
// close it.
func (f *Facade) ChunkStream(ctx context.Context, ns Namespace) (*mongo.Cursor, error) {
	filter, err := f.nsFilter(ctx, ns)
	if err != nil {
		return nil, err
	}
	cursor, err := f.router.Database("config").Collection("chunks").Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("clusterapi: %w: opening chunk cursor for %s: %v", orphanerr.ErrMetadataUnavailable, ns, err)
	}
	return cursor, nil
}

// DecodeChunk decodes one config.chunks cursor row into a chunk.Chunk.
func DecodeChunk(cursor *mongo.Cursor) (chunk.Chunk, error) {
	var doc struct {
		Shard string `bson:"shard"`
		Min   bson.D `bson:"min"`
		Max   bson.D `bson:"max"`
	}
	if err := cursor.Decode(&doc); err != nil {
		return chunk.Chunk{}, fmt.Errorf("clusterapi: %w: decoding chunk row: %v", orphanerr.ErrMetadataUnavailable, err)
	}
	return chunk.Chunk{Owner: doc.Shard, Min: doc.Min, Max: doc.Max}, nil
}

// nsFilter implements original_source's util.rs::get_ns_filter: MongoDB >= 5
// resolves config.chunks rows by collection UUID, not namespace string.
func (f *Facade) nsFilter(ctx context.Context, ns Namespace) (bson.M, error) {
	major, err := f.majorVersion(ctx)
	if err != nil {
		return nil, err
	}
	if major < 5 {
		return bson.M{"ns": ns.String()}, nil
	}

	var doc bson.M
	err = f.router.Database("config").Collection("collections").
		FindOne(ctx, bson.D{{Key: "_id", Value: ns.String()}}).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("clusterapi: %w: resolving uuid for %s: %v", orphanerr.ErrMetadataUnavailable, ns, err)
	}
	uuid, ok := doc["uuid"]
	if !ok {
		return nil, fmt.Errorf("clusterapi: %w: no uuid recorded for %s", orphanerr.ErrMetadataUnavailable, ns)
	}
	return bson.M{"uuid": uuid}, nil
}

func (f *Facade) majorVersion(ctx context.Context) (int, error) {
	var doc bson.M
	err := f.router.Database("admin").RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}}).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("clusterapi: %w: reading server version: %v", orphanerr.ErrMetadataUnavailable, err)
	}
	version, _ := doc["version"].(string)
	major := strings.SplitN(version, ".", 2)[0]
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, fmt.Errorf("clusterapi: %w: unparseable server version %q", orphanerr.ErrMetadataUnavailable, version)
	}
	return n, nil
}

// redactURI strips credentials from a connection string before it is logged.
func redactURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme+len("://")] + "***@" + uri[at+1:]
}
