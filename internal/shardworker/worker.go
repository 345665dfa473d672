// Package shardworker implements the Shard Worker (spec.md §4.C): one
// instance per shard, owning an exclusive connection and a command queue,
// processing commands cooperatively so a slow shard never blocks its
// siblings.
package shardworker

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dreamware/orphanage/internal/chunk"
	"github.com/dreamware/orphanage/internal/chunkrange"
	"github.com/dreamware/orphanage/internal/clusterapi"
	"github.com/dreamware/orphanage/internal/orphan"
	"github.com/dreamware/orphanage/internal/orphanerr"
)

// queueDepth bounds how many commands may be enqueued ahead of a worker
// before Enqueue blocks its caller, giving the fan-out enumerator natural
// backpressure on chunk dispatch without involving the orphan sink itself.
const queueDepth = 16

// Command asks a worker to stream the identifiers of a chunk's shard-key
// range that are physically present on its own shard, tagging each result
// with the worker's shard name before writing it to Sink.
type Command struct {
	NS       clusterapi.Namespace
	ShardKey chunk.ShardKey
	Chunk    chunk.Chunk
	Sink     chan<- orphan.Orphan
}

// Failure reports a command that could not be completed, carrying enough
// context (spec.md §7 policy) for the enumerator to log it and, for
// connection-level failures, mark the owning shard's results incomplete.
type Failure struct {
	Shard string
	Chunk chunk.Chunk
	Err   error
}

// Worker owns one shard's connection and a buffered command queue, draining
// it on a single goroutine so commands to this shard are processed in the
// order enqueued while other workers proceed independently (spec.md §5
// ordering guarantees).
type Worker struct {
	Name string

	client *mongo.Client
	cmds   chan Command
	fail   chan<- Failure
	log    *logrus.Entry
	done   chan struct{}
}

// New starts a worker for the given shard, bound to client for its entire
// lifetime (spec.md §5 "connection hygiene"). fail receives one Failure per
// command that could not be completed; the caller is responsible for
// draining it. The worker's goroutine exits once Close is called and its
// queue drains.
func New(ctx context.Context, name string, client *mongo.Client, fail chan<- Failure, log *logrus.Entry) *Worker {
	w := &Worker{
		Name:   name,
		client: client,
		cmds:   make(chan Command, queueDepth),
		fail:   fail,
		log:    log.WithField("shard", name),
		done:   make(chan struct{}),
	}
	go w.loop(ctx)
	return w
}

// Wait blocks until the worker's queue has drained and its goroutine has
// exited, following a call to Close. Used by the enumerator to know when it
// is safe to release its producer handle on the shared sink.
func (w *Worker) Wait() {
	<-w.done
}

// Enqueue submits a command to this worker's queue. It blocks if the queue
// is full, providing backpressure to the dispatcher without touching the
// shared orphan sink.
func (w *Worker) Enqueue(cmd Command) {
	w.cmds <- cmd
}

// Close signals that no further commands will be enqueued. The worker's
// goroutine exits once its queue has drained.
func (w *Worker) Close() {
	close(w.cmds)
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	for cmd := range w.cmds {
		w.runCommand(ctx, cmd)
	}
}

// runCommand executes a single FindOrphanIDs command: self-skip, compile
// the chunk's predicate, open a hinted cursor, and stream identifiers to the
// shared sink until the cursor or the context is exhausted.
func (w *Worker) runCommand(ctx context.Context, cmd Command) {
	if cmd.Chunk.Owner == w.Name {
		// Self-skip (spec.md §4.C): a single broadcast reaches every
		// worker, including the chunk's own owner, which discards it
		// silently rather than requiring per-command addressing.
		return
	}

	predicate, err := chunkrange.Compile(cmd.Chunk.Min, cmd.Chunk.Max)
	if err != nil {
		w.report(cmd, err)
		return
	}

	hint := make(bson.D, 0, len(cmd.ShardKey))
	for _, field := range cmd.ShardKey {
		hint = append(hint, bson.E{Key: field, Value: 1})
	}

	findOpts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetHint(hint)

	coll := w.client.Database(cmd.NS.DB).Collection(cmd.NS.Coll)
	cursor, err := coll.Find(ctx, predicate, findOpts)
	if err != nil {
		w.report(cmd, classifyFindErr(err))
		return
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			ID bson.RawValue `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			w.report(cmd, err)
			return
		}
		select {
		case cmd.Sink <- orphan.Orphan{Shard: w.Name, ID: doc.ID}:
		case <-ctx.Done():
			// Cancellation is Go's equivalent of the sink being closed out
			// from under a producer: drop the remaining cursor and return
			// without treating it as an error (spec.md §4.D cancellation).
			return
		}
	}
	if err := cursor.Err(); err != nil {
		w.report(cmd, classifyFindErr(err))
	}
}

func (w *Worker) report(cmd Command, err error) {
	wrapped := orphanerr.NewShardError(w.Name, cmd.Chunk.Min, cmd.Chunk.Max, err)
	w.log.WithError(wrapped).Warn("command failed")
	if w.fail == nil {
		return
	}
	w.fail <- Failure{Shard: w.Name, Chunk: cmd.Chunk, Err: wrapped}
}

// classifyFindErr maps a driver error from opening or iterating a cursor
// into one of the per-shard error kinds spec.md §7 names: a missing
// shard-key index surfaces as a distinct BadValue-shaped command error, and
// a network-level failure is treated as a lost connection.
func classifyFindErr(err error) error {
	if mongo.IsNetworkError(err) {
		return orphanerr.ErrConnectionLost
	}
	if strings.Contains(err.Error(), "hint provided does not correspond to an existing index") {
		return orphanerr.ErrMissingShardKeyIndex
	}
	return err
}
