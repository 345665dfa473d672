// Package enumerator implements the Fan-out Enumerator (spec.md §4.D): it
// drives the whole pipeline, feeding the cluster's chunk stream through the
// Megachunk Merger, broadcasting each merged chunk to every Shard Worker,
// and multiplexing their identifier streams into the Orphan Summary.
//
// This is the Go translation of original_source's cluster.rs::find_orphaned,
// which used tokio::sync::mpsc and tokio::spawn for the same shape of
// fan-out/collect pipeline; here a buffered channel plays the role of the
// mpsc sink and each worker's Wait blocks until its goroutine has exited,
// following the broadcast-fan-out style torua's cmd/coordinator uses for
// dispatching health checks to every registered node.
package enumerator

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/orphanage/internal/chunk"
	"github.com/dreamware/orphanage/internal/clusterapi"
	"github.com/dreamware/orphanage/internal/megachunk"
	"github.com/dreamware/orphanage/internal/orphan"
	"github.com/dreamware/orphanage/internal/orphanerr"
	"github.com/dreamware/orphanage/internal/shardworker"
)

// sinkBuffer is the bounded orphan sink capacity spec.md §4.D fixes at
// 100,000 identifiers: large enough that a fast shard rarely suspends, small
// enough to bound memory when the collector lags behind the workers.
const sinkBuffer = 100_000

// Enumerator drives one run of the fan-out pipeline against a fixed roster
// of Shard Workers.
type Enumerator struct {
	workers map[string]*shardworker.Worker
	fail    chan shardworker.Failure
	log     *logrus.Entry
}

// New returns an Enumerator over the given shard-name -> worker roster. fail
// must be the same channel every worker in the roster was constructed with
// (shardworker.New's fail parameter) — Enumerator is the channel's sole
// reader, so workers and Enumerator have to agree on one instance rather
// than each allocating their own. The roster is fixed for the Enumerator's
// lifetime; callers construct a fresh Enumerator (and fresh workers, and a
// fresh fail channel) per run.
func New(workers map[string]*shardworker.Worker, fail chan shardworker.Failure, log *logrus.Entry) *Enumerator {
	return &Enumerator{workers: workers, fail: fail, log: log}
}

// Run feeds chunks through the Megachunk Merger, dispatches a FindOrphanIDs
// command per merged chunk to every worker (self-skip is the worker's
// responsibility, spec.md §9 open question (c)), and returns the resulting
// Orphan Summary once every worker has drained its queue.
//
// Run never returns an error: per-shard failures are logged and folded into
// the summary's completeness flag rather than aborting the run (spec.md §7).
func (e *Enumerator) Run(ctx context.Context, ns clusterapi.Namespace, shardKey chunk.ShardKey, chunks []chunk.Chunk) *orphan.Summary {
	merged := megachunk.Merge(chunks)
	e.log.WithFields(logrus.Fields{"ns": ns.String(), "input_chunks": len(chunks), "merged_chunks": len(merged)}).Info("dispatching fan-out")

	shardNames := make([]string, 0, len(e.workers))
	for name := range e.workers {
		shardNames = append(shardNames, name)
	}
	summary := orphan.NewSummary(shardNames)

	sink := make(chan orphan.Orphan, sinkBuffer)
	collectorDone := make(chan struct{})
	go e.collect(summary, sink, e.fail, collectorDone)

	for _, c := range merged {
		for _, w := range e.workers {
			w.Enqueue(shardworker.Command{NS: ns, ShardKey: shardKey, Chunk: c, Sink: sink})
		}
	}

	for _, w := range e.workers {
		w.Close()
	}
	for _, w := range e.workers {
		w.Wait()
	}

	close(sink)
	close(e.fail)
	<-collectorDone

	return summary
}

// collect is the single consumer task spec.md §5 names: it is the only
// goroutine that mutates summary, draining both the orphan sink and the
// failure channel until both are closed and empty.
func (e *Enumerator) collect(summary *orphan.Summary, sink <-chan orphan.Orphan, fail <-chan shardworker.Failure, done chan<- struct{}) {
	defer close(done)

	sinkOpen, failOpen := true, true
	for sinkOpen || failOpen {
		select {
		case o, ok := <-sink:
			if !ok {
				sinkOpen = false
				sink = nil
				continue
			}
			summary.Add(o)
		case f, ok := <-fail:
			if !ok {
				failOpen = false
				fail = nil
				continue
			}
			e.log.WithFields(logrus.Fields{"shard": f.Shard}).WithError(f.Err).Warn("shard command failed")
			if errors.Is(f.Err, orphanerr.ErrConnectionLost) {
				summary.MarkIncomplete()
			}
		}
	}
}
