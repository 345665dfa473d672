package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/orphanage/internal/clusterapi"
	"github.com/dreamware/orphanage/internal/enumerator"
	"github.com/dreamware/orphanage/internal/mutate"
	"github.com/dreamware/orphanage/internal/shardworker"
)

// cmdUpdate implements spec.md §6's `update [--ns=DB.COLL]` subcommand, the
// heaviest mode: it enumerates orphans exactly, same as print, then either
// tags them in place or copies their IDs into a target namespace.
type cmdUpdate struct {
	globalOpts
	TargetNS string `long:"ns" description:"instead of tagging documents in place, write orphan IDs into this DB.COLL namespace"`
}

func (c *cmdUpdate) Execute(_ []string) error {
	ctx := context.Background()
	log := newLogger()

	cl, err := discover(ctx, c.globalOpts, log)
	if err != nil {
		return err
	}
	defer cl.closeAll(ctx)

	fail := make(chan shardworker.Failure, 100_000)
	workers := make(map[string]*shardworker.Worker, len(cl.shardClients))
	for name, client := range cl.shardClients {
		workers[name] = shardworker.New(ctx, name, client, fail, log)
	}

	e := enumerator.New(workers, fail, log)
	summary := e.Run(ctx, cl.ns, cl.shardKey, cl.chunks)
	if !summary.Complete() {
		log.Warn("one or more shards were skipped; mutating a partial orphan set")
	}

	var failedBatches int
	if c.TargetNS == "" {
		failedBatches, err = mutate.TagInPlace(ctx, cl.shardClients, cl.ns, summary, log)
	} else {
		targetNS, perr := parseNamespace(c.TargetNS)
		if perr != nil {
			return perr
		}
		failedBatches, err = mutate.WriteSidecar(ctx, cl.router, targetNS, summary, log)
	}
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"cluster_total": summary.ClusterTotal(), "failed_batches": failedBatches}).Info("update complete")
	if failedBatches > 0 {
		return fmt.Errorf("update: %d batch(es) failed to apply", failedBatches)
	}
	return nil
}

// parseNamespace splits a --ns=DB.COLL flag value on its first ".".
func parseNamespace(raw string) (clusterapi.Namespace, error) {
	i := strings.Index(raw, ".")
	if i <= 0 || i == len(raw)-1 {
		return clusterapi.Namespace{}, fmt.Errorf("update: --ns must be of the form DB.COLL, got %q", raw)
	}
	return clusterapi.Namespace{DB: raw[:i], Coll: raw[i+1:]}, nil
}
