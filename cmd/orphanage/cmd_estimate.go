package main

import (
	"context"
	"fmt"

	"github.com/dreamware/orphanage/internal/estimate"
)

// cmdEstimate implements spec.md §6's `estimate` subcommand: the lowest
// performance impact mode, a single integer computed from the router's
// metadata-based document count minus each owning shard's count of the
// documents in its own chunks; no orphan identifiers are enumerated.
type cmdEstimate struct {
	globalOpts
}

func (c *cmdEstimate) Execute(_ []string) error {
	ctx := context.Background()
	log := newLogger()

	cl, err := discover(ctx, c.globalOpts, log)
	if err != nil {
		return err
	}
	defer cl.closeAll(ctx)

	n, err := estimate.Orphans(ctx, cl.router, cl.shardClients, cl.ns, cl.chunks)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}
