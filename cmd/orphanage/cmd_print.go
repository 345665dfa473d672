package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/orphanage/internal/enumerator"
	"github.com/dreamware/orphanage/internal/orphan"
	"github.com/dreamware/orphanage/internal/planner"
	"github.com/dreamware/orphanage/internal/shardworker"
)

// cmdPrint implements spec.md §6's `print [--verbose]` subcommand: the
// heavier, exact mode that queries every shard for its real orphan count or,
// with --verbose, the full list of orphan IDs. --fast swaps the exact
// enumerator for the planner's row estimate (internal/planner), giving that
// mode a CLI surface beyond what spec.md §6 lists.
type cmdPrint struct {
	globalOpts
	Verbose bool `long:"verbose" description:"also print each shard's orphan IDs"`
	Fast    bool `long:"fast" description:"use the query planner's row estimate instead of enumerating every orphan"`
}

func (c *cmdPrint) Execute(_ []string) error {
	ctx := context.Background()
	log := newLogger()

	cl, err := discover(ctx, c.globalOpts, log)
	if err != nil {
		return err
	}
	defer cl.closeAll(ctx)

	if c.Fast {
		return c.printFast(ctx, cl)
	}
	return c.printExact(ctx, cl, log)
}

func (c *cmdPrint) printExact(ctx context.Context, cl *cluster, log *logrus.Entry) error {
	fail := make(chan shardworker.Failure, 100_000)
	workers := make(map[string]*shardworker.Worker, len(cl.shardClients))
	for name, client := range cl.shardClients {
		workers[name] = shardworker.New(ctx, name, client, fail, log)
	}

	e := enumerator.New(workers, fail, log)
	summary := e.Run(ctx, cl.ns, cl.shardKey, cl.chunks)

	totals := summary.ShardTotals()
	shards := make([]string, 0, len(totals))
	for shard := range totals {
		shards = append(shards, shard)
	}
	sort.Strings(shards)

	fmt.Printf("%d orphans on %d shard(s): {", summary.ClusterTotal(), summary.PopulatedShardCount())
	for i, shard := range shards {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Printf("%s: %d", shard, totals[shard])
	}
	fmt.Println("}")

	if !summary.Complete() {
		log.Warn("one or more shards were skipped; counts above are partial")
	}

	if c.Verbose {
		printVerbose(summary)
	}
	return nil
}

func printVerbose(summary *orphan.Summary) {
	shardMap := summary.ShardMap()
	shards := make([]string, 0, len(shardMap))
	for shard := range shardMap {
		shards = append(shards, shard)
	}
	sort.Strings(shards)

	fmt.Print("{")
	for i, shard := range shards {
		if i > 0 {
			fmt.Print(", ")
		}
		ids := shardMap[shard]
		fmt.Printf("%s: [", shard)
		for j, id := range ids {
			if j > 0 {
				fmt.Print(", ")
			}
			fmt.Print(stringifyID(id))
		}
		fmt.Print("]")
	}
	fmt.Println("}")
}

// stringifyID decodes an orphan identifier into a plain Go value before
// printing it. orphan.Identifier is a bson.RawValue, and printing one
// directly with fmt.Print shows its internal {Type []byte} struct rather
// than the _id a human would recognize; unmarshaling it first gets ObjectID,
// string, and numeric _id values all printed the way they'd appear in a
// mongo shell.
func stringifyID(id orphan.Identifier) string {
	var v interface{}
	if err := id.Unmarshal(&v); err != nil {
		return fmt.Sprintf("<undecodable _id: %v>", err)
	}
	return fmt.Sprint(v)
}

func (c *cmdPrint) printFast(ctx context.Context, cl *cluster) error {
	counts, err := planner.Counts(ctx, cl.shardClients, cl.ns, cl.shardKey, cl.chunks)
	if err != nil {
		return err
	}

	var total int64
	shards := make([]string, 0, len(counts))
	for shard := range counts {
		shards = append(shards, shard)
		total += counts[shard]
	}
	sort.Strings(shards)

	fmt.Printf("%d orphans on %d shard(s): {", total, len(shards))
	for i, shard := range shards {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Printf("%s: %d", shard, counts[shard])
	}
	fmt.Println("}")
	return nil
}
