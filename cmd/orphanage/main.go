// Command orphanage finds documents physically present on a MongoDB shard
// that, per the cluster's own chunk-to-shard map, belong elsewhere.
//
// Usage:
//
//	orphanage --uri mongodb://router:27017 --db app --coll events estimate
//	orphanage --uri mongodb://router:27017 --db app --coll events print --verbose
//	orphanage --uri mongodb://router:27017 --db app --coll events update --ns=app.events_orphans
//
// Log verbosity is read from ORPHANAGE_LOG (standard logrus level names:
// panic, fatal, error, warn, info, debug, trace).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/dreamware/orphanage/internal/orphanerr"
)

func main() {
	var parser = flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	addCmd(parser, "estimate", "Return an estimate of the namespace's total orphan count", `
Print a single integer: the router's document-count estimate for the
namespace minus the sum of each chunk owner's exact count of documents
matching that chunk's range. Lowest performance impact of the three modes.
`, &cmdEstimate{})

	addCmd(parser, "print", "Query each shard's real orphan count or list of IDs", `
Enumerate the namespace's chunks, dispatch a find to every shard that does
not own each chunk, and print the resulting per-shard orphan counts. With
--verbose, also print each shard's list of orphan document IDs. With --fast,
use the query planner's row estimate instead of streaming every matching
document.
`, &cmdPrint{})

	addCmd(parser, "update", "Query and update each shard, marking its orphans or writing their IDs to a designated namespace", `
Enumerate orphans exactly, as print does, then either set {orphaned: true}
on every orphan document in place, or, with --ns=DB.COLL, write {_id} records
for every orphan into that namespace in batches of 1,000. Heaviest
performance impact of the three modes.
`, &cmdUpdate{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "orphanage:", err)
		os.Exit(exitCodeFor(err))
	}
}

func addCmd(parser *flags.Parser, name, short, long string, data interface{}) *flags.Command {
	cmd, err := parser.AddCommand(name, short, long, data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orphanage: failed to register command", name, ":", err)
		os.Exit(2)
	}
	return cmd
}

// exitCodeFor maps a run's terminal error to spec.md §6's exit codes: 1 for
// misconfiguration the operator can fix by pointing at a different cluster
// or namespace, 2 for everything else (metadata corruption, lost
// connections during discovery, unclassified driver errors).
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, orphanerr.ErrNotARouter),
		errors.Is(err, orphanerr.ErrNamespaceNotSharded):
		return 1
	default:
		return 2
	}
}
