// Package connstring derives a per-shard connection URI from the router's
// own URI and a shard host-list entry (spec.md §6), so the Shard Worker can
// dial each shard directly instead of routing queries back through mongos.
package connstring

import "strings"

// ForShard rewrites router, a full mongos connection URI, into a URI that
// targets shard directly: shard's host list (given in the replica-set form
// "rsName/host:port,host:port,...", the form MongoDB's config.shards
// documents use) replaces router's own host list, "+srv" is stripped (shard
// replica sets are never addressed over SRV), and a "localThreshold" option
// is renamed to "localThresholdMS" (mongos accepts the alias; the shard
// driver does not). Credentials, the default auth database, and every other
// query option are carried over unchanged.
func ForShard(router, shard string) string {
	hosts := hostSegment(router)
	shardHosts := shardHostList(shard)

	result := strings.Replace(router, hosts, shardHosts, 1)

	if strings.Contains(result, "localThreshold=") {
		result = strings.Replace(result, "localThreshold=", "localThresholdMS=", 1)
	}
	if strings.Contains(result, "+srv") {
		result = strings.Replace(result, "+srv", "", 1)
	}

	return result
}

// shardHostList strips a replica-set name prefix ("rsName/") from a
// config.shards host entry, leaving the bare comma-separated host:port list.
func shardHostList(shard string) string {
	if i := strings.Index(shard, "/"); i >= 0 {
		return shard[i+1:]
	}
	return shard
}

// hostSegment extracts the host[:port][,host:port...] segment of a mongodb
// or mongodb+srv URI, stopping short of any default-auth-database or
// query-option suffix.
//
// Credentials, if present, sit before the host segment (after an "@"); the
// scheme ("mongodb://" or "mongodb+srv://") sits before that.
func hostSegment(uri string) string {
	afterScheme := uri
	if i := strings.Index(uri, "://"); i >= 0 {
		afterScheme = uri[i+len("://"):]
	}

	afterAuth := afterScheme
	if i := strings.LastIndex(afterScheme, "@"); i >= 0 {
		afterAuth = afterScheme[i+1:]
	}

	if i := strings.Index(afterAuth, "/"); i >= 0 {
		return afterAuth[:i]
	}
	return afterAuth
}
