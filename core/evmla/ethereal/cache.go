package ethereal

import (
	"github.com/Masterminds/semver/v3"
	"github.com/ethereal-ir/evmla/core/evmla/assembly"
	"github.com/ethereal-ir/evmla/params"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
)

var graphCache = lru.NewCache[common.Hash, *Graph](params.DefaultGraphCacheSize)

// AssembleCached is Assemble backed by an LRU cache keyed by the digest of
// the version and both streams. The returned graph is shared between callers
// and must be treated as read-only.
func AssembleCached(version *semver.Version, deploy, runtime []assembly.Instruction) (*Graph, error) {
	key := assembly.Digest(version.String(), deploy, runtime)
	if graph, ok := graphCache.Get(key); ok {
		cacheHitCounter.Inc(1)
		return graph, nil
	}
	cacheMissCounter.Inc(1)

	graph, err := Assemble(version, deploy, runtime)
	if err != nil {
		return nil, err
	}
	graphCache.Add(key, graph)
	return graph, nil
}

// PurgeCache drops every cached graph.
func PurgeCache() {
	graphCache.Purge()
}
