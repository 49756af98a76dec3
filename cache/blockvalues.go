// Package cache holds the in-memory caches shared across chain workers. A
// single BlockValues LRU is shared by every chain on a validator (spec.md
// §5 "Shared resources"), so a client that already sent a certificate's
// block does not have to resend it.
package cache

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tolelom/multichain/block"
)

var (
	blockValuesHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainworker_block_values_cache_hit",
		Help: "The number of block value lookups served from the in-memory cache.",
	})
	blockValuesMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainworker_block_values_cache_miss",
		Help: "The number of block value lookups that were not present in the cache.",
	})
	blockValuesSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainworker_block_values_cache_size",
		Help: "The number of entries currently held in the block values cache.",
	})
)

// BlockValues caches recently voted-on or confirmed blocks by their
// certificate hash, so a validator does not need to ask storage or the
// client again for a value it just produced or received.
type BlockValues struct {
	lru *lru.Cache
}

// New creates a BlockValues cache holding at most size entries, evicting
// least-recently-used entries once full.
func New(size int) (*BlockValues, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &BlockValues{lru: c}, nil
}

// Insert records a block keyed by its certificate hash.
func (c *BlockValues) Insert(hash string, b block.Block) {
	c.lru.Add(hash, b)
	blockValuesSize.Set(float64(c.lru.Len()))
}

// Get returns the cached block for hash, if present.
func (c *BlockValues) Get(hash string) (block.Block, bool) {
	v, ok := c.lru.Get(hash)
	if !ok {
		blockValuesMiss.Inc()
		return block.Block{}, false
	}
	blockValuesHit.Inc()
	return v.(block.Block), true
}
